package scheduler

import (
	"fmt"
	"time"
)

// Preview maps each possible rating to a human-readable interval string,
// letting a queue card show "what happens if I rate this X" without
// committing anything.
type Preview map[Rating]string

// BuildPreview runs Next once per rating against the same prior state and
// formats each resulting interval.
func BuildPreview(currentIntervalDays int, currentEase float64, reviewCount int, today time.Time) Preview {
	preview := make(Preview, 4)
	for _, r := range []Rating{Again, Hard, Good, Easy} {
		result := Next(r, currentIntervalDays, currentEase, reviewCount, today)
		preview[r] = FormatInterval(result.IntervalDays)
	}
	return preview
}

// FormatInterval renders a day count the way the study queue displays it:
// same-day reviews as "< 10m", short intervals in days, medium intervals in
// months, and long intervals in years.
func FormatInterval(days int) string {
	switch {
	case days == 0:
		return "< 10m"
	case days < 30:
		return fmt.Sprintf("%dd", days)
	case days < 365:
		return fmt.Sprintf("%dmo", days/30)
	default:
		return fmt.Sprintf("%dy", days/365)
	}
}
