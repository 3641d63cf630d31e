package scheduler

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// P1: next_review always returns ease in [MinEase, MaxEase] and interval in
// [0, MaxIntervalDays], for any rating, prior interval, prior ease and
// review count.
func TestNext_BoundsProperty(t *testing.T) {
	ratings := []Rating{Again, Hard, Good, Easy, 0, 5, -3}
	intervals := []int{0, 1, 5, 10, 45, 200, 365, 1000}
	eases := []float64{1.0, 1.3, 1.8, 2.5, 2.95, 3.0, 4.0}
	counts := []int{0, 1, 2, 5, 12}
	today := day(2025, time.January, 10)

	for _, r := range ratings {
		for _, interval := range intervals {
			for _, ease := range eases {
				for _, count := range counts {
					result := Next(r, interval, ease, count, today)
					if result.Ease < MinEase || result.Ease > MaxEase {
						t.Fatalf("Next(%v, %d, %v, %d): ease %v out of bounds", r, interval, ease, count, result.Ease)
					}
					if result.IntervalDays < 0 || result.IntervalDays > MaxIntervalDays {
						t.Fatalf("Next(%v, %d, %v, %d): interval %d out of bounds", r, interval, ease, count, result.IntervalDays)
					}
				}
			}
		}
	}
}

// P5: rating-1 on a card already in the review regime always resets the
// interval to 0 and sets the due date to today.
func TestNext_LapseAlwaysResetsInterval(t *testing.T) {
	today := day(2025, time.January, 10)
	intervals := []int{1, 5, 10, 45, 200, 365}
	eases := []float64{1.3, 1.8, 2.5, 3.0}
	counts := []int{1, 2, 12, 50}

	for _, interval := range intervals {
		for _, ease := range eases {
			for _, count := range counts {
				result := Next(Again, interval, ease, count, today)
				if result.IntervalDays != 0 {
					t.Fatalf("lapse on interval=%d ease=%v count=%d: got interval %d, want 0", interval, ease, count, result.IntervalDays)
				}
				if !result.DueDate.Equal(today) {
					t.Fatalf("lapse due date = %v, want %v", result.DueDate, today)
				}
			}
		}
	}
}

// P6: holding other inputs fixed, rating 4's interval is strictly greater
// than rating 3's, which is >= rating 2's, which is >= rating 1's.
func TestNext_RatingMonotonicity(t *testing.T) {
	today := day(2025, time.January, 10)
	cases := []struct {
		interval int
		ease     float64
		count    int
	}{
		{0, 2.5, 0},
		{0, 2.5, 1},
		{1, 2.5, 1},
		{10, 2.5, 5},
		{45, 2.6, 12},
		{5, 2.95, 3},
	}

	for _, c := range cases {
		r1 := Next(Again, c.interval, c.ease, c.count, today).IntervalDays
		r2 := Next(Hard, c.interval, c.ease, c.count, today).IntervalDays
		r3 := Next(Good, c.interval, c.ease, c.count, today).IntervalDays
		r4 := Next(Easy, c.interval, c.ease, c.count, today).IntervalDays

		if !(r4 > r3) {
			t.Fatalf("case %+v: rating-4 interval %d not strictly greater than rating-3 interval %d", c, r4, r3)
		}
		if !(r3 >= r2) {
			t.Fatalf("case %+v: rating-3 interval %d less than rating-2 interval %d", c, r3, r2)
		}
		if !(r2 >= r1) {
			t.Fatalf("case %+v: rating-2 interval %d less than rating-1 interval %d", c, r2, r1)
		}
	}
}

func TestNext_Scenarios(t *testing.T) {
	today := day(2025, time.January, 10)

	t.Run("first ever review rating 3", func(t *testing.T) {
		result := Next(Good, 0, DefaultEase, 0, today)
		if result.IntervalDays != 2 {
			t.Errorf("interval = %d, want 2", result.IntervalDays)
		}
		if result.Ease != 2.5 {
			t.Errorf("ease = %v, want 2.5", result.Ease)
		}
		want := day(2025, time.January, 12)
		if !result.DueDate.Equal(want) {
			t.Errorf("due = %v, want %v", result.DueDate, want)
		}
	})

	t.Run("good on a mature card", func(t *testing.T) {
		result := Next(Good, 10, 2.5, 5, today)
		if result.IntervalDays != 25 {
			t.Errorf("interval = %d, want 25", result.IntervalDays)
		}
		if result.Ease != 2.5 {
			t.Errorf("ease = %v, want 2.5", result.Ease)
		}
		want := day(2025, time.February, 4)
		if !result.DueDate.Equal(want) {
			t.Errorf("due = %v, want %v", result.DueDate, want)
		}
	})

	t.Run("lapse on a mastered card", func(t *testing.T) {
		result := Next(Again, 45, 2.6, 12, today)
		if result.IntervalDays != 0 {
			t.Errorf("interval = %d, want 0", result.IntervalDays)
		}
		if result.Ease != 2.4 {
			t.Errorf("ease = %v, want 2.4", result.Ease)
		}
		if !result.DueDate.Equal(today) {
			t.Errorf("due = %v, want %v", result.DueDate, today)
		}
	})

	t.Run("easy on a young card, ease capped", func(t *testing.T) {
		result := Next(Easy, 5, 2.95, 3, today)
		if result.Ease != 3.0 {
			t.Errorf("ease = %v, want 3.0 (capped)", result.Ease)
		}
		if result.IntervalDays != 19 {
			t.Errorf("interval = %d, want 19", result.IntervalDays)
		}
		want := day(2025, time.January, 29)
		if !result.DueDate.Equal(want) {
			t.Errorf("due = %v, want %v", result.DueDate, want)
		}
	})
}

func TestRating_Clamp(t *testing.T) {
	tests := []struct {
		in   Rating
		want Rating
	}{
		{0, Again},
		{-5, Again},
		{1, Again},
		{4, Easy},
		{9, Easy},
	}
	for _, tt := range tests {
		if got := tt.in.Clamp(); got != tt.want {
			t.Errorf("Rating(%d).Clamp() = %v, want %v", tt.in, got, tt.want)
		}
	}
}
