package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BusinessMetricsRegistry tracks study-domain engagement metrics: what ratings
// get submitted, how big queues run, and how mastery is distributed across a
// user's deck.
type BusinessMetricsRegistry struct {
	reviewsSubmitted  *prometheus.CounterVec
	queuesBuilt       prometheus.Counter
	queueCardsServed  prometheus.Histogram
	streakLength      *prometheus.GaugeVec
	masteryTierCounts *prometheus.GaugeVec

	registry *prometheus.Registry
	mu       sync.RWMutex
}

// NewBusinessMetricsRegistry creates and registers all business metrics
func NewBusinessMetricsRegistry() *BusinessMetricsRegistry {
	registry := prometheus.NewRegistry()

	b := &BusinessMetricsRegistry{
		registry: registry,
	}

	b.registerMetrics()
	return b
}

// registerMetrics registers all business metric collectors
func (b *BusinessMetricsRegistry) registerMetrics() {
	// Reviews submitted counter: tracks review volume by rating
	b.reviewsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardstudy_reviews_submitted_total",
			Help: "Total reviews submitted by rating (1=again, 2=hard, 3=good, 4=easy)",
		},
		[]string{"rating"},
	)
	b.registry.MustRegister(b.reviewsSubmitted)

	// Queue built counter: tracks how often the review queue is assembled
	b.queuesBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cardstudy_queue_built_total",
			Help: "Total number of times a study queue was built",
		},
	)
	b.registry.MustRegister(b.queuesBuilt)

	// Queue cards served histogram: tracks how many cards a built queue returned
	b.queueCardsServed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardstudy_queue_cards_returned",
			Help:    "Number of cards returned per built queue",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200},
		},
	)
	b.registry.MustRegister(b.queueCardsServed)

	// Streak length gauge: tracks a user's current review streak
	b.streakLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardstudy_streak_length_days",
			Help: "Current study streak length in days by user",
		},
		[]string{"user_id"},
	)
	b.registry.MustRegister(b.streakLength)

	// Mastery tier counts gauge: tracks how many of a user's cards sit in each tier
	b.masteryTierCounts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardstudy_mastery_tier_count",
			Help: "Number of cards in each mastery tier by user",
		},
		[]string{"user_id", "tier"},
	)
	b.registry.MustRegister(b.masteryTierCounts)
}

// RecordReviewSubmitted records a review commit for the given rating (1-4).
func (b *BusinessMetricsRegistry) RecordReviewSubmitted(rating int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reviewsSubmitted.WithLabelValues(ratingLabel(rating)).Inc()
}

// RecordQueueBuilt records a BuildQueue call and the number of cards it returned.
func (b *BusinessMetricsRegistry) RecordQueueBuilt(cardsReturned int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queuesBuilt.Inc()
	b.queueCardsServed.Observe(float64(cardsReturned))
}

// SetStreakLength records a user's current streak after a review commit.
func (b *BusinessMetricsRegistry) SetStreakLength(userID string, days int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streakLength.WithLabelValues(userID).Set(float64(days))
}

// SetMasteryTierCount records how many of a user's cards sit in a tier.
func (b *BusinessMetricsRegistry) SetMasteryTierCount(userID, tier string, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.masteryTierCounts.WithLabelValues(userID, tier).Set(float64(count))
}

// GetPrometheusRegistry returns the underlying prometheus.Registry
func (b *BusinessMetricsRegistry) GetPrometheusRegistry() *prometheus.Registry {
	return b.registry
}

func ratingLabel(rating int) string {
	switch rating {
	case 1:
		return "again"
	case 2:
		return "hard"
	case 3:
		return "good"
	case 4:
		return "easy"
	default:
		return "unknown"
	}
}
