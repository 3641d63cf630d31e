package study

import (
	"context"
	"sort"
	"time"

	"github.com/jgirmay/cardstudy/internal/metrics"
	"github.com/jgirmay/cardstudy/pkg/scheduler"
)

const (
	minQueueLimit  = 1
	maxQueueLimit  = 200
	minNewCardsCap = 0
	maxNewCardsCap = 50
)

// Service is the request/response layer wrapping a Store: it validates
// input, invokes the pure scheduler and classifier, and commits each
// review's mutations transactionally. It holds no mutable state of its
// own beyond its dependencies, so one Service may be shared across
// concurrent request handlers.
type Service struct {
	store   Store
	clock   Clock
	metrics *metrics.BusinessMetricsRegistry
}

// NewService wires a Store and Clock into a Service. Production callers
// pass SystemClock{}; tests pass a fixed Clock so scenarios are
// reproducible.
func NewService(store Store, clock Clock) *Service {
	return &Service{store: store, clock: clock}
}

// WithMetrics attaches a business metrics registry; review commits and
// queue builds record against it when set. Omitting it (the zero value)
// leaves metric recording a no-op, which is what unit tests do.
func (s *Service) WithMetrics(reg *metrics.BusinessMetricsRegistry) *Service {
	s.metrics = reg
	return s
}

// ReviewResult is what submit_review returns to its caller.
type ReviewResult struct {
	CardID         string
	NewIntervalDays int
	NewEase         float64
	NewDueDate      time.Time
	NewMastery      scheduler.Tier
	CardsRemaining  int
}

// SubmitReview implements Review Commit (§4.C): it atomically updates the
// card's scheduling state, appends an immutable Review record, rolls the
// mutation into today's Session, and updates the user's lifetime
// UserStats including streak. Either every mutation lands or none does.
func (s *Service) SubmitReview(ctx context.Context, userID, cardID string, rating scheduler.Rating, timeSpentSeconds *int) (*ReviewResult, error) {
	if rating < scheduler.Again || rating > scheduler.Easy {
		return nil, ValidationError("rating must be between %d and %d, got %d", scheduler.Again, scheduler.Easy, rating)
	}
	if timeSpentSeconds != nil && *timeSpentSeconds < 0 {
		return nil, ValidationError("time_spent_seconds must be non-negative, got %d", *timeSpentSeconds)
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.DeletedAt != nil {
		return nil, NotFoundError("card %s not found", cardID)
	}
	if card.UserID != userID {
		return nil, OwnershipError("card %s is not owned by this user", cardID)
	}

	today := s.clock.Today()
	var result ReviewResult

	err = s.store.WithTx(ctx, func(tx Tx) error {
		prevState, err := tx.ReadCardState(ctx, cardID)
		if err != nil {
			return err
		}
		if prevState == nil {
			prevState = NewCardState(cardID, userID)
		}

		prevTier := prevState.MasteryLevel
		prevInterval := prevState.CurrentIntervalDays
		prevEase := prevState.EaseFactor
		prevTotal := prevState.TotalReviews

		next := scheduler.Next(rating, prevInterval, prevEase, prevTotal, today)

		newState := *prevState
		newState.CurrentIntervalDays = next.IntervalDays
		newState.EaseFactor = next.Ease
		newState.DueDate = &next.DueDate
		newState.TotalReviews = prevTotal + 1
		if rating >= scheduler.Good {
			newState.SuccessfulReviews++
		} else {
			newState.FailedReviews++
		}
		now := time.Now().UTC()
		if newState.FirstReviewedAt == nil {
			newState.FirstReviewedAt = &now
		}
		newState.LastReviewedAt = &now
		newState.AverageRating = streamingMean(newState.AverageRating, float64(rating), newState.TotalReviews)
		if timeSpentSeconds != nil {
			newState.AverageTimeSeconds = streamingMean(newState.AverageTimeSeconds, float64(*timeSpentSeconds), newState.TotalReviews)
		}
		newState.MasteryLevel = scheduler.Classify(newState.CurrentIntervalDays, newState.TotalReviews)

		if err := newState.Validate(); err != nil {
			return InternalError("card state invariant violated after review: %v", err)
		}
		if err := tx.UpsertCardState(ctx, &newState); err != nil {
			return err
		}

		timeSpentMinutes := 0
		if timeSpentSeconds != nil {
			timeSpentMinutes = *timeSpentSeconds / 60
		}

		session, err := tx.UpsertSessionToday(ctx, userID, today, func(sess *Session) {
			sess.recordRating(rating)
			sess.TimeSpentMinutes += timeSpentMinutes
		})
		if err != nil {
			return err
		}

		review := &Review{
			ID:                newID(),
			CardID:            cardID,
			UserID:            userID,
			SessionID:         session.ID,
			Rating:            rating,
			PriorIntervalDays: prevInterval,
			NewIntervalDays:   newState.CurrentIntervalDays,
			PriorEase:         prevEase,
			NewEase:           newState.EaseFactor,
			TimeSpentSeconds:  timeSpentSeconds,
			DueDate:           next.DueDate,
			CreatedAt:         now,
		}
		if err := tx.AppendReview(ctx, review); err != nil {
			return err
		}

		todayStr := formatDate(today)
		updatedStats, err := tx.UpsertUserStats(ctx, userID, func(stats *UserStats) {
			stats.TotalCardsStudied++
			stats.TotalStudyMinutes += timeSpentMinutes

			switch {
			case stats.LastStudyDate != nil && *stats.LastStudyDate == todayStr:
				// already studied today; streak unchanged
			case stats.LastStudyDate != nil && *stats.LastStudyDate == formatDate(today.AddDate(0, 0, -1)):
				stats.CurrentStreak++
			default:
				stats.CurrentStreak = 1
			}
			if stats.CurrentStreak > stats.LongestStreak {
				stats.LongestStreak = stats.CurrentStreak
			}
			stats.LastStudyDate = &todayStr

			stats.applyTierTransition(prevTier, newState.MasteryLevel)
		})
		if err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.SetStreakLength(userID, updatedStats.CurrentStreak)
			s.metrics.SetMasteryTierCount(userID, string(scheduler.TierNew), updatedStats.MasteryNewCount)
			s.metrics.SetMasteryTierCount(userID, string(scheduler.TierLearning), updatedStats.MasteryLearningCount)
			s.metrics.SetMasteryTierCount(userID, string(scheduler.TierYoung), updatedStats.MasteryYoungCount)
			s.metrics.SetMasteryTierCount(userID, string(scheduler.TierMature), updatedStats.MasteryMatureCount)
			s.metrics.SetMasteryTierCount(userID, string(scheduler.TierMastered), updatedStats.MasteryMasteredCount)
		}

		remaining, err := tx.CountDueOrNew(ctx, userID, today)
		if err != nil {
			return err
		}

		result = ReviewResult{
			CardID:          cardID,
			NewIntervalDays: newState.CurrentIntervalDays,
			NewEase:         newState.EaseFactor,
			NewDueDate:      next.DueDate,
			NewMastery:      newState.MasteryLevel,
			CardsRemaining:  remaining - 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordReviewSubmitted(int(rating))
	}
	return &result, nil
}

// streamingMean applies the running-average update (avg*(n-1)+value)/n. A
// nil prior average is treated as 0, which is exact when n==1 (the first
// sample).
func streamingMean(prior *float64, value float64, n int) *float64 {
	avg := 0.0
	if prior != nil {
		avg = *prior
	}
	updated := (avg*float64(n-1) + value) / float64(n)
	return &updated
}

// QueueCard is one entry in a built queue: the card's content plus its
// current scheduling state and the four-rating interval preview.
type QueueCard struct {
	Card            Card
	IntervalDays    int
	Ease            float64
	ReviewCount     int
	Mastery         scheduler.Tier
	IntervalPreview scheduler.Preview
}

// QueueResult is what get_queue returns.
type QueueResult struct {
	Cards         []QueueCard
	TotalDue      int
	NewCount      int
	ReviewCount   int
	OverdueCount  int
}

// BuildQueue implements the Queue Builder (§4.D): partition a user's active
// cards into overdue/due-today/new, sort each partition by its priority
// key, and concatenate overdue, due-today, then new, capped at limit and
// newCardsLimit. It is read-only — it never creates a CardState row.
func (s *Service) BuildQueue(ctx context.Context, userID string, limit int, includeNew bool, newCardsLimit int) (*QueueResult, error) {
	if limit < minQueueLimit || limit > maxQueueLimit {
		return nil, ValidationError("limit must be between %d and %d, got %d", minQueueLimit, maxQueueLimit, limit)
	}
	if newCardsLimit < minNewCardsCap || newCardsLimit > maxNewCardsCap {
		return nil, ValidationError("new_cards_limit must be between %d and %d, got %d", minNewCardsCap, maxNewCardsCap, newCardsLimit)
	}

	today := s.clock.Today()
	all, err := s.store.ListActiveCardStatesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var overdue, dueToday, fresh []CardWithState
	for _, cws := range all {
		state := cws.State
		switch {
		case state == nil || state.DueDate == nil || state.TotalReviews == 0:
			fresh = append(fresh, cws)
		case state.DueDate.Before(today):
			overdue = append(overdue, cws)
		case state.DueDate.Equal(today):
			dueToday = append(dueToday, cws)
		// state.DueDate after today: excluded entirely
		}
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		a, b := overdue[i].State, overdue[j].State
		if a.FailedReviews != b.FailedReviews {
			return a.FailedReviews > b.FailedReviews
		}
		if !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		return a.EaseFactor < b.EaseFactor
	})

	sort.SliceStable(dueToday, func(i, j int) bool {
		a, b := dueToday[i].State, dueToday[j].State
		if a.FailedReviews != b.FailedReviews {
			return a.FailedReviews > b.FailedReviews
		}
		if a.EaseFactor != b.EaseFactor {
			return a.EaseFactor < b.EaseFactor
		}
		return avgRatingOrDefault(a) < avgRatingOrDefault(b)
	})

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Card.ID < fresh[j].Card.ID
	})

	if !includeNew {
		newCardsLimit = 0
	}
	if len(fresh) > newCardsLimit {
		fresh = fresh[:newCardsLimit]
	}

	overdueCount := len(overdue)
	reviewCount := len(dueToday)
	newCount := len(fresh)

	ordered := make([]CardWithState, 0, len(overdue)+len(dueToday)+len(fresh))
	ordered = append(ordered, overdue...)
	ordered = append(ordered, dueToday...)
	ordered = append(ordered, fresh...)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	cards := make([]QueueCard, 0, len(ordered))
	for _, cws := range ordered {
		intervalDays, ease, reviewCnt := 0, scheduler.DefaultEase, 0
		mastery := scheduler.TierNew
		if cws.State != nil {
			intervalDays = cws.State.CurrentIntervalDays
			ease = cws.State.EaseFactor
			reviewCnt = cws.State.TotalReviews
			mastery = cws.State.MasteryLevel
		}
		cards = append(cards, QueueCard{
			Card:            cws.Card,
			IntervalDays:    intervalDays,
			Ease:            ease,
			ReviewCount:     reviewCnt,
			Mastery:         mastery,
			IntervalPreview: scheduler.BuildPreview(intervalDays, ease, reviewCnt, today),
		})
	}

	if s.metrics != nil {
		s.metrics.RecordQueueBuilt(len(cards))
	}

	return &QueueResult{
		Cards:        cards,
		TotalDue:     overdueCount + reviewCount,
		NewCount:     newCount,
		ReviewCount:  reviewCount,
		OverdueCount: overdueCount,
	}, nil
}

func avgRatingOrDefault(state *CardState) float64 {
	if state.AverageRating == nil {
		return 2.0
	}
	return *state.AverageRating
}

// GetTodaySession returns today's Session for userID, or nil if the user
// has not submitted a review or recorded a pomodoro today.
func (s *Service) GetTodaySession(ctx context.Context, userID string) (*Session, error) {
	return s.store.GetTodaySession(ctx, userID, s.clock.Today())
}

// EndSession sets end_time on today's Session. Returns NotFoundError if the
// user has no session today.
func (s *Service) EndSession(ctx context.Context, userID string) (*Session, error) {
	today := s.clock.Today()
	existing, err := s.store.GetTodaySession(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, NotFoundError("no session today for user %s", userID)
	}

	var result Session
	err = s.store.WithTx(ctx, func(tx Tx) error {
		sess, err := tx.UpsertSessionToday(ctx, userID, today, func(sess *Session) {
			now := time.Now().UTC()
			sess.EndTime = &now
		})
		if err != nil {
			return err
		}
		result = *sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RecordPomodoro increments today's pomodoro_sessions counter as an
// independent client action, with load-or-create semantics identical to
// the session half of Review Commit.
func (s *Service) RecordPomodoro(ctx context.Context, userID string) (*Session, error) {
	today := s.clock.Today()
	var result Session
	err := s.store.WithTx(ctx, func(tx Tx) error {
		sess, err := tx.UpsertSessionToday(ctx, userID, today, func(sess *Session) {
			sess.PomodoroSessions++
		})
		if err != nil {
			return err
		}
		result = *sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
