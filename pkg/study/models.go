// Package study implements the request/response layer over the scheduling
// core: loading and mutating card state, committing reviews transactionally,
// building the day's study queue, and maintaining the per-day and per-user
// aggregates. The pure arithmetic lives in pkg/scheduler; this package owns
// everything that touches storage.
package study

import (
	"errors"
	"fmt"
	"time"

	"github.com/jgirmay/cardstudy/pkg/scheduler"
)

// CardStatus is a Card's lifecycle state. Only active cards participate in
// scheduling.
type CardStatus string

const (
	StatusDraft    CardStatus = "draft"
	StatusActive   CardStatus = "active"
	StatusArchived CardStatus = "archived"
)

// Card is a single flashcard owned by a user.
type Card struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Explanation string     `json:"explanation,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Difficulty  int        `json:"difficulty"`
	Status      CardStatus `json:"status"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks the fields a CRUD layer outside this package's scope
// would otherwise enforce before a card reaches scheduling.
func (c *Card) Validate() error {
	if c.UserID == "" {
		return errors.New("user_id is required")
	}
	if c.Question == "" {
		return errors.New("question is required")
	}
	if c.Answer == "" {
		return errors.New("answer is required")
	}
	if c.Difficulty < 1 || c.Difficulty > 5 {
		return fmt.Errorf("difficulty must be between 1 and 5, got %d", c.Difficulty)
	}
	switch c.Status {
	case "", StatusDraft, StatusActive, StatusArchived:
	default:
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	return nil
}

// IsActive reports whether a card currently participates in scheduling.
func (c *Card) IsActive() bool {
	return c.Status == StatusActive && c.DeletedAt == nil
}

// CardState is the scheduler's per-card memory. It is created lazily on a
// card's first scheduling interaction.
type CardState struct {
	CardID string `json:"card_id"`
	UserID string `json:"user_id"`

	TotalReviews      int `json:"total_reviews"`
	SuccessfulReviews int `json:"successful_reviews"`
	FailedReviews     int `json:"failed_reviews"`

	CurrentIntervalDays int     `json:"current_interval_days"`
	EaseFactor          float64 `json:"ease_factor"`

	DueDate *time.Time `json:"due_date"`

	AverageRating      *float64 `json:"average_rating"`
	AverageTimeSeconds *float64 `json:"average_time_seconds"`

	MasteryLevel scheduler.Tier `json:"mastery_level"`

	FirstReviewedAt *time.Time `json:"first_reviewed_at"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at"`
}

// NewCardState returns the zero-value state a card has before it has ever
// been reviewed: interval 0, default ease, mastery "new".
func NewCardState(cardID, userID string) *CardState {
	return &CardState{
		CardID:              cardID,
		UserID:              userID,
		CurrentIntervalDays: 0,
		EaseFactor:          scheduler.DefaultEase,
		MasteryLevel:        scheduler.TierNew,
	}
}

// Validate enforces the invariants CardState must hold at all times.
func (s *CardState) Validate() error {
	if s.EaseFactor < scheduler.MinEase || s.EaseFactor > scheduler.MaxEase {
		return fmt.Errorf("ease_factor %v out of bounds [%v, %v]", s.EaseFactor, scheduler.MinEase, scheduler.MaxEase)
	}
	if s.CurrentIntervalDays < 0 || s.CurrentIntervalDays > scheduler.MaxIntervalDays {
		return fmt.Errorf("current_interval_days %d out of bounds [0, %d]", s.CurrentIntervalDays, scheduler.MaxIntervalDays)
	}
	if s.SuccessfulReviews+s.FailedReviews != s.TotalReviews {
		return fmt.Errorf("successful_reviews + failed_reviews (%d) != total_reviews (%d)", s.SuccessfulReviews+s.FailedReviews, s.TotalReviews)
	}
	if s.TotalReviews == 0 && s.MasteryLevel != scheduler.TierNew {
		return fmt.Errorf("card with zero reviews must have mastery_level new, got %s", s.MasteryLevel)
	}
	if s.TotalReviews >= 1 && s.CurrentIntervalDays == 0 && s.MasteryLevel != scheduler.TierLearning {
		return fmt.Errorf("card with interval 0 and reviews >= 1 must have mastery_level learning, got %s", s.MasteryLevel)
	}
	return nil
}

// Review is an immutable record of a single rating submission. It is never
// mutated or deleted after it is appended.
type Review struct {
	ID        string `json:"id"`
	CardID    string `json:"card_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	Rating scheduler.Rating `json:"rating"`

	PriorIntervalDays int     `json:"prior_interval_days"`
	NewIntervalDays   int     `json:"new_interval_days"`
	PriorEase         float64 `json:"prior_ease"`
	NewEase           float64 `json:"new_ease"`

	TimeSpentSeconds *int      `json:"time_spent_seconds"`
	DueDate          time.Time `json:"due_date"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session aggregates the reviews submitted by one user on one calendar day.
// It is unique on (user_id, date).
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Date   string `json:"date"` // YYYY-MM-DD, the user's local calendar day

	CardsStudied int `json:"cards_studied"`
	CardsAgain   int `json:"cards_again"`
	CardsHard    int `json:"cards_hard"`
	CardsGood    int `json:"cards_good"`
	CardsEasy    int `json:"cards_easy"`

	TimeSpentMinutes  int `json:"time_spent_minutes"`
	PomodoroSessions  int `json:"pomodoro_sessions"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// Validate enforces P7: the four rating counters must sum to cards_studied.
func (s *Session) Validate() error {
	sum := s.CardsAgain + s.CardsHard + s.CardsGood + s.CardsEasy
	if sum != s.CardsStudied {
		return fmt.Errorf("cards_again+hard+good+easy (%d) != cards_studied (%d)", sum, s.CardsStudied)
	}
	return nil
}

// recordRating increments cards_studied and the counter matching rating.
func (s *Session) recordRating(rating scheduler.Rating) {
	s.CardsStudied++
	switch rating {
	case scheduler.Again:
		s.CardsAgain++
	case scheduler.Hard:
		s.CardsHard++
	case scheduler.Good:
		s.CardsGood++
	default:
		s.CardsEasy++
	}
}

// UserStats are the lifetime aggregates for one user, maintained exclusively
// by Review Commit and never rebuilt from reviews on the read path.
type UserStats struct {
	UserID string `json:"user_id"`

	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastStudyDate  *string    `json:"last_study_date"` // YYYY-MM-DD

	TotalCardsStudied int `json:"total_cards_studied"`
	TotalStudyMinutes int `json:"total_study_minutes"`

	MasteryNewCount      int `json:"mastery_new_count"`
	MasteryLearningCount int `json:"mastery_learning_count"`
	MasteryYoungCount    int `json:"mastery_young_count"`
	MasteryMatureCount   int `json:"mastery_mature_count"`
	MasteryMasteredCount int `json:"mastery_mastered_count"`

	AverageAccuracy float64 `json:"average_accuracy"`
}

// tierCount returns a pointer to the counter for the given tier so callers
// can increment/decrement it uniformly.
func (u *UserStats) tierCount(tier scheduler.Tier) *int {
	switch tier {
	case scheduler.TierNew:
		return &u.MasteryNewCount
	case scheduler.TierLearning:
		return &u.MasteryLearningCount
	case scheduler.TierYoung:
		return &u.MasteryYoungCount
	case scheduler.TierMature:
		return &u.MasteryMatureCount
	default:
		return &u.MasteryMasteredCount
	}
}

// applyTierTransition adjusts the mastery counters when a card moves from
// one tier to another. Counters are maintained incrementally rather than
// rebuilt from scratch: moving a card away from a tier decrements that
// tier's counter (never below zero) and increments the new one, in both
// directions (upgrade and downgrade).
func (u *UserStats) applyTierTransition(from, to scheduler.Tier) {
	if from == to {
		return
	}
	if c := u.tierCount(from); *c > 0 {
		*c--
	}
	*u.tierCount(to)++
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
