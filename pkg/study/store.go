package study

import (
	"context"
	"time"
)

// Clock supplies today() to the components that need a reference date.
// The real implementation reads the wall clock; tests substitute a fixed
// date so scenarios are reproducible.
type Clock interface {
	Today() time.Time
}

// SystemClock is the production Clock, truncated to the calendar day in UTC.
// A collaborator that knows the user's timezone is expected to hand this
// package an already-localized date; this package never assumes a timezone
// of its own.
type SystemClock struct{}

func (SystemClock) Today() time.Time {
	now := time.Now().UTC()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CardWithState pairs a Card with its CardState (nil if the card has never
// been scheduled) — the Queue Builder's unit of work.
type CardWithState struct {
	Card  Card
	State *CardState // nil for a card with no CardState row yet
}

// Store is the one polymorphic boundary this package depends on: a
// capability set of {read_card_state, upsert_card_state, append_review,
// upsert_session_today, upsert_user_stats, list_active_card_states_for_user,
// count_due_or_new}, implementable against SQL, an in-memory map, or a fake.
//
// Every mutating capability is reached only through WithTx, so an
// implementation can serialize Session/UserStats writes by choosing its
// transaction isolation once, in one place.
type Store interface {
	// GetCard returns the card if it exists, whether or not it is
	// soft-deleted and regardless of owner — the caller checks DeletedAt
	// and ownership, returning NotFound or OwnershipError itself.
	GetCard(ctx context.Context, cardID string) (*Card, error)

	// ListActiveCardStatesForUser returns every active, non-deleted card
	// owned by userID together with its CardState (nil state for cards
	// never scheduled). Iteration order need not be meaningful — Queue
	// Builder imposes its own sort.
	ListActiveCardStatesForUser(ctx context.Context, userID string) ([]CardWithState, error)

	// CountDueOrNew counts active cards for userID whose CardState is
	// absent, has zero reviews, or is due on or before today.
	CountDueOrNew(ctx context.Context, userID string, today time.Time) (int, error)

	// GetTodaySession returns today's Session for userID, or nil if none
	// has been created yet.
	GetTodaySession(ctx context.Context, userID string, today time.Time) (*Session, error)

	// GetUserStats returns userID's lifetime aggregate, or nil if the user
	// has never completed a review.
	GetUserStats(ctx context.Context, userID string) (*UserStats, error)

	// WithTx runs fn inside a single write transaction. Implementations
	// must acquire whatever lock is needed to serialize concurrent
	// Session/UserStats mutation for the same user before fn observes any
	// row (SQLite: BEGIN IMMEDIATE; a multi-writer SQL backend: row-level
	// locking or optimistic retry).
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the mutating half of the capability set, scoped to one
// WithTx call.
type Tx interface {
	// ReadCardState loads cardID's state, or returns nil if the card has
	// never been scheduled.
	ReadCardState(ctx context.Context, cardID string) (*CardState, error)

	// UpsertCardState writes state, creating the row if absent.
	UpsertCardState(ctx context.Context, state *CardState) error

	// AppendReview inserts review. Reviews are never updated or deleted.
	AppendReview(ctx context.Context, review *Review) error

	// UpsertSessionToday loads (or creates) userID's Session for today,
	// applies mutate, persists the result, and returns it.
	UpsertSessionToday(ctx context.Context, userID string, today time.Time, mutate func(*Session)) (*Session, error)

	// UpsertUserStats loads (or creates) userID's UserStats, applies
	// mutate, persists the result, and returns it.
	UpsertUserStats(ctx context.Context, userID string, mutate func(*UserStats)) (*UserStats, error)

	// CountDueOrNew is also available inside a transaction, for step 7 of
	// Review Commit which must see its own uncommitted mutation.
	CountDueOrNew(ctx context.Context, userID string, today time.Time) (int, error)
}
