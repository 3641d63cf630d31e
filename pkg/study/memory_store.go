package study

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory fake Store implementation ("an in-memory
// map, for tests"). It implements the exact same Store/Tx interfaces as
// SQLiteStore so service-level tests can run without a database, and a
// single mutex stands in for SQLite's BEGIN IMMEDIATE write lock —
// WithTx holds it for the whole callback, giving the same serialization
// guarantee a real backend must provide.
type MemoryStore struct {
	mu sync.Mutex

	cards      map[string]Card
	cardStates map[string]CardState // keyed by card ID
	sessions   map[string]Session   // keyed by userID + "|" + date
	userStats  map[string]UserStats // keyed by userID
	reviews    []Review
}

// NewMemoryStore returns an empty store. Use PutCard to seed fixtures —
// there is no public CRUD surface, mirroring how pkg/reading's own tests
// build fixtures directly against the repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cards:      make(map[string]Card),
		cardStates: make(map[string]CardState),
		sessions:   make(map[string]Session),
		userStats:  make(map[string]UserStats),
	}
}

// PutCard seeds a card fixture.
func (m *MemoryStore) PutCard(c Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = c
}

// ReviewsForCard returns every review appended for cardID, in commit order.
// Test-only: lets property tests assert P3 (total_reviews equals the number
// of Review rows) against the fake the same way a real repair job would
// fold Review history.
func (m *MemoryStore) ReviewsForCard(cardID string) []Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Review
	for _, r := range m.reviews {
		if r.CardID == cardID {
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryStore) GetCard(ctx context.Context, cardID string) (*Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[cardID]
	if !ok {
		return nil, NotFoundError("card %s not found", cardID)
	}
	return &c, nil
}

func (m *MemoryStore) ListActiveCardStatesForUser(ctx context.Context, userID string) ([]CardWithState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CardWithState
	for _, c := range m.cards {
		if c.UserID != userID || !c.IsActive() {
			continue
		}
		cws := CardWithState{Card: c}
		if state, ok := m.cardStates[c.ID]; ok {
			s := state
			cws.State = &s
		}
		out = append(out, cws)
	}
	return out, nil
}

func (m *MemoryStore) CountDueOrNew(ctx context.Context, userID string, today time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countDueOrNewLocked(userID, today), nil
}

func (m *MemoryStore) countDueOrNewLocked(userID string, today time.Time) int {
	count := 0
	for _, c := range m.cards {
		if c.UserID != userID || !c.IsActive() {
			continue
		}
		state, ok := m.cardStates[c.ID]
		if !ok || state.TotalReviews == 0 {
			count++
			continue
		}
		if state.DueDate != nil && !state.DueDate.After(today) {
			count++
		}
	}
	return count
}

func (m *MemoryStore) GetTodaySession(ctx context.Context, userID string, today time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey(userID, formatDate(today))]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.userStats[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// WithTx holds the store's single mutex for the duration of fn, the
// in-memory analogue of SQLite's BEGIN IMMEDIATE: no other WithTx call can
// interleave its mutations. Unlike SQLiteStore.WithTx it does not roll
// back: mutations fn applied before returning an error stay in the store.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{store: m, dirty: false}
	if err := fn(tx); err != nil {
		return err
	}
	return nil
}

type memoryTx struct {
	store *MemoryStore
	dirty bool
}

func (t *memoryTx) ReadCardState(ctx context.Context, cardID string) (*CardState, error) {
	s, ok := t.store.cardStates[cardID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *memoryTx) UpsertCardState(ctx context.Context, state *CardState) error {
	t.store.cardStates[state.CardID] = *state
	return nil
}

func (t *memoryTx) AppendReview(ctx context.Context, review *Review) error {
	t.store.reviews = append(t.store.reviews, *review)
	return nil
}

func (t *memoryTx) UpsertSessionToday(ctx context.Context, userID string, today time.Time, mutate func(*Session)) (*Session, error) {
	date := formatDate(today)
	key := sessionKey(userID, date)
	sess, ok := t.store.sessions[key]
	if !ok {
		sess = Session{UserID: userID, Date: date, StartTime: time.Now().UTC()}
	}
	mutate(&sess)
	if err := sess.Validate(); err != nil {
		return nil, InternalError("session invariant violated: %v", err)
	}
	if sess.ID == "" {
		sess.ID = newID()
	}
	t.store.sessions[key] = sess
	out := sess
	return &out, nil
}

func (t *memoryTx) UpsertUserStats(ctx context.Context, userID string, mutate func(*UserStats)) (*UserStats, error) {
	stats, ok := t.store.userStats[userID]
	if !ok {
		stats = UserStats{UserID: userID}
	}
	mutate(&stats)
	t.store.userStats[userID] = stats
	out := stats
	return &out, nil
}

func (t *memoryTx) CountDueOrNew(ctx context.Context, userID string, today time.Time) (int, error) {
	return t.store.countDueOrNewLocked(userID, today), nil
}

func sessionKey(userID, date string) string {
	return userID + "|" + date
}
