package study

import (
	"context"
	"testing"
	"time"

	"github.com/jgirmay/cardstudy/pkg/scheduler"
)

type fixedClock struct {
	today time.Time
}

func (c fixedClock) Today() time.Time {
	return c.today
}

func newFixedClock(year int, month time.Month, day int) fixedClock {
	return fixedClock{today: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func newTestService(clock Clock) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store, clock), store
}

func seedCard(store *MemoryStore, id, userID string) Card {
	c := Card{ID: id, UserID: userID, Question: "q", Answer: "a", Difficulty: 3, Status: StatusActive}
	store.PutCard(c)
	return c
}

func TestSubmitReview_FirstReview(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")

	result, err := svc.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Good, nil)
	if err != nil {
		t.Fatalf("SubmitReview() error = %v", err)
	}

	if result.NewMastery != scheduler.TierYoung {
		t.Errorf("NewMastery = %v, want %v", result.NewMastery, scheduler.TierYoung)
	}
	if result.NewIntervalDays != 2 {
		t.Errorf("NewIntervalDays = %d, want 2", result.NewIntervalDays)
	}
	if result.NewEase != scheduler.DefaultEase {
		t.Errorf("NewEase = %v, want %v", result.NewEase, scheduler.DefaultEase)
	}

	reviews := store.ReviewsForCard("card-1")
	if len(reviews) != 1 {
		t.Fatalf("len(reviews) = %d, want 1", len(reviews))
	}
	if reviews[0].Rating != scheduler.Good {
		t.Errorf("review rating = %v, want %v", reviews[0].Rating, scheduler.Good)
	}
}

func TestSubmitReview_UnknownCard(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, _ := newTestService(clock)

	_, err := svc.SubmitReview(context.Background(), "user-1", "missing-card", scheduler.Good, nil)
	if err == nil {
		t.Fatal("expected error for unknown card")
	}
	if kind, _ := KindOf(err); kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", kind, KindNotFound)
	}
}

func TestSubmitReview_WrongOwner(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")

	_, err := svc.SubmitReview(context.Background(), "user-2", "card-1", scheduler.Good, nil)
	if err == nil {
		t.Fatal("expected ownership error")
	}
	if kind, _ := KindOf(err); kind != KindOwnership {
		t.Errorf("Kind = %v, want %v", kind, KindOwnership)
	}
}

func TestSubmitReview_InvalidRating(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")

	_, err := svc.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Rating(99), nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if kind, _ := KindOf(err); kind != KindValidation {
		t.Errorf("Kind = %v, want %v", kind, KindValidation)
	}
}

func TestSubmitReview_NegativeTimeSpent(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")

	bad := -5
	_, err := svc.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Good, &bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if kind, _ := KindOf(err); kind != KindValidation {
		t.Errorf("Kind = %v, want %v", kind, KindValidation)
	}
}

// TestSubmitReview_TotalReviewsMatchesReviewCount covers P3: total_reviews
// on a card's state must always equal the number of Review rows for that
// card.
func TestSubmitReview_TotalReviewsMatchesReviewCount(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")

	ratings := []scheduler.Rating{scheduler.Again, scheduler.Hard, scheduler.Good, scheduler.Easy, scheduler.Good}
	for _, r := range ratings {
		if _, err := svc.SubmitReview(context.Background(), "user-1", "card-1", r, nil); err != nil {
			t.Fatalf("SubmitReview() error = %v", err)
		}
	}

	reviews := store.ReviewsForCard("card-1")
	if len(reviews) != len(ratings) {
		t.Fatalf("len(reviews) = %d, want %d", len(reviews), len(ratings))
	}

	states, err := store.ListActiveCardStatesForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListActiveCardStatesForUser() error = %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("len(states) = %d, want 1", len(states))
	}
	if states[0].State.TotalReviews != len(ratings) {
		t.Errorf("TotalReviews = %d, want %d", states[0].State.TotalReviews, len(ratings))
	}
}

// TestSubmitReview_SessionCountersSumToCardsStudied covers P7: the four
// rating counters on a Session must sum to cards_studied.
func TestSubmitReview_SessionCountersSumToCardsStudied(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")
	seedCard(store, "card-2", "user-1")

	svc.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Good, nil)
	svc.SubmitReview(context.Background(), "user-1", "card-2", scheduler.Again, nil)

	session, err := svc.GetTodaySession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetTodaySession() error = %v", err)
	}
	if session == nil {
		t.Fatal("expected a session to exist")
	}
	if err := session.Validate(); err != nil {
		t.Errorf("session invariant violated: %v", err)
	}
	if session.CardsStudied != 2 {
		t.Errorf("CardsStudied = %d, want 2", session.CardsStudied)
	}
}

func TestSubmitReview_StreakIncrementsOnConsecutiveDays(t *testing.T) {
	store := NewMemoryStore()
	seedCard(store, "card-1", "user-1")
	seedCard(store, "card-2", "user-1")
	seedCard(store, "card-3", "user-1")

	day1 := NewService(store, newFixedClock(2026, time.March, 5))
	if _, err := day1.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Good, nil); err != nil {
		t.Fatalf("day1 SubmitReview() error = %v", err)
	}

	// a second review the same day must not bump the streak again
	if _, err := day1.SubmitReview(context.Background(), "user-1", "card-2", scheduler.Good, nil); err != nil {
		t.Fatalf("day1 second SubmitReview() error = %v", err)
	}
	stats, err := store.GetUserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak after same-day reviews = %d, want 1", stats.CurrentStreak)
	}

	day2 := NewService(store, newFixedClock(2026, time.March, 6))
	if _, err := day2.SubmitReview(context.Background(), "user-1", "card-3", scheduler.Good, nil); err != nil {
		t.Fatalf("day2 SubmitReview() error = %v", err)
	}
	stats, err = store.GetUserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}
	if stats.CurrentStreak != 2 {
		t.Errorf("CurrentStreak after consecutive day = %d, want 2", stats.CurrentStreak)
	}
	if stats.LongestStreak != 2 {
		t.Errorf("LongestStreak = %d, want 2", stats.LongestStreak)
	}
}

func TestSubmitReview_StreakResetsAfterGap(t *testing.T) {
	store := NewMemoryStore()
	seedCard(store, "card-1", "user-1")
	seedCard(store, "card-2", "user-1")

	day1 := NewService(store, newFixedClock(2026, time.March, 5))
	day1.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Good, nil)

	// three days later: a gap, streak should reset to 1
	dayLater := NewService(store, newFixedClock(2026, time.March, 8))
	dayLater.SubmitReview(context.Background(), "user-1", "card-2", scheduler.Good, nil)

	stats, err := store.GetUserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetUserStats() error = %v", err)
	}
	if stats.CurrentStreak != 1 {
		t.Errorf("CurrentStreak after gap = %d, want 1", stats.CurrentStreak)
	}
	if stats.LongestStreak != 1 {
		t.Errorf("LongestStreak after gap = %d, want 1", stats.LongestStreak)
	}
}

func TestSubmitReview_MasteryTierCountsStayConsistent(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")

	svc.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Good, nil)
	stats, _ := store.GetUserStats(context.Background(), "user-1")
	if stats.MasteryNewCount != 0 || stats.MasteryYoungCount != 1 {
		t.Errorf("after first review: new=%d young=%d", stats.MasteryNewCount, stats.MasteryYoungCount)
	}

	total := stats.MasteryNewCount + stats.MasteryLearningCount + stats.MasteryYoungCount +
		stats.MasteryMatureCount + stats.MasteryMasteredCount
	if total != 1 {
		t.Errorf("sum of mastery tier counts = %d, want 1", total)
	}
}

// TestBuildQueue_NewCardOrderIsDeterministic covers P10: new cards with no
// CardState must be ordered deterministically (by Card ID) even though map
// iteration order is not guaranteed.
func TestBuildQueue_NewCardOrderIsDeterministic(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-c", "user-1")
	seedCard(store, "card-a", "user-1")
	seedCard(store, "card-b", "user-1")

	for i := 0; i < 5; i++ {
		result, err := svc.BuildQueue(context.Background(), "user-1", 50, true, 50)
		if err != nil {
			t.Fatalf("BuildQueue() error = %v", err)
		}
		if len(result.Cards) != 3 {
			t.Fatalf("len(Cards) = %d, want 3", len(result.Cards))
		}
		if result.Cards[0].Card.ID != "card-a" || result.Cards[1].Card.ID != "card-b" || result.Cards[2].Card.ID != "card-c" {
			t.Errorf("iteration %d: order = [%s %s %s], want [card-a card-b card-c]",
				i, result.Cards[0].Card.ID, result.Cards[1].Card.ID, result.Cards[2].Card.ID)
		}
	}
}

func TestBuildQueue_PartitionsOverdueDueTodayAndNew(t *testing.T) {
	clock := newFixedClock(2026, time.March, 10)
	svc, store := newTestService(clock)

	seedCard(store, "overdue-card", "user-1")
	seedCard(store, "due-today-card", "user-1")
	seedCard(store, "new-card", "user-1")

	pastDue := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	store.cardStates["overdue-card"] = CardState{
		CardID: "overdue-card", UserID: "user-1", TotalReviews: 1, SuccessfulReviews: 1,
		CurrentIntervalDays: 1, EaseFactor: scheduler.DefaultEase, DueDate: &pastDue,
		MasteryLevel: scheduler.TierLearning,
	}

	todayDue := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	store.cardStates["due-today-card"] = CardState{
		CardID: "due-today-card", UserID: "user-1", TotalReviews: 1, SuccessfulReviews: 1,
		CurrentIntervalDays: 1, EaseFactor: scheduler.DefaultEase, DueDate: &todayDue,
		MasteryLevel: scheduler.TierLearning,
	}

	result, err := svc.BuildQueue(context.Background(), "user-1", 50, true, 50)
	if err != nil {
		t.Fatalf("BuildQueue() error = %v", err)
	}
	if result.OverdueCount != 1 {
		t.Errorf("OverdueCount = %d, want 1", result.OverdueCount)
	}
	if result.ReviewCount != 1 {
		t.Errorf("ReviewCount = %d, want 1", result.ReviewCount)
	}
	if result.NewCount != 1 {
		t.Errorf("NewCount = %d, want 1", result.NewCount)
	}
	if len(result.Cards) != 3 {
		t.Fatalf("len(Cards) = %d, want 3", len(result.Cards))
	}
	if result.Cards[0].Card.ID != "overdue-card" {
		t.Errorf("Cards[0] = %s, want overdue-card (overdue sorts first)", result.Cards[0].Card.ID)
	}
	if result.Cards[1].Card.ID != "due-today-card" {
		t.Errorf("Cards[1] = %s, want due-today-card", result.Cards[1].Card.ID)
	}
	if result.Cards[2].Card.ID != "new-card" {
		t.Errorf("Cards[2] = %s, want new-card", result.Cards[2].Card.ID)
	}
}

func TestBuildQueue_ExcludesFutureDueCards(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "future-card", "user-1")

	future := time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)
	store.cardStates["future-card"] = CardState{
		CardID: "future-card", UserID: "user-1", TotalReviews: 1, SuccessfulReviews: 1,
		CurrentIntervalDays: 15, EaseFactor: scheduler.DefaultEase, DueDate: &future,
		MasteryLevel: scheduler.TierYoung,
	}

	result, err := svc.BuildQueue(context.Background(), "user-1", 50, true, 50)
	if err != nil {
		t.Fatalf("BuildQueue() error = %v", err)
	}
	if len(result.Cards) != 0 {
		t.Errorf("len(Cards) = %d, want 0 (future-due card must be excluded)", len(result.Cards))
	}
}

func TestBuildQueue_RespectsNewCardsLimit(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		seedCard(store, id, "user-1")
	}

	result, err := svc.BuildQueue(context.Background(), "user-1", 50, true, 2)
	if err != nil {
		t.Fatalf("BuildQueue() error = %v", err)
	}
	if result.NewCount != 2 {
		t.Errorf("NewCount = %d, want 2", result.NewCount)
	}
}

func TestBuildQueue_IncludeNewFalseExcludesNewCards(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "a", "user-1")

	result, err := svc.BuildQueue(context.Background(), "user-1", 50, false, 50)
	if err != nil {
		t.Fatalf("BuildQueue() error = %v", err)
	}
	if result.NewCount != 0 {
		t.Errorf("NewCount = %d, want 0", result.NewCount)
	}
}

func TestBuildQueue_ValidatesLimitBounds(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, _ := newTestService(clock)

	if _, err := svc.BuildQueue(context.Background(), "user-1", 0, true, 10); err == nil {
		t.Error("expected error for limit below minimum")
	}
	if _, err := svc.BuildQueue(context.Background(), "user-1", 500, true, 10); err == nil {
		t.Error("expected error for limit above maximum")
	}
	if _, err := svc.BuildQueue(context.Background(), "user-1", 50, true, -1); err == nil {
		t.Error("expected error for negative new_cards_limit")
	}
	if _, err := svc.BuildQueue(context.Background(), "user-1", 50, true, 100); err == nil {
		t.Error("expected error for new_cards_limit above maximum")
	}
}

func TestEndSession_NoSessionToday(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, _ := newTestService(clock)

	_, err := svc.EndSession(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected not-found error")
	}
	if kind, _ := KindOf(err); kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", kind, KindNotFound)
	}
}

func TestEndSession_SetsEndTime(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, store := newTestService(clock)
	seedCard(store, "card-1", "user-1")
	svc.SubmitReview(context.Background(), "user-1", "card-1", scheduler.Good, nil)

	sess, err := svc.EndSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if sess.EndTime == nil {
		t.Error("expected EndTime to be set")
	}
}

func TestRecordPomodoro_IncrementsCounter(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, _ := newTestService(clock)

	sess, err := svc.RecordPomodoro(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecordPomodoro() error = %v", err)
	}
	if sess.PomodoroSessions != 1 {
		t.Errorf("PomodoroSessions = %d, want 1", sess.PomodoroSessions)
	}

	sess, err = svc.RecordPomodoro(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecordPomodoro() second call error = %v", err)
	}
	if sess.PomodoroSessions != 2 {
		t.Errorf("PomodoroSessions = %d, want 2", sess.PomodoroSessions)
	}
}

func TestGetTodaySession_NoneYet(t *testing.T) {
	clock := newFixedClock(2026, time.March, 5)
	svc, _ := newTestService(clock)

	sess, err := svc.GetTodaySession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetTodaySession() error = %v", err)
	}
	if sess != nil {
		t.Error("expected nil session for a user who has not studied today")
	}
}
