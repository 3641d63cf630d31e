package study

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jgirmay/cardstudy/pkg/scheduler"
)

// SQLiteStore is the Store implementation backing production traffic. It
// wraps a *sql.DB already configured for WAL mode and "BEGIN IMMEDIATE"
// transactions (see internal/database.InitPool), which is the idiomatic
// SQLite substitute for row-level SELECT...FOR UPDATE locking.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-initialized database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) GetCard(ctx context.Context, cardID string) (*Card, error) {
	return getCard(ctx, s.db, cardID)
}

func getCard(ctx context.Context, q querier, cardID string) (*Card, error) {
	const stmt = `SELECT id, user_id, question, answer, explanation, tags, difficulty, status, deleted_at, created_at, updated_at
		FROM cards WHERE id = ?`

	var c Card
	var explanation, tags sql.NullString
	var deletedAt sql.NullTime

	err := q.QueryRowContext(ctx, stmt, cardID).Scan(
		&c.ID, &c.UserID, &c.Question, &c.Answer, &explanation, &tags,
		&c.Difficulty, &c.Status, &deletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundError("card %s not found", cardID)
		}
		return nil, StoreError(err, "failed to get card %s", cardID)
	}
	c.Explanation = explanation.String
	c.Tags = splitTags(tags.String)
	if deletedAt.Valid {
		t := deletedAt.Time
		c.DeletedAt = &t
	}
	return &c, nil
}

func (s *SQLiteStore) ListActiveCardStatesForUser(ctx context.Context, userID string) ([]CardWithState, error) {
	const stmt = `SELECT c.id, c.user_id, c.question, c.answer, c.explanation, c.tags, c.difficulty, c.status, c.deleted_at, c.created_at, c.updated_at,
		cs.total_reviews, cs.successful_reviews, cs.failed_reviews, cs.current_interval_days, cs.ease_factor,
		cs.due_date, cs.average_rating, cs.average_time_seconds, cs.mastery_level, cs.first_reviewed_at, cs.last_reviewed_at
		FROM cards c
		LEFT JOIN card_states cs ON cs.card_id = c.id
		WHERE c.user_id = ? AND c.status = 'active' AND c.deleted_at IS NULL`

	rows, err := s.db.QueryContext(ctx, stmt, userID)
	if err != nil {
		return nil, StoreError(err, "failed to list card states for user %s", userID)
	}
	defer rows.Close()

	var out []CardWithState
	for rows.Next() {
		var cws CardWithState
		var explanation, tags sql.NullString
		var deletedAt sql.NullTime

		var totalReviews, successfulReviews, failedReviews, intervalDays sql.NullInt64
		var ease sql.NullFloat64
		var dueDate sql.NullTime
		var avgRating, avgTime sql.NullFloat64
		var masteryLevel sql.NullString
		var firstReviewedAt, lastReviewedAt sql.NullTime

		if err := rows.Scan(
			&cws.Card.ID, &cws.Card.UserID, &cws.Card.Question, &cws.Card.Answer, &explanation, &tags,
			&cws.Card.Difficulty, &cws.Card.Status, &deletedAt, &cws.Card.CreatedAt, &cws.Card.UpdatedAt,
			&totalReviews, &successfulReviews, &failedReviews, &intervalDays, &ease,
			&dueDate, &avgRating, &avgTime, &masteryLevel, &firstReviewedAt, &lastReviewedAt,
		); err != nil {
			return nil, StoreError(err, "failed to scan card state row")
		}

		cws.Card.Explanation = explanation.String
		cws.Card.Tags = splitTags(tags.String)
		if deletedAt.Valid {
			t := deletedAt.Time
			cws.Card.DeletedAt = &t
		}

		if masteryLevel.Valid {
			state := &CardState{
				CardID:              cws.Card.ID,
				UserID:              userID,
				TotalReviews:        int(totalReviews.Int64),
				SuccessfulReviews:   int(successfulReviews.Int64),
				FailedReviews:       int(failedReviews.Int64),
				CurrentIntervalDays: int(intervalDays.Int64),
				EaseFactor:          ease.Float64,
				MasteryLevel:        scheduler.Tier(masteryLevel.String),
			}
			if dueDate.Valid {
				t := dueDate.Time
				state.DueDate = &t
			}
			if avgRating.Valid {
				v := avgRating.Float64
				state.AverageRating = &v
			}
			if avgTime.Valid {
				v := avgTime.Float64
				state.AverageTimeSeconds = &v
			}
			if firstReviewedAt.Valid {
				t := firstReviewedAt.Time
				state.FirstReviewedAt = &t
			}
			if lastReviewedAt.Valid {
				t := lastReviewedAt.Time
				state.LastReviewedAt = &t
			}
			cws.State = state
		}

		out = append(out, cws)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountDueOrNew(ctx context.Context, userID string, today time.Time) (int, error) {
	return countDueOrNew(ctx, s.db, userID, today)
}

func countDueOrNew(ctx context.Context, q querier, userID string, today time.Time) (int, error) {
	const stmt = `SELECT COUNT(*) FROM cards c
		LEFT JOIN card_states cs ON cs.card_id = c.id
		WHERE c.user_id = ? AND c.status = 'active' AND c.deleted_at IS NULL
		AND (cs.card_id IS NULL OR cs.total_reviews = 0 OR date(cs.due_date) <= ?)`

	var count int
	err := q.QueryRowContext(ctx, stmt, userID, formatDate(today)).Scan(&count)
	if err != nil {
		return 0, StoreError(err, "failed to count due/new cards for user %s", userID)
	}
	return count, nil
}

func (s *SQLiteStore) GetTodaySession(ctx context.Context, userID string, today time.Time) (*Session, error) {
	return getSession(ctx, s.db, userID, formatDate(today))
}

func getSession(ctx context.Context, q querier, userID, date string) (*Session, error) {
	const stmt = `SELECT id, user_id, date, cards_studied, cards_again, cards_hard, cards_good, cards_easy,
		time_spent_minutes, pomodoro_sessions, start_time, end_time
		FROM sessions WHERE user_id = ? AND date = ?`

	var sess Session
	var endTime sql.NullTime
	err := q.QueryRowContext(ctx, stmt, userID, date).Scan(
		&sess.ID, &sess.UserID, &sess.Date, &sess.CardsStudied, &sess.CardsAgain, &sess.CardsHard,
		&sess.CardsGood, &sess.CardsEasy, &sess.TimeSpentMinutes, &sess.PomodoroSessions,
		&sess.StartTime, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, StoreError(err, "failed to get session for user %s on %s", userID, date)
	}
	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}
	return &sess, nil
}

func (s *SQLiteStore) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	return getUserStats(ctx, s.db, userID)
}

func getUserStats(ctx context.Context, q querier, userID string) (*UserStats, error) {
	const stmt = `SELECT user_id, current_streak, longest_streak, last_study_date, total_cards_studied,
		total_study_minutes, mastery_new_count, mastery_learning_count, mastery_young_count,
		mastery_mature_count, mastery_mastered_count, average_accuracy
		FROM user_stats WHERE user_id = ?`

	var u UserStats
	var lastStudyDate sql.NullString
	err := q.QueryRowContext(ctx, stmt, userID).Scan(
		&u.UserID, &u.CurrentStreak, &u.LongestStreak, &lastStudyDate, &u.TotalCardsStudied,
		&u.TotalStudyMinutes, &u.MasteryNewCount, &u.MasteryLearningCount, &u.MasteryYoungCount,
		&u.MasteryMatureCount, &u.MasteryMasteredCount, &u.AverageAccuracy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, StoreError(err, "failed to get user stats for %s", userID)
	}
	if lastStudyDate.Valid {
		v := lastStudyDate.String
		u.LastStudyDate = &v
	}
	return &u, nil
}

// WithTx opens a transaction and guarantees it is rolled back unless fn
// returns nil, so a failed write never leaves a partial commit behind.
// The database/sql handle is expected to be opened with the sqlite3 driver
// DSN parameter _txlock=immediate (internal/database.InitPool sets this),
// so every BeginTx acquires SQLite's write lock up front — the idiomatic
// substitute for row-level SELECT...FOR UPDATE.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return StoreError(err, "failed to begin transaction")
	}

	tx := &sqliteTx{tx: sqlTx}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return StoreError(rbErr, "failed to roll back transaction after: %v", err)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return StoreError(err, "failed to commit transaction")
	}
	return nil
}

// querier is implemented by both *sql.DB and *sql.Tx, letting the scan
// helpers above run outside or inside a transaction without duplication.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) ReadCardState(ctx context.Context, cardID string) (*CardState, error) {
	const stmt = `SELECT card_id, user_id, total_reviews, successful_reviews, failed_reviews,
		current_interval_days, ease_factor, due_date, average_rating, average_time_seconds,
		mastery_level, first_reviewed_at, last_reviewed_at
		FROM card_states WHERE card_id = ?`

	var state CardState
	var dueDate, firstReviewedAt, lastReviewedAt sql.NullTime
	var avgRating, avgTime sql.NullFloat64

	err := t.tx.QueryRowContext(ctx, stmt, cardID).Scan(
		&state.CardID, &state.UserID, &state.TotalReviews, &state.SuccessfulReviews, &state.FailedReviews,
		&state.CurrentIntervalDays, &state.EaseFactor, &dueDate, &avgRating, &avgTime,
		&state.MasteryLevel, &firstReviewedAt, &lastReviewedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, StoreError(err, "failed to read card state for %s", cardID)
	}
	if dueDate.Valid {
		t := dueDate.Time
		state.DueDate = &t
	}
	if avgRating.Valid {
		v := avgRating.Float64
		state.AverageRating = &v
	}
	if avgTime.Valid {
		v := avgTime.Float64
		state.AverageTimeSeconds = &v
	}
	if firstReviewedAt.Valid {
		t := firstReviewedAt.Time
		state.FirstReviewedAt = &t
	}
	if lastReviewedAt.Valid {
		t := lastReviewedAt.Time
		state.LastReviewedAt = &t
	}
	return &state, nil
}

func (t *sqliteTx) UpsertCardState(ctx context.Context, state *CardState) error {
	const stmt = `INSERT INTO card_states (card_id, user_id, total_reviews, successful_reviews, failed_reviews,
		current_interval_days, ease_factor, due_date, average_rating, average_time_seconds,
		mastery_level, first_reviewed_at, last_reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			total_reviews = excluded.total_reviews,
			successful_reviews = excluded.successful_reviews,
			failed_reviews = excluded.failed_reviews,
			current_interval_days = excluded.current_interval_days,
			ease_factor = excluded.ease_factor,
			due_date = excluded.due_date,
			average_rating = excluded.average_rating,
			average_time_seconds = excluded.average_time_seconds,
			mastery_level = excluded.mastery_level,
			first_reviewed_at = excluded.first_reviewed_at,
			last_reviewed_at = excluded.last_reviewed_at`

	_, err := t.tx.ExecContext(ctx, stmt,
		state.CardID, state.UserID, state.TotalReviews, state.SuccessfulReviews, state.FailedReviews,
		state.CurrentIntervalDays, state.EaseFactor, nullableTime(state.DueDate), nullableFloat(state.AverageRating),
		nullableFloat(state.AverageTimeSeconds), string(state.MasteryLevel),
		nullableTime(state.FirstReviewedAt), nullableTime(state.LastReviewedAt))
	if err != nil {
		return StoreError(err, "failed to upsert card state for %s", state.CardID)
	}
	return nil
}

func (t *sqliteTx) AppendReview(ctx context.Context, review *Review) error {
	const stmt = `INSERT INTO reviews (id, card_id, user_id, session_id, rating, prior_interval_days, new_interval_days,
		prior_ease, new_ease, time_spent_seconds, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.tx.ExecContext(ctx, stmt,
		review.ID, review.CardID, review.UserID, review.SessionID, int(review.Rating),
		review.PriorIntervalDays, review.NewIntervalDays, review.PriorEase, review.NewEase,
		nullableInt(review.TimeSpentSeconds), review.DueDate, review.CreatedAt)
	if err != nil {
		return StoreError(err, "failed to append review %s", review.ID)
	}
	return nil
}

func (t *sqliteTx) UpsertSessionToday(ctx context.Context, userID string, today time.Time, mutate func(*Session)) (*Session, error) {
	date := formatDate(today)
	sess, err := getSession(ctx, t.tx, userID, date)
	if err != nil {
		return nil, err
	}
	created := sess == nil
	if created {
		sess = &Session{UserID: userID, Date: date, StartTime: time.Now().UTC()}
	}
	mutate(sess)
	if err := sess.Validate(); err != nil {
		return nil, InternalError("session invariant violated: %v", err)
	}

	const stmt = `INSERT INTO sessions (id, user_id, date, cards_studied, cards_again, cards_hard, cards_good, cards_easy,
		time_spent_minutes, pomodoro_sessions, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			cards_studied = excluded.cards_studied,
			cards_again = excluded.cards_again,
			cards_hard = excluded.cards_hard,
			cards_good = excluded.cards_good,
			cards_easy = excluded.cards_easy,
			time_spent_minutes = excluded.time_spent_minutes,
			pomodoro_sessions = excluded.pomodoro_sessions,
			end_time = excluded.end_time`

	if sess.ID == "" {
		sess.ID = newID()
	}
	_, err = t.tx.ExecContext(ctx, stmt,
		sess.ID, sess.UserID, sess.Date, sess.CardsStudied, sess.CardsAgain, sess.CardsHard,
		sess.CardsGood, sess.CardsEasy, sess.TimeSpentMinutes, sess.PomodoroSessions,
		sess.StartTime, nullableTime(sess.EndTime))
	if err != nil {
		return nil, StoreError(err, "failed to upsert session for user %s", userID)
	}
	return sess, nil
}

func (t *sqliteTx) UpsertUserStats(ctx context.Context, userID string, mutate func(*UserStats)) (*UserStats, error) {
	stats, err := getUserStats(ctx, t.tx, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &UserStats{UserID: userID}
	}
	mutate(stats)

	const stmt = `INSERT INTO user_stats (user_id, current_streak, longest_streak, last_study_date,
		total_cards_studied, total_study_minutes, mastery_new_count, mastery_learning_count,
		mastery_young_count, mastery_mature_count, mastery_mastered_count, average_accuracy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_study_date = excluded.last_study_date,
			total_cards_studied = excluded.total_cards_studied,
			total_study_minutes = excluded.total_study_minutes,
			mastery_new_count = excluded.mastery_new_count,
			mastery_learning_count = excluded.mastery_learning_count,
			mastery_young_count = excluded.mastery_young_count,
			mastery_mature_count = excluded.mastery_mature_count,
			mastery_mastered_count = excluded.mastery_mastered_count,
			average_accuracy = excluded.average_accuracy`

	_, err = t.tx.ExecContext(ctx, stmt,
		stats.UserID, stats.CurrentStreak, stats.LongestStreak, nullableString(stats.LastStudyDate),
		stats.TotalCardsStudied, stats.TotalStudyMinutes, stats.MasteryNewCount, stats.MasteryLearningCount,
		stats.MasteryYoungCount, stats.MasteryMatureCount, stats.MasteryMasteredCount, stats.AverageAccuracy)
	if err != nil {
		return nil, StoreError(err, "failed to upsert user stats for %s", userID)
	}
	return stats, nil
}

func (t *sqliteTx) CountDueOrNew(ctx context.Context, userID string, today time.Time) (int, error) {
	return countDueOrNew(ctx, t.tx, userID, today)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				tags = append(tags, raw[start:i])
			}
			start = i + 1
		}
	}
	return tags
}

