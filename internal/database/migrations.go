package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the list of all database migrations, applied in order by
// RunMigrations. The schema backs pkg/study.SQLiteStore directly — column
// names here are load-bearing, not cosmetic.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_migrations_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version: 2,
		Name:    "create_users_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version: 3,
		Name:    "create_cards_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS cards (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				question TEXT NOT NULL,
				answer TEXT NOT NULL,
				explanation TEXT,
				tags TEXT,
				difficulty INTEGER NOT NULL DEFAULT 3,
				status TEXT NOT NULL DEFAULT 'active',
				deleted_at DATETIME,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_cards_user_status ON cards(user_id, status);
		`,
	},
	{
		Version: 4,
		Name:    "create_card_states_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS card_states (
				card_id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				total_reviews INTEGER NOT NULL DEFAULT 0,
				successful_reviews INTEGER NOT NULL DEFAULT 0,
				failed_reviews INTEGER NOT NULL DEFAULT 0,
				current_interval_days INTEGER NOT NULL DEFAULT 0,
				ease_factor REAL NOT NULL DEFAULT 2.5,
				due_date DATETIME,
				average_rating REAL,
				average_time_seconds REAL,
				mastery_level TEXT NOT NULL DEFAULT 'new',
				first_reviewed_at DATETIME,
				last_reviewed_at DATETIME,
				FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_card_states_user_due ON card_states(user_id, due_date);
		`,
	},
	{
		Version: 5,
		Name:    "create_reviews_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS reviews (
				id TEXT PRIMARY KEY,
				card_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				session_id TEXT,
				rating INTEGER NOT NULL,
				prior_interval_days INTEGER NOT NULL,
				new_interval_days INTEGER NOT NULL,
				prior_ease REAL NOT NULL,
				new_ease REAL NOT NULL,
				time_spent_seconds INTEGER,
				due_date DATETIME NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_reviews_card_id ON reviews(card_id);
			CREATE INDEX IF NOT EXISTS idx_reviews_user_created ON reviews(user_id, created_at);
		`,
	},
	{
		Version: 6,
		Name:    "create_sessions_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				date TEXT NOT NULL,
				cards_studied INTEGER NOT NULL DEFAULT 0,
				cards_again INTEGER NOT NULL DEFAULT 0,
				cards_hard INTEGER NOT NULL DEFAULT 0,
				cards_good INTEGER NOT NULL DEFAULT 0,
				cards_easy INTEGER NOT NULL DEFAULT 0,
				time_spent_minutes INTEGER NOT NULL DEFAULT 0,
				pomodoro_sessions INTEGER NOT NULL DEFAULT 0,
				start_time DATETIME NOT NULL,
				end_time DATETIME,
				UNIQUE(user_id, date)
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_user_date ON sessions(user_id, date);
		`,
	},
	{
		Version: 7,
		Name:    "create_user_stats_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS user_stats (
				user_id TEXT PRIMARY KEY,
				current_streak INTEGER NOT NULL DEFAULT 0,
				longest_streak INTEGER NOT NULL DEFAULT 0,
				last_study_date TEXT,
				total_cards_studied INTEGER NOT NULL DEFAULT 0,
				total_study_minutes INTEGER NOT NULL DEFAULT 0,
				mastery_new_count INTEGER NOT NULL DEFAULT 0,
				mastery_learning_count INTEGER NOT NULL DEFAULT 0,
				mastery_young_count INTEGER NOT NULL DEFAULT 0,
				mastery_mature_count INTEGER NOT NULL DEFAULT 0,
				mastery_mastered_count INTEGER NOT NULL DEFAULT 0,
				average_accuracy REAL NOT NULL DEFAULT 0
			);
		`,
	},
}

// RunMigrations executes all pending database migrations
func RunMigrations(db *Pool) error {
	// Ensure migrations table exists
	if err := ensureMigrationsTable(db.DB); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current version
	currentVersion, err := getCurrentVersion(db.DB)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	log.Printf("Current database version: %d", currentVersion)

	// Run pending migrations
	applied := 0
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		log.Printf("Applying migration %d: %s", migration.Version, migration.Name)

		tx, err := db.DB.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		// Execute migration SQL
		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		// Record migration
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		applied++
		log.Printf("Migration %d applied successfully", migration.Version)
	}

	if applied == 0 {
		log.Println("No pending migrations to apply")
	} else {
		log.Printf("Applied %d migrations successfully", applied)
	}

	return nil
}

// ensureMigrationsTable creates the migrations table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// getCurrentVersion returns the latest applied migration version
func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
