package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add elapsed index on load test samples",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_load_samples_elapsed ON load_test_samples(run_id, elapsed_ms);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_samples_elapsed;
		`,
	},
}

// InitSchema creates all tables required by the results database.
// This must be called before running migrations to ensure all tables exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS load_test_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		rate_per_sec INTEGER NOT NULL,
		duration_sec INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL,
		total_requests_sent INTEGER DEFAULT 0,
		total_requests_completed INTEGER DEFAULT 0,
		total_errors INTEGER DEFAULT 0,
		avg_ttfb_ms REAL DEFAULT 0,
		min_ttfb_ms INTEGER DEFAULT 0,
		max_ttfb_ms INTEGER DEFAULT 0,
		p50_ttfb_ms INTEGER DEFAULT 0,
		p95_ttfb_ms INTEGER DEFAULT 0,
		p99_ttfb_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_load_runs_started_at ON load_test_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_load_runs_status ON load_test_runs(status);

	CREATE TABLE IF NOT EXISTS load_test_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		ttfb_ms INTEGER NOT NULL,
		error_message TEXT,
		FOREIGN KEY (run_id) REFERENCES load_test_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_load_samples_run_id ON load_test_samples(run_id);
	CREATE INDEX IF NOT EXISTS idx_load_samples_timestamp ON load_test_samples(run_id, timestamp);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Create migrations tracking table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	// Apply pending migrations
	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		_, err := db.Exec(migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
