package loadtest

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/probecli/internal/migrations"
)

// Manager handles load test data persistence
type Manager struct {
	db *sql.DB
}

// NewManager creates a new load test manager
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := &Manager{db: db}

	// Run database migrations (includes schema initialization)
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return m, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun creates a new load test run record
func (m *Manager) CreateRun(run *Run) error {
	result, err := m.db.Exec(`
		INSERT INTO load_test_runs
		(url, rate_per_sec, duration_sec, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, run.URL, run.RatePerSec, run.DurationSec, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun updates a load test run record
func (m *Manager) UpdateRun(run *Run) error {
	_, err := m.db.Exec(`
		UPDATE load_test_runs
		SET completed_at = ?, status = ?, total_requests_sent = ?, total_requests_completed = ?,
		    total_errors = ?, avg_ttfb_ms = ?, min_ttfb_ms = ?, max_ttfb_ms = ?,
		    p50_ttfb_ms = ?, p95_ttfb_ms = ?, p99_ttfb_ms = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.TotalRequestsSent, run.TotalRequestsCompleted,
		run.TotalErrors, run.AvgTTFBMs, run.MinTTFBMs, run.MaxTTFBMs,
		run.P50TTFBMs, run.P95TTFBMs, run.P99TTFBMs, run.ID)
	return err
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime

	err := m.db.QueryRow(`
		SELECT id, url, rate_per_sec, duration_sec, started_at, completed_at, status,
		       total_requests_sent, total_requests_completed, total_errors,
		       COALESCE(avg_ttfb_ms, 0), COALESCE(min_ttfb_ms, 0), COALESCE(max_ttfb_ms, 0),
		       COALESCE(p50_ttfb_ms, 0), COALESCE(p95_ttfb_ms, 0), COALESCE(p99_ttfb_ms, 0)
		FROM load_test_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.URL, &run.RatePerSec, &run.DurationSec,
		&run.StartedAt, &completedAt, &run.Status, &run.TotalRequestsSent,
		&run.TotalRequestsCompleted, &run.TotalErrors, &run.AvgTTFBMs, &run.MinTTFBMs,
		&run.MaxTTFBMs, &run.P50TTFBMs, &run.P95TTFBMs, &run.P99TTFBMs)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return run, nil
}

// ListRuns returns past load test runs, most recent first
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, url, rate_per_sec, duration_sec, started_at, completed_at, status,
		       total_requests_sent, total_requests_completed, total_errors,
		       COALESCE(avg_ttfb_ms, 0), COALESCE(min_ttfb_ms, 0), COALESCE(max_ttfb_ms, 0),
		       COALESCE(p50_ttfb_ms, 0), COALESCE(p95_ttfb_ms, 0), COALESCE(p99_ttfb_ms, 0)
		FROM load_test_runs
		ORDER BY started_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var completedAt sql.NullTime

		err := rows.Scan(&run.ID, &run.URL, &run.RatePerSec, &run.DurationSec,
			&run.StartedAt, &completedAt, &run.Status, &run.TotalRequestsSent,
			&run.TotalRequestsCompleted, &run.TotalErrors, &run.AvgTTFBMs, &run.MinTTFBMs,
			&run.MaxTTFBMs, &run.P50TTFBMs, &run.P95TTFBMs, &run.P99TTFBMs)
		if err != nil {
			return nil, err
		}

		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}

		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a load test run and all its samples
func (m *Manager) DeleteRun(id int64) error {
	_, err := m.db.Exec("DELETE FROM load_test_runs WHERE id = ?", id)
	return err
}

// SaveSamplesBatch saves multiple samples in a single transaction
func (m *Manager) SaveSamplesBatch(samples []*Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO load_test_samples
		(run_id, timestamp, elapsed_ms, status_code, ttfb_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		_, err := stmt.Exec(sample.RunID, sample.Timestamp, sample.ElapsedMs,
			sample.StatusCode, sample.TTFBMs, sample.ErrorMessage)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// GetSamples retrieves all samples for a run
func (m *Manager) GetSamples(runID int64) ([]*Sample, error) {
	rows, err := m.db.Query(`
		SELECT id, run_id, timestamp, elapsed_ms, status_code, ttfb_ms, COALESCE(error_message, '')
		FROM load_test_samples
		WHERE run_id = ?
		ORDER BY elapsed_ms
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		sample := &Sample{}
		err := rows.Scan(&sample.ID, &sample.RunID, &sample.Timestamp, &sample.ElapsedMs,
			&sample.StatusCode, &sample.TTFBMs, &sample.ErrorMessage)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
