package database

import (
	"database/sql"
	"fmt"
	"time"
)

// RunRepo persists the per-day run ledger, including the rendered
// comparison report.
type RunRepo struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, source_name, run_date, status, today_count, yesterday_count,
	       added_count, removed_count, unchanged_count, degraded,
	       degraded_reason, report, created_at`

// InsertRun records a run outcome. A retried day replaces the earlier
// row so the ledger holds exactly one outcome per (source, date).
func (r *RunRepo) InsertRun(run Run) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO runs (
			source_name, run_date, status, today_count, yesterday_count,
			added_count, removed_count, unchanged_count, degraded,
			degraded_reason, report, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_name, run_date) DO UPDATE SET
			status = excluded.status,
			today_count = excluded.today_count,
			yesterday_count = excluded.yesterday_count,
			added_count = excluded.added_count,
			removed_count = excluded.removed_count,
			unchanged_count = excluded.unchanged_count,
			degraded = excluded.degraded,
			degraded_reason = excluded.degraded_reason,
			report = excluded.report,
			created_at = excluded.created_at
	`, run.SourceName, formatDate(run.RunDate), run.Status, run.TodayCount,
		run.YesterdayCount, run.AddedCount, run.RemovedCount, run.UnchangedCount,
		boolToInt(run.Degraded), run.DegradedReason, run.Report,
		formatTimestamp(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return id, nil
}

// GetLatestRun returns the most recent run for a source, or nil when the
// source has never run.
func (r *RunRepo) GetLatestRun(sourceName string) (*Run, error) {
	run, err := r.scanRun(r.db.QueryRow(`
		SELECT `+runColumns+`
		FROM runs
		WHERE source_name = ?
		ORDER BY run_date DESC
		LIMIT 1
	`, sourceName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// GetRun returns the run for one (source, date), or nil when absent.
func (r *RunRepo) GetRun(sourceName string, date time.Time) (*Run, error) {
	run, err := r.scanRun(r.db.QueryRow(`
		SELECT `+runColumns+`
		FROM runs
		WHERE source_name = ? AND run_date = ?
	`, sourceName, formatDate(date)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (r *RunRepo) scanRun(row rowScanner) (*Run, error) {
	var run Run
	var runDate, createdAt string
	var degraded int

	err := row.Scan(
		&run.ID, &run.SourceName, &runDate, &run.Status, &run.TodayCount,
		&run.YesterdayCount, &run.AddedCount, &run.RemovedCount,
		&run.UnchangedCount, &degraded, &run.DegradedReason, &run.Report,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	run.RunDate = parseDate(runDate)
	run.Degraded = degraded != 0
	run.CreatedAt = parseTimestamp(createdAt)
	return &run, nil
}
