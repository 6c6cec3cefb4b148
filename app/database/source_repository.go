package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SourceRepo handles database operations for configured sources.
type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

const sourceColumns = `id, name, url, region, adapter, enabled, min_cards,
	       last_run_at, next_run_at, created_at, updated_at`

// UpsertSource registers or refreshes a configured source. It reports
// whether the listing URL changed, which forces a run reschedule.
func (r *SourceRepo) UpsertSource(name, url, region, adapter string, minCards int) (bool, error) {
	existing, err := r.GetSource(name)
	if err != nil {
		return false, fmt.Errorf("failed to check existing source: %w", err)
	}

	now := formatTimestamp(time.Now())
	if existing != nil {
		urlChanged := existing.URL != url
		_, err = r.db.Exec(`
			UPDATE sources
			SET url = ?, region = ?, adapter = ?, min_cards = ?, updated_at = ?
			WHERE name = ?
		`, url, region, adapter, minCards, now, name)
		if err != nil {
			return false, fmt.Errorf("failed to update source: %w", err)
		}
		return urlChanged, nil
	}

	_, err = r.db.Exec(`
		INSERT INTO sources (name, url, region, adapter, min_cards, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, name, url, region, adapter, minCards, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert source: %w", err)
	}
	return false, nil
}

// GetSource retrieves a source by name, or nil when unknown.
func (r *SourceRepo) GetSource(name string) (*Source, error) {
	source, err := r.scanSource(r.db.QueryRow(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE name = ?
	`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

// GetSourcesDueForRun returns enabled sources whose next run time has
// arrived.
func (r *SourceRepo) GetSourcesDueForRun() ([]Source, error) {
	now := formatTimestamp(time.Now())
	rows, err := r.db.Query(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE enabled = 1
		  AND (next_run_at IS NULL OR next_run_at <= ?)
		ORDER BY COALESCE(next_run_at, ''), name
		LIMIT 50
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources due for run: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := r.scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

// UpdateNextRun records a completed run and schedules the next one.
func (r *SourceRepo) UpdateNextRun(name string, lastRun, nextRun time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE name = ?
	`, formatTimestamp(lastRun), formatTimestamp(nextRun), formatTimestamp(time.Now()), name)
	if err != nil {
		return fmt.Errorf("failed to update next run: %w", err)
	}
	return nil
}

// SetSourceEnabled toggles a source without removing its history.
func (r *SourceRepo) SetSourceEnabled(name string, enabled bool) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET enabled = ?, updated_at = ?
		WHERE name = ?
	`, boolToInt(enabled), formatTimestamp(time.Now()), name)
	if err != nil {
		return fmt.Errorf("failed to set source enabled: %w", err)
	}
	return nil
}

// GetSourceCount returns the total number of registered sources.
func (r *SourceRepo) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

// GetEnabledSourceCount returns the count of enabled sources.
func (r *SourceRepo) GetEnabledSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources WHERE enabled = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get enabled source count: %w", err)
	}
	return count, nil
}

func (r *SourceRepo) scanSource(row rowScanner) (*Source, error) {
	var source Source
	var enabled int
	var lastRun, nextRun sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&source.ID, &source.Name, &source.URL, &source.Region, &source.Adapter,
		&enabled, &source.MinCards, &lastRun, &nextRun, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	source.Enabled = enabled != 0
	if lastRun.Valid {
		source.LastRunAt = scanNullableTimestamp(&lastRun.String)
	}
	if nextRun.Valid {
		source.NextRunAt = scanNullableTimestamp(&nextRun.String)
	}
	source.CreatedAt = parseTimestamp(createdAt)
	source.UpdatedAt = parseTimestamp(updatedAt)
	return &source, nil
}
