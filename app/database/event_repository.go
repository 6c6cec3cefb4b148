package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/showtrack/showtrack/app/listing"
)

// EventRepo handles database operations for the cumulative event table
// and its change history.
type EventRepo struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

const eventColumns = `id, source_url, title, venue, event_date, event_time, language,
	       price_range, status_badge, duration, age_limit, confidence,
	       active, needs_review, review_reason, first_seen, last_seen`

// LoadTable loads the full cumulative table for a source, keyed by source
// URL, including inactive records. The merger needs the complete table so
// a re-listed event reuses its original identity.
func (r *EventRepo) LoadTable(sourceName string) (map[string]listing.Record, error) {
	rows, err := r.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE source_name = ?
	`, sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load event table: %w", err)
	}
	defer rows.Close()

	table := make(map[string]listing.Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		table[rec.SourceURL] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return table, nil
}

// GetEventByID retrieves one event by its stable identifier.
func (r *EventRepo) GetEventByID(eventID string) (*listing.Record, error) {
	row := r.db.QueryRow(`
		SELECT `+eventColumns+`
		FROM events
		WHERE id = ?
	`, eventID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}
	return &rec, nil
}

// GetEvents lists events for a source ordered by title.
func (r *EventRepo) GetEvents(sourceName string, activeOnly bool, limit int) ([]listing.Record, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE source_name = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY title, source_url LIMIT ?`

	rows, err := r.db.Query(query, sourceName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var records []listing.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return records, nil
}

// GetFailedActiveKeys returns source URLs of active events whose last
// extraction failed. These are the candidates for re-extraction on the
// next run.
func (r *EventRepo) GetFailedActiveKeys(sourceName string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT source_url
		FROM events
		WHERE source_name = ? AND active = 1 AND confidence = ?
		ORDER BY source_url
	`, sourceName, string(listing.ConfidenceFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to get failed events: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan source URL: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return keys, nil
}

// GetEventStats returns record counts for a source.
func (r *EventRepo) GetEventStats(sourceName string) (EventStats, error) {
	var stats EventStats
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(active), 0),
		       COALESCE(SUM(needs_review), 0),
		       COALESCE(SUM(CASE WHEN confidence = 'failed' THEN 1 ELSE 0 END), 0)
		FROM events
		WHERE source_name = ?
	`, sourceName).Scan(&stats.Total, &stats.Active, &stats.NeedsReview, &stats.Failed)
	if err != nil {
		return EventStats{}, fmt.Errorf("failed to get event stats: %w", err)
	}
	return stats, nil
}

// ApplyMerge commits a complete merge result in a single transaction:
// inserts, field updates, deactivations and history entries land together
// or not at all, so a crashed run can be retried from the same inputs.
func (r *EventRepo) ApplyMerge(sourceName string, result listing.MergeResult) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTimestamp(result.RunDate)

	for _, rec := range result.Inserted {
		_, err := tx.Exec(`
			INSERT INTO events (
				id, source_name, source_url, title, venue, event_date,
				event_time, language, price_range, status_badge, duration,
				age_limit, confidence, active, needs_review, review_reason,
				first_seen, last_seen, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.EventID, sourceName, rec.SourceURL, rec.Title, rec.Venue,
			rec.EventDate, rec.EventTime, rec.Language, rec.PriceRange,
			rec.StatusBadge, rec.Duration, rec.AgeLimit, string(rec.Confidence),
			boolToInt(rec.Active), boolToInt(rec.NeedsReview), rec.ReviewReason,
			formatTimestamp(rec.FirstSeen), formatTimestamp(rec.LastSeen), now, now)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", rec.EventID, err)
		}
	}

	for _, rec := range result.Updated {
		_, err := tx.Exec(`
			UPDATE events
			SET title = ?, venue = ?, event_date = ?, event_time = ?,
			    language = ?, price_range = ?, status_badge = ?, duration = ?,
			    age_limit = ?, confidence = ?, active = ?, needs_review = ?,
			    review_reason = ?, last_seen = ?, updated_at = ?
			WHERE id = ?
		`, rec.Title, rec.Venue, rec.EventDate, rec.EventTime, rec.Language,
			rec.PriceRange, rec.StatusBadge, rec.Duration, rec.AgeLimit,
			string(rec.Confidence), boolToInt(rec.Active), boolToInt(rec.NeedsReview),
			rec.ReviewReason, formatTimestamp(rec.LastSeen), now, rec.EventID)
		if err != nil {
			return fmt.Errorf("failed to update event %s: %w", rec.EventID, err)
		}
	}

	for _, eventID := range result.Deactivated {
		_, err := tx.Exec(`
			UPDATE events
			SET active = 0, updated_at = ?
			WHERE id = ?
		`, now, eventID)
		if err != nil {
			return fmt.Errorf("failed to deactivate event %s: %w", eventID, err)
		}
	}

	for _, entry := range result.History {
		fieldsJSON := "{}"
		if len(entry.Fields) > 0 {
			data, err := json.Marshal(entry.Fields)
			if err != nil {
				return fmt.Errorf("failed to marshal history fields: %w", err)
			}
			fieldsJSON = string(data)
		}
		_, err := tx.Exec(`
			INSERT INTO event_history (event_id, run_date, change_kind, fields_json, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, entry.EventID, formatDate(entry.RunDate), string(entry.Kind), fieldsJSON, now)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (listing.Record, error) {
	var rec listing.Record
	var confidence string
	var active, needsReview int
	var firstSeen, lastSeen string

	err := row.Scan(
		&rec.EventID, &rec.SourceURL, &rec.Title, &rec.Venue, &rec.EventDate,
		&rec.EventTime, &rec.Language, &rec.PriceRange, &rec.StatusBadge,
		&rec.Duration, &rec.AgeLimit, &confidence,
		&active, &needsReview, &rec.ReviewReason, &firstSeen, &lastSeen,
	)
	if err != nil {
		return listing.Record{}, err
	}

	rec.Confidence = listing.Confidence(confidence)
	rec.Active = active != 0
	rec.NeedsReview = needsReview != 0
	rec.FirstSeen = parseTimestamp(firstSeen)
	rec.LastSeen = parseTimestamp(lastSeen)
	return rec, nil
}
