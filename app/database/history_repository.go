package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/showtrack/showtrack/app/listing"
)

// HistoryRepo reads the append-only per-event change log. Writes happen
// only through EventRepo.ApplyMerge so history always lands in the same
// transaction as the table change it describes.
type HistoryRepo struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// GetHistoryByEvent returns an event's change log, most recent first.
func (r *HistoryRepo) GetHistoryByEvent(eventID string, limit int) ([]listing.HistoryEntry, error) {
	rows, err := r.db.Query(`
		SELECT event_id, run_date, change_kind, fields_json
		FROM event_history
		WHERE event_id = ?
		ORDER BY run_date DESC, id DESC
		LIMIT ?
	`, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get event history: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

// GetHistoryByRunDate returns everything that changed for a source on one
// run date.
func (r *HistoryRepo) GetHistoryByRunDate(sourceName string, date time.Time) ([]listing.HistoryEntry, error) {
	rows, err := r.db.Query(`
		SELECT h.event_id, h.run_date, h.change_kind, h.fields_json
		FROM event_history h
		JOIN events e ON e.id = h.event_id
		WHERE e.source_name = ? AND h.run_date = ?
		ORDER BY h.change_kind, h.event_id
	`, sourceName, formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	return scanHistoryRows(rows)
}

type historyRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanHistoryRows(rows historyRows) ([]listing.HistoryEntry, error) {
	var entries []listing.HistoryEntry
	for rows.Next() {
		var entry listing.HistoryEntry
		var runDate, kind, fieldsJSON string
		if err := rows.Scan(&entry.EventID, &runDate, &kind, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.RunDate = parseDate(runDate)
		entry.Kind = listing.ChangeKind(kind)
		if fieldsJSON != "" && fieldsJSON != "{}" {
			if err := json.Unmarshal([]byte(fieldsJSON), &entry.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal history fields: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return entries, nil
}
