package database

import (
	"fmt"
	"time"

	"github.com/showtrack/showtrack/app/listing"
)

// SnapshotRepo persists the per-day card snapshots the differ compares.
// Filtered cards are not persisted: the snapshot is the post-filter view
// of the listing page.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// SaveSnapshot replaces the snapshot for (source, date). Re-running a day
// must not accumulate duplicate cards.
func (r *SnapshotRepo) SaveSnapshot(sourceName string, date time.Time, cards []listing.Card) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	day := formatDate(date)

	_, err = tx.Exec(`
		DELETE FROM snapshot_cards
		WHERE source_name = ? AND snapshot_date = ?
	`, sourceName, day)
	if err != nil {
		return fmt.Errorf("failed to clear prior snapshot: %w", err)
	}

	for _, card := range cards {
		if card.IsFiltered {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO snapshot_cards (source_name, snapshot_date, detail_url, title, badge_text, captured_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_name, snapshot_date, detail_url) DO NOTHING
		`, sourceName, day, card.DetailURL, card.Title, card.BadgeText, formatTimestamp(card.CapturedAt))
		if err != nil {
			return fmt.Errorf("failed to insert snapshot card: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cards captured for (source, date). An empty
// slice means no snapshot exists for that day.
func (r *SnapshotRepo) GetSnapshot(sourceName string, date time.Time) ([]listing.Card, error) {
	rows, err := r.db.Query(`
		SELECT detail_url, title, badge_text, captured_at
		FROM snapshot_cards
		WHERE source_name = ? AND snapshot_date = ?
		ORDER BY title, detail_url
	`, sourceName, formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	defer rows.Close()

	var cards []listing.Card
	for rows.Next() {
		var card listing.Card
		var capturedAt string
		if err := rows.Scan(&card.DetailURL, &card.Title, &card.BadgeText, &capturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot card: %w", err)
		}
		card.CapturedAt = parseTimestamp(capturedAt)
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return cards, nil
}

// PruneSnapshots drops snapshots older than keepDays. Only the previous
// day is needed for the diff; older days are kept briefly for debugging.
func (r *SnapshotRepo) PruneSnapshots(sourceName string, keepDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -keepDays)
	result, err := r.db.Exec(`
		DELETE FROM snapshot_cards
		WHERE source_name = ? AND snapshot_date < ?
	`, sourceName, formatDate(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	return pruned, nil
}
