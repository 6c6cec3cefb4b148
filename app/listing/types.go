package listing

import (
	"time"
)

// Confidence classifies how completely a record's fields were recovered
// from captured text.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidencePartial Confidence = "partial"
	ConfidenceFailed  Confidence = "failed"
)

// rank orders confidence tiers so merges never downgrade a record.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidencePartial:
		return 1
	default:
		return 0
	}
}

type ChangeKind string

const (
	ChangeAdded         ChangeKind = "added"
	ChangeStillListed   ChangeKind = "still_listed"
	ChangeRemoved       ChangeKind = "removed"
	ChangeFieldsUpdated ChangeKind = "fields_updated"
)

type DegradedReason string

const (
	DegradedSourceTruncated DegradedReason = "source_empty_or_truncated"
)

// Card is a raw event card observed on the listing page for one run.
// Cards are ephemeral: they feed the differ and the snapshot, nothing else.
type Card struct {
	Title      string
	DetailURL  string
	BadgeText  string
	CapturedAt time.Time

	IsFiltered   bool
	FilterReason string
}

// Extraction holds the structured fields recovered from one captured text.
// Empty string means the field could not be parsed.
type Extraction struct {
	EventDate   string
	EventTime   string
	Venue       string
	Language    string
	PriceRange  string
	StatusBadge string
	Duration    string
	AgeLimit    string

	// BadgeUnrecognized marks a status phrase kept verbatim because it
	// did not map into the closed vocabulary.
	BadgeUnrecognized bool

	Confidence Confidence
}

// Record is the canonical per-event unit in the cumulative table.
// EventID is assigned once and never reassigned; rows are never deleted.
type Record struct {
	EventID   string
	SourceURL string
	Title     string

	Venue       string
	EventDate   string
	EventTime   string
	Language    string
	PriceRange  string
	StatusBadge string
	Duration    string
	AgeLimit    string

	Confidence   Confidence
	Active       bool
	NeedsReview  bool
	ReviewReason string

	FirstSeen time.Time
	LastSeen  time.Time
}

// DiffResult partitions today's cards against yesterday's snapshot.
type DiffResult struct {
	RunDate        time.Time
	Added          []Card
	Removed        []Card
	UnchangedKeys  []string
	UnchangedCount int

	TodayCount     int
	YesterdayCount int

	Degraded       bool
	DegradedReason DegradedReason
}

// RemovedKeys returns the detail URLs of removed cards, or nil when the
// run is degraded and removals must not be committed.
func (d DiffResult) RemovedKeys() []string {
	if d.Degraded {
		return nil
	}
	keys := make([]string, 0, len(d.Removed))
	for _, card := range d.Removed {
		keys = append(keys, card.DetailURL)
	}
	return keys
}

// HistoryEntry is an immutable audit record of a per-event change
// observed on a given run date.
type HistoryEntry struct {
	EventID string
	RunDate time.Time
	Kind    ChangeKind
	Fields  map[string]string
}

// MergeResult is the full outcome of one merge pass. It is computed in
// memory and committed by the storage layer in a single transaction.
type MergeResult struct {
	RunDate     time.Time
	Inserted    []Record
	Updated     []Record
	Deactivated []string
	History     []HistoryEntry
}
