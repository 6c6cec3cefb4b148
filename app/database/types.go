package database

import (
	"time"
)

// Source is a configured listing source registered in the database.
type Source struct {
	ID        int64
	Name      string
	URL       string
	Region    string
	Adapter   string
	Enabled   bool
	MinCards  int
	LastRunAt *time.Time
	NextRunAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run records the outcome of one daily reconciliation pass for a source.
type Run struct {
	ID             int64
	SourceName     string
	RunDate        time.Time
	Status         string
	TodayCount     int
	YesterdayCount int
	AddedCount     int
	RemovedCount   int
	UnchangedCount int
	Degraded       bool
	DegradedReason string
	Report         string
	CreatedAt      time.Time
}

// Run status values.
const (
	RunStatusCompleted = "completed"
	RunStatusDegraded  = "degraded"
	RunStatusAborted   = "aborted"
)

// EventStats summarizes the cumulative table for one source.
type EventStats struct {
	Total       int
	Active      int
	NeedsReview int
	Failed      int
}
