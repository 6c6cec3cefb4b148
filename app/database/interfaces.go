package database

import (
	"time"

	"github.com/showtrack/showtrack/app/listing"
)

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSourceCount() (int, error)
	GetEnabledSourceCount() (int, error)
	GetSourcesDueForRun() ([]Source, error)

	UpsertSource(name, url, region, adapter string, minCards int) (bool, error)
	SetSourceEnabled(name string, enabled bool) error
	UpdateNextRun(name string, lastRun, nextRun time.Time) error
}

type EventRepository interface {
	LoadTable(sourceName string) (map[string]listing.Record, error)
	GetEventByID(eventID string) (*listing.Record, error)
	GetEvents(sourceName string, activeOnly bool, limit int) ([]listing.Record, error)
	GetFailedActiveKeys(sourceName string) ([]string, error)
	GetEventStats(sourceName string) (EventStats, error)

	ApplyMerge(sourceName string, result listing.MergeResult) error
}

type SnapshotRepository interface {
	SaveSnapshot(sourceName string, date time.Time, cards []listing.Card) error
	GetSnapshot(sourceName string, date time.Time) ([]listing.Card, error)
	PruneSnapshots(sourceName string, keepDays int) (int64, error)
}

type HistoryRepository interface {
	GetHistoryByEvent(eventID string, limit int) ([]listing.HistoryEntry, error)
	GetHistoryByRunDate(sourceName string, date time.Time) ([]listing.HistoryEntry, error)
}

type RunRepository interface {
	InsertRun(run Run) (int64, error)
	GetLatestRun(sourceName string) (*Run, error)
	GetRun(sourceName string, date time.Time) (*Run, error)
}
