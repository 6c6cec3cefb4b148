package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/listing"
)

// Exporter writes the per-run event bundle consumed by downstream
// spreadsheet and sheet-upload jobs.
type Exporter struct {
	exportDir string
}

func NewExporter(exportDir string) *Exporter {
	return &Exporter{exportDir: exportDir}
}

// Bundle is the on-disk export format: one file per source and run date.
type Bundle struct {
	Source      string        `json:"source"`
	RunDate     string        `json:"run_date"`
	GeneratedAt string        `json:"generated_at"`
	RunSummary  *RunSummary   `json:"run_summary,omitempty"`
	Events      []BundleEvent `json:"events"`
}

type RunSummary struct {
	Status         string `json:"status"`
	TodayCount     int    `json:"today_count"`
	YesterdayCount int    `json:"yesterday_count"`
	AddedCount     int    `json:"added_count"`
	RemovedCount   int    `json:"removed_count"`
	UnchangedCount int    `json:"unchanged_count"`
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

type BundleEvent struct {
	EventID     string `json:"event_id"`
	SourceURL   string `json:"source_url"`
	Title       string `json:"title"`
	Venue       string `json:"venue,omitempty"`
	EventDate   string `json:"event_date,omitempty"`
	EventTime   string `json:"event_time,omitempty"`
	Language    string `json:"language,omitempty"`
	PriceRange  string `json:"price_range,omitempty"`
	StatusBadge string `json:"status_badge,omitempty"`
	Duration    string `json:"duration,omitempty"`
	AgeLimit    string `json:"age_limit,omitempty"`
	Confidence  string `json:"confidence"`
	NeedsReview bool   `json:"needs_review,omitempty"`
	FirstSeen   string `json:"first_seen"`
	LastSeen    string `json:"last_seen"`
}

// Run writes the bundle for one source and returns the file path.
func (e *Exporter) Run(sourceName string, records []listing.Record, run *database.Run) (string, error) {
	if err := os.MkdirAll(e.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	runDate := time.Now()
	bundle := Bundle{
		Source:      sourceName,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Events:      make([]BundleEvent, 0, len(records)),
	}
	if run != nil {
		runDate = run.RunDate
		bundle.RunSummary = &RunSummary{
			Status:         run.Status,
			TodayCount:     run.TodayCount,
			YesterdayCount: run.YesterdayCount,
			AddedCount:     run.AddedCount,
			RemovedCount:   run.RemovedCount,
			UnchangedCount: run.UnchangedCount,
			Degraded:       run.Degraded,
			DegradedReason: run.DegradedReason,
		}
	}
	bundle.RunDate = runDate.Format("2006-01-02")

	for _, rec := range records {
		bundle.Events = append(bundle.Events, BundleEvent{
			EventID:     rec.EventID,
			SourceURL:   rec.SourceURL,
			Title:       rec.Title,
			Venue:       rec.Venue,
			EventDate:   rec.EventDate,
			EventTime:   rec.EventTime,
			Language:    rec.Language,
			PriceRange:  rec.PriceRange,
			StatusBadge: rec.StatusBadge,
			Duration:    rec.Duration,
			AgeLimit:    rec.AgeLimit,
			Confidence:  string(rec.Confidence),
			NeedsReview: rec.NeedsReview,
			FirstSeen:   rec.FirstSeen.UTC().Format(time.RFC3339),
			LastSeen:    rec.LastSeen.UTC().Format(time.RFC3339),
		})
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export bundle: %w", err)
	}

	path := filepath.Join(e.exportDir, fmt.Sprintf("%s_%s.json", sourceName, bundle.RunDate))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export bundle: %w", err)
	}

	return path, nil
}
