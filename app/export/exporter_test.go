package export

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/listing"
)

func TestExporter_Run(t *testing.T) {
	exporter := NewExporter(t.TempDir())
	runDate := time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)

	records := []listing.Record{{
		EventID:    listing.MintEventID("https://example.com/events/a"),
		SourceURL:  "https://example.com/events/a",
		Title:      "Event A",
		Venue:      "Siri Fort",
		PriceRange: "500-1200",
		Confidence: listing.ConfidenceHigh,
		Active:     true,
		FirstSeen:  runDate,
		LastSeen:   runDate,
	}}
	run := &database.Run{
		SourceName:     "bookmyshow-ncr",
		RunDate:        runDate,
		Status:         database.RunStatusCompleted,
		TodayCount:     1,
		UnchangedCount: 1,
	}

	path, err := exporter.Run("bookmyshow-ncr", records, run)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatalf("Export bundle is not valid JSON: %v", err)
	}
	if bundle.Source != "bookmyshow-ncr" || bundle.RunDate != "2026-01-12" {
		t.Errorf("Bundle header wrong: %+v", bundle)
	}
	if bundle.RunSummary == nil || bundle.RunSummary.Status != database.RunStatusCompleted {
		t.Errorf("Run summary missing: %+v", bundle.RunSummary)
	}
	if len(bundle.Events) != 1 || bundle.Events[0].Title != "Event A" {
		t.Errorf("Events not exported: %+v", bundle.Events)
	}
	if bundle.Events[0].Confidence != "high" {
		t.Errorf("Confidence should serialize as string, got %q", bundle.Events[0].Confidence)
	}
}

func TestExporter_NoRunStillExports(t *testing.T) {
	exporter := NewExporter(t.TempDir())

	path, err := exporter.Run("bookmyshow-ncr", nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatal(err)
	}
	if bundle.RunSummary != nil {
		t.Errorf("Expected no run summary, got %+v", bundle.RunSummary)
	}
	if len(bundle.Events) != 0 {
		t.Errorf("Expected empty events list, got %d", len(bundle.Events))
	}
}
