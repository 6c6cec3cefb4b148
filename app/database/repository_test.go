package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/showtrack/showtrack/app/listing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "showtrack.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

var testRunDate = time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)

func TestEventRepo_ApplyMergeRoundTrip(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepository(db)
	history := NewHistoryRepository(db)

	rec := listing.Record{
		EventID:     listing.MintEventID("https://example.com/events/a"),
		SourceURL:   "https://example.com/events/a",
		Title:       "Event A",
		Venue:       "Siri Fort",
		EventDate:   "Jan 12",
		PriceRange:  "500-1200",
		StatusBadge: "Fast Filling",
		Confidence:  listing.ConfidenceHigh,
		Active:      true,
		FirstSeen:   testRunDate,
		LastSeen:    testRunDate,
	}
	result := listing.MergeResult{
		RunDate:  testRunDate,
		Inserted: []listing.Record{rec},
		History: []listing.HistoryEntry{{
			EventID: rec.EventID,
			RunDate: testRunDate,
			Kind:    listing.ChangeAdded,
			Fields:  map[string]string{"title": "Event A", "venue": "Siri Fort"},
		}},
	}

	if err := events.ApplyMerge("bookmyshow-ncr", result); err != nil {
		t.Fatalf("ApplyMerge failed: %v", err)
	}

	table, err := events.LoadTable("bookmyshow-ncr")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	got, ok := table["https://example.com/events/a"]
	if !ok {
		t.Fatalf("Inserted record missing from table")
	}
	if got.Title != rec.Title || got.Venue != rec.Venue || got.Confidence != rec.Confidence {
		t.Errorf("Record fields did not round-trip: %+v", got)
	}
	if !got.FirstSeen.Equal(testRunDate) {
		t.Errorf("first_seen did not round-trip: %v", got.FirstSeen)
	}

	byID, err := events.GetEventByID(rec.EventID)
	if err != nil || byID == nil {
		t.Fatalf("GetEventByID failed: %v, %v", byID, err)
	}

	entries, err := history.GetHistoryByEvent(rec.EventID, 10)
	if err != nil {
		t.Fatalf("GetHistoryByEvent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != listing.ChangeAdded {
		t.Fatalf("Expected one ADDED history entry, got %+v", entries)
	}
	if entries[0].Fields["venue"] != "Siri Fort" {
		t.Errorf("History fields did not round-trip: %v", entries[0].Fields)
	}
}

func TestEventRepo_DeactivationAndStats(t *testing.T) {
	db := openTestDB(t)
	events := NewEventRepository(db)

	id := listing.MintEventID("https://example.com/events/b")
	insert := listing.MergeResult{
		RunDate: testRunDate,
		Inserted: []listing.Record{{
			EventID:    id,
			SourceURL:  "https://example.com/events/b",
			Title:      "Event B",
			Confidence: listing.ConfidenceFailed,
			Active:     true,
			FirstSeen:  testRunDate,
			LastSeen:   testRunDate,
		}},
	}
	if err := events.ApplyMerge("bookmyshow-ncr", insert); err != nil {
		t.Fatalf("ApplyMerge insert failed: %v", err)
	}

	failed, err := events.GetFailedActiveKeys("bookmyshow-ncr")
	if err != nil {
		t.Fatalf("GetFailedActiveKeys failed: %v", err)
	}
	if len(failed) != 1 || failed[0] != "https://example.com/events/b" {
		t.Errorf("Expected one failed active key, got %v", failed)
	}

	remove := listing.MergeResult{
		RunDate:     testRunDate.AddDate(0, 0, 1),
		Deactivated: []string{id},
	}
	if err := events.ApplyMerge("bookmyshow-ncr", remove); err != nil {
		t.Fatalf("ApplyMerge deactivation failed: %v", err)
	}

	rec, err := events.GetEventByID(id)
	if err != nil || rec == nil {
		t.Fatalf("Deactivated record must still exist: %v, %v", rec, err)
	}
	if rec.Active {
		t.Errorf("Record should be inactive after deactivation")
	}

	stats, err := events.GetEventStats("bookmyshow-ncr")
	if err != nil {
		t.Fatalf("GetEventStats failed: %v", err)
	}
	if stats.Total != 1 || stats.Active != 0 || stats.Failed != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestSnapshotRepo_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	snapshots := NewSnapshotRepository(db)

	cards := []listing.Card{
		{Title: "Event A", DetailURL: "https://example.com/events/a", CapturedAt: testRunDate},
		{Title: "Spam", DetailURL: "https://example.com/offers/spam", IsFiltered: true, CapturedAt: testRunDate},
	}
	if err := snapshots.SaveSnapshot("bookmyshow-ncr", testRunDate, cards); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := snapshots.GetSnapshot("bookmyshow-ncr", testRunDate)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if len(got) != 1 || got[0].DetailURL != "https://example.com/events/a" {
		t.Errorf("Filtered card leaked into snapshot: %+v", got)
	}

	// Re-saving the same day replaces, never accumulates.
	if err := snapshots.SaveSnapshot("bookmyshow-ncr", testRunDate, cards[:1]); err != nil {
		t.Fatalf("Second SaveSnapshot failed: %v", err)
	}
	got, err = snapshots.GetSnapshot("bookmyshow-ncr", testRunDate)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Snapshot replay duplicated cards: %d", len(got))
	}

	missing, err := snapshots.GetSnapshot("bookmyshow-ncr", testRunDate.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("GetSnapshot for missing day failed: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("Missing day should yield no cards, got %d", len(missing))
	}
}

func TestRunRepo_InsertAndLatest(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)

	first := Run{
		SourceName:     "bookmyshow-ncr",
		RunDate:        testRunDate,
		Status:         RunStatusCompleted,
		TodayCount:     43,
		YesterdayCount: 42,
		AddedCount:     2,
		RemovedCount:   1,
		UnchangedCount: 41,
		Report:         "=== Event Comparison ===",
	}
	if _, err := runs.InsertRun(first); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	second := first
	second.RunDate = testRunDate.AddDate(0, 0, 1)
	second.Status = RunStatusDegraded
	second.Degraded = true
	second.DegradedReason = string(listing.DegradedSourceTruncated)
	if _, err := runs.InsertRun(second); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	latest, err := runs.GetLatestRun("bookmyshow-ncr")
	if err != nil || latest == nil {
		t.Fatalf("GetLatestRun failed: %v, %v", latest, err)
	}
	if !latest.Degraded || latest.Status != RunStatusDegraded {
		t.Errorf("Expected the degraded run to be latest, got %+v", latest)
	}

	// Retrying a day overwrites its row.
	retry := first
	retry.TodayCount = 44
	if _, err := runs.InsertRun(retry); err != nil {
		t.Fatalf("InsertRun retry failed: %v", err)
	}
	day, err := runs.GetRun("bookmyshow-ncr", testRunDate)
	if err != nil || day == nil {
		t.Fatalf("GetRun failed: %v, %v", day, err)
	}
	if day.TodayCount != 44 {
		t.Errorf("Retried run should replace the row, got today=%d", day.TodayCount)
	}
}

func TestSourceRepo_UpsertAndSchedule(t *testing.T) {
	db := openTestDB(t)
	sources := NewSourceRepository(db)

	changed, err := sources.UpsertSource("bookmyshow-ncr", "https://example.com/explore/events", "ncr", "file", 5)
	if err != nil {
		t.Fatalf("UpsertSource failed: %v", err)
	}
	if changed {
		t.Errorf("First upsert should not report a URL change")
	}

	changed, err = sources.UpsertSource("bookmyshow-ncr", "https://example.com/explore/events-v2", "ncr", "file", 5)
	if err != nil {
		t.Fatalf("Second UpsertSource failed: %v", err)
	}
	if !changed {
		t.Errorf("URL change should be reported")
	}

	due, err := sources.GetSourcesDueForRun()
	if err != nil {
		t.Fatalf("GetSourcesDueForRun failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("New source should be due immediately, got %d", len(due))
	}

	next := time.Now().Add(24 * time.Hour)
	if err := sources.UpdateNextRun("bookmyshow-ncr", time.Now(), next); err != nil {
		t.Fatalf("UpdateNextRun failed: %v", err)
	}
	due, err = sources.GetSourcesDueForRun()
	if err != nil {
		t.Fatalf("GetSourcesDueForRun failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("Scheduled source should not be due, got %d", len(due))
	}

	if err := sources.SetSourceEnabled("bookmyshow-ncr", false); err != nil {
		t.Fatalf("SetSourceEnabled failed: %v", err)
	}
	count, err := sources.GetEnabledSourceCount()
	if err != nil {
		t.Fatalf("GetEnabledSourceCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no enabled sources, got %d", count)
	}
}
