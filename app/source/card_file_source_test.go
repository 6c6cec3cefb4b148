package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testRunDate = time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)

func writeCardFile(t *testing.T, cardsDir, sourceName, day, content string) {
	t.Helper()
	dir := filepath.Join(cardsDir, sourceName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "events_"+day+".json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCardFileSource_Load(t *testing.T) {
	cardsDir := t.TempDir()
	writeCardFile(t, cardsDir, "bookmyshow-ncr", "2026-01-12", `[
		{
			"name": "Indie Night",
			"url": "https://example.com/events/indie-night",
			"status": "Fast Filling",
			"timestamp": "2026-01-12 06:30:00"
		},
		{
			"name": "No URL",
			"url": ""
		}
	]`)

	src := NewCardFileSource(cardsDir, "bookmyshow-ncr")
	cards, err := src.Load(context.Background(), testRunDate)
	if err != nil {
		t.Fatal(err)
	}

	if len(cards) != 1 {
		t.Fatalf("Expected 1 card (URL-less entry skipped), got %d", len(cards))
	}
	card := cards[0]
	if card.Title != "Indie Night" || card.DetailURL != "https://example.com/events/indie-night" {
		t.Errorf("Card fields not mapped: %+v", card)
	}
	if card.BadgeText != "Fast Filling" {
		t.Errorf("Status should map to badge text, got '%s'", card.BadgeText)
	}
	if card.CapturedAt.Hour() != 6 || card.CapturedAt.Minute() != 30 {
		t.Errorf("Timestamp not parsed: %v", card.CapturedAt)
	}
}

func TestCardFileSource_MissingFileYieldsNoCards(t *testing.T) {
	src := NewCardFileSource(t.TempDir(), "bookmyshow-ncr")

	cards, err := src.Load(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("Missing file should not be an error: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("Expected no cards, got %d", len(cards))
	}
}

func TestCardFileSource_CorruptFileIsAnError(t *testing.T) {
	cardsDir := t.TempDir()
	writeCardFile(t, cardsDir, "bookmyshow-ncr", "2026-01-12", "{not json")

	src := NewCardFileSource(cardsDir, "bookmyshow-ncr")
	if _, err := src.Load(context.Background(), testRunDate); err == nil {
		t.Errorf("Corrupt card file should be an error")
	}
}

func TestCardFileSource_MissingTimestampFallsBackToRunDate(t *testing.T) {
	cardsDir := t.TempDir()
	writeCardFile(t, cardsDir, "bookmyshow-ncr", "2026-01-12",
		`[{"name": "Event A", "url": "https://example.com/events/a"}]`)

	src := NewCardFileSource(cardsDir, "bookmyshow-ncr")
	cards, err := src.Load(context.Background(), testRunDate)
	if err != nil {
		t.Fatal(err)
	}
	if !cards[0].CapturedAt.Equal(testRunDate) {
		t.Errorf("Expected run date fallback, got %v", cards[0].CapturedAt)
	}
}
