package listing

import (
	"fmt"
	"testing"
	"time"
)

var testRunDate = time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC)

func card(title, url string) Card {
	return Card{Title: title, DetailURL: url, CapturedAt: testRunDate}
}

func TestDiffer_AddedRemovedUnchanged(t *testing.T) {
	differ := NewDiffer()

	yesterday := []Card{
		card("Event A", "https://example.com/events/a"),
		card("Event B", "https://example.com/events/b"),
	}
	today := []Card{
		card("Event A", "https://example.com/events/a"),
		card("Event C", "https://example.com/events/c"),
	}

	result := differ.Run(today, yesterday, 1, testRunDate)

	if len(result.Added) != 1 || result.Added[0].DetailURL != "https://example.com/events/c" {
		t.Errorf("Expected added={C}, got %v", result.Added)
	}
	if len(result.Removed) != 1 || result.Removed[0].DetailURL != "https://example.com/events/b" {
		t.Errorf("Expected removed={B}, got %v", result.Removed)
	}
	if result.UnchangedCount != 1 {
		t.Errorf("Expected unchanged_count=1, got %d", result.UnchangedCount)
	}
	if result.Degraded {
		t.Errorf("Run should not be degraded")
	}
}

func TestDiffer_PartitionAccountsForAllKeys(t *testing.T) {
	differ := NewDiffer()

	var yesterday, today []Card
	for i := 0; i < 10; i++ {
		yesterday = append(yesterday, card(fmt.Sprintf("Old %d", i), fmt.Sprintf("https://example.com/events/old-%d", i)))
	}
	for i := 5; i < 15; i++ {
		today = append(today, card(fmt.Sprintf("Old %d", i), fmt.Sprintf("https://example.com/events/old-%d", i)))
	}

	result := differ.Run(today, yesterday, 1, testRunDate)

	distinct := make(map[string]bool)
	for _, c := range yesterday {
		distinct[c.DetailURL] = true
	}
	for _, c := range today {
		distinct[c.DetailURL] = true
	}

	total := len(result.Added) + len(result.Removed) + result.UnchangedCount
	if total != len(distinct) {
		t.Errorf("Partition does not account for all keys: %d+%d+%d != %d",
			len(result.Added), len(result.Removed), result.UnchangedCount, len(distinct))
	}

	// No key may appear in more than one partition.
	seen := make(map[string]string)
	for _, c := range result.Added {
		seen[c.DetailURL] = "added"
	}
	for _, c := range result.Removed {
		if prev, ok := seen[c.DetailURL]; ok {
			t.Errorf("Key %s in both %s and removed", c.DetailURL, prev)
		}
		seen[c.DetailURL] = "removed"
	}
	for _, key := range result.UnchangedKeys {
		if prev, ok := seen[key]; ok {
			t.Errorf("Key %s in both %s and unchanged", key, prev)
		}
	}
}

func TestDiffer_TruncatedSourceSuppressesRemovals(t *testing.T) {
	differ := NewDiffer()

	var yesterday []Card
	for i := 0; i < 40; i++ {
		yesterday = append(yesterday, card(fmt.Sprintf("Event %d", i), fmt.Sprintf("https://example.com/events/%d", i)))
	}
	today := []Card{card("Event 0", "https://example.com/events/0")}

	result := differ.Run(today, yesterday, 5, testRunDate)

	if !result.Degraded {
		t.Fatalf("Expected degraded run for truncated source")
	}
	if result.DegradedReason != DegradedSourceTruncated {
		t.Errorf("Expected reason %s, got %s", DegradedSourceTruncated, result.DegradedReason)
	}
	if len(result.Removed) != 39 {
		t.Errorf("Diff itself should still report removals, got %d", len(result.Removed))
	}
	if keys := result.RemovedKeys(); keys != nil {
		t.Errorf("Degraded run must suppress removal commits, got %d keys", len(keys))
	}
}

func TestDiffer_FilteredCardsExcluded(t *testing.T) {
	differ := NewDiffer()

	today := []Card{
		card("Event A", "https://example.com/events/a"),
		{Title: "Mega Sale!!!", DetailURL: "https://example.com/events/spam", IsFiltered: true},
	}

	result := differ.Run(today, nil, 1, testRunDate)

	if result.TodayCount != 1 {
		t.Errorf("Filtered card should not count, got today=%d", result.TodayCount)
	}
	if len(result.Added) != 1 {
		t.Errorf("Expected 1 added card, got %d", len(result.Added))
	}
}

func TestDiffer_DeterministicOrdering(t *testing.T) {
	differ := NewDiffer()

	today := []Card{
		card("Zeta Night", "https://example.com/events/z"),
		card("Alpha Fest", "https://example.com/events/a"),
		card("Middle Gig", "https://example.com/events/m"),
	}
	reversed := []Card{today[2], today[1], today[0]}

	first := differ.Run(today, nil, 1, testRunDate)
	second := differ.Run(reversed, nil, 1, testRunDate)

	for i := range first.Added {
		if first.Added[i].DetailURL != second.Added[i].DetailURL {
			t.Fatalf("Diff output depends on input order at index %d", i)
		}
	}
	if first.Added[0].Title != "Alpha Fest" {
		t.Errorf("Added cards should be ordered by title, got %s first", first.Added[0].Title)
	}
}

func TestDiffer_DuplicateKeysCollapsed(t *testing.T) {
	differ := NewDiffer()

	today := []Card{
		card("Event A", "https://example.com/events/a"),
		card("Event A (NEW)", "https://example.com/events/a"),
	}

	result := differ.Run(today, nil, 1, testRunDate)

	if result.TodayCount != 1 {
		t.Errorf("Duplicate detail URLs should collapse to one key, got %d", result.TodayCount)
	}
}
