package listing

import (
	"fmt"
	"sort"
	"strings"
)

// RenderReport produces the human-readable day-over-day comparison. The
// output is deterministic for a given pair of daily sets: entries are
// ordered by title, and no wall-clock timestamps are embedded. Degraded
// runs state the condition explicitly instead of presenting a
// suspicious near-empty day as a normal outcome.
func RenderReport(diff DiffResult, records map[string]Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Event Comparison: %s ===\n", diff.RunDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Yesterday: %d events\n", diff.YesterdayCount)
	fmt.Fprintf(&b, "Today: %d events\n", diff.TodayCount)
	fmt.Fprintf(&b, "Unchanged: %d events\n", diff.UnchangedCount)

	if diff.Degraded {
		fmt.Fprintf(&b, "\n*** RUN DEGRADED (%s) ***\n", diff.DegradedReason)
		b.WriteString("Today's card count fell below the sanity threshold; this looks like a\n")
		b.WriteString("scrape failure, not a mass removal. Removal commits were suppressed.\n")
	}

	fmt.Fprintf(&b, "\nNewly added events (%d):\n", len(diff.Added))
	for _, card := range sortedByTitle(diff.Added) {
		fmt.Fprintf(&b, "- %s\n", orUntitled(card.Title))
		fmt.Fprintf(&b, "  URL: %s\n", card.DetailURL)
		if rec, ok := records[card.DetailURL]; ok {
			writeRecordDetails(&b, rec)
		}
	}

	fmt.Fprintf(&b, "\nRemoved events (%d):\n", len(diff.Removed))
	if diff.Degraded && len(diff.Removed) > 0 {
		b.WriteString("(suppressed, see degraded notice above)\n")
	}
	for _, card := range sortedByTitle(diff.Removed) {
		fmt.Fprintf(&b, "- %s\n", orUntitled(card.Title))
		fmt.Fprintf(&b, "  URL: %s\n", card.DetailURL)
	}

	return b.String()
}

func writeRecordDetails(b *strings.Builder, rec Record) {
	if rec.Venue != "" {
		fmt.Fprintf(b, "  Venue: %s\n", rec.Venue)
	}
	if rec.EventDate != "" {
		fmt.Fprintf(b, "  Date: %s\n", rec.EventDate)
	}
	if rec.PriceRange != "" {
		fmt.Fprintf(b, "  Price: %s\n", rec.PriceRange)
	}
	switch rec.StatusBadge {
	case "Fast Filling":
		b.WriteString("  Status: FAST FILLING!\n")
	case "Sold Out":
		b.WriteString("  Status: SOLD OUT!\n")
	}
	if rec.Confidence == ConfidenceFailed {
		b.WriteString("  (capture unusable, extraction pending)\n")
	}
}

func sortedByTitle(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	sort.Slice(out, func(i, j int) bool { return cardLess(out[i], out[j]) })
	return out
}

func orUntitled(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Untitled Event"
	}
	return title
}
