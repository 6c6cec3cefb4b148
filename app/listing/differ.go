package listing

import (
	"log/slog"
	"sort"
	"time"
)

// Differ compares today's observed card set against the prior day's
// snapshot. Matching key is the detail URL: titles carry transient badge
// text and formatting noise, the platform URL does not.
type Differ struct{}

func NewDiffer() *Differ {
	return &Differ{}
}

// Run partitions the distinct keys across both days into added, removed
// and unchanged. A today-set below minCards is treated as a likely scrape
// failure rather than a mass removal: the result is flagged degraded and
// RemovedKeys() suppresses removal commits.
func (d *Differ) Run(today, yesterday []Card, minCards int, runDate time.Time) DiffResult {
	todayByKey := make(map[string]Card, len(today))
	for _, card := range today {
		if card.IsFiltered {
			continue
		}
		if _, seen := todayByKey[card.DetailURL]; seen {
			continue
		}
		todayByKey[card.DetailURL] = card
	}

	yesterdayByKey := make(map[string]Card, len(yesterday))
	for _, card := range yesterday {
		if _, seen := yesterdayByKey[card.DetailURL]; seen {
			continue
		}
		yesterdayByKey[card.DetailURL] = card
	}

	result := DiffResult{
		RunDate:        runDate,
		TodayCount:     len(todayByKey),
		YesterdayCount: len(yesterdayByKey),
	}

	for key, card := range todayByKey {
		if _, ok := yesterdayByKey[key]; ok {
			result.UnchangedKeys = append(result.UnchangedKeys, key)
		} else {
			result.Added = append(result.Added, card)
		}
	}
	for key, card := range yesterdayByKey {
		if _, ok := todayByKey[key]; !ok {
			result.Removed = append(result.Removed, card)
		}
	}
	result.UnchangedCount = len(result.UnchangedKeys)

	// Deterministic output regardless of input order.
	sort.Slice(result.Added, func(i, j int) bool { return cardLess(result.Added[i], result.Added[j]) })
	sort.Slice(result.Removed, func(i, j int) bool { return cardLess(result.Removed[i], result.Removed[j]) })
	sort.Strings(result.UnchangedKeys)

	if len(todayByKey) < minCards {
		result.Degraded = true
		result.DegradedReason = DegradedSourceTruncated
		slog.Warn("Run degraded: today's card set below sanity threshold",
			"today", len(todayByKey),
			"yesterday", len(yesterdayByKey),
			"min_cards", minCards)
	}

	return result
}

func cardLess(a, b Card) bool {
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.DetailURL < b.DetailURL
}
