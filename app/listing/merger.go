package listing

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Merger resolves identity for incoming records and computes the table
// and history delta for one run. It is a pure function over an explicit
// table: callers load the cumulative table, run the merge, and commit
// the result atomically, which keeps the pass deterministic, testable
// and safe to retry from the same inputs.
type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// MintEventID derives the stable event identifier from the source key.
// UUIDv5 over the detail URL is collision-free and yields the same ID on
// every run, so identity survives process restarts and table rebuilds.
func MintEventID(sourceURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String()
}

// Run merges newly extracted records, removed keys and still-listed keys
// into the table (keyed by source URL). Records win field-by-field only
// with non-empty values: a known field is never regressed to empty by a
// later lower-confidence extraction. Removed events are deactivated, not
// deleted. Re-running with identical inputs changes nothing but
// last_seen.
func (m *Merger) Run(records []Record, removedKeys, stillListedKeys []string, table map[string]Record, runDate time.Time) MergeResult {
	result := MergeResult{RunDate: runDate}
	mergedKeys := make(map[string]bool, len(records))

	for _, incoming := range records {
		if incoming.SourceURL == "" || mergedKeys[incoming.SourceURL] {
			// Intra-run duplicate capture: first successfully parsed
			// record wins.
			continue
		}
		mergedKeys[incoming.SourceURL] = true

		existing, ok := table[incoming.SourceURL]
		if !ok {
			rec := incoming
			rec.EventID = MintEventID(rec.SourceURL)
			rec.Active = true
			rec.FirstSeen = runDate
			rec.LastSeen = runDate

			table[rec.SourceURL] = rec
			result.Inserted = append(result.Inserted, rec)
			result.History = append(result.History, HistoryEntry{
				EventID: rec.EventID,
				RunDate: runDate,
				Kind:    ChangeAdded,
				Fields:  fieldSnapshot(rec),
			})
			continue
		}

		updated, entry := m.mergeExisting(existing, incoming, runDate)
		table[updated.SourceURL] = updated
		result.Updated = append(result.Updated, updated)
		result.History = append(result.History, entry)
	}

	for _, key := range removedKeys {
		existing, ok := table[key]
		if !ok {
			slog.Warn("Removed key has no record in cumulative table", "source_url", key)
			continue
		}
		if !existing.Active {
			// Already closed on a previous attempt; retrying the merge
			// must not duplicate the removal.
			continue
		}
		existing.Active = false
		table[key] = existing
		result.Deactivated = append(result.Deactivated, existing.EventID)
		result.History = append(result.History, HistoryEntry{
			EventID: existing.EventID,
			RunDate: runDate,
			Kind:    ChangeRemoved,
			Fields:  fieldSnapshot(existing),
		})
	}

	for _, key := range stillListedKeys {
		if mergedKeys[key] {
			continue
		}
		existing, ok := table[key]
		if !ok {
			continue
		}
		existing.LastSeen = runDate
		existing.Active = true
		table[key] = existing
		result.Updated = append(result.Updated, existing)
		result.History = append(result.History, HistoryEntry{
			EventID: existing.EventID,
			RunDate: runDate,
			Kind:    ChangeStillListed,
		})
	}

	sortResult(&result)
	return result
}

func (m *Merger) mergeExisting(existing, incoming Record, runDate time.Time) (Record, HistoryEntry) {
	merged := existing
	merged.LastSeen = runDate
	merged.Active = true

	// A failed re-capture must not degrade an already high-confidence
	// record: keep the prior fields and log a delta-free update.
	if incoming.Confidence == ConfidenceFailed && existing.Confidence == ConfidenceHigh {
		return merged, HistoryEntry{
			EventID: merged.EventID,
			RunDate: runDate,
			Kind:    ChangeFieldsUpdated,
		}
	}

	if incoming.Title != "" && !titlesMatch(existing.Title, incoming.Title) {
		// Possible platform reuse of a URL. Keep the established title
		// and identity; surface the conflict for manual review.
		slog.Warn("Identity conflict: same source key, different title",
			"event_id", existing.EventID,
			"existing_title", existing.Title,
			"incoming_title", incoming.Title)
		merged.NeedsReview = true
		merged.ReviewReason = "identity conflict: incoming title " + strconv.Quote(incoming.Title)
	}

	delta := make(map[string]string)
	overwrite := func(name string, dst *string, next string) {
		if next != "" && next != *dst {
			*dst = next
			delta[name] = next
		}
	}
	overwrite("venue", &merged.Venue, incoming.Venue)
	overwrite("date", &merged.EventDate, incoming.EventDate)
	overwrite("time", &merged.EventTime, incoming.EventTime)
	overwrite("language", &merged.Language, incoming.Language)
	overwrite("price_range", &merged.PriceRange, incoming.PriceRange)
	overwrite("status_badge", &merged.StatusBadge, incoming.StatusBadge)
	overwrite("duration", &merged.Duration, incoming.Duration)
	overwrite("age_limit", &merged.AgeLimit, incoming.AgeLimit)

	if incoming.Confidence.rank() > merged.Confidence.rank() {
		merged.Confidence = incoming.Confidence
	}

	entry := HistoryEntry{
		EventID: merged.EventID,
		RunDate: runDate,
		Kind:    ChangeStillListed,
	}
	if len(delta) > 0 {
		entry.Kind = ChangeFieldsUpdated
		entry.Fields = delta
	}
	return merged, entry
}

// titlesMatch compares titles loosely: badge suffixes, case and
// whitespace noise on the listing page must not count as a conflict.
func titlesMatch(a, b string) bool {
	na := normalizeTitle(a)
	nb := normalizeTitle(b)
	if na == nb {
		return true
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func fieldSnapshot(rec Record) map[string]string {
	snapshot := make(map[string]string)
	put := func(name, value string) {
		if value != "" {
			snapshot[name] = value
		}
	}
	put("title", rec.Title)
	put("venue", rec.Venue)
	put("date", rec.EventDate)
	put("time", rec.EventTime)
	put("language", rec.Language)
	put("price_range", rec.PriceRange)
	put("status_badge", rec.StatusBadge)
	put("duration", rec.Duration)
	put("age_limit", rec.AgeLimit)
	return snapshot
}

func sortResult(result *MergeResult) {
	sort.Slice(result.Inserted, func(i, j int) bool {
		return result.Inserted[i].SourceURL < result.Inserted[j].SourceURL
	})
	sort.Slice(result.Updated, func(i, j int) bool {
		return result.Updated[i].SourceURL < result.Updated[j].SourceURL
	})
	sort.Strings(result.Deactivated)
	sort.SliceStable(result.History, func(i, j int) bool {
		if result.History[i].Kind != result.History[j].Kind {
			return result.History[i].Kind < result.History[j].Kind
		}
		return result.History[i].EventID < result.History[j].EventID
	})
}
