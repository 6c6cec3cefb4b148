package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/showtrack/showtrack/app/listing"
)

// CardFileSource reads the day's cards from the scraper's JSON drop
// directory. The upstream browser job writes one events_YYYY-MM-DD.json
// per day and per source.
type CardFileSource struct {
	cardsDir   string
	sourceName string
}

func NewCardFileSource(cardsDir, sourceName string) *CardFileSource {
	return &CardFileSource{cardsDir: cardsDir, sourceName: sourceName}
}

// cardFileEntry mirrors the scraper's output. Only name and url are
// reliable; the detail fields are best-effort and consumed downstream
// from the captured text, not from here.
type cardFileEntry struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Load reads and decodes the card file for runDate. A missing file or an
// empty array both come back as zero cards: the caller decides whether
// that aborts the run.
func (s *CardFileSource) Load(ctx context.Context, runDate time.Time) ([]listing.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.filePath(runDate)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read card file %s: %w", path, err)
	}

	var entries []cardFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse card file %s: %w", path, err)
	}

	cards := make([]listing.Card, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.URL) == "" {
			// A card without a detail URL has no identity to track.
			continue
		}
		cards = append(cards, listing.Card{
			Title:      strings.TrimSpace(entry.Name),
			DetailURL:  strings.TrimSpace(entry.URL),
			BadgeText:  strings.TrimSpace(entry.Status),
			CapturedAt: parseCardTimestamp(entry.Timestamp, runDate),
		})
	}

	return cards, nil
}

func (s *CardFileSource) filePath(runDate time.Time) string {
	return filepath.Join(s.cardsDir, s.sourceName, fmt.Sprintf("events_%s.json", runDate.Format("2006-01-02")))
}

func parseCardTimestamp(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
