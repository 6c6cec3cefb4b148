package source

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/showtrack/showtrack/app/listing"
)

// FeedCardSource adapts an RSS/Atom event feed into the card shape the
// differ consumes. Some venues publish their listings as a feed; the
// item link plays the role of the card's detail URL.
type FeedCardSource struct {
	feedURL      string
	userAgent    string
	gofeedParser *gofeed.Parser
}

func NewFeedCardSource(feedURL, userAgent string) *FeedCardSource {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	return &FeedCardSource{
		feedURL:      feedURL,
		userAgent:    userAgent,
		gofeedParser: parser,
	}
}

func (s *FeedCardSource) Load(ctx context.Context, runDate time.Time) ([]listing.Card, error) {
	feed, err := s.gofeedParser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", s.feedURL, err)
	}

	cards := make([]listing.Card, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(cmp.Or(item.Link, item.GUID))
		if link == "" {
			continue
		}

		card := listing.Card{
			Title:      strings.TrimSpace(item.Title),
			DetailURL:  link,
			CapturedAt: runDate,
		}
		// Event feeds commonly carry the availability badge as the
		// first category.
		if len(item.Categories) > 0 {
			card.BadgeText = strings.TrimSpace(item.Categories[0])
		}
		if item.PublishedParsed != nil {
			card.CapturedAt = *item.PublishedParsed
		}
		cards = append(cards, card)
	}

	return cards, nil
}
