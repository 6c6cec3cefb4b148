package listing

import (
	"fmt"
	"strings"
)

// Filterer marks promotional or otherwise unwanted cards before they
// reach the differ. Filtered cards never enter the snapshot or the
// cumulative table.
type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// FilterRule excludes cards whose field contains any of the patterns
// (case-insensitive substring match).
type FilterRule struct {
	Field    string
	Excludes []string
}

func (f *Filterer) Run(cards []Card, rules []FilterRule) []Card {
	if len(rules) == 0 {
		return cards
	}

	filtered := make([]Card, 0, len(cards))
	for _, card := range cards {
		card.IsFiltered, card.FilterReason = f.applyRules(card, rules)
		filtered = append(filtered, card)
	}
	return filtered
}

func (f *Filterer) applyRules(card Card, rules []FilterRule) (bool, string) {
	for _, rule := range rules {
		value := f.fieldValue(card, rule.Field)
		for _, exclude := range rule.Excludes {
			if strings.Contains(strings.ToLower(value), strings.ToLower(exclude)) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", rule.Field, exclude)
			}
		}
	}
	return false, ""
}

func (f *Filterer) fieldValue(card Card, field string) string {
	switch field {
	case "title":
		return card.Title
	case "badge":
		return card.BadgeText
	case "url":
		return card.DetailURL
	default:
		return ""
	}
}
