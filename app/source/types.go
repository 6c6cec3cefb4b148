package source

import (
	"context"
	"time"

	"github.com/showtrack/showtrack/app/listing"
)

// Adapter kinds accepted in source configuration.
const (
	AdapterFile = "file"
	AdapterFeed = "feed"
)

// Config describes one listing source loaded from a YAML file. Name is
// derived from the filename (without the .yml extension).
type Config struct {
	Name     string
	URL      string         `yaml:"url"`
	Region   string         `yaml:"region"`
	Adapter  string         `yaml:"adapter"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled     bool `yaml:"enabled"`
	MinCards    int  `yaml:"min_cards"`    // degraded-run threshold
	RunInterval int  `yaml:"run_interval"` // seconds
	Timeout     int  `yaml:"timeout"`      // seconds
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Excludes []string `yaml:"excludes"`
}

// GetRunInterval returns the run interval as time.Duration.
func (s *ConfigSettings) GetRunInterval() time.Duration {
	if s.RunInterval <= 0 {
		return 24 * time.Hour // daily scrape cadence
	}
	return time.Duration(s.RunInterval) * time.Second
}

// GetTimeout returns the per-run timeout as time.Duration.
func (s *ConfigSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}

// FilterRules converts configured filters into the form the filterer
// consumes.
func (c *Config) FilterRules() []listing.FilterRule {
	rules := make([]listing.FilterRule, 0, len(c.Filters))
	for _, filter := range c.Filters {
		rules = append(rules, listing.FilterRule{
			Field:    filter.Field,
			Excludes: filter.Excludes,
		})
	}
	return rules
}

// CardSource loads the day's raw event cards for one configured source.
type CardSource interface {
	Load(ctx context.Context, runDate time.Time) ([]listing.Card, error)
}
