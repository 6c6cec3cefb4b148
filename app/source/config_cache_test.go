package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCache_LoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()
	writeConfigFile(t, tempDir, "bookmyshow-ncr.yml", `
url: "https://example.com/explore/events-ncr"
region: "ncr"
adapter: "file"

settings:
  enabled: true
  min_cards: 5
  run_interval: 86400
  timeout: 60

filters:
  - field: "title"
    excludes:
      - "sale"
`)

	cache := NewConfigCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	config, err := cache.GetConfig("bookmyshow-ncr")
	if err != nil {
		t.Fatal(err)
	}
	if config.Name != "bookmyshow-ncr" {
		t.Errorf("Name should derive from filename, got '%s'", config.Name)
	}
	if config.Region != "ncr" || config.Adapter != AdapterFile {
		t.Errorf("Unexpected config: %+v", config)
	}
	if config.Settings.MinCards != 5 {
		t.Errorf("Expected min_cards=5, got %d", config.Settings.MinCards)
	}
	if len(config.FilterRules()) != 1 || config.FilterRules()[0].Field != "title" {
		t.Errorf("Filter rules not converted: %+v", config.FilterRules())
	}
}

func TestConfigCache_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	writeConfigFile(t, tempDir, "minimal.yml", `
url: "https://example.com/events"
settings:
  enabled: true
`)

	cache := NewConfigCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	config, err := cache.GetConfig("minimal")
	if err != nil {
		t.Fatal(err)
	}
	if config.Adapter != AdapterFile {
		t.Errorf("Expected default adapter 'file', got '%s'", config.Adapter)
	}
	if config.Settings.MinCards != 5 {
		t.Errorf("Expected default min_cards=5, got %d", config.Settings.MinCards)
	}
	if config.Settings.GetRunInterval() != 24*time.Hour {
		t.Errorf("Expected daily default interval, got %v", config.Settings.GetRunInterval())
	}
	if config.Settings.GetTimeout() != 60*time.Second {
		t.Errorf("Expected 60s default timeout, got %v", config.Settings.GetTimeout())
	}
}

func TestConfigCache_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing-url.yml", "settings:\n  enabled: true\n"},
		{"bad-adapter.yml", "url: \"https://example.com\"\nadapter: \"carrier-pigeon\"\n"},
		{"bad-filter-field.yml", "url: \"https://example.com\"\nfilters:\n  - field: \"venue\"\n    excludes: [\"x\"]\n"},
		{"empty-filter.yml", "url: \"https://example.com\"\nfilters:\n  - field: \"title\"\n"},
	}

	for _, test := range tests {
		tempDir := t.TempDir()
		writeConfigFile(t, tempDir, test.name, test.content)

		cache := NewConfigCache(tempDir)
		if err := cache.Run(); err == nil {
			t.Errorf("Config %s should fail validation", test.name)
		}
	}
}

func TestConfigCache_EnabledConfigs(t *testing.T) {
	tempDir := t.TempDir()
	writeConfigFile(t, tempDir, "on.yml", "url: \"https://example.com/on\"\nsettings:\n  enabled: true\n")
	writeConfigFile(t, tempDir, "off.yml", "url: \"https://example.com/off\"\nsettings:\n  enabled: false\n")

	cache := NewConfigCache(tempDir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	if cache.GetConfigCount() != 2 {
		t.Errorf("Expected 2 configs, got %d", cache.GetConfigCount())
	}
	enabled := cache.GetEnabledConfigs()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled config, got %d", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Errorf("Wrong config enabled: %v", enabled)
	}
}

func TestConfigCache_MissingDirectory(t *testing.T) {
	cache := NewConfigCache(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := cache.Run(); err != nil {
		t.Errorf("Missing sources directory should not be an error: %v", err)
	}
	if cache.GetConfigCount() != 0 {
		t.Errorf("Expected no configs, got %d", cache.GetConfigCount())
	}
}
