package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// CaptureStore holds the raw text captured from each event detail page,
// keyed by detail URL. Captures outlive the run that produced them so
// failed extractions can be retried without re-visiting the page.
type CaptureStore struct {
	capturesDir string
	sourceName  string
}

func NewCaptureStore(capturesDir, sourceName string) *CaptureStore {
	return &CaptureStore{capturesDir: capturesDir, sourceName: sourceName}
}

// Put stores the captured text for a detail URL, replacing any earlier
// capture.
func (cs *CaptureStore) Put(detailURL, text string) error {
	dir := filepath.Join(cs.capturesDir, cs.sourceName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create captures directory: %w", err)
	}

	if err := os.WriteFile(cs.capturePath(detailURL), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}
	return nil
}

// Get returns the captured text for a detail URL. A missing capture is
// not an error: it comes back as ("", false).
func (cs *CaptureStore) Get(detailURL string) (string, bool, error) {
	data, err := os.ReadFile(cs.capturePath(detailURL))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read capture: %w", err)
	}
	return string(data), true, nil
}

// Delete removes the capture for a detail URL, ignoring absent files.
func (cs *CaptureStore) Delete(detailURL string) error {
	err := os.Remove(cs.capturePath(detailURL))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	return nil
}

func (cs *CaptureStore) capturePath(detailURL string) string {
	sum := sha256.Sum256([]byte(detailURL))
	return filepath.Join(cs.capturesDir, cs.sourceName, hex.EncodeToString(sum[:])+".txt")
}
