package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/source"
)

type SyncSourceConfigTask struct {
	Task
	SourceConfig *source.Config
	sourceRepo   database.SourceRepository
}

func NewSyncSourceConfigTask(sourceName string, sourceConfig *source.Config, sourceRepo database.SourceRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSourceConfig, sourceName),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	urlChanged, err := t.sourceRepo.UpsertSource(
		t.SourceConfig.Name,
		t.SourceConfig.URL,
		t.SourceConfig.Region,
		t.SourceConfig.Adapter,
		t.SourceConfig.Settings.MinCards)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSourceConfig", "source", t.SourceName, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	if urlChanged {
		// Event identity is keyed on detail URLs, so a changed listing
		// URL keeps the cumulative table intact. Still worth noticing.
		slog.Warn("Listing URL changed", "source", t.SourceName, "url", t.SourceConfig.URL)
	}

	if err := t.sourceRepo.SetSourceEnabled(t.SourceConfig.Name, t.SourceConfig.Settings.Enabled); err != nil {
		return fmt.Errorf("failed to sync enabled flag: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
