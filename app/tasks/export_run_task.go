package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/export"
)

// ExportRunTask writes the post-run event bundle for downstream jobs.
// It runs after a successful ProcessRunTask and reads only committed
// state.
type ExportRunTask struct {
	Task
	eventRepo database.EventRepository
	runRepo   database.RunRepository
	exporter  *export.Exporter
}

func NewExportRunTask(sourceName string, eventRepo database.EventRepository, runRepo database.RunRepository, exporter *export.Exporter) *ExportRunTask {
	return &ExportRunTask{
		Task:      NewTask(TaskTypeExportRun, sourceName),
		eventRepo: eventRepo,
		runRepo:   runRepo,
		exporter:  exporter,
	}
}

func (t *ExportRunTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	records, err := t.eventRepo.GetEvents(t.SourceName, true, 10000)
	if err != nil {
		return fmt.Errorf("failed to load events for export: %w", err)
	}

	run, err := t.runRepo.GetLatestRun(t.SourceName)
	if err != nil {
		return fmt.Errorf("failed to load latest run for export: %w", err)
	}

	path, err := t.exporter.Run(t.SourceName, records, run)
	if err != nil {
		return fmt.Errorf("failed to export run: %w", err)
	}

	slog.Info("Task completed",
		"type", "ExportRun",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"events", len(records),
		"path", path)

	return nil
}
