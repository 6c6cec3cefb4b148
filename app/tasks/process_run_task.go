package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/export"
	"github.com/showtrack/showtrack/app/listing"
	"github.com/showtrack/showtrack/app/source"
)

// ProcessRunTask executes one full daily reconciliation for a source:
// load cards, filter, diff against yesterday's snapshot, extract fields
// from captured text, merge into the cumulative table and record the
// run. Everything that mutates the event table lands in one transaction
// at the end, so a failure anywhere leaves the prior day intact.
type ProcessRunTask struct {
	Task
	SourceConfig *source.Config
	cardSource   source.CardSource
	captureStore *source.CaptureStore
	differ       *listing.Differ
	extractor    *listing.Extractor
	filterer     *listing.Filterer
	merger       *listing.Merger
	eventRepo    database.EventRepository
	snapshotRepo database.SnapshotRepository
	runRepo      database.RunRepository
	sourceRepo   database.SourceRepository
	exporter     *export.Exporter
	enqueuer     TaskSchedulerInterface
	workerCount  int
}

func NewProcessRunTask(sourceName string, sourceConfig *source.Config, cardSource source.CardSource,
	captureStore *source.CaptureStore, eventRepo database.EventRepository,
	snapshotRepo database.SnapshotRepository, runRepo database.RunRepository,
	sourceRepo database.SourceRepository, exporter *export.Exporter,
	enqueuer TaskSchedulerInterface, workerCount int) *ProcessRunTask {
	if workerCount < 1 {
		workerCount = 1
	}
	return &ProcessRunTask{
		Task:         NewTask(TaskTypeProcessRun, sourceName),
		SourceConfig: sourceConfig,
		cardSource:   cardSource,
		captureStore: captureStore,
		differ:       listing.NewDiffer(),
		extractor:    listing.NewExtractor(),
		filterer:     listing.NewFilterer(),
		merger:       listing.NewMerger(),
		eventRepo:    eventRepo,
		snapshotRepo: snapshotRepo,
		runRepo:      runRepo,
		sourceRepo:   sourceRepo,
		exporter:     exporter,
		enqueuer:     enqueuer,
		workerCount:  workerCount,
	}
}

func (t *ProcessRunTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	runDate := dateOf(time.Now())

	cards, err := t.cardSource.Load(ctx, runDate)
	if err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	}

	if len(cards) == 0 {
		// Record the abort in the run ledger only. No snapshot, no table
		// change: a failed page load must never look like a mass removal.
		t.recordAbortedRun(runDate)
		return fmt.Errorf("source %s: %w", t.SourceName, listing.ErrSourceEmpty)
	}

	filtered := t.filterer.Run(cards, t.SourceConfig.FilterRules())

	yesterday, err := t.snapshotRepo.GetSnapshot(t.SourceName, runDate.AddDate(0, 0, -1))
	if err != nil {
		return fmt.Errorf("failed to load yesterday's snapshot: %w", err)
	}

	diff := t.differ.Run(filtered, yesterday, t.SourceConfig.Settings.MinCards, runDate)

	if err := t.snapshotRepo.SaveSnapshot(t.SourceName, runDate, filtered); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	table, err := t.eventRepo.LoadTable(t.SourceName)
	if err != nil {
		return fmt.Errorf("failed to load event table: %w", err)
	}

	extractCards := t.collectExtractionCards(diff, table)
	records := t.extractRecords(ctx, extractCards, runDate)

	mergeResult := t.merger.Run(records, diff.RemovedKeys(), diff.UnchangedKeys, table, runDate)

	recordMap := make(map[string]listing.Record, len(records))
	for _, rec := range records {
		recordMap[rec.SourceURL] = rec
	}
	report := listing.RenderReport(diff, recordMap)

	if err := t.eventRepo.ApplyMerge(t.SourceName, mergeResult); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}

	run := database.Run{
		SourceName:     t.SourceName,
		RunDate:        runDate,
		Status:         database.RunStatusCompleted,
		TodayCount:     diff.TodayCount,
		YesterdayCount: diff.YesterdayCount,
		AddedCount:     len(diff.Added),
		RemovedCount:   len(diff.Removed),
		UnchangedCount: diff.UnchangedCount,
		Degraded:       diff.Degraded,
		DegradedReason: string(diff.DegradedReason),
		Report:         report,
	}
	if diff.Degraded {
		run.Status = database.RunStatusDegraded
	}
	if _, err := t.runRepo.InsertRun(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	now := time.Now()
	if err := t.sourceRepo.UpdateNextRun(t.SourceName, now, now.Add(t.SourceConfig.Settings.GetRunInterval())); err != nil {
		slog.Warn("Failed to schedule next run", "source", t.SourceName, "error", err)
	}

	if t.enqueuer != nil && t.exporter != nil {
		exportTask := NewExportRunTask(t.SourceName, t.eventRepo, t.runRepo, t.exporter)
		if err := t.enqueuer.EnqueueTask(exportTask); err != nil {
			slog.Warn("Failed to enqueue ExportRunTask", "source", t.SourceName, "error", err)
		}
	}

	slog.Info("Task completed",
		"type", "ProcessRun",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"today", diff.TodayCount,
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"unchanged", diff.UnchangedCount,
		"degraded", diff.Degraded)

	return nil
}

// collectExtractionCards gathers the cards whose captures get parsed
// this run: all newly added cards, plus still-listed events whose last
// extraction failed. Retrying failed events against a fresh capture
// updates them in place under the same identity.
func (t *ProcessRunTask) collectExtractionCards(diff listing.DiffResult, table map[string]listing.Record) []listing.Card {
	cards := make([]listing.Card, 0, len(diff.Added))
	cards = append(cards, diff.Added...)

	failedKeys, err := t.eventRepo.GetFailedActiveKeys(t.SourceName)
	if err != nil {
		slog.Warn("Failed to load retry candidates", "source", t.SourceName, "error", err)
		return cards
	}
	if len(failedKeys) == 0 {
		return cards
	}

	unchanged := make(map[string]bool, len(diff.UnchangedKeys))
	for _, key := range diff.UnchangedKeys {
		unchanged[key] = true
	}

	for _, key := range failedKeys {
		if !unchanged[key] {
			continue
		}
		rec := table[key]
		cards = append(cards, listing.Card{
			Title:     rec.Title,
			DetailURL: key,
		})
	}

	return cards
}

// extractRecords runs field extraction for all cards on a bounded worker
// pool. Extraction itself never fails; an unusable capture yields a
// record with failed confidence. The merge that follows stays serial.
func (t *ProcessRunTask) extractRecords(ctx context.Context, cards []listing.Card, runDate time.Time) []listing.Record {
	if len(cards) == 0 {
		return nil
	}

	records := make([]listing.Record, len(cards))
	sem := make(chan struct{}, t.workerCount)
	var wg sync.WaitGroup

	for i, card := range cards {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, card listing.Card) {
			defer wg.Done()
			defer func() { <-sem }()
			records[i] = t.extractRecord(card, runDate)
		}(i, card)
	}
	wg.Wait()

	return records
}

func (t *ProcessRunTask) extractRecord(card listing.Card, runDate time.Time) listing.Record {
	var text string
	if t.captureStore != nil {
		captured, found, err := t.captureStore.Get(card.DetailURL)
		if err != nil {
			slog.Warn("Failed to read capture", "source", t.SourceName, "url", card.DetailURL, "error", err)
		} else if found {
			text = captured
		}
	}

	extraction := t.extractor.Run(text, runDate)
	return listing.BuildRecord(card, extraction)
}

func (t *ProcessRunTask) recordAbortedRun(runDate time.Time) {
	run := database.Run{
		SourceName: t.SourceName,
		RunDate:    runDate,
		Status:     database.RunStatusAborted,
	}
	if _, err := t.runRepo.InsertRun(run); err != nil {
		slog.Warn("Failed to record aborted run", "source", t.SourceName, "error", err)
	}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
