package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/showtrack/showtrack/app/cfg"
	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/export"
	"github.com/showtrack/showtrack/app/source"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache  *source.ConfigCache
	sourceRepo   database.SourceRepository
	eventRepo    database.EventRepository
	snapshotRepo database.SnapshotRepository
	runRepo      database.RunRepository
	exporter     *export.Exporter
	cardsDir     string
	capturesDir  string
	userAgent    string
	interval     time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface
}

func NewScheduler(configCache *source.ConfigCache, sourceRepo database.SourceRepository,
	eventRepo database.EventRepository, snapshotRepo database.SnapshotRepository,
	runRepo database.RunRepository, exporter *export.Exporter) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache:  configCache,
		sourceRepo:   sourceRepo,
		eventRepo:    eventRepo,
		snapshotRepo: snapshotRepo,
		runRepo:      runRepo,
		exporter:     exporter,
		cardsDir:     cfg.CardsDir,
		capturesDir:  cfg.CapturesDir,
		userAgent:    cfg.UserAgent,
		interval:     time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:  cfg.WorkerCount,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configCache.GetConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		syncTask := NewSyncSourceConfigTask(sourceConfig.Name, sourceConfig, s.sourceRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceConfigTask", "source", sourceConfig.Name, "error", err)
			continue
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	sourceConfigs := s.configCache.GetEnabledConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Checking enabled sources for due runs", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		src, err := s.sourceRepo.GetSource(sourceConfig.Name)
		if err != nil {
			slog.Warn("Failed to get source from database, skipping", "source", sourceConfig.Name, "error", err)
			continue
		}
		if src == nil {
			slog.Warn("Source not found in database, skipping", "source", sourceConfig.Name)
			continue
		}

		now := time.Now().UTC()
		if src.NextRunAt != nil && src.NextRunAt.After(now) {
			slog.Debug("Source not due for a run yet", "source", sourceConfig.Name, "next_run_at", src.NextRunAt)
			continue
		}

		if err := s.EnqueueTask(s.newProcessRunTask(sourceConfig)); err != nil {
			slog.Warn("Failed to enqueue ProcessRunTask", "source", sourceConfig.Name, "error", err)
		}
	}
}

// TriggerRun enqueues an immediate run for one source, bypassing the
// next_run_at gate. Used by the API.
func (s *Scheduler) TriggerRun(sourceName string) error {
	sourceConfig, err := s.configCache.GetConfig(sourceName)
	if err != nil {
		return err
	}
	return s.EnqueueTask(s.newProcessRunTask(sourceConfig))
}

func (s *Scheduler) newProcessRunTask(sourceConfig *source.Config) *ProcessRunTask {
	var cardSource source.CardSource
	switch sourceConfig.Adapter {
	case source.AdapterFeed:
		cardSource = source.NewFeedCardSource(sourceConfig.URL, s.userAgent)
	default:
		cardSource = source.NewCardFileSource(s.cardsDir, sourceConfig.Name)
	}

	captureStore := source.NewCaptureStore(s.capturesDir, sourceConfig.Name)

	return NewProcessRunTask(sourceConfig.Name, sourceConfig, cardSource, captureStore,
		s.eventRepo, s.snapshotRepo, s.runRepo, s.sourceRepo, s.exporter, s, s.workerCount)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
