package api

import (
	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/source"
	"github.com/showtrack/showtrack/app/tasks"
)

type Handler struct {
	configCache *source.ConfigCache
	sourceRepo  database.SourceRepository
	eventRepo   database.EventRepository
	historyRepo database.HistoryRepository
	runRepo     database.RunRepository
	scheduler   tasks.TaskSchedulerInterface
}
