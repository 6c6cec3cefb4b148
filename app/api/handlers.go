package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/showtrack/showtrack/app/database"
	"github.com/showtrack/showtrack/app/listing"
	"github.com/showtrack/showtrack/app/source"
	"github.com/showtrack/showtrack/app/tasks"
)

func NewHandler(configCache *source.ConfigCache, sourceRepo database.SourceRepository,
	eventRepo database.EventRepository, historyRepo database.HistoryRepository,
	runRepo database.RunRepository, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		configCache: configCache,
		sourceRepo:  sourceRepo,
		eventRepo:   eventRepo,
		historyRepo: historyRepo,
		runRepo:     runRepo,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	stats := make([]map[string]interface{}, 0, len(configs))
	for _, sourceConfig := range configs {
		entry := map[string]interface{}{
			"source":  sourceConfig.Name,
			"region":  sourceConfig.Region,
			"enabled": sourceConfig.Settings.Enabled,
		}

		if eventStats, err := h.eventRepo.GetEventStats(sourceConfig.Name); err == nil {
			entry["events_total"] = eventStats.Total
			entry["events_active"] = eventStats.Active
			entry["events_needing_review"] = eventStats.NeedsReview
			entry["events_failed_extraction"] = eventStats.Failed
		}

		if run, err := h.runRepo.GetLatestRun(sourceConfig.Name); err == nil && run != nil {
			entry["last_run_date"] = run.RunDate.Format("2006-01-02")
			entry["last_run_status"] = run.Status
		}

		stats = append(stats, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": stats,
		"total":   len(stats),
	})
}

// GetLatestReport serves the human-readable comparison report from the
// most recent run as plain text.
func (h *Handler) GetLatestReport(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	run, err := h.runRepo.GetLatestRun(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_run", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if run == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("X-Run-Date", run.RunDate.Format("2006-01-02"))
	c.Header("X-Run-Status", run.Status)
	c.String(http.StatusOK, run.Report)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, sourceConfig := range configs {
		info := map[string]interface{}{
			"name":         sourceConfig.Name,
			"url":          sourceConfig.URL,
			"region":       sourceConfig.Region,
			"adapter":      sourceConfig.Adapter,
			"enabled":      sourceConfig.Settings.Enabled,
			"min_cards":    sourceConfig.Settings.MinCards,
			"run_interval": sourceConfig.Settings.GetRunInterval().String(),
			"filters":      len(sourceConfig.Filters),
		}

		if src, err := h.sourceRepo.GetSource(sourceConfig.Name); err == nil && src != nil {
			info["last_run_at"] = src.LastRunAt
			info["next_run_at"] = src.NextRunAt
		}

		sources = append(sources, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIListEvents(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	activeOnly := c.DefaultQuery("active", "true") != "false"
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "500"))
	if err != nil || limit < 1 {
		limit = 500
	}

	records, err := h.eventRepo.GetEvents(name, activeOnly, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_events", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	events := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		events = append(events, eventJSON(rec))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"source": name,
		"events": events,
		"total":  len(events),
	})
}

func (h *Handler) APIGetEvent(c *gin.Context) {
	eventID := c.Param("id")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing event ID parameter"})
		return
	}

	rec, err := h.eventRepo.GetEventByID(eventID)
	if err != nil {
		slog.Error("Database error", "operation", "get_event", "event_id", eventID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	response := eventJSON(*rec)

	if entries, err := h.historyRepo.GetHistoryByEvent(eventID, 100); err == nil {
		history := make([]map[string]interface{}, 0, len(entries))
		for _, entry := range entries {
			item := map[string]interface{}{
				"run_date": entry.RunDate.Format("2006-01-02"),
				"kind":     string(entry.Kind),
			}
			if len(entry.Fields) > 0 {
				item["fields"] = entry.Fields
			}
			history = append(history, item)
		}
		response["history"] = history
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIGetLatestRun(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	run, err := h.runRepo.GetLatestRun(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_run", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No runs recorded for source"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"source":          run.SourceName,
		"run_date":        run.RunDate.Format("2006-01-02"),
		"status":          run.Status,
		"today_count":     run.TodayCount,
		"yesterday_count": run.YesterdayCount,
		"added_count":     run.AddedCount,
		"removed_count":   run.RemovedCount,
		"unchanged_count": run.UnchangedCount,
		"degraded":        run.Degraded,
		"degraded_reason": run.DegradedReason,
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	if err := h.scheduler.TriggerRun(name); err != nil {
		slog.Error("Failed to trigger run", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to trigger run", "message": err.Error()})
		return
	}

	slog.Info("Run triggered via API", "source", name)
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Run enqueued",
		"source":  name,
	})
}

func eventJSON(rec listing.Record) map[string]interface{} {
	event := map[string]interface{}{
		"event_id":   rec.EventID,
		"source_url": rec.SourceURL,
		"title":      rec.Title,
		"confidence": string(rec.Confidence),
		"active":     rec.Active,
		"first_seen": rec.FirstSeen.UTC().Format(time.RFC3339),
		"last_seen":  rec.LastSeen.UTC().Format(time.RFC3339),
	}

	optional := map[string]string{
		"venue":        rec.Venue,
		"event_date":   rec.EventDate,
		"event_time":   rec.EventTime,
		"language":     rec.Language,
		"price_range":  rec.PriceRange,
		"status_badge": rec.StatusBadge,
		"duration":     rec.Duration,
		"age_limit":    rec.AgeLimit,
	}
	for key, value := range optional {
		if value != "" {
			event[key] = value
		}
	}

	if rec.NeedsReview {
		event["needs_review"] = true
		event["review_reason"] = rec.ReviewReason
	}

	return event
}
