package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"inbox-triage/internal/loader"
	"inbox-triage/internal/repository"
	"inbox-triage/internal/scheduler"
	"inbox-triage/internal/service"
)

// DefaultMaxUploadSize caps CSV uploads when no limit is configured.
const DefaultMaxUploadSize = 32 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	triage        *service.TriageService
	scheduler     *scheduler.Scheduler
	maxUploadSize int64
	metrics       http.Handler
}

// NewHandlers creates new HTTP handlers
func NewHandlers(triage *service.TriageService, sched *scheduler.Scheduler, maxUploadSize int64) *Handlers {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Handlers{
		triage:        triage,
		scheduler:     sched,
		maxUploadSize: maxUploadSize,
		metrics:       promhttp.Handler(),
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(h.metrics))

	api := router.Group("/api/v1")
	{
		api.POST("/messages/upload", h.UploadMessages)
		api.GET("/messages/untriaged", h.GetUntriaged)
		api.GET("/messages/:id", h.GetMessage)
		api.POST("/messages/:id/retriage", h.RetriageMessage)

		api.POST("/triage/run", h.RunTriage)
		api.GET("/triage/info", h.GetTriageInfo)
		api.GET("/triaged", h.GetTriaged)
		api.GET("/filters", h.GetFilters)
		api.GET("/dashboard", h.GetDashboard)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	stats, err := h.triage.Stats(c.Request.Context())
	if err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	} else {
		response.Store = stats
	}

	if h.scheduler != nil && h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// respondError maps domain errors onto ErrorResponse.
func respondError(c *gin.Context, err error, message string) {
	var schemaErr *loader.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "schema_error",
			Message: schemaErr.Error(),
			Code:    http.StatusBadRequest,
			Missing: schemaErr.Missing,
		})
	case errors.Is(err, repository.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Message not found",
			Code:    http.StatusNotFound,
		})
	case errors.Is(err, service.ErrTriageInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "triage_in_progress",
			Message: "A triage run is already in progress",
			Code:    http.StatusConflict,
		})
	default:
		logrus.Errorf("%s: %v", message, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: message,
			Code:    http.StatusInternalServerError,
		})
	}
}
