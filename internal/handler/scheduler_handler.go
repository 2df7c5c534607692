package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) schedulerConfigured(c *gin.Context) bool {
	if h.scheduler != nil {
		return true
	}
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "scheduler_disabled",
		Message: "Periodic triage sweep is not configured",
		Code:    http.StatusNotFound,
	})
	return false
}

// StartScheduler starts the periodic triage sweep
func (h *Handlers) StartScheduler(c *gin.Context) {
	if !h.schedulerConfigured(c) {
		return
	}
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to start scheduler: " + err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler started successfully",
		"status":  "running",
	})
}

// StopScheduler stops the periodic triage sweep
func (h *Handlers) StopScheduler(c *gin.Context) {
	if !h.schedulerConfigured(c) {
		return
	}
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to stop scheduler",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler stopped successfully",
		"status":  "stopped",
	})
}

// RunOnce runs one sweep immediately
func (h *Handlers) RunOnce(c *gin.Context) {
	if !h.schedulerConfigured(c) {
		return
	}
	rep, err := h.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to run triage sweep")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Triage sweep completed successfully",
		"report":  rep,
	})
}

// GetSchedulerStatus returns the current scheduler status
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	if !h.schedulerConfigured(c) {
		return
	}
	st := h.scheduler.Status()
	status := "stopped"
	if st.Running {
		status = "running"
	}

	c.JSON(http.StatusOK, SchedulerStatusResponse{State: status, Status: st})
}
