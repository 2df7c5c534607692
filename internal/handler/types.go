package handler

import (
	"time"

	"inbox-triage/internal/model"
	"inbox-triage/internal/scheduler"
	"inbox-triage/internal/service"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Store     *service.Stats    `json:"store,omitempty"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Code    int      `json:"code"`
	Missing []string `json:"missing,omitempty"`
}

// MessageListResponse wraps a list of raw messages.
type MessageListResponse struct {
	Count    int             `json:"count"`
	Messages []model.Message `json:"messages"`
}

// TriagedListResponse wraps a list of triage results.
type TriagedListResponse struct {
	Count    int                    `json:"count"`
	Messages []model.TriagedMessage `json:"messages"`
}

// UrgencyLegendEntry describes one urgency level for display.
type UrgencyLegendEntry struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// InfoResponse is the static information view.
type InfoResponse struct {
	Description string               `json:"description"`
	Categories  []model.Category     `json:"categories"`
	Urgency     []UrgencyLegendEntry `json:"urgency"`
}

// SchedulerStatusResponse reports the periodic sweep.
type SchedulerStatusResponse struct {
	State string `json:"status"`
	scheduler.Status
}
