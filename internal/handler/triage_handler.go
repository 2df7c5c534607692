package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"inbox-triage/internal/model"
	"inbox-triage/internal/report"
	"inbox-triage/internal/repository"
	"inbox-triage/internal/triage"
)

const dateLayout = "2006-01-02"

// RunTriage classifies every pending message.
func (h *Handlers) RunTriage(c *gin.Context) {
	rep, err := h.triage.TriagePending(c.Request.Context(), nil)
	if err != nil {
		respondError(c, err, "Failed to run triage")
		return
	}

	c.JSON(http.StatusOK, rep)
}

// GetTriaged lists triage results matching the query filters.
func (h *Handlers) GetTriaged(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}

	msgs, err := h.triage.ListTriaged(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "Failed to list triaged messages")
		return
	}

	c.JSON(http.StatusOK, TriagedListResponse{Count: len(msgs), Messages: msgs})
}

// GetFilters returns the distinct categories and urgency levels.
func (h *Handlers) GetFilters(c *gin.Context) {
	opts, err := h.triage.Filters(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load filter options")
		return
	}

	c.JSON(http.StatusOK, opts)
}

// GetDashboard returns the filtered results with aggregations.
func (h *Handlers) GetDashboard(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}

	dash, err := h.triage.Dashboard(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "Failed to build dashboard")
		return
	}

	c.JSON(http.StatusOK, dash)
}

// GetTriageInfo describes the classification scheme.
func (h *Handlers) GetTriageInfo(c *gin.Context) {
	resp := InfoResponse{
		Description: triage.Description(),
		Categories:  model.Categories(),
	}
	for _, level := range model.UrgencyLevels() {
		resp.Urgency = append(resp.Urgency, UrgencyLegendEntry{
			Level: level,
			Name:  report.UrgencyName(level),
			Color: report.AlertColor(level),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// parseFilter reads start, end, category and urgency query parameters.
// start is the beginning of its day and end the last instant of its day.
func parseFilter(c *gin.Context) (repository.TriageFilter, bool) {
	var f repository.TriageFilter

	if s := c.Query("start"); s != "" {
		day, err := time.Parse(dateLayout, s)
		if err != nil {
			badFilter(c, "start must be formatted as YYYY-MM-DD")
			return f, false
		}
		f.StartDate = &day
	}

	if s := c.Query("end"); s != "" {
		day, err := time.Parse(dateLayout, s)
		if err != nil {
			badFilter(c, "end must be formatted as YYYY-MM-DD")
			return f, false
		}
		end := day.Add(24*time.Hour - time.Microsecond)
		f.EndDate = &end
	}

	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		badFilter(c, "end must not be before start")
		return f, false
	}

	if s := c.Query("category"); s != "" && s != "All" {
		cat, ok := model.ParseCategory(s)
		if !ok {
			badFilter(c, "unknown category "+strconv.Quote(s))
			return f, false
		}
		f.Category = string(cat)
	}

	if s := c.Query("urgency"); s != "" && s != "All" {
		level, err := strconv.Atoi(s)
		if err != nil || !model.ValidUrgency(level) {
			badFilter(c, "urgency must be an integer between 1 and 5")
			return f, false
		}
		f.UrgencyLevel = &level
	}

	return f, true
}

func badFilter(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_filter",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
