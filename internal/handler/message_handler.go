package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadMessages ingests a CSV batch sent as multipart field "file".
func (h *Handlers) UploadMessages(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Multipart field \"file\" is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, err, "Failed to open uploaded file")
		return
	}
	defer f.Close()

	report, err := h.triage.Ingest(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "Failed to ingest messages")
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetUntriaged lists stored messages without a triage result.
func (h *Handlers) GetUntriaged(c *gin.Context) {
	msgs, err := h.triage.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list untriaged messages")
		return
	}

	c.JSON(http.StatusOK, MessageListResponse{Count: len(msgs), Messages: msgs})
}

// GetMessage returns one stored message.
func (h *Handlers) GetMessage(c *gin.Context) {
	m, err := h.triage.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch message")
		return
	}

	c.JSON(http.StatusOK, m)
}

// RetriageMessage classifies a stored message again.
func (h *Handlers) RetriageMessage(c *gin.Context) {
	t, err := h.triage.Retriage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to re-triage message")
		return
	}

	c.JSON(http.StatusOK, t)
}
