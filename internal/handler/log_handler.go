package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetLogs returns paginated processing logs
func (h *Handlers) GetLogs(c *gin.Context) {
	page, limit, offset := pagination(c)

	logs, total, err := h.Logs.List(c.Request.Context(), offset, limit)
	if err != nil {
		respondStoreError(c, err, "", "Failed to retrieve logs")
		return
	}

	responses := make([]ProcessingLogResponse, len(logs))
	for i := range logs {
		responses[i] = newProcessingLogResponse(&logs[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":       responses,
		"pagination": Pagination{Page: page, Limit: limit, Total: total},
	})
}

// GetLog returns a single processing log with its item
func (h *Handlers) GetLog(c *gin.Context) {
	id, ok := parseID(c, "log")
	if !ok {
		return
	}

	log, err := h.Logs.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err, "Log not found", "Failed to retrieve log")
		return
	}

	c.JSON(http.StatusOK, newProcessingLogResponse(log))
}
