package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultAlertThreshold = 40

// ListFeedbacks returns classified feedback, newest first
func (h *Handlers) ListFeedbacks(c *gin.Context) {
	page, limit, offset := pagination(c)

	feedbacks, total, err := h.Feedbacks.List(c.Request.Context(), offset, limit)
	if err != nil {
		respondStoreError(c, err, "", "Failed to retrieve feedbacks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feedbacks":  feedbacks,
		"pagination": Pagination{Page: page, Limit: limit, Total: total},
	})
}

// ListAlerts returns feedback scoring below ?threshold= (default 40)
func (h *Handlers) ListAlerts(c *gin.Context) {
	_, limit, _ := pagination(c)

	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", strconv.Itoa(defaultAlertThreshold)))
	if err != nil || threshold < 0 || threshold > 100 {
		respondError(c, http.StatusBadRequest, "invalid_threshold", "threshold must be an integer between 0 and 100")
		return
	}

	alerts, err := h.Feedbacks.Alerts(c.Request.Context(), threshold, limit)
	if err != nil {
		respondStoreError(c, err, "", "Failed to retrieve alerts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":    alerts,
		"threshold": threshold,
	})
}
