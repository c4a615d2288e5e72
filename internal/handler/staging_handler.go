package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/YOROBIZ/sentimentiq/internal/model"
	"github.com/YOROBIZ/sentimentiq/internal/parser"
	"github.com/YOROBIZ/sentimentiq/internal/repository"
)

// ManualSource tags feedback submitted through the API.
const ManualSource = "manual"

// GetStagingStatus returns per-status counts and the latest sync/analysis times
func (h *Handlers) GetStagingStatus(c *gin.Context) {
	report, err := h.Reporter.Report(c.Request.Context())
	if err != nil {
		respondStoreError(c, err, "", "Failed to build status report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListItems returns staged items, optionally filtered by ?status=
func (h *Handlers) ListItems(c *gin.Context) {
	page, limit, offset := pagination(c)

	status := model.ItemStatus(strings.ToUpper(c.Query("status")))
	if status != "" && !status.Valid() {
		respondError(c, http.StatusBadRequest, "invalid_status", "Unknown status "+string(status))
		return
	}

	items, total, err := h.Staging.List(c.Request.Context(), status, offset, limit)
	if err != nil {
		respondStoreError(c, err, "", "Failed to retrieve items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"pagination": Pagination{Page: page, Limit: limit, Total: total},
	})
}

// GetItem returns a staged item with its attempt history
func (h *Handlers) GetItem(c *gin.Context) {
	id, ok := parseID(c, "item")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	item, err := h.Staging.Get(ctx, id)
	if err != nil {
		respondStoreError(c, err, "Item not found", "Failed to retrieve item")
		return
	}

	logs, err := h.Logs.ListForItem(ctx, id)
	if err != nil {
		respondStoreError(c, err, "", "Failed to retrieve item history")
		return
	}

	history := make([]ProcessingLogResponse, len(logs))
	for i := range logs {
		history[i] = newProcessingLogResponse(&logs[i])
	}

	c.JSON(http.StatusOK, ItemResponse{StagedItem: *item, History: history})
}

// RequeueItem puts a FAILED or DEAD item back to PENDING
func (h *Handlers) RequeueItem(c *gin.Context) {
	id, ok := parseID(c, "item")
	if !ok {
		return
	}

	err := h.Staging.Requeue(c.Request.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotRequeueable):
		respondError(c, http.StatusConflict, "not_requeueable", "Only FAILED or DEAD items can be requeued")
		return
	case err != nil:
		respondStoreError(c, err, "Item not found", "Failed to requeue item")
		return
	}

	logrus.WithField("item_id", id).Info("Item requeued")
	c.Status(http.StatusNoContent)
}

// SubmitFeedback stages a manually entered piece of feedback. The item is
// classified by the worker like any other.
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	content := parser.Sanitize(req.Content)
	if err := parser.ValidateContent(content); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid_content", err.Error())
		return
	}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		name = "Anonymous"
	}

	item, err := h.Staging.Ingest(c.Request.Context(), ManualSource, "manual_"+uuid.NewString(), repository.Payload{
		CustomerName: name,
		Content:      content,
	})
	if err != nil {
		respondStoreError(c, err, "", "Failed to stage feedback")
		return
	}

	logrus.WithFields(logrus.Fields{
		"item_id":     item.ID,
		"external_id": item.ExternalID,
	}).Info("Manual feedback staged")

	c.JSON(http.StatusAccepted, item)
}
