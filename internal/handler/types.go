package handler

import (
	"time"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// AlertRuleRequest represents the request structure for creating/updating alert rules
type AlertRuleRequest struct {
	Sentiment   string `json:"sentiment" binding:"required,oneof=POSITIVE NEUTRAL NEGATIVE"`
	Keyword     string `json:"keyword"`
	TargetEmail string `json:"target_email" binding:"required,email"`
	Enabled     *bool  `json:"enabled"`
}

// AlertRuleResponse represents the response structure for alert rules
type AlertRuleResponse struct {
	ID          uint      `json:"id"`
	Sentiment   string    `json:"sentiment"`
	Keyword     string    `json:"keyword"`
	TargetEmail string    `json:"target_email"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newAlertRuleResponse(rule *model.AlertRule) AlertRuleResponse {
	return AlertRuleResponse{
		ID:          rule.ID,
		Sentiment:   rule.Sentiment,
		Keyword:     rule.Keyword,
		TargetEmail: rule.TargetEmail,
		Enabled:     rule.Enabled,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

// ProcessingLogResponse represents the response structure for processing logs
type ProcessingLogResponse struct {
	ID           uint              `json:"id"`
	StagedItemID uint              `json:"staged_item_id"`
	ExternalID   string            `json:"external_id"`
	WorkerID     string            `json:"worker_id"`
	Attempt      int               `json:"attempt"`
	Status       string            `json:"status"`
	ErrorMsg     string            `json:"error_msg"`
	CreatedAt    time.Time         `json:"created_at"`
	Item         *model.StagedItem `json:"item,omitempty"`
}

func newProcessingLogResponse(log *model.ProcessingLog) ProcessingLogResponse {
	return ProcessingLogResponse{
		ID:           log.ID,
		StagedItemID: log.StagedItemID,
		ExternalID:   log.ExternalID,
		WorkerID:     log.WorkerID,
		Attempt:      log.Attempt,
		Status:       log.Status,
		ErrorMsg:     log.ErrorMsg,
		CreatedAt:    log.CreatedAt,
		Item:         log.StagedItem,
	}
}

// FeedbackRequest is a manually submitted piece of feedback
type FeedbackRequest struct {
	CustomerName string `json:"customer_name"`
	Content      string `json:"content" binding:"required"`
}

// ItemResponse is a staged item with its attempt history
type ItemResponse struct {
	model.StagedItem
	History []ProcessingLogResponse `json:"history"`
}

// Pagination describes a page of a listing
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Worker    string    `json:"worker"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
