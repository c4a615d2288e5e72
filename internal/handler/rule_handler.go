package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// GetRules returns all alert rules
func (h *Handlers) GetRules(c *gin.Context) {
	rules, err := h.Rules.GetAllRules(c.Request.Context())
	if err != nil {
		respondStoreError(c, err, "", "Failed to retrieve rules")
		return
	}

	responses := make([]AlertRuleResponse, len(rules))
	for i := range rules {
		responses[i] = newAlertRuleResponse(&rules[i])
	}

	c.JSON(http.StatusOK, responses)
}

// GetRule returns a specific alert rule
func (h *Handlers) GetRule(c *gin.Context) {
	id, ok := parseID(c, "rule")
	if !ok {
		return
	}

	rule, err := h.Rules.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err, "Rule not found", "Failed to retrieve rule")
		return
	}

	c.JSON(http.StatusOK, newAlertRuleResponse(rule))
}

// CreateRule creates a new alert rule
func (h *Handlers) CreateRule(c *gin.Context) {
	var req AlertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rule := model.AlertRule{Enabled: true}
	applyRuleRequest(&rule, &req)

	if err := h.Rules.Create(c.Request.Context(), &rule); err != nil {
		respondStoreError(c, err, "", "Failed to create rule")
		return
	}

	logrus.WithFields(logrus.Fields{
		"rule_id":   rule.ID,
		"sentiment": rule.Sentiment,
		"keyword":   rule.Keyword,
	}).Info("Alert rule created")

	c.JSON(http.StatusCreated, newAlertRuleResponse(&rule))
}

// UpdateRule updates an existing alert rule
func (h *Handlers) UpdateRule(c *gin.Context) {
	id, ok := parseID(c, "rule")
	if !ok {
		return
	}

	var req AlertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := c.Request.Context()
	rule, err := h.Rules.Get(ctx, id)
	if err != nil {
		respondStoreError(c, err, "Rule not found", "Failed to retrieve rule")
		return
	}

	applyRuleRequest(rule, &req)
	if err := h.Rules.Update(ctx, rule); err != nil {
		respondStoreError(c, err, "", "Failed to update rule")
		return
	}

	logrus.WithField("rule_id", rule.ID).Info("Alert rule updated")
	c.JSON(http.StatusOK, newAlertRuleResponse(rule))
}

// DeleteRule deletes an alert rule
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, ok := parseID(c, "rule")
	if !ok {
		return
	}

	if err := h.Rules.Delete(c.Request.Context(), id); err != nil {
		respondStoreError(c, err, "Rule not found", "Failed to delete rule")
		return
	}

	logrus.WithField("rule_id", id).Info("Alert rule deleted")
	c.Status(http.StatusNoContent)
}

// EnableRule enables an alert rule
func (h *Handlers) EnableRule(c *gin.Context) {
	h.setRuleEnabled(c, true)
}

// DisableRule disables an alert rule
func (h *Handlers) DisableRule(c *gin.Context) {
	h.setRuleEnabled(c, false)
}

func (h *Handlers) setRuleEnabled(c *gin.Context, enabled bool) {
	id, ok := parseID(c, "rule")
	if !ok {
		return
	}

	if err := h.Rules.SetEnabled(c.Request.Context(), id, enabled); err != nil {
		respondStoreError(c, err, "Rule not found", "Failed to update rule")
		return
	}

	logrus.WithFields(logrus.Fields{"rule_id": id, "enabled": enabled}).Info("Alert rule toggled")
	c.Status(http.StatusNoContent)
}

func applyRuleRequest(rule *model.AlertRule, req *AlertRuleRequest) {
	rule.Sentiment = req.Sentiment
	rule.Keyword = strings.TrimSpace(req.Keyword)
	rule.TargetEmail = strings.TrimSpace(req.TargetEmail)
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
}
