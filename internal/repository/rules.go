package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// RuleRepository manages alert rules.
type RuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a rule repository
func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// GetAllRules returns every rule
func (r *RuleRepository) GetAllRules(ctx context.Context) ([]model.AlertRule, error) {
	var rules []model.AlertRule
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	return rules, nil
}

// Get returns a rule by id
func (r *RuleRepository) Get(ctx context.Context, id uint) (*model.AlertRule, error) {
	var rule model.AlertRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

// Create stores a rule. Enabled=false is written explicitly because the
// column defaults to true.
func (r *RuleRepository) Create(ctx context.Context, rule *model.AlertRule) error {
	enabled := rule.Enabled
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rule).Error; err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}
		if !enabled {
			if err := tx.Model(rule).Update("enabled", false).Error; err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}
		}
		return nil
	})
}

// Update overwrites the editable fields of a rule
func (r *RuleRepository) Update(ctx context.Context, rule *model.AlertRule) error {
	err := r.db.WithContext(ctx).Model(rule).Select("sentiment", "keyword", "target_email", "enabled").Updates(rule).Error
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

// SetEnabled toggles a rule
func (r *RuleRepository) SetEnabled(ctx context.Context, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&model.AlertRule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to update rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes a rule
func (r *RuleRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.AlertRule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindMatchingRules returns the enabled rules for sentiment whose keyword,
// if any, occurs in content. Keyword matching is case-insensitive.
func (r *RuleRepository) FindMatchingRules(ctx context.Context, sentiment, content string) ([]model.AlertRule, error) {
	var rules []model.AlertRule
	if err := r.db.WithContext(ctx).Where("sentiment = ? AND enabled = ?", sentiment, true).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to get enabled rules: %w", err)
	}

	lower := strings.ToLower(content)
	matched := rules[:0]
	for _, rule := range rules {
		if rule.Keyword == "" || strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}
