package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// LogRepository stores the per-attempt audit trail.
type LogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a log repository
func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// LogAttempt records the outcome of one processing attempt
func (r *LogRepository) LogAttempt(ctx context.Context, entry *model.ProcessingLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log attempt: %w", err)
	}
	return nil
}

// List returns logs with pagination, newest first
func (r *LogRepository) List(ctx context.Context, offset, limit int) ([]model.ProcessingLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.ProcessingLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	var logs []model.ProcessingLog
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return logs, total, nil
}

// ListForItem returns the attempts of one staged item in order
func (r *LogRepository) ListForItem(ctx context.Context, stagedItemID uint) ([]model.ProcessingLog, error) {
	var logs []model.ProcessingLog
	if err := r.db.WithContext(ctx).Where("staged_item_id = ?", stagedItemID).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return logs, nil
}

// Get returns a log with its staged item
func (r *LogRepository) Get(ctx context.Context, id uint) (*model.ProcessingLog, error) {
	var log model.ProcessingLog
	if err := r.db.WithContext(ctx).Preload("StagedItem").First(&log, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch log: %w", err)
	}
	return &log, nil
}
