package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// FeedbackRepository is the append-only result sink.
type FeedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a feedback repository
func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Append stores a classification result and sets its ID.
func (r *FeedbackRepository) Append(ctx context.Context, fb *model.Feedback) error {
	if err := r.db.WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("%w: append feedback: %w", ErrPersistence, err)
	}
	return nil
}

// List returns results, newest first.
func (r *FeedbackRepository) List(ctx context.Context, offset, limit int) ([]model.Feedback, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Feedback{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: count feedbacks: %w", ErrPersistence, err)
	}

	var feedbacks []model.Feedback
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&feedbacks).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: list feedbacks: %w", ErrPersistence, err)
	}
	return feedbacks, total, nil
}

// Alerts returns results whose score is below threshold, newest first.
func (r *FeedbackRepository) Alerts(ctx context.Context, threshold, limit int) ([]model.Feedback, error) {
	var feedbacks []model.Feedback
	err := r.db.WithContext(ctx).
		Where("(CASE WHEN sentiment = ? THEN 100 WHEN sentiment = ? THEN 50 ELSE 0 END) < ?",
			model.SentimentPositive, model.SentimentNeutral, threshold).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&feedbacks).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list alerts: %w", ErrPersistence, err)
	}
	return feedbacks, nil
}

// CountForItem returns how many results reference a staged item.
func (r *FeedbackRepository) CountForItem(ctx context.Context, stagedItemID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Feedback{}).Where("staged_item_id = ?", stagedItemID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: count feedbacks: %w", ErrPersistence, err)
	}
	return count, nil
}
