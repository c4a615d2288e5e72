package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// SourceRepository tracks connector sync state.
type SourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a source repository
func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// RecordSync marks a successful sync of provider that saw count items.
func (r *SourceRepository) RecordSync(ctx context.Context, provider string, at time.Time, count int) error {
	src := model.ConnectedSource{
		Provider:   provider,
		State:      model.SourceStateConnected,
		LastSyncAt: &at,
		ItemsSeen:  int64(count),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"state":        model.SourceStateConnected,
			"last_sync_at": at,
			"last_error":   "",
			"items_seen":   gorm.Expr("items_seen + ?", count),
			"updated_at":   at,
		}),
	}).Create(&src).Error
	if err != nil {
		return fmt.Errorf("%w: record sync %s: %w", ErrPersistence, provider, err)
	}
	return nil
}

// RecordError marks a failed sync of provider.
func (r *SourceRepository) RecordError(ctx context.Context, provider string, at time.Time, syncErr error) error {
	src := model.ConnectedSource{
		Provider:  provider,
		State:     model.SourceStateError,
		LastError: syncErr.Error(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"state":      model.SourceStateError,
			"last_error": syncErr.Error(),
			"updated_at": at,
		}),
	}).Create(&src).Error
	if err != nil {
		return fmt.Errorf("%w: record sync error %s: %w", ErrPersistence, provider, err)
	}
	return nil
}

// List returns every known source.
func (r *SourceRepository) List(ctx context.Context) ([]model.ConnectedSource, error) {
	var sources []model.ConnectedSource
	if err := r.db.WithContext(ctx).Order("provider ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("%w: list sources: %w", ErrPersistence, err)
	}
	return sources, nil
}

// LatestSync returns the most recent successful sync time across sources.
func (r *SourceRepository) LatestSync(ctx context.Context) (*time.Time, error) {
	var src model.ConnectedSource
	err := r.db.WithContext(ctx).Where("last_sync_at IS NOT NULL").Order("last_sync_at DESC").First(&src).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: latest sync: %w", ErrPersistence, err)
	}
	return src.LastSyncAt, nil
}
