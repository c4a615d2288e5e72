package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YOROBIZ/sentimentiq/internal/clock"
	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// Payload is the provider content of an ingested item.
type Payload struct {
	CustomerName string
	Content      string
	Permalink    string
	Raw          []byte
}

// StagingRepository is the durable staging store and lease manager.
type StagingRepository struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewStagingRepository creates a staging repository using the system clock.
func NewStagingRepository(db *gorm.DB) *StagingRepository {
	return &StagingRepository{db: db, clock: clock.System{}}
}

// WithClock replaces the clock used for ingestion timestamps.
func (r *StagingRepository) WithClock(c clock.Clock) *StagingRepository {
	r.clock = c
	return r
}

// Ingest stages an item. Re-ingesting an existing external id only refreshes
// ingested_at; payload, status and attempts are left untouched.
func (r *StagingRepository) Ingest(ctx context.Context, source, externalID string, p Payload) (*model.StagedItem, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external id is required")
	}

	now := r.clock.Now()
	item := model.StagedItem{
		Source:       source,
		ExternalID:   externalID,
		CustomerName: p.CustomerName,
		Content:      p.Content,
		Permalink:    p.Permalink,
		Status:       model.StatusPending,
		IngestedAt:   now,
		RawPayload:   datatypes.JSON(p.Raw),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"ingested_at": now}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("%w: ingest %s: %w", ErrPersistence, externalID, err)
	}

	var stored model.StagedItem
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("%w: reload %s: %w", ErrPersistence, externalID, err)
	}
	return &stored, nil
}

// FetchEligible returns up to limit items that are PENDING, or FAILED with an
// elapsed retry time. No ordering is guaranteed.
func (r *StagingRepository) FetchEligible(ctx context.Context, now time.Time, limit int) ([]model.StagedItem, error) {
	var items []model.StagedItem
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at <= ?)", model.StatusPending, model.StatusFailed, now).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("%w: fetch eligible: %w", ErrPersistence, err)
	}
	return items, nil
}

// Acquire leases the item to owner with a single conditional update and
// increments attempts. The item must still be eligible at now: PENDING, or
// FAILED with next_retry_at reached. It reports false otherwise; that is
// contention, not an error.
func (r *StagingRepository) Acquire(ctx context.Context, id uint, owner string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.StagedItem{}).
		Where("id = ? AND (status = ? OR (status = ? AND next_retry_at <= ?))", id, model.StatusPending, model.StatusFailed, now).
		Updates(map[string]interface{}{
			"status":        model.StatusProcessing,
			"lease_owner":   owner,
			"attempts":      gorm.Expr("attempts + 1"),
			"last_error":    nil,
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return false, fmt.Errorf("%w: acquire %d: %w", ErrPersistence, id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkProcessed moves a leased item to PROCESSED.
func (r *StagingRepository) MarkProcessed(ctx context.Context, id uint, owner string, analyzedAt time.Time) error {
	return r.finish(ctx, id, owner, map[string]interface{}{
		"status":        model.StatusProcessed,
		"lease_owner":   nil,
		"analyzed_at":   analyzedAt,
		"last_error":    nil,
		"next_retry_at": nil,
	})
}

// MarkFailed moves a leased item to FAILED, eligible again at nextRetryAt.
func (r *StagingRepository) MarkFailed(ctx context.Context, id uint, owner, lastError string, nextRetryAt time.Time) error {
	return r.finish(ctx, id, owner, map[string]interface{}{
		"status":        model.StatusFailed,
		"lease_owner":   nil,
		"last_error":    lastError,
		"next_retry_at": nextRetryAt,
	})
}

// MarkDead moves a leased item to the DEAD terminal state.
func (r *StagingRepository) MarkDead(ctx context.Context, id uint, owner, lastError string) error {
	return r.finish(ctx, id, owner, map[string]interface{}{
		"status":        model.StatusDead,
		"lease_owner":   nil,
		"last_error":    lastError,
		"next_retry_at": nil,
	})
}

func (r *StagingRepository) finish(ctx context.Context, id uint, owner string, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&model.StagedItem{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, model.StatusProcessing, owner).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("%w: update %d to %v: %w", ErrPersistence, id, values["status"], result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Requeue puts a FAILED or DEAD item back to PENDING. Attempts are kept.
func (r *StagingRepository) Requeue(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&model.StagedItem{}).
		Where("id = ? AND status IN ?", id, []model.ItemStatus{model.StatusFailed, model.StatusDead}).
		Updates(map[string]interface{}{
			"status":        model.StatusPending,
			"last_error":    nil,
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("%w: requeue %d: %w", ErrPersistence, id, result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotRequeueable
}

// Get returns a staged item by id.
func (r *StagingRepository) Get(ctx context.Context, id uint) (*model.StagedItem, error) {
	var item model.StagedItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %d: %w", ErrPersistence, id, err)
	}
	return &item, nil
}

// GetByExternalID returns a staged item by its provider key.
func (r *StagingRepository) GetByExternalID(ctx context.Context, externalID string) (*model.StagedItem, error) {
	var item model.StagedItem
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %w", ErrPersistence, externalID, err)
	}
	return &item, nil
}

// List returns staged items, newest first, optionally filtered by status.
func (r *StagingRepository) List(ctx context.Context, status model.ItemStatus, offset, limit int) ([]model.StagedItem, int64, error) {
	byStatus := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.StagedItem{}).Scopes(byStatus).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: count items: %w", ErrPersistence, err)
	}

	var items []model.StagedItem
	if err := r.db.WithContext(ctx).Scopes(byStatus).Order("id DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: list items: %w", ErrPersistence, err)
	}
	return items, total, nil
}
