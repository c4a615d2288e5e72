package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// StatusCount is the aggregate of one status.
type StatusCount struct {
	Status      model.ItemStatus `json:"status"`
	Count       int64            `json:"count"`
	AvgAttempts float64          `json:"avg_attempts"`
}

// StatusReport is the read-only view over the staging store.
type StatusReport struct {
	Statuses       []StatusCount `json:"stats"`
	Total          int64         `json:"total"`
	LastSyncAt     *time.Time    `json:"last_sync_at"`
	LastAnalyzedAt *time.Time    `json:"last_analyzed_at"`
}

// Count returns the count for status, zero when absent.
func (s *StatusReport) Count(status model.ItemStatus) int64 {
	for _, c := range s.Statuses {
		if c.Status == status {
			return c.Count
		}
	}
	return 0
}

// StatusReporter aggregates staged items and source sync times.
type StatusReporter struct {
	db      *gorm.DB
	sources *SourceRepository
}

// NewStatusReporter creates a status reporter
func NewStatusReporter(db *gorm.DB) *StatusReporter {
	return &StatusReporter{db: db, sources: NewSourceRepository(db)}
}

// Report counts items per status with their average attempts. Every known
// status is present, zero counts included.
func (r *StatusReporter) Report(ctx context.Context) (*StatusReport, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&model.StagedItem{}).
		Select("status, COUNT(*) AS count, AVG(attempts) AS avg_attempts").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate status: %w", ErrPersistence, err)
	}

	byStatus := make(map[model.ItemStatus]StatusCount, len(rows))
	for _, row := range rows {
		byStatus[row.Status] = row
	}

	report := &StatusReport{}
	for _, status := range model.AllStatuses {
		row, ok := byStatus[status]
		if !ok {
			row = StatusCount{Status: status}
		}
		report.Statuses = append(report.Statuses, row)
		report.Total += row.Count
	}

	if report.LastSyncAt, err = r.sources.LatestSync(ctx); err != nil {
		return nil, err
	}

	var last model.StagedItem
	err = r.db.WithContext(ctx).Where("analyzed_at IS NOT NULL").Order("analyzed_at DESC").First(&last).Error
	switch {
	case err == nil:
		report.LastAnalyzedAt = last.AnalyzedAt
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("%w: last analyzed: %w", ErrPersistence, err)
	}

	return report, nil
}
