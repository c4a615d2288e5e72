package worker

import (
	"context"
	"time"

	"github.com/YOROBIZ/sentimentiq/internal/model"
	"github.com/YOROBIZ/sentimentiq/internal/repository"
)

// StagingStore is the staging store and lease manager driven by the worker.
type StagingStore interface {
	FetchEligible(ctx context.Context, now time.Time, limit int) ([]model.StagedItem, error)
	Acquire(ctx context.Context, id uint, owner string, now time.Time) (bool, error)
	Get(ctx context.Context, id uint) (*model.StagedItem, error)
	MarkProcessed(ctx context.Context, id uint, owner string, analyzedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, owner, lastError string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id uint, owner, lastError string) error
}

// ResultSink receives successfully classified items.
type ResultSink interface {
	Append(ctx context.Context, fb *model.Feedback) error
}

// AttemptLogger records the outcome of every attempt.
type AttemptLogger interface {
	LogAttempt(ctx context.Context, entry *model.ProcessingLog) error
}

// Notifier is told about every stored result.
type Notifier interface {
	Notify(ctx context.Context, item *model.StagedItem, fb *model.Feedback) error
}

// Reporter provides the aggregate used for the staged items gauge.
type Reporter interface {
	Report(ctx context.Context) (*repository.StatusReport, error)
}

var (
	_ StagingStore  = (*repository.StagingRepository)(nil)
	_ ResultSink    = (*repository.FeedbackRepository)(nil)
	_ AttemptLogger = (*repository.LogRepository)(nil)
	_ Reporter      = (*repository.StatusReporter)(nil)
)
