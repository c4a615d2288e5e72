package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/YOROBIZ/sentimentiq/internal/classifier"
	"github.com/YOROBIZ/sentimentiq/internal/clock"
	"github.com/YOROBIZ/sentimentiq/internal/config"
	"github.com/YOROBIZ/sentimentiq/internal/database"
	"github.com/YOROBIZ/sentimentiq/internal/metrics"
	"github.com/YOROBIZ/sentimentiq/internal/model"
	"github.com/YOROBIZ/sentimentiq/internal/repository"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	db        *gorm.DB
	clock     *clock.Manual
	staging   *repository.StagingRepository
	feedbacks *repository.FeedbackRepository
	logs      *repository.LogRepository
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "worker.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	clk := clock.NewManual(baseTime)
	return &harness{
		db:        db,
		clock:     clk,
		staging:   repository.NewStagingRepository(db).WithClock(clk),
		feedbacks: repository.NewFeedbackRepository(db),
		logs:      repository.NewLogRepository(db),
		metrics:   metrics.NewMetricsWith(prometheus.NewRegistry()),
	}
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		ID:           "worker-test",
		PollInterval: time.Hour,
		BatchSize:    5,
		RetryBase:    30 * time.Second,
		RetryCap:     time.Hour,
		RetryJitter:  0.1,
	}
}

func (h *harness) worker(cfg config.WorkerConfig, c classifier.Classifier, opts ...Option) *Worker {
	opts = append([]Option{
		WithClock(h.clock),
		WithAttemptLogger(h.logs),
		WithMetrics(h.metrics),
		WithReporter(repository.NewStatusReporter(h.db)),
	}, opts...)
	return New(cfg, h.staging, h.feedbacks, c, opts...)
}

func (h *harness) ingest(t *testing.T, externalID, content string) *model.StagedItem {
	t.Helper()
	item, err := h.staging.Ingest(context.Background(), "instagram", externalID, repository.Payload{
		CustomerName: "Sophie",
		Content:      content,
	})
	require.NoError(t, err)
	return item
}

func (h *harness) reload(t *testing.T, id uint) *model.StagedItem {
	t.Helper()
	item, err := h.staging.Get(context.Background(), id)
	require.NoError(t, err)
	return item
}

func positive(context.Context, string) (classifier.Result, error) {
	return classifier.Result{Sentiment: model.SentimentPositive, Confidence: 0.9, KeyPhrases: []string{"service", "excellent"}}, nil
}

func timeout(context.Context, string) (classifier.Result, error) {
	return classifier.Result{}, classifier.Errorf("timeout")
}

func TestHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.ingest(t, "abc1", "Service excellent")
	require.Equal(t, model.StatusPending, item.Status)

	w := h.worker(testWorkerConfig(), classifier.Func(positive))
	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Processed)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusProcessed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Nil(t, stored.LeaseOwner)
	require.NotNil(t, stored.AnalyzedAt)
	assert.True(t, baseTime.Equal(*stored.AnalyzedAt))

	results, total, err := h.feedbacks.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	fb := results[0]
	require.NotNil(t, fb.StagedItemID)
	assert.Equal(t, item.ID, *fb.StagedItemID)
	assert.Equal(t, "Sophie", fb.CustomerName)
	assert.Equal(t, "Service excellent", fb.Content)
	assert.Equal(t, model.SentimentPositive, fb.Sentiment)
	assert.InDelta(t, 0.9, fb.Confidence, 1e-9)
	assert.Equal(t, []string{"service", "excellent"}, fb.KeyPhrases)

	history, err := h.logs.ListForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.LogStatusSuccess, history[0].Status)
	assert.Equal(t, "worker-test", history[0].WorkerID)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ItemsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StagedItems.WithLabelValues(string(model.StatusProcessed))))
}

func TestTransientFailureSchedulesRetry(t *testing.T) {
	h := newHarness(t)
	item := h.ingest(t, "abc1", "Service excellent")

	w := h.worker(testWorkerConfig(), classifier.Func(timeout))
	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "timeout", *stored.LastError)
	require.NotNil(t, stored.NextRetryAt)
	assert.False(t, stored.NextRetryAt.Before(baseTime.Add(54*time.Second)), "next retry %s too early", stored.NextRetryAt)
	assert.False(t, stored.NextRetryAt.After(baseTime.Add(66*time.Second)), "next retry %s too late", stored.NextRetryAt)

	count, err := h.feedbacks.CountForItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ItemsFailed))
}

func TestEventualSuccessAfterRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.ingest(t, "abc1", "Service excellent")

	var calls int
	flaky := classifier.Func(func(ctx context.Context, content string) (classifier.Result, error) {
		calls++
		if calls == 1 {
			return timeout(ctx, content)
		}
		return positive(ctx, content)
	})
	w := h.worker(testWorkerConfig(), flaky)

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, h.reload(t, item.ID).Status)

	// not yet eligible
	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Fetched)

	h.clock.Advance(2 * time.Minute)
	report, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusProcessed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
	assert.Nil(t, stored.LastError)
	assert.Nil(t, stored.NextRetryAt)

	history, err := h.logs.ListForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.LogStatusFailure, history[0].Status)
	assert.Equal(t, 1, history[0].Attempt)
	assert.Equal(t, model.LogStatusSuccess, history[1].Status)
	assert.Equal(t, 2, history[1].Attempt)
}

func TestReingestAfterProcessingIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.ingest(t, "abc1", "Service excellent")

	w := h.worker(testWorkerConfig(), classifier.Func(positive))
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	h.ingest(t, "abc1", "Service horrible")

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusProcessed, stored.Status)
	assert.Equal(t, "Service excellent", stored.Content)
	assert.True(t, baseTime.Add(time.Hour).Equal(stored.IngestedAt))

	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Fetched)

	results, _, err := h.feedbacks.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.SentimentPositive, results[0].Sentiment)
}

func TestInvalidResultIsAFailure(t *testing.T) {
	h := newHarness(t)
	item := h.ingest(t, "abc1", "Service excellent")

	bogus := classifier.Func(func(context.Context, string) (classifier.Result, error) {
		return classifier.Result{Sentiment: "MIXED", Confidence: 0.5}, nil
	})
	w := h.worker(testWorkerConfig(), bogus)
	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "MIXED")
}

func TestDeadAfterMaxAttempts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.ingest(t, "abc1", "Service excellent")

	cfg := testWorkerConfig()
	cfg.MaxAttempts = 2
	w := h.worker(cfg, classifier.Func(timeout))

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, h.reload(t, item.ID).Status)

	h.clock.Advance(time.Hour)
	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dead)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusDead, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
	assert.Nil(t, stored.NextRetryAt)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "timeout", *stored.LastError)

	h.clock.Advance(24 * time.Hour)
	report, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Fetched)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ItemsDead))
}

func TestUnlimitedAttemptsNeverDie(t *testing.T) {
	h := newHarness(t)
	item := h.ingest(t, "abc1", "Service excellent")

	w := h.worker(testWorkerConfig(), classifier.Func(timeout))
	for i := 0; i < 8; i++ {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		h.clock.Advance(2 * time.Hour)
	}

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Equal(t, 8, stored.Attempts)
}

func TestCycleGuardSkipsOverlappingRun(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "abc1", "Service excellent")

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := classifier.Func(func(ctx context.Context, content string) (classifier.Result, error) {
		close(entered)
		<-release
		return positive(ctx, content)
	})
	w := h.worker(testWorkerConfig(), blocking)

	done := make(chan CycleReport, 1)
	go func() {
		report, err := w.RunOnce(context.Background())
		assert.NoError(t, err)
		done <- report
	}()

	<-entered
	assert.True(t, w.Status().CycleActive)

	skipped, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, skipped.Skipped)
	assert.Zero(t, skipped.Fetched)

	close(release)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Processed)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CyclesSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Cycles))
	assert.False(t, w.Status().CycleActive)
}

func TestConcurrentWorkersProcessEachItemOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const items = 12
	for i := 0; i < items; i++ {
		h.ingest(t, fmt.Sprintf("item-%02d", i), "Service excellent")
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	workers := make([]*Worker, 3)
	for i := range workers {
		cfg := testWorkerConfig()
		cfg.ID = fmt.Sprintf("worker-%d", i)
		cfg.BatchSize = items
		workers[i] = h.worker(cfg, classifier.Func(positive))
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			report, err := w.RunOnce(ctx)
			assert.NoError(t, err)
			mu.Lock()
			seen[w.ID()] = report.Processed
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	processed := 0
	for _, n := range seen {
		processed += n
	}
	assert.Equal(t, items, processed)

	results, total, err := h.feedbacks.List(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(items), total)

	ids := map[uint]bool{}
	for _, fb := range results {
		require.NotNil(t, fb.StagedItemID)
		assert.False(t, ids[*fb.StagedItemID], "item %d classified twice", *fb.StagedItemID)
		ids[*fb.StagedItemID] = true
	}
}

// staleStore serves a batch fetched earlier, as a slow worker would see it.
type staleStore struct {
	*repository.StagingRepository
	batch []model.StagedItem
}

func (s *staleStore) FetchEligible(context.Context, time.Time, int) ([]model.StagedItem, error) {
	return s.batch, nil
}

func TestStaleBatchDoesNotSkipBackoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.ingest(t, "abc1", "Service excellent")

	batch, err := h.staging.FetchEligible(ctx, h.clock.Now(), 5)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	first := h.worker(testWorkerConfig(), classifier.Func(timeout))
	_, err = first.RunOnce(ctx)
	require.NoError(t, err)
	failed := h.reload(t, item.ID)
	require.Equal(t, model.StatusFailed, failed.Status)
	require.NotNil(t, failed.NextRetryAt)

	cfg := testWorkerConfig()
	cfg.ID = "worker-late"
	late := New(cfg, &staleStore{StagingRepository: h.staging, batch: batch}, h.feedbacks, classifier.Func(positive),
		WithClock(h.clock), WithAttemptLogger(h.logs), WithMetrics(h.metrics))
	report, err := late.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Contended)
	assert.Zero(t, report.Processed)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.True(t, failed.NextRetryAt.Equal(*stored.NextRetryAt))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.LeaseContention))

	// once the retry time is reached the same stale batch may lease it
	h.clock.Set(*stored.NextRetryAt)
	report, err = late.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, h.reload(t, item.ID).Attempts)
}

func TestLeaseLostAfterResultStored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.ingest(t, "abc1", "Service excellent")

	stealing := classifier.Func(func(ctx context.Context, content string) (classifier.Result, error) {
		err := h.db.Model(&model.StagedItem{}).Where("id = ?", item.ID).Update("lease_owner", "intruder").Error
		if err != nil {
			return classifier.Result{}, err
		}
		return positive(ctx, content)
	})
	w := h.worker(testWorkerConfig(), stealing)

	report, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusProcessing, stored.Status)

	count, err := h.feedbacks.CountForItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	history, err := h.logs.ListForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.LogStatusLeaseLost, history[0].Status)
}

func TestCanceledCycleStillRecordsFailure(t *testing.T) {
	h := newHarness(t)
	item := h.ingest(t, "abc1", "Service excellent")

	ctx, cancel := context.WithCancel(context.Background())
	waiting := classifier.Func(func(ctx context.Context, content string) (classifier.Result, error) {
		cancel()
		<-ctx.Done()
		return classifier.Result{}, ctx.Err()
	})

	cfg := testWorkerConfig()
	cfg.ClassifyTimeout = time.Minute
	w := h.worker(cfg, waiting)

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	stored := h.reload(t, item.ID)
	assert.Equal(t, model.StatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "classification canceled")
}

type recordingNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (n *recordingNotifier) Notify(_ context.Context, item *model.StagedItem, fb *model.Feedback) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, item.ExternalID+":"+fb.Sentiment)
	return errors.New("smtp down")
}

func TestNotifierFailureDoesNotFailItem(t *testing.T) {
	h := newHarness(t)
	item := h.ingest(t, "abc1", "Service excellent")

	notifier := &recordingNotifier{}
	w := h.worker(testWorkerConfig(), classifier.Func(positive), WithNotifier(notifier))
	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StatusProcessed, h.reload(t, item.ID).Status)
	assert.Equal(t, []string{"abc1:POSITIVE"}, notifier.notified)
}

type brokenStore struct {
	StagingStore
}

func (brokenStore) FetchEligible(context.Context, time.Time, int) ([]model.StagedItem, error) {
	return nil, fmt.Errorf("%w: connection refused", repository.ErrPersistence)
}

func TestFetchErrorIsReturned(t *testing.T) {
	w := New(testWorkerConfig(), brokenStore{}, nil, classifier.Func(positive))

	report, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrPersistence)
	assert.Zero(t, report.Fetched)

	// the guard is released after a failed cycle
	_, err = w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestWorkerRestart(t *testing.T) {
	h := newHarness(t)
	w := h.worker(testWorkerConfig(), classifier.Func(positive))

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	assert.False(t, w.GetNextRun().IsZero())
	assert.Error(t, w.Start())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.True(t, w.GetNextRun().IsZero())

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	require.NotNil(t, w.ctx)
	assert.NoError(t, w.ctx.Err())
	require.NoError(t, w.Stop())
}

func TestGeneratedWorkerID(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.ID = ""
	a := New(cfg, brokenStore{}, nil, classifier.Func(positive))
	b := New(cfg, brokenStore{}, nil, classifier.Func(positive))

	assert.Contains(t, a.ID(), "worker-")
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTruncateError(t *testing.T) {
	long := make([]rune, maxErrorLength+10)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(truncateError(string(long))), maxErrorLength)
	assert.Equal(t, "timeout", truncateError("timeout"))
}
