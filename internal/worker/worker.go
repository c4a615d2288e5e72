// Package worker drains the staging store: it leases eligible items,
// classifies them and records the outcome, one cycle per poll tick.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/YOROBIZ/sentimentiq/internal/classifier"
	"github.com/YOROBIZ/sentimentiq/internal/clock"
	"github.com/YOROBIZ/sentimentiq/internal/config"
	"github.com/YOROBIZ/sentimentiq/internal/metrics"
	"github.com/YOROBIZ/sentimentiq/internal/model"
	"github.com/YOROBIZ/sentimentiq/internal/repository"
	"github.com/YOROBIZ/sentimentiq/internal/retry"
)

const maxErrorLength = 1024

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Skipped   bool          `json:"skipped"`
	Fetched   int           `json:"fetched"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Dead      int           `json:"dead"`
	Contended int           `json:"contended"`
	Errors    int           `json:"errors"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Status is a snapshot of the worker for the status endpoint.
type Status struct {
	WorkerID    string       `json:"worker_id"`
	Running     bool         `json:"running"`
	CycleActive bool         `json:"cycle_active"`
	NextRun     time.Time    `json:"next_run"`
	LastRun     time.Time    `json:"last_run"`
	LastCycle   *CycleReport `json:"last_cycle,omitempty"`
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock sets the clock used for eligibility and retry times.
func WithClock(c clock.Clock) Option {
	return func(w *Worker) { w.clock = c }
}

// WithBackoff replaces the retry schedule built from the worker config.
func WithBackoff(b *retry.Backoff) Option {
	return func(w *Worker) { w.backoff = b }
}

// WithAttemptLogger records every attempt outcome.
func WithAttemptLogger(l AttemptLogger) Option {
	return func(w *Worker) { w.audit = l }
}

// WithNotifier is called after every stored result.
func WithNotifier(n Notifier) Option {
	return func(w *Worker) { w.notifier = n }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithReporter refreshes the staged items gauge after every cycle.
func WithReporter(r Reporter) Option {
	return func(w *Worker) { w.reporter = r }
}

// Worker is an explicit poller object. Several workers, in one process or
// many, may drain the same store; the lease keeps them apart.
type Worker struct {
	owner        string
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int

	store      StagingStore
	sink       ResultSink
	classifier classifier.Classifier
	backoff    *retry.Backoff
	clock      clock.Clock
	audit      AttemptLogger
	notifier   Notifier
	metrics    *metrics.Metrics
	reporter   Reporter

	// cycleActive is the only guard against overlapping cycles.
	cycleActive atomic.Bool

	cron      *cron.Cron
	entryID   cron.EntryID
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	lastCycle *CycleReport
	mu        sync.RWMutex
}

// New creates a worker. An empty cfg.ID gets a random owner id.
func New(cfg config.WorkerConfig, store StagingStore, sink ResultSink, c classifier.Classifier, opts ...Option) *Worker {
	owner := cfg.ID
	if owner == "" {
		owner = "worker-" + uuid.NewString()
	}

	w := &Worker{
		owner:        owner,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		store:        store,
		sink:         sink,
		classifier:   classifier.WithTimeout(c, cfg.ClassifyTimeout),
		backoff:      retry.NewBackoff(cfg.RetryBase, cfg.RetryCap, cfg.RetryJitter),
		clock:        clock.System{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the lease owner id of this worker.
func (w *Worker) ID() string {
	return w.owner
}

// Start schedules a cycle every poll interval.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("worker is already running")
	}
	if w.pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.cron = cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(logrus.StandardLogger()))))

	entryID, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.pollInterval), w.tick)
	if err != nil {
		w.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	w.entryID = entryID
	w.cron.Start()
	w.isRunning = true

	logrus.WithFields(logrus.Fields{
		"worker_id":     w.owner,
		"poll_interval": w.pollInterval.String(),
		"batch_size":    w.batchSize,
	}).Info("Worker started")
	return nil
}

// Stop cancels the in-flight cycle and waits for it to return.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.cancel()
	scheduler := w.cron
	w.mu.Unlock()

	// wait outside the lock: a tick in flight reads state under it
	ctx := scheduler.Stop()

	select {
	case <-ctx.Done():
		logrus.WithField("worker_id", w.owner).Info("Worker stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.WithField("worker_id", w.owner).Warn("Worker stop timeout, forcing shutdown")
	}
	return nil
}

// IsRunning returns whether the worker is scheduled
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// Wait blocks until every cycle started by the schedule has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// GetNextRun returns the time of the next scheduled cycle
func (w *Worker) GetNextRun() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.isRunning {
		return time.Time{}
	}
	return w.cron.Entry(w.entryID).Next
}

// GetLastRun returns the time of the last scheduled cycle
func (w *Worker) GetLastRun() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.isRunning {
		return time.Time{}
	}
	return w.cron.Entry(w.entryID).Prev
}

// Status returns a snapshot of the worker.
func (w *Worker) Status() Status {
	st := Status{
		WorkerID:    w.owner,
		Running:     w.IsRunning(),
		CycleActive: w.cycleActive.Load(),
		NextRun:     w.GetNextRun(),
		LastRun:     w.GetLastRun(),
	}
	w.mu.RLock()
	if w.lastCycle != nil {
		last := *w.lastCycle
		st.LastCycle = &last
	}
	w.mu.RUnlock()
	return st
}

func (w *Worker) tick() {
	w.wg.Add(1)
	defer w.wg.Done()

	w.mu.RLock()
	ctx := w.ctx
	running := w.isRunning
	w.mu.RUnlock()
	if !running {
		return
	}

	if _, err := w.RunOnce(ctx); err != nil {
		logrus.WithError(err).WithField("worker_id", w.owner).Error("Poll cycle failed")
	}
}

// RunOnce runs a single cycle. When a cycle is already in flight it returns
// immediately with Skipped set. The only error is a failed fetch; per-item
// failures are recorded on the items themselves.
func (w *Worker) RunOnce(ctx context.Context) (CycleReport, error) {
	if !w.cycleActive.CompareAndSwap(false, true) {
		if w.metrics != nil {
			w.metrics.CyclesSkipped.Inc()
		}
		logrus.WithField("worker_id", w.owner).Debug("Previous cycle still running, skipping tick")
		return CycleReport{Skipped: true}, nil
	}
	defer w.cycleActive.Store(false)

	if w.metrics != nil {
		w.metrics.Cycles.Inc()
	}

	started := time.Now()
	report := CycleReport{StartedAt: w.clock.Now()}

	items, err := w.store.FetchEligible(ctx, w.clock.Now(), w.batchSize)
	if err != nil {
		return report, fmt.Errorf("fetch eligible items: %w", err)
	}
	report.Fetched = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		switch w.processItem(ctx, item) {
		case outcomeProcessed:
			report.Processed++
		case outcomeFailed:
			report.Failed++
		case outcomeDead:
			report.Dead++
		case outcomeContended:
			report.Contended++
		default:
			report.Errors++
		}
	}

	report.Duration = time.Since(started)
	w.mu.Lock()
	last := report
	w.lastCycle = &last
	w.mu.Unlock()

	w.refreshGauge(ctx)

	if report.Fetched > 0 {
		logrus.WithFields(logrus.Fields{
			"worker_id": w.owner,
			"fetched":   report.Fetched,
			"processed": report.Processed,
			"failed":    report.Failed,
			"dead":      report.Dead,
			"contended": report.Contended,
			"duration":  report.Duration.String(),
		}).Info("Poll cycle completed")
	}
	return report, nil
}

type outcome int

const (
	outcomeError outcome = iota
	outcomeProcessed
	outcomeFailed
	outcomeDead
	outcomeContended
)

func (w *Worker) processItem(ctx context.Context, item model.StagedItem) outcome {
	log := logrus.WithFields(logrus.Fields{
		"worker_id":   w.owner,
		"item_id":     item.ID,
		"external_id": item.ExternalID,
	})

	ok, err := w.store.Acquire(ctx, item.ID, w.owner, w.clock.Now())
	if err != nil {
		log.WithError(err).Error("Failed to acquire lease")
		return outcomeError
	}
	if !ok {
		if w.metrics != nil {
			w.metrics.LeaseContention.Inc()
		}
		log.Debug("Item leased elsewhere, skipping")
		return outcomeContended
	}

	// terminal writes must land even when shutdown cancels ctx
	writeCtx := context.WithoutCancel(ctx)

	leased, err := w.store.Get(writeCtx, item.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to reload leased item, using fetched copy")
		leased = &item
		leased.Attempts = item.Attempts + 1
	}
	log = log.WithField("attempt", leased.Attempts)

	started := time.Now()
	res, err := w.classifier.Classify(ctx, leased.Content)
	if w.metrics != nil {
		w.metrics.ClassificationTime.Observe(time.Since(started).Seconds())
	}
	if err == nil {
		err = classifier.Validate(res)
	}
	if err != nil {
		return w.fail(writeCtx, log, leased, err)
	}

	fb := &model.Feedback{
		StagedItemID: &leased.ID,
		CustomerName: leased.CustomerName,
		Content:      leased.Content,
		Sentiment:    res.Sentiment,
		Confidence:   res.Confidence,
		KeyPhrases:   res.KeyPhrases,
	}
	if err := w.sink.Append(writeCtx, fb); err != nil {
		return w.fail(writeCtx, log, leased, err)
	}

	if err := w.store.MarkProcessed(writeCtx, leased.ID, w.owner, w.clock.Now()); err != nil {
		// the result is stored; the item stays leased until requeued
		log.WithError(err).WithField("feedback_id", fb.ID).Error("Result stored but item could not be marked processed")
		w.record(writeCtx, leased, statusFor(err, model.LogStatusFailure), err.Error())
		return outcomeError
	}

	if w.metrics != nil {
		w.metrics.ItemsProcessed.Inc()
	}
	w.record(writeCtx, leased, model.LogStatusSuccess, "")
	log.WithFields(logrus.Fields{
		"sentiment":  res.Sentiment,
		"confidence": res.Confidence,
	}).Info("Item classified")

	if w.notifier != nil {
		if err := w.notifier.Notify(writeCtx, leased, fb); err != nil {
			log.WithError(err).Warn("Failed to send alert")
		}
	}
	return outcomeProcessed
}

func (w *Worker) fail(ctx context.Context, log *logrus.Entry, item *model.StagedItem, cause error) outcome {
	msg := truncateError(cause.Error())
	log = log.WithField("error", msg)

	if w.maxAttempts > 0 && item.Attempts >= w.maxAttempts {
		if err := w.store.MarkDead(ctx, item.ID, w.owner, msg); err != nil {
			log.WithError(err).Error("Failed to mark item dead")
			w.record(ctx, item, statusFor(err, model.LogStatusDead), err.Error())
			return outcomeError
		}
		if w.metrics != nil {
			w.metrics.ItemsDead.Inc()
		}
		w.record(ctx, item, model.LogStatusDead, msg)
		log.Warn("Item exhausted its attempts")
		return outcomeDead
	}

	next := w.backoff.Next(item.Attempts, w.clock.Now())
	if err := w.store.MarkFailed(ctx, item.ID, w.owner, msg, next); err != nil {
		log.WithError(err).Error("Failed to mark item failed")
		w.record(ctx, item, statusFor(err, model.LogStatusFailure), err.Error())
		return outcomeError
	}
	if w.metrics != nil {
		w.metrics.ItemsFailed.Inc()
	}
	w.record(ctx, item, model.LogStatusFailure, msg)
	log.WithField("next_retry_at", next).Warn("Item processing failed, retry scheduled")
	return outcomeFailed
}

func (w *Worker) record(ctx context.Context, item *model.StagedItem, status, msg string) {
	if w.audit == nil {
		return
	}
	entry := &model.ProcessingLog{
		StagedItemID: item.ID,
		ExternalID:   item.ExternalID,
		WorkerID:     w.owner,
		Attempt:      item.Attempts,
		Status:       status,
		ErrorMsg:     msg,
	}
	if err := w.audit.LogAttempt(ctx, entry); err != nil {
		logrus.WithError(err).WithField("item_id", item.ID).Error("Failed to log processing attempt")
	}
}

func (w *Worker) refreshGauge(ctx context.Context) {
	if w.reporter == nil || w.metrics == nil {
		return
	}
	report, err := w.reporter.Report(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to refresh staged items gauge")
		return
	}
	for _, row := range report.Statuses {
		w.metrics.StagedItems.WithLabelValues(string(row.Status)).Set(float64(row.Count))
	}
}

func statusFor(err error, fallback string) string {
	if errors.Is(err, repository.ErrLeaseLost) {
		return model.LogStatusLeaseLost
	}
	return fallback
}

func truncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxErrorLength {
		return msg
	}
	return string(runes[:maxErrorLength])
}
