package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/YOROBIZ/sentimentiq/internal/clock"
	"github.com/YOROBIZ/sentimentiq/internal/metrics"
	"github.com/YOROBIZ/sentimentiq/internal/model"
	"github.com/YOROBIZ/sentimentiq/internal/parser"
	"github.com/YOROBIZ/sentimentiq/internal/repository"
)

// Ingester stages provider items.
type Ingester interface {
	Ingest(ctx context.Context, source, externalID string, p repository.Payload) (*model.StagedItem, error)
}

// SyncRecorder keeps the per-provider sync state.
type SyncRecorder interface {
	RecordSync(ctx context.Context, provider string, at time.Time, count int) error
	RecordError(ctx context.Context, provider string, at time.Time, syncErr error) error
}

// SyncResult is the outcome of one connector sync.
type SyncResult struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	Ingested int    `json:"ingested"`
	Dropped  int    `json:"dropped"`
	Error    string `json:"error,omitempty"`
}

// Syncer runs connectors on a schedule and on demand.
type Syncer struct {
	connectors []Connector
	ingester   Ingester
	recorder   SyncRecorder
	interval   time.Duration
	clock      clock.Clock
	metrics    *metrics.Metrics

	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	mu        sync.RWMutex
}

// NewSyncer creates a syncer for connectors.
func NewSyncer(interval time.Duration, ingester Ingester, recorder SyncRecorder, connectors ...Connector) *Syncer {
	return &Syncer{
		connectors: connectors,
		ingester:   ingester,
		recorder:   recorder,
		interval:   interval,
		clock:      clock.System{},
	}
}

// WithClock sets the clock used for sync timestamps.
func (s *Syncer) WithClock(c clock.Clock) *Syncer {
	s.clock = c
	return s
}

// WithMetrics enables instrumentation.
func (s *Syncer) WithMetrics(m *metrics.Metrics) *Syncer {
	s.metrics = m
	return s
}

// Names lists the configured connectors.
func (s *Syncer) Names() []string {
	names := make([]string, 0, len(s.connectors))
	for _, c := range s.connectors {
		names = append(names, c.Name())
	}
	return names
}

// Start syncs every interval. A sync still running when the next tick fires
// makes that tick a no-op.
func (s *Syncer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("syncer is already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	logger := cron.PrintfLogger(logrus.StandardLogger())
	s.cron = cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		s.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	logrus.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"sources":  s.Names(),
	}).Info("Source syncer started")
	return nil
}

// Stop cancels the running sync and waits for it.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	scheduler := s.cron
	s.mu.Unlock()

	select {
	case <-scheduler.Stop().Done():
		logrus.Info("Source syncer stopped")
	case <-time.After(30 * time.Second):
		logrus.Warn("Source syncer stop timeout")
	}
}

// IsRunning returns whether the syncer is scheduled
func (s *Syncer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Syncer) tick() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	s.SyncAll(ctx)
}

// SyncAll runs every connector in turn. A failing connector does not stop
// the others.
func (s *Syncer) SyncAll(ctx context.Context) []SyncResult {
	results := make([]SyncResult, 0, len(s.connectors))
	for _, c := range s.connectors {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.sync(ctx, c))
	}
	return results
}

// SyncOne runs the connector called name.
func (s *Syncer) SyncOne(ctx context.Context, name string) (SyncResult, error) {
	for _, c := range s.connectors {
		if c.Name() == name {
			return s.sync(ctx, c), nil
		}
	}
	return SyncResult{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

func (s *Syncer) sync(ctx context.Context, c Connector) SyncResult {
	name := c.Name()
	result := SyncResult{Source: name}
	log := logrus.WithField("source", name)

	items, err := c.Fetch(ctx)
	if err != nil {
		result.Error = err.Error()
		log.WithError(err).Error("Source sync failed")
		if s.metrics != nil {
			s.metrics.SourceSyncFailures.WithLabelValues(name).Inc()
		}
		if recErr := s.recorder.RecordError(context.WithoutCancel(ctx), name, s.clock.Now(), err); recErr != nil {
			log.WithError(recErr).Warn("Failed to record sync error")
		}
		return result
	}
	result.Fetched = len(items)

	for _, item := range items {
		content := parser.Sanitize(item.Content)
		if content == "" || item.ExternalID == "" {
			result.Dropped++
			continue
		}

		_, err := s.ingester.Ingest(ctx, name, item.ExternalID, repository.Payload{
			CustomerName: item.CustomerName,
			Content:      content,
			Permalink:    item.Permalink,
			Raw:          item.Raw,
		})
		if err != nil {
			result.Dropped++
			log.WithError(err).WithField("external_id", item.ExternalID).Error("Failed to stage item")
			continue
		}
		result.Ingested++
		if s.metrics != nil {
			s.metrics.Ingested.WithLabelValues(name).Inc()
		}
	}

	if err := s.recorder.RecordSync(context.WithoutCancel(ctx), name, s.clock.Now(), result.Ingested); err != nil {
		log.WithError(err).Warn("Failed to record sync")
	}

	log.WithFields(logrus.Fields{
		"fetched":  result.Fetched,
		"ingested": result.Ingested,
		"dropped":  result.Dropped,
	}).Info("Source synced")
	return result
}

// Close closes every connector.
func (s *Syncer) Close() {
	closeAll(s.connectors)
}
