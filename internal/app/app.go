// Package app wires the staging store, worker, source syncer and HTTP API
// into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/YOROBIZ/sentimentiq/internal/classifier"
	"github.com/YOROBIZ/sentimentiq/internal/config"
	"github.com/YOROBIZ/sentimentiq/internal/database"
	"github.com/YOROBIZ/sentimentiq/internal/handler"
	"github.com/YOROBIZ/sentimentiq/internal/metrics"
	"github.com/YOROBIZ/sentimentiq/internal/notifier"
	"github.com/YOROBIZ/sentimentiq/internal/repository"
	"github.com/YOROBIZ/sentimentiq/internal/router"
	"github.com/YOROBIZ/sentimentiq/internal/source"
	"github.com/YOROBIZ/sentimentiq/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// App holds the wired components of the service.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	Staging   *repository.StagingRepository
	Feedbacks *repository.FeedbackRepository
	Logs      *repository.LogRepository
	Rules     *repository.RuleRepository
	Sources   *repository.SourceRepository
	Reporter  *repository.StatusReporter

	Worker *worker.Worker
	Syncer *source.Syncer

	server *http.Server
}

// ConfigureLogging sets the JSON formatter and the level. debug overrides
// the configured level.
func ConfigureLogging(level string, debug bool) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	if debug {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
}

// New opens the database and builds every component from cfg. Nothing is
// started.
func New(ctx context.Context, cfg *config.Config, debug bool) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetricsWith(reg)

	a := &App{
		Config:    cfg,
		DB:        db,
		Metrics:   m,
		Registry:  reg,
		Staging:   repository.NewStagingRepository(db),
		Feedbacks: repository.NewFeedbackRepository(db),
		Logs:      repository.NewLogRepository(db),
		Rules:     repository.NewRuleRepository(db),
		Sources:   repository.NewSourceRepository(db),
		Reporter:  repository.NewStatusReporter(db),
	}

	opts := []worker.Option{
		worker.WithAttemptLogger(a.Logs),
		worker.WithMetrics(m),
		worker.WithReporter(a.Reporter),
	}
	if cfg.Alerts.Enabled {
		sender, err := notifier.NewGmailSender(ctx, cfg.Sources.Gmail, cfg.Alerts.Sender)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to create alert sender: %w", err)
		}
		opts = append(opts, worker.WithNotifier(notifier.New(a.Rules, sender, m)))
		logrus.Info("Alert e-mails enabled")
	}
	a.Worker = worker.New(cfg.Worker, a.Staging, a.Feedbacks, newClassifier(cfg.Classifier), opts...)

	connectors, err := source.FromConfig(ctx, cfg.Sources)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to create sources: %w", err)
	}
	a.Syncer = source.NewSyncer(cfg.Sources.SyncInterval, a.Staging, a.Sources, connectors...).WithMetrics(m)

	h := handler.NewHandlers(handler.Deps{
		DB:        db,
		Staging:   a.Staging,
		Feedbacks: a.Feedbacks,
		Logs:      a.Logs,
		Rules:     a.Rules,
		Sources:   a.Sources,
		Reporter:  a.Reporter,
		Worker:    a.Worker,
		Syncer:    a.Syncer,
		Gatherer:  reg,
	})
	a.server = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h, debug),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

func newClassifier(cfg config.ClassifierConfig) classifier.Classifier {
	if cfg.Mode == "http" {
		logrus.WithField("endpoint", cfg.Endpoint).Info("Using remote sentiment classifier")
		return classifier.NewHTTPClient(cfg.Endpoint, cfg.APIKey)
	}
	logrus.Info("Using lexicon sentiment classifier")
	return classifier.NewLexicon()
}

// Handler returns the HTTP handler of the API.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Serve starts the worker (when autostart is set), the source syncer and the
// HTTP server, and blocks until ctx is done or the server fails. Everything
// is stopped before it returns.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.Worker.Autostart {
		if err := a.Worker.Start(); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}
	if err := a.Syncer.Start(); err != nil {
		_ = a.Worker.Stop()
		return fmt.Errorf("failed to start source syncer: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.WithField("port", a.Config.Server.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		logrus.Info("Shutting down server...")
	case err = <-serveErr:
		logrus.WithError(err).Error("HTTP server error")
	}

	a.shutdown()
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logrus.Info("Server stopped gracefully")
	return nil
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown error")
	}
	a.Syncer.Stop()
	if err := a.Worker.Stop(); err != nil {
		logrus.WithError(err).Error("Failed to stop worker")
	}
	a.Worker.Wait()
}

// Seed stages count demo comments. Re-running with the same seed stages
// nothing new.
func (a *App) Seed(ctx context.Context, count int, seed int64) (int, error) {
	staged := 0
	for _, item := range source.DemoDataset(count, seed) {
		before, err := a.Staging.GetByExternalID(ctx, item.ExternalID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return staged, err
		}
		if before != nil {
			continue
		}

		_, err = a.Staging.Ingest(ctx, source.MockName, item.ExternalID, repository.Payload{
			CustomerName: item.CustomerName,
			Content:      item.Content,
			Permalink:    item.Permalink,
			Raw:          item.Raw,
		})
		if err != nil {
			return staged, err
		}
		staged++
	}
	logrus.WithFields(logrus.Fields{"count": count, "staged": staged}).Info("Demo dataset seeded")
	return staged, nil
}

// Close releases the connectors and the database.
func (a *App) Close() error {
	a.Syncer.Close()
	if err := database.Close(a.DB); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ParseSourceList splits a comma separated list of source names.
func ParseSourceList(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
