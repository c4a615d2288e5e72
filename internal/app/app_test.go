package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YOROBIZ/sentimentiq/internal/config"
	"github.com/YOROBIZ/sentimentiq/internal/model"
	"github.com/YOROBIZ/sentimentiq/internal/source"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", ReadTimeout: time.Second, WriteTimeout: time.Second},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "app.db"),
		},
		Worker: config.WorkerConfig{
			ID:           "app-test",
			PollInterval: time.Hour,
			BatchSize:    5,
			RetryBase:    30 * time.Second,
			RetryCap:     time.Hour,
			RetryJitter:  0.1,
		},
		Classifier: config.ClassifierConfig{Mode: "lexicon"},
		Sources:    config.SourcesConfig{Mode: "mock", SyncInterval: time.Hour},
		Log:        config.LogConfig{Level: "info"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.Mode = "oracle"

	_, err := New(context.Background(), cfg, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported classifier mode")
}

func TestSeedThenRunOnce(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	staged, err := a.Seed(ctx, 20, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, staged)

	staged, err = a.Seed(ctx, 20, 1)
	require.NoError(t, err)
	assert.Zero(t, staged)

	report, err := a.Worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Fetched)
	assert.Equal(t, 5, report.Processed)

	status, err := a.Reporter.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), status.Total)
	assert.Equal(t, int64(5), status.Count(model.StatusProcessed))
	assert.Equal(t, int64(15), status.Count(model.StatusPending))
}

func TestSyncerUsesMockSource(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	assert.Equal(t, []string{source.MockName}, a.Syncer.Names())
	results := a.Syncer.SyncAll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Ingested)
}

func TestHandlerServesHealth(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Worker.Autostart = true
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	require.Eventually(t, a.Worker.IsRunning, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, a.Syncer.IsRunning, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.False(t, a.Worker.IsRunning())
	assert.False(t, a.Syncer.IsRunning())
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	ConfigureLogging("warn", false)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	ConfigureLogging("warn", true)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	ConfigureLogging("loud", false)
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestParseSourceList(t *testing.T) {
	assert.Equal(t, []string{"instagram", "gmail"}, ParseSourceList(" instagram, ,gmail "))
	assert.Nil(t, ParseSourceList(""))
}
