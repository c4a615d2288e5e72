package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/YOROBIZ/sentimentiq/internal/app"
	"github.com/YOROBIZ/sentimentiq/internal/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "sentimentiq",
	Short: "SentimentIQ feedback analysis service",
	Long:  `SentimentIQ stages customer feedback from social and e-mail sources, classifies its sentiment and alerts on negative reviews.`,
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the worker and the source syncer",
	RunE:  runServe,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// loadApp reads .env and the config file, sets up logging and wires the app.
func loadApp(ctx context.Context) (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	app.ConfigureLogging(cfg.Log.Level, isDebug)

	return app.New(ctx, cfg, isDebug)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to initialize SentimentIQ")
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close app")
		}
	}()

	logrus.WithField("worker_id", a.Worker.ID()).Info("Starting SentimentIQ")
	return a.Serve(ctx)
}
