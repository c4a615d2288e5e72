package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

// WorkerConfig controls the staging poller.
type WorkerConfig struct {
	ID              string        `mapstructure:"id"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	RetryBase       time.Duration `mapstructure:"retry_base"`
	RetryCap        time.Duration `mapstructure:"retry_cap"`
	RetryJitter     float64       `mapstructure:"retry_jitter"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	ClassifyTimeout time.Duration `mapstructure:"classify_timeout"`
	Autostart       bool          `mapstructure:"autostart"`
}

// ClassifierConfig selects the sentiment classifier.
type ClassifierConfig struct {
	Mode     string `mapstructure:"mode"`
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

// SourcesConfig holds the connector settings.
type SourcesConfig struct {
	Mode         string        `mapstructure:"mode"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	Meta         MetaConfig    `mapstructure:"meta"`
	Gmail        GmailConfig   `mapstructure:"gmail"`
	IMAP         IMAPConfig    `mapstructure:"imap"`
}

// MetaConfig holds Meta Graph API settings
type MetaConfig struct {
	AccessToken string   `mapstructure:"access_token"`
	ObjectIDs   []string `mapstructure:"object_ids"`
	Platform    string   `mapstructure:"platform"`
	BaseURL     string   `mapstructure:"base_url"`
}

// GmailConfig holds Gmail API configuration
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
	Query        string `mapstructure:"query"`
}

// Enabled reports whether OAuth credentials are present.
func (g GmailConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

// IMAPConfig holds IMAP mailbox configuration
type IMAPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Mailbox  string `mapstructure:"mailbox"`
}

// AlertsConfig controls alert e-mails.
type AlertsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sender  string `mapstructure:"sender"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig loads configuration from environment variables and config file.
// An empty path searches for config.yaml in the working directory and ./config.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("error binding env vars: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "sentimentiq.db")

	v.SetDefault("worker.poll_interval", "10s")
	v.SetDefault("worker.batch_size", 5)
	v.SetDefault("worker.retry_base", "30s")
	v.SetDefault("worker.retry_cap", "1h")
	v.SetDefault("worker.retry_jitter", 0.1)
	v.SetDefault("worker.max_attempts", 0)
	v.SetDefault("worker.classify_timeout", "15s")
	v.SetDefault("worker.autostart", true)

	v.SetDefault("classifier.mode", "lexicon")

	v.SetDefault("sources.mode", "mock")
	v.SetDefault("sources.sync_interval", "5m")
	v.SetDefault("sources.meta.platform", "instagram")
	v.SetDefault("sources.meta.base_url", "https://graph.facebook.com/v21.0")
	v.SetDefault("sources.gmail.query", "label:feedback")
	v.SetDefault("sources.imap.host", "imap.gmail.com")
	v.SetDefault("sources.imap.port", 993)
	v.SetDefault("sources.imap.mailbox", "INBOX")

	v.SetDefault("alerts.enabled", false)

	v.SetDefault("log.level", "info")
}

var envBindings = map[string]string{
	// Server
	"server.port":          "SERVER_PORT",
	"server.read_timeout":  "SERVER_READ_TIMEOUT",
	"server.write_timeout": "SERVER_WRITE_TIMEOUT",

	// Database
	"database.driver":   "DB_DRIVER",
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.dbname":   "DB_NAME",
	"database.sslmode":  "DB_SSLMODE",
	"database.path":     "DB_PATH",

	// Worker
	"worker.id":               "WORKER_ID",
	"worker.poll_interval":    "WORKER_POLL_INTERVAL",
	"worker.batch_size":       "WORKER_BATCH_SIZE",
	"worker.retry_base":       "WORKER_RETRY_BASE",
	"worker.retry_cap":        "WORKER_RETRY_CAP",
	"worker.retry_jitter":     "WORKER_RETRY_JITTER",
	"worker.max_attempts":     "WORKER_MAX_ATTEMPTS",
	"worker.classify_timeout": "WORKER_CLASSIFY_TIMEOUT",
	"worker.autostart":        "WORKER_AUTOSTART",

	// Classifier
	"classifier.mode":     "CLASSIFIER_MODE",
	"classifier.endpoint": "CLASSIFIER_ENDPOINT",
	"classifier.api_key":  "CLASSIFIER_API_KEY",

	// Sources
	"sources.mode":                "META_MODE",
	"sources.sync_interval":       "SOURCES_SYNC_INTERVAL",
	"sources.meta.access_token":   "META_ACCESS_TOKEN",
	"sources.meta.platform":       "META_PLATFORM",
	"sources.meta.object_ids":     "META_OBJECT_IDS",
	"sources.gmail.client_id":     "GMAIL_CLIENT_ID",
	"sources.gmail.client_secret": "GMAIL_CLIENT_SECRET",
	"sources.gmail.refresh_token": "GMAIL_REFRESH_TOKEN",
	"sources.gmail.user_email":    "GMAIL_USER_EMAIL",
	"sources.gmail.query":         "GMAIL_QUERY",
	"sources.imap.enabled":        "IMAP_ENABLED",
	"sources.imap.host":           "IMAP_HOST",
	"sources.imap.port":           "IMAP_PORT",
	"sources.imap.user":           "IMAP_USER",
	"sources.imap.password":       "IMAP_PASSWORD",
	"sources.imap.mailbox":        "IMAP_MAILBOX",

	// Alerts
	"alerts.enabled": "ALERTS_ENABLED",
	"alerts.sender":  "ALERTS_SENDER",

	"log.level": "LOG_LEVEL",
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// GetDSN returns the database connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	case "sqlite":
		return c.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required for %s", c.Database.Driver)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if err := c.Worker.Validate(); err != nil {
		return err
	}

	switch c.Classifier.Mode {
	case "lexicon":
	case "http":
		if c.Classifier.Endpoint == "" {
			return fmt.Errorf("classifier endpoint is required in http mode")
		}
	default:
		return fmt.Errorf("unsupported classifier mode %q", c.Classifier.Mode)
	}

	if c.Sources.Mode != "mock" && c.Sources.Mode != "live" {
		return fmt.Errorf("unsupported sources mode %q", c.Sources.Mode)
	}
	if c.Sources.SyncInterval <= 0 {
		return fmt.Errorf("sources sync interval must be greater than 0")
	}
	if c.Sources.IMAP.Enabled && (c.Sources.IMAP.User == "" || c.Sources.IMAP.Password == "") {
		return fmt.Errorf("IMAP credentials are required when IMAP is enabled")
	}

	if c.Alerts.Enabled && !c.Sources.Gmail.Enabled() {
		return fmt.Errorf("Gmail OAuth2 credentials are required when alerts are enabled")
	}

	return nil
}

// Validate checks the poller settings.
func (w *WorkerConfig) Validate() error {
	if w.PollInterval <= 0 {
		return fmt.Errorf("worker poll interval must be greater than 0")
	}
	if w.BatchSize <= 0 {
		return fmt.Errorf("worker batch size must be greater than 0")
	}
	if w.RetryBase <= 0 {
		return fmt.Errorf("worker retry base must be greater than 0")
	}
	if w.RetryCap < w.RetryBase {
		return fmt.Errorf("worker retry cap must not be lower than retry base")
	}
	if w.RetryJitter < 0 || w.RetryJitter >= 1 {
		return fmt.Errorf("worker retry jitter must be in [0,1)")
	}
	if w.MaxAttempts < 0 {
		return fmt.Errorf("worker max attempts must not be negative")
	}
	if w.ClassifyTimeout < 0 {
		return fmt.Errorf("worker classify timeout must not be negative")
	}
	return nil
}
