package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	TargetDir         string `envconfig:"TARGET_DIR" default:"."`
	HistoryBackend    string `envconfig:"HISTORY_BACKEND" default:"json"`
	HistoryPath       string `envconfig:"HISTORY_PATH" default:"download_history.json"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Transfer struct {
		UserAgent      string        `split_words:"true" default:"Mozilla/5.0"`
		ConnectTimeout time.Duration `split_words:"true" default:"10s"`
		ChunkSize      int           `split_words:"true" default:"1024"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9092"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		ServiceName  string `split_words:"true" default:"grabber"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.Transfer.ChunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", cfg.Transfer.ChunkSize)
	}

	switch cfg.HistoryBackend {
	case "json", "sqlite", "bolt":
	default:
		return nil, fmt.Errorf("invalid history backend: %s", cfg.HistoryBackend)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
