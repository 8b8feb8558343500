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
	QbtBaseURL   string `envconfig:"QBT_BASE_URL" default:"http://127.0.0.1:8080"`
	QbtUsername  string `envconfig:"QBT_USERNAME"`
	QbtPassword  string `envconfig:"QBT_PASSWORD"`
	QbtVerifySSL bool   `envconfig:"QBT_VERIFY_SSL" default:"true"`

	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"120s"`
	SettleDelay  time.Duration `envconfig:"SETTLE_DELAY" default:"3s"`

	// StartedIncludePaused widens the "started" set to also admit paused
	// torrents. The default tracks only torrents actively downloading.
	StartedIncludePaused bool `envconfig:"STARTED_INCLUDE_PAUSED" default:"false"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`
	PushbulletToken   string `envconfig:"PUSHBULLET_TOKEN"`

	Telemetry struct {
		Enabled        bool   `split_words:"true" default:"true"`
		ServiceName    string `split_words:"true" default:"qbt_monitor"`
		ServiceVersion string `split_words:"true" default:"dev"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8200"`
		Username        string        `split_words:"true"`
		Password        string        `split_words:"true"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
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
