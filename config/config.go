package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string

	// Widget
	WidgetID         string
	WidgetConfig     string // YAML settings file, used when nothing is persisted
	Timezone         string
	LiveLookbackDays int
	ReplaySize       int

	// Archive gateway
	ArchiveRPS     float64
	ArchiveBurst   int
	ArchiveTimeout time.Duration

	// Notifications
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
	AlertsPerMinute  int

	// Feeder (comma-separated source ids, e.g. "12345,12346"; the first is
	// the price, the optional second the trend in percent)
	FeedSources       string
	FeedInterval      time.Duration
	FeedBackfillDays  int
	FeedStartPrice    string
	FeederMetricsAddr string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/archive.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		WidgetID:         getEnv("WIDGET_ID", "default"),
		WidgetConfig:     getEnv("WIDGET_CONFIG", "widget.yaml"),
		Timezone:         getEnv("TIMEZONE", "Local"),
		LiveLookbackDays: getEnvInt("LIVE_LOOKBACK_DAYS", 3),
		ReplaySize:       getEnvInt("REPLAY_SIZE", 64),

		// A 1 Y rebuild issues 356 queries; keep them from starving the archive.
		ArchiveRPS:     getEnvFloat("ARCHIVE_RPS", 200),
		ArchiveBurst:   getEnvInt("ARCHIVE_BURST", 50),
		ArchiveTimeout: getEnvDuration("ARCHIVE_TIMEOUT", 5*time.Second),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertsPerMinute:  getEnvInt("ALERTS_PER_MINUTE", 6),

		FeedSources:       getEnv("FEED_SOURCES", "12345,12346"),
		FeedInterval:      getEnvDuration("FEED_INTERVAL", 2*time.Second),
		FeedBackfillDays:  getEnvInt("FEED_BACKFILL_DAYS", 400),
		FeedStartPrice:    getEnv("FEED_START_PRICE", "100.00"),
		FeederMetricsAddr: getEnv("FEEDER_METRICS_ADDR", ":9091"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Location resolves Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using local", "component", "config", "tz", c.Timezone, "error", err)
		return time.Local
	}
	return loc
}

// ParseFeedSources splits FeedSources into source ids, skipping blanks.
func (c *Config) ParseFeedSources() []string {
	parts := strings.Split(c.FeedSources, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int env var, using default", "component", "config", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float env var, using default", "component", "config", "key", key, "value", v)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "component", "config", "key", key, "value", v)
		return fallback
	}
	return d
}
