// Package redis holds the Redis-backed collaborators: the persisted cache
// blob, the variable directory and the pub/sub change notifications.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Open creates a Redis client and pings the server.
func Open(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "component", "redis", "addr", cfg.Addr)
	return client, nil
}

// Key layout. Widget-owned keys are namespaced by widget id; variables and
// their change channels belong to the host platform and are shared.
func cacheKey(widgetID, source string) string {
	return "widget:" + widgetID + ":daily_cache:" + source
}
func settingsKey(widgetID string) string { return "widget:" + widgetID + ":settings" }
func variableKey(source string) string   { return "var:" + source }

// ChangeChannel is the pub/sub channel carrying change notifications for source.
func ChangeChannel(source string) string { return "pub:var:" + source }

const changeChannelPrefix = "pub:var:"
