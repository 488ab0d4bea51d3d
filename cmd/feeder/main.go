// cmd/feeder simulates the host platform for local runs: a random-walk price
// (and its daily trend) is logged into the SQLite archive, stored in the Redis
// variable directory and announced on the change channels the widget
// subscribes to.
//
// Config (env vars): FEED_SOURCES, FEED_INTERVAL, FEED_BACKFILL_DAYS,
// FEED_START_PRICE, FEEDER_METRICS_ADDR plus the shared REDIS_* / SQLITE_PATH.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stockwidget/config"
	"stockwidget/internal/feeder"
	"stockwidget/internal/logger"
	"stockwidget/internal/metrics"
	redisstore "stockwidget/internal/store/redis"
	sqlitestore "stockwidget/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := logger.Init("feeder", logger.ParseLevel(cfg.LogLevel))

	sources := cfg.ParseFeedSources()
	if len(sources) == 0 {
		log.Error("FEED_SOURCES is empty")
		os.Exit(1)
	}
	start, err := decimal.NewFromString(cfg.FeedStartPrice)
	if err != nil {
		log.Error("invalid FEED_START_PRICE", "value", cfg.FeedStartPrice, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics ----
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	health.SetSubscriberOK(true) // the feeder only publishes

	// ---- Stores ----
	rdb, err := redisstore.Open(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Error("redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	writer, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath: cfg.SQLitePath,
		OnCommit: func(n int, elapsed time.Duration, err error) {
			if err == nil {
				m.SQLiteCommitDur.Observe(elapsed.Seconds())
			}
		},
	})
	if err != nil {
		log.Error("sqlite", "error", err)
		os.Exit(1)
	}
	defer writer.Close()

	fc := feeder.Config{
		Price:        sources[0],
		Start:        start,
		Interval:     cfg.FeedInterval,
		BackfillDays: cfg.FeedBackfillDays,
		Location:     cfg.Location(),
	}
	if len(sources) > 1 {
		fc.Trend = sources[1]
	}
	records := make(chan sqlitestore.Record, 1000)
	f := feeder.New(fc, redisstore.NewVariables(rdb), redisstore.NewPublisher(rdb), writer, records)
	f.OnSample = func(string) { m.SamplesTotal.Inc() }

	if err := f.Backfill(ctx, time.Now()); err != nil {
		log.Error("backfill failed", "error", err)
		os.Exit(1)
	}
	log.Info("feeding", "price", fc.Price, "trend", fc.Trend, "interval", fc.Interval.String())

	// ---- Graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		writer.Run(gctx, records)
		return nil
	})
	g.Go(func() error { return f.Run(gctx) })
	g.Go(func() error {
		health.RunLivenessChecker(gctx, rdb, writer.DB(), 15*time.Second)
		return nil
	})
	g.Go(func() error { return metrics.NewServer(cfg.FeederMetricsAddr, health, reg).Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
