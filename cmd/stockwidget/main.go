package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stockwidget/config"
	"stockwidget/internal/archive"
	"stockwidget/internal/breaker"
	"stockwidget/internal/gateway"
	"stockwidget/internal/logger"
	"stockwidget/internal/metrics"
	"stockwidget/internal/model"
	"stockwidget/internal/notification"
	"stockwidget/internal/settings"
	redisstore "stockwidget/internal/store/redis"
	sqlitestore "stockwidget/internal/store/sqlite"
	"stockwidget/internal/widget"
)

var processStart = time.Now()

func main() {
	cfg := config.Load()
	log := logger.Init("stockwidget", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting", "widget", cfg.WidgetID, "http", cfg.HTTPAddr, "metrics", cfg.MetricsAddr)

	if err := run(cfg); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics & health ----
	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	onBreaker := func(name string, from, to breaker.State) {
		m.SetBreakerState(name, int(to))
		slog.Warn("circuit breaker transition", "component", "breaker", "name", name, "from", from.String(), "to", to.String())
	}

	// ---- Redis ----
	rdb, err := redisstore.Open(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer rdb.Close()
	redisCB := breaker.New("redis", 5, 10*time.Second)
	redisCB.OnStateChange = onBreaker

	// ---- SQLite archive ----
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer reader.Close()
	archiveCB := breaker.New("archive", 5, 10*time.Second)
	archiveCB.OnStateChange = onBreaker
	arch := archive.New(reader, archive.Options{
		RatePerSec: cfg.ArchiveRPS,
		Burst:      cfg.ArchiveBurst,
		Timeout:    cfg.ArchiveTimeout,
		Breaker:    archiveCB,
		OnQuery: func(agg model.Aggregation, elapsed time.Duration, points int, err error) {
			m.ObserveQuery(string(agg), elapsed, points, err)
		},
	})

	// ---- Widget settings: persisted copy wins over the file ----
	initial, err := settings.Load(cfg.WidgetConfig)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("settings file missing, using defaults", "component", "main", "path", cfg.WidgetConfig)
		initial = settings.Default()
	case err != nil:
		// Invalid file: hand it to the coordinator anyway so it reports 201.
		slog.Error("settings file invalid", "component", "main", "path", cfg.WidgetConfig, "error", err)
	}

	// ---- Status notifications ----
	var external []notification.Notifier
	if cfg.WebhookURL != "" {
		external = append(external, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		external = append(external, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	reporter := notification.NewReporter(cfg.AlertsPerMinute, external...)
	reporter.OnSent = func(channel string, err error) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.NotificationsTotal.WithLabelValues(channel, result).Inc()
	}

	// ---- Visualization sink ----
	hub := gateway.NewHub(cfg.ReplaySize)
	hub.OnDrop = m.DroppedMessages.Inc
	hub.OnClients = func(n int) { m.WSClients.Set(float64(n)) }

	// ---- Widget ----
	sub := redisstore.NewSubscriber(ctx, rdb)
	defer sub.Close()
	cacheBlobs := func(source string) model.BlobStore {
		return redisstore.NewCacheStore(rdb, cfg.WidgetID, source, redisCB)
	}
	svc := widget.New(widget.Config{
		Archive:          arch,
		CacheBlobs:       cacheBlobs,
		Settings:         settings.NewStore(redisstore.NewSettingsStore(rdb, cfg.WidgetID, redisCB)),
		Subscriber:       sub,
		Variables:        redisstore.NewVariables(rdb),
		Sink:             hub,
		Status:           reporter,
		Metrics:          m,
		Initial:          initial,
		Location:         cfg.Location(),
		LiveLookbackDays: cfg.LiveLookbackDays,
	})
	svc.OnTrigger = func(kind string) {
		if kind == "change" {
			health.SetLastNotification(time.Now())
		}
	}

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, svc, processStart)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	// ---- Graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigCh:
			slog.Info("shutting down", "component", "main", "signal", s.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	changes := make(chan model.Change, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		health.SetSubscriberOK(true)
		sub.Run(gctx, changes)
		health.SetSubscriberOK(false)
		return nil
	})
	g.Go(func() error { return svc.Run(gctx, changes) })
	g.Go(func() error {
		health.RunLivenessChecker(gctx, rdb, reader.DB(), 15*time.Second)
		return nil
	})
	g.Go(func() error { return metrics.NewServer(cfg.MetricsAddr, health, nil).Run(gctx) })
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			slog.Info("serving", "component", "main", "addr", cfg.HTTPAddr)
			errCh <- srv.ListenAndServe()
		}()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-gctx.Done():
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return srv.Shutdown(shutdownCtx)
		}
	})

	return g.Wait()
}
