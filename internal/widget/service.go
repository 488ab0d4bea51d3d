// Package widget runs one stock widget: it owns the coordinator and feeds
// it configuration and change triggers from a single event loop, so that
// triggers are processed strictly one at a time.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"stockwidget/internal/coordinator"
	"stockwidget/internal/logger"
	"stockwidget/internal/metrics"
	"stockwidget/internal/model"
	"stockwidget/internal/settings"
	"stockwidget/internal/window"
)

// Config wires the service's collaborators.
type Config struct {
	Archive    model.Archive
	CacheBlobs func(source string) model.BlobStore // persisted window blob per price variable
	Settings   *settings.Store                     // optional; persists applied snapshots
	Subscriber model.Subscriber
	Variables  model.VariableDirectory
	Sink       coordinator.Sink
	Status     coordinator.StatusReporter // optional downstream reporter
	Metrics    *metrics.Metrics           // optional

	// Initial is applied on start when no persisted snapshot exists.
	Initial settings.Settings

	Location         *time.Location
	LiveLookbackDays int
	Now              func() time.Time
}

type triggerKind int

const (
	triggerConfig triggerKind = iota
	triggerChange
)

type trigger struct {
	kind     triggerKind
	settings settings.Settings
	change   model.Change
}

// Service is the widget's event loop.
type Service struct {
	cfg      Config
	coord    *coordinator.Coordinator
	triggers chan trigger
	log      *slog.Logger

	mu       sync.RWMutex
	settings settings.Settings
	status   coordinator.Status

	// OnTrigger is called before every trigger is processed (optional).
	OnTrigger func(kind string)
}

// New creates a Service. Run must be called to start processing.
func New(cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Service{
		cfg:      cfg,
		triggers: make(chan trigger, 8),
		log:      slog.Default().With(slog.String("component", "widget")),
		settings: cfg.Initial,
	}
	s.coord = coordinator.New(coordinator.Options{
		Caches:     s.newCache,
		Subscriber: cfg.Subscriber,
		Variables:  cfg.Variables,
		Sink:       cfg.Sink,
		Status:     s,
	})
	if m := cfg.Metrics; m != nil {
		s.coord.OnPayload = func(k coordinator.Kind) { m.PayloadsTotal.WithLabelValues(string(k)).Inc() }
		s.coord.OnFailure = func(op string) { m.FailuresTotal.WithLabelValues(op).Inc() }
	}
	return s
}

func (s *Service) newCache(source string) *window.Cache {
	wc := window.Config{
		Source:           source,
		Location:         s.cfg.Location,
		LiveLookbackDays: s.cfg.LiveLookbackDays,
	}
	if m := s.cfg.Metrics; m != nil {
		wc.OnResync = func(a window.Action, elapsed time.Duration) { m.ObserveResync(string(a), elapsed) }
	}
	return window.New(s.cfg.Archive, s.cfg.CacheBlobs(source), wc)
}

// Run applies the persisted (or initial) configuration, then processes
// configuration triggers and the changes read from changes until ctx is
// cancelled. Subscriptions are released on return.
func (s *Service) Run(ctx context.Context, changes <-chan model.Change) error {
	initial := s.cfg.Initial
	if s.cfg.Settings != nil {
		st, ok, err := s.cfg.Settings.Load(ctx)
		switch {
		case err != nil:
			s.log.Warn("persisted settings unavailable, using initial", "error", err)
		case ok:
			s.log.Info("restored persisted settings", "price", st.PriceSource, "days", st.ChartDays)
			initial = st
		}
	}
	s.handle(ctx, trigger{kind: triggerConfig, settings: initial})

	for {
		select {
		case <-ctx.Done():
			s.coord.Teardown(context.Background())
			s.setState()
			s.log.Info("widget stopped")
			return nil
		case t := <-s.triggers:
			s.handle(ctx, t)
		case ch, ok := <-changes:
			if !ok {
				changes = nil
				s.log.Warn("change stream closed")
				continue
			}
			s.handle(ctx, trigger{kind: triggerChange, change: ch})
		}
	}
}

func (s *Service) handle(ctx context.Context, t trigger) {
	today := model.DayOf(s.cfg.Now(), s.cfg.Location)
	switch t.kind {
	case triggerConfig:
		ctx = logger.WithTraceID(ctx, logger.NewTraceID("cfg"))
		if s.OnTrigger != nil {
			s.OnTrigger("config")
		}
		s.mu.Lock()
		s.settings = t.settings
		s.mu.Unlock()
		s.coord.ApplyConfig(ctx, t.settings, today)
	case triggerChange:
		ctx = logger.WithTraceID(ctx, logger.NewTraceID("chg"))
		if s.OnTrigger != nil {
			s.OnTrigger("change")
		}
		s.coord.ValueChanged(ctx, t.change, today)
	}
	s.setState()
}

func (s *Service) setState() {
	st := s.coord.State()
	s.mu.Lock()
	s.status.State = st
	s.mu.Unlock()
	if m := s.cfg.Metrics; m != nil {
		m.CoordinatorState.Set(float64(st))
	}
}

// Apply validates st, persists it and queues it as a configuration trigger.
// It returns before the configuration is processed.
func (s *Service) Apply(ctx context.Context, st settings.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if s.cfg.Settings != nil {
		if err := s.cfg.Settings.Save(ctx, st); err != nil {
			return fmt.Errorf("persist settings: %w", err)
		}
	}
	select {
	case s.triggers <- trigger{kind: triggerConfig, settings: st}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settings returns the last snapshot handed to the coordinator.
func (s *Service) Settings() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Status returns the last reported status with the current state.
func (s *Service) Status() coordinator.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Report records st and forwards it downstream.
func (s *Service) Report(ctx context.Context, st coordinator.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	if m := s.cfg.Metrics; m != nil {
		m.StatusReports.WithLabelValues(strconv.Itoa(st.Code)).Inc()
	}
	if s.cfg.Status != nil {
		s.cfg.Status.Report(ctx, st)
	}
}
