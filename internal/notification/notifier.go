// Package notification delivers operator status reports to external
// channels (log, webhook, Telegram).
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/time/rate"

	"stockwidget/internal/coordinator"
	"stockwidget/internal/logger"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Code    int        `json:"code"`
	Source  string     `json:"source,omitempty"`
	TraceID string     `json:"trace_id,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name labels the channel in logs and metrics.
	Name() string
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: slog.Default().With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	lvl := slog.LevelInfo
	switch alert.Level {
	case AlertWarning:
		lvl = slog.LevelWarn
	case AlertCritical:
		lvl = slog.LevelError
	}
	n.log.Log(ctx, lvl, alert.Title,
		append(logger.LogWithTrace(ctx), "code", alert.Code, "source", alert.Source, "message", alert.Message)...)
	return nil
}

// LevelFor maps a status code to an alert level.
func LevelFor(code int) AlertLevel {
	switch code {
	case coordinator.StatusActive:
		return AlertInfo
	case coordinator.StatusSourceMissing, coordinator.StatusConfigInvalid:
		return AlertWarning
	default:
		return AlertCritical
	}
}

// AlertFor builds the alert describing status s.
func AlertFor(ctx context.Context, s coordinator.Status) Alert {
	return Alert{
		Level:   LevelFor(s.Code),
		Title:   fmt.Sprintf("stock widget %s (%d)", s.State, s.Code),
		Message: s.Message,
		Code:    s.Code,
		Source:  s.Source,
		TraceID: logger.TraceID(ctx),
	}
}

// Reporter fans coordinator status reports out to notifiers. It implements
// coordinator.StatusReporter.
//
// The log notifier always receives every report; the other channels only
// get warnings and worse, throttled by a shared limiter.
type Reporter struct {
	logN     Notifier
	external []Notifier
	limiter  *rate.Limiter
	log      *slog.Logger

	// OnSent is called after every delivery attempt (optional).
	OnSent func(channel string, err error)
}

// NewReporter creates a Reporter. perMinute bounds external deliveries;
// <= 0 means unlimited.
func NewReporter(perMinute int, external ...Notifier) *Reporter {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	}
	return &Reporter{
		logN:     NewLogNotifier(),
		external: external,
		limiter:  limiter,
		log:      slog.Default().With(slog.String("component", "notify")),
	}
}

// Report delivers s. Delivery failures are logged, never returned.
func (r *Reporter) Report(ctx context.Context, s coordinator.Status) {
	alert := AlertFor(ctx, s)
	r.deliver(ctx, r.logN, alert)

	if alert.Level == AlertInfo || len(r.external) == 0 {
		return
	}
	if !r.limiter.Allow() {
		r.log.Warn("alert throttled", "code", strconv.Itoa(s.Code))
		return
	}
	for _, n := range r.external {
		r.deliver(ctx, n, alert)
	}
}

func (r *Reporter) deliver(ctx context.Context, n Notifier, alert Alert) {
	err := n.Send(ctx, alert)
	if err != nil {
		r.log.Error("alert delivery failed", append(logger.LogWithTrace(ctx), "channel", n.Name(), "error", err)...)
	}
	if r.OnSent != nil {
		r.OnSent(n.Name(), err)
	}
}
