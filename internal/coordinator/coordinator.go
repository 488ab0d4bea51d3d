// Package coordinator reacts to configuration changes and variable-change
// notifications, keeps the window cache in sync and produces the payloads
// pushed to the visualization sink.
//
// Triggers must be delivered one at a time. The coordinator never returns
// errors: failures end up as a data gap, a log record or a status report.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stockwidget/internal/logger"
	"stockwidget/internal/model"
	"stockwidget/internal/settings"
	"stockwidget/internal/window"
)

// Sink accepts payloads for the visualization.
type Sink interface {
	Push(ctx context.Context, p Payload) error
}

// CacheFactory returns the window cache following source.
type CacheFactory func(source string) *window.Cache

// Options wires the coordinator's collaborators.
type Options struct {
	Caches     CacheFactory
	Subscriber model.Subscriber
	Variables  model.VariableDirectory
	Sink       Sink
	Status     StatusReporter // optional
	Logger     *slog.Logger
}

// Coordinator is the update state machine: Uninitialized → Active ⇄ Degraded.
type Coordinator struct {
	caches   CacheFactory
	sub      model.Subscriber
	vars     model.VariableDirectory
	sink     Sink
	status   StatusReporter
	log      *slog.Logger
	state    State
	settings settings.Settings
	cache    *window.Cache
	price    string
	trend    string // empty when unset or unresolved
	watched  []string
	reported Status // last status forwarded to the reporter

	// Metrics hooks (optional, set externally)
	OnPayload func(k Kind)
	OnFailure func(op string)
}

// New creates an Uninitialized coordinator.
func New(opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		caches: opts.Caches,
		sub:    opts.Subscriber,
		vars:   opts.Variables,
		sink:   opts.Sink,
		status: opts.Status,
		log:    log.With(slog.String("component", "coordinator")),
	}
}

// State returns the current state.
func (c *Coordinator) State() State { return c.state }

// Settings returns the last applied snapshot.
func (c *Coordinator) Settings() settings.Settings { return c.settings }

// ApplyConfig re-resolves the observed variables, re-subscribes, resyncs
// the window for today and pushes a FullRefresh. An unresolved price source
// moves to Degraded without any payload.
func (c *Coordinator) ApplyConfig(ctx context.Context, s settings.Settings, today model.DayKey) {
	log := c.log.With(logger.LogWithTrace(ctx)...)
	c.settings = s
	c.release(ctx)

	if err := s.Validate(); err != nil {
		c.degrade(ctx, StatusConfigInvalid, err.Error(), "")
		return
	}

	ok, err := c.resolve(ctx, s.PriceSource)
	if err != nil {
		c.fail("resolve")
		c.degrade(ctx, StatusBackendError, err.Error(), s.PriceSource)
		return
	}
	if !ok {
		c.degrade(ctx, StatusSourceMissing, "price variable does not exist", s.PriceSource)
		return
	}

	trend := ""
	if s.TrendSource != "" {
		ok, err := c.resolve(ctx, s.TrendSource)
		switch {
		case err != nil:
			log.Warn("trend variable not resolvable, trend text disabled", "source", s.TrendSource, "error", err)
		case !ok:
			log.Warn("trend variable does not exist, trend text disabled", "source", s.TrendSource)
		default:
			trend = s.TrendSource
		}
	}

	for _, src := range []string{s.PriceSource, trend} {
		if src == "" {
			continue
		}
		if err := c.sub.Subscribe(ctx, src); err != nil {
			c.fail("subscribe")
			c.release(ctx)
			c.degrade(ctx, StatusBackendError, err.Error(), src)
			return
		}
		c.watched = append(c.watched, src)
	}

	if c.cache == nil || c.cache.Source() != s.PriceSource {
		if c.cache != nil {
			log.Info("price variable changed, discarding its window", "from", c.cache.Source(), "to", s.PriceSource)
			if err := c.cache.Discard(ctx); err != nil {
				log.Warn("failed to discard previous window", "error", err)
			}
		}
		c.cache = c.caches(s.PriceSource)
	}
	c.price = s.PriceSource
	c.trend = trend
	c.state = StateActive

	values, err := c.resync(ctx, s.ChartDays, today)
	if err != nil {
		// Show whatever the persisted window still holds.
		values = []float64{}
		if s.ChartDays > 1 {
			if v, xerr := c.cache.ExportValues(ctx); xerr == nil {
				values = v
			}
		}
		c.reportFailure(ctx, err)
	} else {
		c.report(ctx, Status{Code: StatusActive, State: StateActive, Message: "active", Source: s.PriceSource})
	}

	c.push(ctx, NewFullRefresh(s, values, c.formatted(ctx, c.price), c.formatted(ctx, c.trend)))
	log.Info("configuration applied",
		"price", c.price, "trend", c.trend, "days", s.ChartDays, "points", len(values))
}

// ValueChanged handles a change notification. Notifications with
// Changed == false and notifications outside the Active state are ignored.
func (c *Coordinator) ValueChanged(ctx context.Context, ch model.Change, today model.DayKey) {
	if !ch.Changed || c.state != StateActive {
		return
	}
	switch ch.Source {
	case c.price:
		values, err := c.resync(ctx, c.settings.ChartDays, today)
		if err != nil {
			c.reportFailure(ctx, err)
			return
		}
		c.report(ctx, Status{Code: StatusActive, State: StateActive, Message: "active", Source: c.price})
		c.push(ctx, SeriesRefresh(values, c.formatted(ctx, c.price)))
	case c.trend:
		if c.trend == "" {
			return
		}
		c.push(ctx, TrendRefresh(c.formatted(ctx, c.trend)))
	default:
		c.log.Debug("ignoring change of unobserved variable", "source", ch.Source)
	}
}

// Teardown releases all subscriptions. No payload is emitted.
func (c *Coordinator) Teardown(ctx context.Context) {
	c.release(ctx)
	c.state = StateUninitialized
	c.price, c.trend = "", ""
}

func (c *Coordinator) resolve(ctx context.Context, source string) (bool, error) {
	if source == "" {
		return false, nil
	}
	return c.vars.Exists(ctx, source)
}

func (c *Coordinator) resync(ctx context.Context, days int, today model.DayKey) ([]float64, error) {
	st, err := c.cache.Resync(ctx, days, today)
	if err != nil {
		return nil, err
	}
	c.log.Debug("window resynced", append(logger.LogWithTrace(ctx),
		"action", st.Action, "mode", st.Mode.String())...)
	return st.Values(), nil
}

func (c *Coordinator) formatted(ctx context.Context, source string) *string {
	if source == "" {
		return nil
	}
	text, ok, err := c.vars.Formatted(ctx, source)
	if err != nil {
		c.log.Warn("formatted value unavailable", "source", source, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &text
}

func (c *Coordinator) push(ctx context.Context, p Payload) {
	if err := c.sink.Push(ctx, p); err != nil {
		c.fail("push")
		c.log.Error("push failed", append(logger.LogWithTrace(ctx), "kind", p.Kind(), "error", err)...)
		return
	}
	if c.OnPayload != nil {
		c.OnPayload(p.Kind())
	}
}

// release drops every subscription held for the current configuration.
func (c *Coordinator) release(ctx context.Context) {
	for _, src := range c.watched {
		if err := c.sub.Unsubscribe(ctx, src); err != nil {
			c.log.Warn("unsubscribe failed", "source", src, "error", err)
		}
	}
	c.watched = nil
}

func (c *Coordinator) degrade(ctx context.Context, code int, msg, source string) {
	c.state = StateDegraded
	c.price, c.trend = "", ""
	c.log.Warn("coordinator degraded", append(logger.LogWithTrace(ctx),
		"code", code, "reason", msg, "source", source)...)
	c.report(ctx, Status{Code: code, State: StateDegraded, Message: msg, Source: source})
}

func (c *Coordinator) reportFailure(ctx context.Context, err error) {
	code, op := StatusBackendError, "persist"
	if errors.Is(err, model.ErrFetch) {
		code, op = StatusFetchFailed, "fetch"
	}
	c.fail(op)
	c.log.Error("resync failed, keeping previous window", append(logger.LogWithTrace(ctx),
		"source", c.price, "error", err)...)
	c.report(ctx, Status{Code: code, State: c.state, Message: fmt.Sprintf("resync: %v", err), Source: c.price})
}

// report forwards s unless it repeats the previously reported code for the
// same variable.
func (c *Coordinator) report(ctx context.Context, s Status) {
	if s.Code == c.reported.Code && s.Source == c.reported.Source {
		return
	}
	c.reported = s
	if c.status != nil {
		c.status.Report(ctx, s)
	}
}

func (c *Coordinator) fail(op string) {
	if c.OnFailure != nil {
		c.OnFailure(op)
	}
}
