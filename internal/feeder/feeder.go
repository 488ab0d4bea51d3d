// Package feeder simulates the host platform for local runs: it random-walks
// a price variable, logs every sample into the archive, updates the variable
// directory and publishes change notifications. An optional trend variable
// carries the change since the day's open in percent.
package feeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"stockwidget/internal/model"
	"stockwidget/internal/store/sqlite"
)

// Variables is the writable side of the variable directory.
type Variables interface {
	Set(ctx context.Context, source string, value float64, suffix string, ts time.Time) error
}

// Publisher emits change notifications.
type Publisher interface {
	Publish(ctx context.Context, c model.Change) error
}

// History is the archive used for backfill.
type History interface {
	Insert(ctx context.Context, source string, p model.Point) error
	LastTimestamp(ctx context.Context, source string) (time.Time, error)
}

// Config configures a Feeder.
type Config struct {
	Price        string // price source id
	Trend        string // optional trend source id
	PriceSuffix  string
	Start        decimal.Decimal
	Interval     time.Duration
	BackfillDays int
	Location     *time.Location
	Seed         int64
}

var (
	hundred  = decimal.NewFromInt(100)
	minPrice = decimal.New(1, -2)
	closeAt  = 17 * time.Hour
)

// Feeder is the simulated price source.
type Feeder struct {
	cfg     Config
	vars    Variables
	pub     Publisher
	history History
	records chan<- sqlite.Record
	rng     *rand.Rand
	log     *slog.Logger

	price decimal.Decimal
	open  decimal.Decimal
	trend decimal.Decimal
	day   model.DayKey

	// OnSample is called for every generated sample (optional).
	OnSample func(source string)
}

// New creates a Feeder. Live samples go to records, which a batched
// sqlite.Writer drains and acknowledges.
func New(cfg Config, vars Variables, pub Publisher, history History, records chan<- sqlite.Record) *Feeder {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.PriceSuffix == "" {
		cfg.PriceSuffix = "€"
	}
	if !cfg.Start.IsPositive() {
		cfg.Start = hundred
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Feeder{
		cfg:     cfg,
		vars:    vars,
		pub:     pub,
		history: history,
		records: records,
		rng:     rand.New(rand.NewSource(seed)),
		log:     slog.Default().With(slog.String("component", "feeder")),
		price:   cfg.Start,
		open:    cfg.Start,
	}
}

// Price returns the current simulated price.
func (f *Feeder) Price() decimal.Decimal { return f.price }

// walk applies a random step of at most ±maxPct percent, rounded to cents.
func (f *Feeder) walk(price decimal.Decimal, maxPct float64) decimal.Decimal {
	pct := (f.rng.Float64()*2 - 1) * maxPct / 100
	next := price.Mul(decimal.NewFromFloat(1 + pct)).Round(2)
	if next.LessThan(minPrice) {
		return minPrice
	}
	return next
}

// Backfill logs one daily close for each of the BackfillDays days before
// now's day, unless the price source already has archived samples.
func (f *Feeder) Backfill(ctx context.Context, now time.Time) error {
	if f.cfg.BackfillDays <= 0 {
		return nil
	}
	last, err := f.history.LastTimestamp(ctx, f.cfg.Price)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	if !last.IsZero() {
		f.log.Info("archive already populated, skipping backfill", "last", last)
		return nil
	}

	today := model.DayOf(now, f.cfg.Location)
	price := f.price
	for i := f.cfg.BackfillDays; i >= 1; i-- {
		day := today.AddDays(-i)
		start, _ := day.Bounds(f.cfg.Location)
		price = f.walk(price, 2)
		v, _ := price.Float64()
		if err := f.history.Insert(ctx, f.cfg.Price, model.Point{TS: start.Add(closeAt), Value: v}); err != nil {
			return fmt.Errorf("backfill %s: %w", day, err)
		}
	}
	f.price, f.open = price, price
	f.log.Info("archive backfilled", "days", f.cfg.BackfillDays, "close", price.StringFixed(2))
	return nil
}

// Tick generates one sample at now and propagates it. Samples are committed
// to the archive before they are announced.
func (f *Feeder) Tick(ctx context.Context, now time.Time) error {
	if day := model.DayOf(now, f.cfg.Location); day != f.day {
		f.day = day
		f.open = f.price
	}

	old := f.price
	f.price = f.walk(old, 0.1)
	batch := []sample{{source: f.cfg.Price, old: old, cur: f.price, suffix: f.cfg.PriceSuffix}}

	if f.cfg.Trend != "" {
		oldTrend := f.trend
		f.trend = f.price.Sub(f.open).Div(f.open).Mul(hundred).Round(2)
		batch = append(batch, sample{source: f.cfg.Trend, old: oldTrend, cur: f.trend, suffix: "%"})
	}

	if err := f.archive(ctx, batch, now); err != nil {
		return err
	}
	for _, s := range batch {
		if err := f.announce(ctx, s, now); err != nil {
			return err
		}
	}
	return nil
}

type sample struct {
	source   string
	old, cur decimal.Decimal
	suffix   string
}

// archive queues batch to the writer and waits until it is committed.
func (f *Feeder) archive(ctx context.Context, batch []sample, now time.Time) error {
	done := make(chan error, len(batch))
	for _, s := range batch {
		v, _ := s.cur.Float64()
		select {
		case f.records <- sqlite.Record{Source: s.source, Point: model.Point{TS: now, Value: v}, Done: done}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for range batch {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("archive sample: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *Feeder) announce(ctx context.Context, s sample, now time.Time) error {
	v, _ := s.cur.Float64()
	o, _ := s.old.Float64()
	if err := f.vars.Set(ctx, s.source, v, s.suffix, now); err != nil {
		return err
	}
	err := f.pub.Publish(ctx, model.Change{Source: s.source, Value: v, Old: o, Changed: !s.cur.Equal(s.old), TS: now})
	if err != nil {
		return err
	}
	if f.OnSample != nil {
		f.OnSample(s.source)
	}
	return nil
}

// Run ticks every Interval until ctx is cancelled. A failed tick is logged
// and the next one is attempted.
func (f *Feeder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := f.Tick(ctx, now); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				f.log.Warn("tick failed", "error", err)
			}
		}
	}
}
