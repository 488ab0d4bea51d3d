// Package window keeps a rolling window of daily closing values for one
// archived variable. The window is persisted as a single JSON blob and is
// rebuilt from the archive, slid forward by a day, or left alone depending
// on how the persisted copy compares to the requested size and today.
//
// A window size of 1 switches to live-day mode: instead of one value per
// day the cache holds every sample logged today.
//
// A Cache is owned by one caller and is not safe for concurrent use.
package window

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stockwidget/internal/model"
)

// DefaultLiveLookbackDays bounds how far live-day mode searches backwards
// for a day with samples.
const DefaultLiveLookbackDays = 3

// Mode tells which representation a State carries.
type Mode int

const (
	ModeWindow  Mode = 0 // N daily samples
	ModeLiveDay Mode = 1 // intraday samples of a single day
)

func (m Mode) String() string {
	switch m {
	case ModeWindow:
		return "window"
	case ModeLiveDay:
		return "live-day"
	default:
		return "unknown"
	}
}

// Action records what a Resync did.
type Action string

const (
	ActionUnchanged Action = "unchanged"
	ActionRebuild   Action = "rebuild"
	ActionSlide     Action = "slide"
	ActionLive      Action = "live"
)

// State is the outcome of a Resync.
type State struct {
	Mode   Mode
	Action Action
	Window model.Window  // set in ModeWindow
	Live   []model.Point // set in ModeLiveDay, ordered by timestamp
}

// Values returns the chartable values of s, oldest first. Never nil.
func (s State) Values() []float64 {
	if s.Mode == ModeLiveDay {
		return liveValues(s.Live)
	}
	return s.Window.Values()
}

// Config configures a Cache.
type Config struct {
	Source           string         // archived variable the window follows
	Location         *time.Location // zone that defines calendar days; default time.Local
	LiveLookbackDays int            // default DefaultLiveLookbackDays
	Logger           *slog.Logger

	// OnResync is called after every successful Resync (optional).
	OnResync func(a Action, elapsed time.Duration)
}

// Cache is the rolling daily-value cache.
type Cache struct {
	archive  model.Archive
	store    model.BlobStore
	source   string
	loc      *time.Location
	lookback int
	log      *slog.Logger
	onResync func(Action, time.Duration)

	liveMode bool
	live     []model.Point
}

// New creates a Cache reading from archive and persisting into store.
func New(archive model.Archive, store model.BlobStore, cfg Config) *Cache {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	lookback := cfg.LiveLookbackDays
	if lookback <= 0 {
		lookback = DefaultLiveLookbackDays
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		archive:  archive,
		store:    store,
		source:   cfg.Source,
		loc:      loc,
		lookback: lookback,
		log:      log.With(slog.String("component", "window"), slog.String("source", cfg.Source)),
		onResync: cfg.OnResync,
	}
}

// Source returns the archived variable this cache follows.
func (c *Cache) Source() string { return c.source }

// Resync brings the cache up to date for size and today.
//
// On success a window-mode State has exactly size samples ending at today.
// On error nothing has been persisted and the previous blob is intact.
func (c *Cache) Resync(ctx context.Context, size int, today model.DayKey) (State, error) {
	if size < 1 {
		return State{}, fmt.Errorf("%w: window size %d", model.ErrConfigInvalid, size)
	}
	start := time.Now()

	if size == 1 {
		st, err := c.resyncLive(ctx, today)
		if err != nil {
			return State{}, err
		}
		c.done(st.Action, start)
		return st, nil
	}
	c.liveMode = false
	c.live = nil

	current, err := c.load(ctx)
	if err != nil {
		return State{}, err
	}

	reason := rebuildReason(current, size, today)
	if reason != "" {
		c.log.Info("rebuilding window", "reason", reason, "size", size, "today", today)
		w, err := c.Rebuild(ctx, size, today)
		if err != nil {
			return State{}, err
		}
		if err := c.save(ctx, w); err != nil {
			return State{}, err
		}
		c.done(ActionRebuild, start)
		return State{Mode: ModeWindow, Action: ActionRebuild, Window: w}, nil
	}

	last, _ := current.Last()
	gap := model.DaysBetween(last.Day, today)
	if gap == 0 {
		c.done(ActionUnchanged, start)
		return State{Mode: ModeWindow, Action: ActionUnchanged, Window: current}, nil
	}

	c.log.Info("change of day, sliding window", "from", last.Day, "to", today, "steps", gap)
	w := current
	for i := 1; i <= gap; i++ {
		w, err = c.Slide(ctx, w, last.Day.AddDays(i))
		if err != nil {
			return State{}, err
		}
	}
	if err := c.save(ctx, w); err != nil {
		return State{}, err
	}
	c.done(ActionSlide, start)
	return State{Mode: ModeWindow, Action: ActionSlide, Window: w}, nil
}

// rebuildReason returns why current cannot be slid into place, or "" when
// it can be reused (unchanged or slid forward).
func rebuildReason(current model.Window, size int, today model.DayKey) string {
	if len(current) == 0 {
		return "cache empty"
	}
	if len(current) != size {
		return "window size changed"
	}
	if !current.Contiguous() {
		return "window not contiguous"
	}
	last, _ := current.Last()
	gap := model.DaysBetween(last.Day, today)
	switch {
	case gap < 0:
		return "last day after today"
	case gap >= size:
		return "window fully expired"
	}
	return ""
}

// Rebuild reconstructs a window of size days ending at today, one archive
// query per day. Days without data become gaps.
func (c *Cache) Rebuild(ctx context.Context, size int, today model.DayKey) (model.Window, error) {
	w := make(model.Window, 0, size)
	for i := size - 1; i >= 0; i-- {
		day := today.AddDays(-i)
		v, err := c.LastLoggedValue(ctx, day)
		if err != nil {
			return nil, err
		}
		w = append(w, model.Sample{Day: day, Value: v})
	}
	return w, nil
}

// Slide drops the oldest sample of current and appends the value for day.
// current is not modified.
func (c *Cache) Slide(ctx context.Context, current model.Window, day model.DayKey) (model.Window, error) {
	v, err := c.LastLoggedValue(ctx, day)
	if err != nil {
		return nil, err
	}
	next := make(model.Window, 0, len(current))
	if len(current) > 0 {
		next = append(next, current[1:]...)
	}
	return append(next, model.Sample{Day: day, Value: v}), nil
}

// ExportValues returns the present values of the cache, oldest first,
// without touching the archive. A corrupt blob exports as empty.
func (c *Cache) ExportValues(ctx context.Context) ([]float64, error) {
	if c.liveMode {
		return liveValues(c.live), nil
	}
	w, err := c.load(ctx)
	if err != nil {
		return []float64{}, err
	}
	return w.Values(), nil
}

// Discard deletes the persisted window and forgets any live-day samples.
func (c *Cache) Discard(ctx context.Context) error {
	c.liveMode = false
	c.live = nil
	if err := c.store.Delete(ctx); err != nil {
		return fmt.Errorf("discard window cache: %w", err)
	}
	return nil
}

func (c *Cache) resyncLive(ctx context.Context, today model.DayKey) (State, error) {
	pts, err := c.LiveDay(ctx, today)
	if err != nil {
		return State{}, err
	}
	// Live-day mode keeps no windowed representation.
	if err := c.store.Delete(ctx); err != nil {
		c.log.Warn("failed to discard persisted window", "error", err)
	}
	c.liveMode = true
	c.live = pts
	return State{Mode: ModeLiveDay, Action: ActionLive, Live: pts}, nil
}

// load reads the persisted window. A corrupt blob is logged and treated as
// absent so the caller rebuilds.
func (c *Cache) load(ctx context.Context) (model.Window, error) {
	data, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load window cache: %w", err)
	}
	w, err := decode(data)
	if err != nil {
		c.log.Warn("discarding persisted window", "error", err)
		return nil, nil
	}
	return w, nil
}

func (c *Cache) save(ctx context.Context, w model.Window) error {
	data, err := encode(w)
	if err != nil {
		return err
	}
	if err := c.store.Save(ctx, data); err != nil {
		return fmt.Errorf("save window cache: %w", err)
	}
	return nil
}

func (c *Cache) done(a Action, start time.Time) {
	if c.onResync != nil {
		c.onResync(a, time.Since(start))
	}
}

func liveValues(pts []model.Point) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Value
	}
	return out
}
