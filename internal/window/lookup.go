package window

import (
	"context"
	"errors"
	"sort"
	"time"

	"stockwidget/internal/model"
)

// LastLoggedValue returns the closing value logged for day, or nil when the
// archive has nothing for that day. Archive failures come back as a
// *model.FetchError; there is no retry here.
func (c *Cache) LastLoggedValue(ctx context.Context, day model.DayKey) (*float64, error) {
	start, end := day.Bounds(c.loc)
	pts, err := c.archive.Query(ctx, c.source, start, end, model.AggLastPoint)
	if err != nil {
		return nil, asFetchError(err, c.source, start, end, model.AggLastPoint)
	}
	if len(pts) == 0 {
		c.log.Debug("no value logged", "day", day)
		return nil, nil
	}

	last := pts[0]
	for _, p := range pts[1:] {
		if !p.TS.Before(last.TS) {
			last = p
		}
	}
	c.log.Debug("last logged value", "day", day, "value", last.Value)
	return model.Float(last.Value), nil
}

// LiveDay fetches the full intraday curve for today. When today has no
// samples it steps back one day at a time, at most lookback days, and uses
// the first day that has any. The result is ordered by timestamp with one
// entry per timestamp. A single sample is duplicated so consumers always
// see at least two points.
func (c *Cache) LiveDay(ctx context.Context, today model.DayKey) ([]model.Point, error) {
	for back := 0; back <= c.lookback; back++ {
		day := today.AddDays(-back)
		start, end := day.Bounds(c.loc)
		pts, err := c.archive.Query(ctx, c.source, start, end, model.AggRaw)
		if err != nil {
			return nil, asFetchError(err, c.source, start, end, model.AggRaw)
		}
		if len(pts) == 0 {
			continue
		}
		c.log.Debug("intraday values found", "day", day, "days_back", back, "points", len(pts))
		return normalizeLive(pts), nil
	}

	c.log.Info("no intraday values within lookback", "today", today, "lookback_days", c.lookback)
	return []model.Point{}, nil
}

// normalizeLive keys points by timestamp (later entries win), orders them
// and pads a lone point to two entries.
func normalizeLive(pts []model.Point) []model.Point {
	byTS := make(map[int64]model.Point, len(pts))
	for _, p := range pts {
		byTS[p.TS.UnixNano()] = p
	}
	out := make([]model.Point, 0, len(byTS)+1)
	for _, p := range byTS {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })

	if len(out) == 1 {
		out = append(out, out[0])
	}
	return out
}

func asFetchError(err error, source string, start, end time.Time, agg model.Aggregation) error {
	var fe *model.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &model.FetchError{Source: source, Start: start, End: end, Agg: agg, Err: err}
}
