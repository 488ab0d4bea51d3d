// Package archive is the client side of the archive gateway. It wraps a
// backend (SQLite in production) with request throttling, a circuit
// breaker and uniform FetchError reporting. It never retries: a failed
// query surfaces to the caller, which retries on its next trigger.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"stockwidget/internal/breaker"
	"stockwidget/internal/model"
)

// Options configures a Client. Zero values disable the matching feature.
type Options struct {
	RatePerSec float64 // sustained query rate; <= 0 means unlimited
	Burst      int     // limiter burst; defaults to 1 when RatePerSec is set
	Timeout    time.Duration
	Breaker    *breaker.Breaker

	// OnQuery is called after every backend query (optional).
	OnQuery func(agg model.Aggregation, elapsed time.Duration, points int, err error)
}

// Client implements model.Archive on top of a backend archive.
type Client struct {
	backend model.Archive
	limiter *rate.Limiter
	cb      *breaker.Breaker
	timeout time.Duration
	onQuery func(model.Aggregation, time.Duration, int, error)
}

// New wraps backend.
func New(backend model.Archive, opts Options) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	return &Client{
		backend: backend,
		limiter: limiter,
		cb:      opts.Breaker,
		timeout: opts.Timeout,
		onQuery: opts.OnQuery,
	}
}

// Query returns the points logged for source in [start, end].
// With AggLastPoint at most one point, the latest, is returned.
// Every failure is a *model.FetchError.
func (c *Client) Query(ctx context.Context, source string, start, end time.Time, agg model.Aggregation) ([]model.Point, error) {
	fail := func(err error) error {
		return &model.FetchError{Source: source, Start: start, End: end, Agg: agg, Err: err}
	}
	if source == "" {
		return nil, fail(errors.New("empty source id"))
	}
	if end.Before(start) {
		return nil, fail(fmt.Errorf("interval end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)))
	}
	if agg != model.AggLastPoint && agg != model.AggRaw {
		return nil, fail(fmt.Errorf("unknown aggregation %q", agg))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fail(fmt.Errorf("rate limit wait: %w", err))
	}

	var pts []model.Point
	call := func() error {
		qctx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		var err error
		pts, err = c.backend.Query(qctx, source, start, end, agg)
		return err
	}

	begin := time.Now()
	var err error
	if c.cb != nil {
		err = c.cb.Execute(call)
	} else {
		err = call()
	}
	if c.onQuery != nil {
		c.onQuery(agg, time.Since(begin), len(pts), err)
	}
	if err != nil {
		var fe *model.FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, fail(err)
	}

	if agg == model.AggLastPoint && len(pts) > 1 {
		pts = pts[len(pts)-1:]
	}
	if pts == nil {
		pts = []model.Point{}
	}
	return pts, nil
}
