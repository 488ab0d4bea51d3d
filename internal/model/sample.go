package model

import "time"

// Sample is one window slot. Value is nil when the archive had no logged
// point for Day (weekend, holiday, offline); the slot is still kept.
type Sample struct {
	Day   DayKey   `json:"day"`
	Value *float64 `json:"value"`
}

// Present reports whether the slot carries a value.
func (s Sample) Present() bool { return s.Value != nil }

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 { return &v }

// Window is an ordered run of daily samples, oldest first.
type Window []Sample

// Last returns the most recent sample.
func (w Window) Last() (Sample, bool) {
	if len(w) == 0 {
		return Sample{}, false
	}
	return w[len(w)-1], true
}

// Values returns the present values, oldest first. Never nil.
func (w Window) Values() []float64 {
	out := make([]float64, 0, len(w))
	for _, s := range w {
		if s.Value != nil {
			out = append(out, *s.Value)
		}
	}
	return out
}

// Days returns the day keys in window order.
func (w Window) Days() []DayKey {
	out := make([]DayKey, len(w))
	for i, s := range w {
		out[i] = s.Day
	}
	return out
}

// Contiguous reports whether every day follows its predecessor by exactly one.
func (w Window) Contiguous() bool {
	for i := 1; i < len(w); i++ {
		if w[i-1].Day.AddDays(1) != w[i].Day {
			return false
		}
	}
	return true
}

// Point is one timestamped archive sample.
type Point struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// Aggregation selects how the archive summarises an interval.
type Aggregation string

const (
	// AggLastPoint asks for one representative point: the last value logged in the interval.
	AggLastPoint Aggregation = "last-point"
	// AggRaw asks for every logged point in the interval.
	AggRaw Aggregation = "raw"
)

// Change is a variable-change notification delivered by the host platform.
type Change struct {
	Source  string    `json:"source"`
	Value   float64   `json:"value"`
	Old     float64   `json:"old"`
	Changed bool      `json:"changed"`
	TS      time.Time `json:"ts"`
}
