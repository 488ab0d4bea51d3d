package model

import (
	"fmt"
	"time"
)

// DayLayout is the ISO calendar-date layout used for DayKey strings.
const DayLayout = "2006-01-02"

// DayKey identifies a calendar day as an ISO date string ("2025-06-30").
// ISO dates with four-digit years order lexically in chronological order,
// so DayKeys compare correctly with < and sort.Strings.
type DayKey string

// DayOf truncates t to its calendar day in loc.
func DayOf(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.Local
	}
	return DayKey(t.In(loc).Format(DayLayout))
}

// ParseDayKey validates s as an ISO calendar date.
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse day key %q: %w", s, err)
	}
	// Reject non-canonical spellings so map keys stay unique.
	if t.Format(DayLayout) != s {
		return "", fmt.Errorf("parse day key %q: not canonical", s)
	}
	return DayKey(s), nil
}

// String returns the ISO form.
func (d DayKey) String() string { return string(d) }

// Before reports whether d is an earlier day than o.
func (d DayKey) Before(o DayKey) bool { return d < o }

// AddDays returns the day n calendar days after d (n may be negative).
func (d DayKey) AddDays(n int) DayKey {
	t := d.utc()
	return DayKey(t.AddDate(0, 0, n).Format(DayLayout))
}

// Bounds returns the closed interval [00:00:00, 23:59:59] of d in loc.
func (d DayKey) Bounds(loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t := d.utc()
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
	return start, end
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b DayKey) int {
	return int(b.utc().Sub(a.utc()).Hours() / 24)
}

func (d DayKey) utc() time.Time {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}
