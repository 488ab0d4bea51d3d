package model

import (
	"errors"
	"testing"
	"time"
)

func TestDayOf_UsesLocation(t *testing.T) {
	// 2025-07-01 02:00 UTC is still June 30 in New York.
	ts := time.Date(2025, 7, 1, 2, 0, 0, 0, time.UTC)
	ny := time.FixedZone("EDT", -4*3600)

	if got := DayOf(ts, time.UTC); got != "2025-07-01" {
		t.Errorf("utc: got %s, want 2025-07-01", got)
	}
	if got := DayOf(ts, ny); got != "2025-06-30" {
		t.Errorf("ny: got %s, want 2025-06-30", got)
	}
}

func TestParseDayKey(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2025-06-01", false},
		{"2024-02-29", false},
		{"2025-02-29", true},
		{"2025-6-1", true},
		{"1750000000", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseDayKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDayKey(%q): err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
	}
}

func TestAddDays_CrossesMonthAndYear(t *testing.T) {
	tests := []struct {
		day  DayKey
		n    int
		want DayKey
	}{
		{"2025-06-30", 1, "2025-07-01"},
		{"2025-07-01", -30, "2025-06-01"},
		{"2024-12-31", 1, "2025-01-01"},
		{"2024-03-01", -1, "2024-02-29"},
		{"2025-06-15", 0, "2025-06-15"},
	}
	for _, tt := range tests {
		if got := tt.day.AddDays(tt.n); got != tt.want {
			t.Errorf("%s%+d: got %s, want %s", tt.day, tt.n, got, tt.want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween("2025-06-30", "2025-07-01"); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if got := DaysBetween("2025-07-01", "2025-06-01"); got != -30 {
		t.Errorf("got %d, want -30", got)
	}
	if got := DaysBetween("2025-07-01", "2025-07-01"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestBounds(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	start, end := DayKey("2025-06-01").Bounds(loc)

	wantStart := time.Date(2025, 6, 1, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2025, 6, 1, 23, 59, 59, 0, loc)
	if !start.Equal(wantStart) {
		t.Errorf("start: got %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end: got %v, want %v", end, wantEnd)
	}
}

func TestWindow_ValuesSkipsGaps(t *testing.T) {
	w := Window{
		{Day: "2025-06-01", Value: Float(1)},
		{Day: "2025-06-02"},
		{Day: "2025-06-03", Value: Float(3)},
	}
	vals := w.Values()
	if len(vals) != 2 || vals[0] != 1 || vals[1] != 3 {
		t.Errorf("got %v, want [1 3]", vals)
	}
	if !w.Contiguous() {
		t.Error("expected contiguous window")
	}

	w[2].Day = "2025-06-05"
	if w.Contiguous() {
		t.Error("expected non-contiguous window")
	}
}

func TestWindow_ValuesNeverNil(t *testing.T) {
	var w Window
	if w.Values() == nil {
		t.Error("expected empty, non-nil slice")
	}
	if _, ok := w.Last(); ok {
		t.Error("expected no last sample")
	}
}

func TestFetchError_IsErrFetch(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&FetchError{Source: "12345", Agg: AggRaw, Err: cause})

	if !errors.Is(err, ErrFetch) {
		t.Error("expected errors.Is(err, ErrFetch)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Source != "12345" {
		t.Errorf("errors.As failed: %v", fe)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		suffix string
		want   string
	}{
		{1234.5, 2, "€", "1234.50 €"},
		{0.1 + 0.2, 2, "", "0.30"},
		{-3.14159, 3, " % ", "-3.142 %"},
		{42, 0, "pts", "42 pts"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v, tt.places, tt.suffix); got != tt.want {
			t.Errorf("FormatValue(%v, %d, %q): got %q, want %q", tt.v, tt.places, tt.suffix, got, tt.want)
		}
	}
}
