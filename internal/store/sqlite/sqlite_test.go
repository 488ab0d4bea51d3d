package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stockwidget/internal/model"
)

func openPair(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return w, r
}

func TestQuery_RawAndLastPoint(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := day.Add(24*time.Hour - time.Second)
	for i, v := range []float64{10.5, 11.25, 10.75} {
		if err := w.Insert(ctx, "12345", model.Point{TS: day.Add(time.Duration(9+i) * time.Hour), Value: v}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	// Other source and next day must not leak into the result.
	w.Insert(ctx, "99999", model.Point{TS: day.Add(10 * time.Hour), Value: 1})
	w.Insert(ctx, "12345", model.Point{TS: day.Add(24 * time.Hour), Value: 2})

	raw, err := r.Query(ctx, "12345", day, end, model.AggRaw)
	if err != nil {
		t.Fatalf("raw query: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("raw: got %d points, want 3", len(raw))
	}
	if raw[0].Value != 10.5 || raw[2].Value != 10.75 {
		t.Errorf("raw order: got %v", raw)
	}

	last, err := r.Query(ctx, "12345", day, end, model.AggLastPoint)
	if err != nil {
		t.Fatalf("last query: %v", err)
	}
	if len(last) != 1 || last[0].Value != 10.75 {
		t.Errorf("last point: got %v, want [10.75]", last)
	}
}

func TestQuery_EndInclusiveToTheSecond(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := day.Add(24*time.Hour - time.Second)
	w.Insert(ctx, "12345", model.Point{TS: end.Add(500 * time.Millisecond), Value: 7})

	pts, err := r.Query(ctx, "12345", day, end, model.AggRaw)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(pts) != 1 {
		t.Errorf("got %d points, want 1", len(pts))
	}
}

func TestQuery_EmptyDay(t *testing.T) {
	_, r := openPair(t)
	day := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)

	pts, err := r.Query(context.Background(), "12345", day, day.Add(24*time.Hour-time.Second), model.AggLastPoint)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if pts == nil || len(pts) != 0 {
		t.Errorf("expected empty non-nil result, got %v", pts)
	}
}

func TestRun_FlushesOnClose(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)

	var committed int
	w.onCommit = func(n int, _ time.Duration, err error) {
		if err != nil {
			t.Errorf("commit: %v", err)
		}
		committed += n
	}

	ch := make(chan Record, 10)
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ch <- Record{Source: "12345", Point: model.Point{TS: base.Add(time.Duration(i) * time.Minute), Value: float64(i)}}
	}
	close(ch)
	w.Run(ctx, ch)

	if committed != 5 {
		t.Errorf("committed: got %d, want 5", committed)
	}
	last, err := w.LastTimestamp(ctx, "12345")
	if err != nil {
		t.Fatalf("last timestamp: %v", err)
	}
	if !last.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("last timestamp: got %v", last)
	}

	pts, _ := r.Query(ctx, "12345", base, base.Add(time.Hour), model.AggRaw)
	if len(pts) != 5 {
		t.Errorf("got %d points, want 5", len(pts))
	}
}

func TestRun_AcknowledgesAfterCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, r := openPair(t)

	ch := make(chan Record)
	go w.Run(ctx, ch)

	ts := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	done := make(chan error, 1)
	ch <- Record{Source: "12345", Point: model.Point{TS: ts, Value: 7}, Done: done}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("record was not acknowledged")
	}

	// Once acknowledged the sample is visible to readers.
	pts, err := r.Query(ctx, "12345", ts, ts.Add(time.Hour), model.AggLastPoint)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(pts) != 1 || pts[0].Value != 7 {
		t.Errorf("got %v, want one point of 7", pts)
	}
}
