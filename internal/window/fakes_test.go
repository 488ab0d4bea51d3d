package window

import (
	"context"
	"errors"
	"sync"
	"time"

	"stockwidget/internal/model"
)

// fakeArchive serves points per day and records every query.
type fakeArchive struct {
	mu      sync.Mutex
	days    map[model.DayKey][]model.Point
	failOn  map[model.DayKey]bool
	queries []archiveQuery
}

type archiveQuery struct {
	Day model.DayKey
	Agg model.Aggregation
}

var errArchiveDown = errors.New("archive down")

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		days:   make(map[model.DayKey][]model.Point),
		failOn: make(map[model.DayKey]bool),
	}
}

// closeAt logs a single value at 17:30 UTC on day.
func (a *fakeArchive) closeAt(day model.DayKey, v float64) {
	start, _ := day.Bounds(time.UTC)
	a.days[day] = append(a.days[day], model.Point{TS: start.Add(17*time.Hour + 30*time.Minute), Value: v})
}

func (a *fakeArchive) tick(day model.DayKey, offset time.Duration, v float64) {
	start, _ := day.Bounds(time.UTC)
	a.days[day] = append(a.days[day], model.Point{TS: start.Add(offset), Value: v})
}

func (a *fakeArchive) Query(_ context.Context, _ string, start, _ time.Time, agg model.Aggregation) ([]model.Point, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	day := model.DayOf(start, time.UTC)
	a.queries = append(a.queries, archiveQuery{Day: day, Agg: agg})
	if a.failOn[day] {
		return nil, errArchiveDown
	}
	pts := a.days[day]
	out := make([]model.Point, len(pts))
	copy(out, pts)
	return out, nil
}

func (a *fakeArchive) queriedDays() []model.DayKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.DayKey, len(a.queries))
	for i, q := range a.queries {
		out[i] = q.Day
	}
	return out
}

func (a *fakeArchive) reset() {
	a.mu.Lock()
	a.queries = nil
	a.mu.Unlock()
}

// memStore is an in-memory BlobStore.
type memStore struct {
	data    []byte
	saves   int
	deletes int
	loadErr error
}

func (s *memStore) Load(context.Context) ([]byte, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

func (s *memStore) Save(_ context.Context, data []byte) error {
	s.data = append([]byte(nil), data...)
	s.saves++
	return nil
}

func (s *memStore) Delete(context.Context) error {
	s.data = nil
	s.deletes++
	return nil
}

func newTestCache(a *fakeArchive, s *memStore) *Cache {
	return New(a, s, Config{Source: "12345", Location: time.UTC})
}
