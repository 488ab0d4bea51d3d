package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"stockwidget/internal/model"
	"stockwidget/internal/settings"
	"stockwidget/internal/window"
)

var errDown = errors.New("backend down")

// fakeArchive serves days for the default price variable and others for
// any other source.
type fakeArchive struct {
	days    map[model.DayKey][]model.Point
	others  map[string]map[model.DayKey][]model.Point
	fail    bool
	queries int
}

func (a *fakeArchive) closeAt(day model.DayKey, v float64) {
	start, _ := day.Bounds(time.UTC)
	a.days[day] = append(a.days[day], model.Point{TS: start.Add(17 * time.Hour), Value: v})
}

func (a *fakeArchive) closeAtFor(source string, day model.DayKey, v float64) {
	if a.others == nil {
		a.others = make(map[string]map[model.DayKey][]model.Point)
	}
	if a.others[source] == nil {
		a.others[source] = make(map[model.DayKey][]model.Point)
	}
	start, _ := day.Bounds(time.UTC)
	a.others[source][day] = append(a.others[source][day], model.Point{TS: start.Add(17 * time.Hour), Value: v})
}

func (a *fakeArchive) Query(_ context.Context, source string, start, _ time.Time, _ model.Aggregation) ([]model.Point, error) {
	a.queries++
	if a.fail {
		return nil, errDown
	}
	days := a.days
	if m, ok := a.others[source]; ok {
		days = m
	}
	return append([]model.Point(nil), days[model.DayOf(start, time.UTC)]...), nil
}

type memStore struct{ data []byte }

func (m *memStore) Load(context.Context) ([]byte, error)   { return m.data, nil }
func (m *memStore) Save(_ context.Context, b []byte) error { m.data = b; return nil }
func (m *memStore) Delete(context.Context) error           { m.data = nil; return nil }

type fakeSubscriber struct {
	active map[string]bool
	fail   bool
}

func (s *fakeSubscriber) Subscribe(_ context.Context, src string) error {
	if s.fail {
		return errDown
	}
	s.active[src] = true
	return nil
}

func (s *fakeSubscriber) Unsubscribe(_ context.Context, src string) error {
	delete(s.active, src)
	return nil
}

func (s *fakeSubscriber) sources() []string {
	out := make([]string, 0, len(s.active))
	for src := range s.active {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

type fakeVars struct {
	text map[string]string
}

func (v *fakeVars) Exists(_ context.Context, src string) (bool, error) {
	_, ok := v.text[src]
	return ok, nil
}

func (v *fakeVars) Formatted(_ context.Context, src string) (string, bool, error) {
	t, ok := v.text[src]
	return t, ok, nil
}

type recordingSink struct {
	payloads []Payload
}

func (s *recordingSink) Push(_ context.Context, p Payload) error {
	s.payloads = append(s.payloads, p)
	return nil
}

func (s *recordingSink) last() Payload {
	if len(s.payloads) == 0 {
		return nil
	}
	return s.payloads[len(s.payloads)-1]
}

type recordingReporter struct {
	statuses []Status
}

func (r *recordingReporter) Report(_ context.Context, s Status) {
	r.statuses = append(r.statuses, s)
}

func (r *recordingReporter) lastCode() int {
	if len(r.statuses) == 0 {
		return 0
	}
	return r.statuses[len(r.statuses)-1].Code
}

type harness struct {
	archive *fakeArchive
	store   *memStore            // blob of price variable 12345
	stores  map[string]*memStore // blobs of every other price variable
	sub     *fakeSubscriber
	vars    *fakeVars
	sink    *recordingSink
	status  *recordingReporter
	coord   *Coordinator
}

func newHarness() *harness {
	h := &harness{
		archive: &fakeArchive{days: make(map[model.DayKey][]model.Point)},
		store:   &memStore{},
		stores:  make(map[string]*memStore),
		sub:     &fakeSubscriber{active: make(map[string]bool)},
		vars: &fakeVars{text: map[string]string{
			"12345": "101.00 €",
			"12346": "+1.20 %",
		}},
		sink:   &recordingSink{},
		status: &recordingReporter{},
	}
	h.coord = New(Options{
		Caches: func(source string) *window.Cache {
			return window.New(h.archive, h.storeFor(source), window.Config{Source: source, Location: time.UTC})
		},
		Subscriber: h.sub,
		Variables:  h.vars,
		Sink:       h.sink,
		Status:     h.status,
	})
	return h
}

func (h *harness) storeFor(source string) *memStore {
	if source == "12345" {
		return h.store
	}
	if h.stores[source] == nil {
		h.stores[source] = &memStore{}
	}
	return h.stores[source]
}

func widgetSettings(days int) settings.Settings {
	s := settings.Default()
	s.StockLabel = "ACME"
	s.PriceSource = "12345"
	s.TrendSource = "12346"
	s.ChartDays = days
	return s
}

// keys returns the top-level JSON keys of p, sorted.
func keys(p Payload) []string {
	data, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		panic(err)
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
