package window

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwidget/internal/model"
)

func TestResync_RebuildWithWeekendGap(t *testing.T) {
	ctx := context.Background()
	today := model.DayKey("2025-06-10")
	a := newFakeArchive()
	for i := 0; i < 7; i++ {
		if i == 2 {
			continue // closed two days ago
		}
		a.closeAt(today.AddDays(-i), float64(100+i))
	}
	c := newTestCache(a, &memStore{})

	st, err := c.Resync(ctx, 7, today)
	require.NoError(t, err)

	assert.Equal(t, ActionRebuild, st.Action)
	require.Len(t, st.Window, 7)
	last, _ := st.Window.Last()
	assert.Equal(t, today, last.Day)
	assert.Nil(t, st.Window[4].Value, "slot for two days ago should be a gap")
	assert.Equal(t, model.DayKey("2025-06-08"), st.Window[4].Day)

	vals, err := c.ExportValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{106, 105, 104, 103, 101, 100}, vals)
}

func TestResync_SteadyStateSlide(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	store := &memStore{}
	c := newTestCache(a, store)

	first := model.DayKey("2025-06-01")
	for i := 0; i < 30; i++ {
		a.closeAt(first.AddDays(i), float64(i))
	}
	_, err := c.Resync(ctx, 30, "2025-06-30")
	require.NoError(t, err)

	a.closeAt("2025-07-01", 30)
	a.reset()

	st, err := c.Resync(ctx, 30, "2025-07-01")
	require.NoError(t, err)

	assert.Equal(t, ActionSlide, st.Action)
	assert.Equal(t, []model.DayKey{"2025-07-01"}, a.queriedDays(), "slide must query the archive exactly once")
	require.Len(t, st.Window, 30)
	assert.Equal(t, model.DayKey("2025-06-02"), st.Window[0].Day)
	assert.Equal(t, model.DayKey("2025-07-01"), st.Window[29].Day)
	assert.Equal(t, 2, store.saves)
}

func TestResync_UnchangedWhenCurrent(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	store := &memStore{}
	c := newTestCache(a, store)

	_, err := c.Resync(ctx, 7, "2025-06-10")
	require.NoError(t, err)
	a.reset()

	st, err := c.Resync(ctx, 7, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, st.Action)
	assert.Empty(t, a.queriedDays())
	assert.Equal(t, 1, store.saves)
}

func TestResync_SizeChangeAlwaysRebuilds(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	c := newTestCache(a, &memStore{})

	_, err := c.Resync(ctx, 7, "2025-06-10")
	require.NoError(t, err)

	// Next day plus a size change: a slide would be possible for 7, but not for 30.
	st, err := c.Resync(ctx, 30, "2025-06-11")
	require.NoError(t, err)
	assert.Equal(t, ActionRebuild, st.Action)
	assert.Len(t, st.Window, 30)

	st, err = c.Resync(ctx, 7, "2025-06-11")
	require.NoError(t, err)
	assert.Equal(t, ActionRebuild, st.Action)
	assert.Len(t, st.Window, 7)
}

func TestResync_RolloverSequenceKeepsLength(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{7, 30, 90, 180, 356} {
		a := newFakeArchive()
		c := newTestCache(a, &memStore{})
		day := model.DayKey("2025-01-01")
		for step := 0; step < 10; step++ {
			a.closeAt(day, float64(step))
			st, err := c.Resync(ctx, n, day)
			require.NoError(t, err)
			require.Len(t, st.Window, n, "n=%d step=%d", n, step)
			last, _ := st.Window.Last()
			require.Equal(t, day, last.Day, "n=%d step=%d", n, step)
			require.True(t, st.Window.Contiguous())
			day = day.AddDays(1)
		}
	}
}

func TestResync_MultiDayOutageSlidesEachMissingDay(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	c := newTestCache(a, &memStore{})

	_, err := c.Resync(ctx, 7, "2025-06-10")
	require.NoError(t, err)
	a.reset()

	st, err := c.Resync(ctx, 7, "2025-06-13")
	require.NoError(t, err)
	assert.Equal(t, ActionSlide, st.Action)
	assert.Equal(t, []model.DayKey{"2025-06-11", "2025-06-12", "2025-06-13"}, a.queriedDays())
	assert.True(t, st.Window.Contiguous())
	assert.Equal(t, model.DayKey("2025-06-07"), st.Window[0].Day)
}

func TestResync_OutageLongerThanWindowRebuilds(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	c := newTestCache(a, &memStore{})

	_, err := c.Resync(ctx, 7, "2025-06-10")
	require.NoError(t, err)

	st, err := c.Resync(ctx, 7, "2025-06-20")
	require.NoError(t, err)
	assert.Equal(t, ActionRebuild, st.Action)
}

func TestResync_ClockMovedBackRebuilds(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	c := newTestCache(a, &memStore{})

	_, err := c.Resync(ctx, 7, "2025-06-10")
	require.NoError(t, err)

	st, err := c.Resync(ctx, 7, "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, ActionRebuild, st.Action)
	last, _ := st.Window.Last()
	assert.Equal(t, model.DayKey("2025-06-09"), last.Day)
}

func TestResync_CorruptBlobForcesRebuild(t *testing.T) {
	ctx := context.Background()
	for _, blob := range []string{`not json`, `[1,2,3]`, `{"yesterday": 1.5}`, `{"2025-06-10": "x"}`} {
		a := newFakeArchive()
		store := &memStore{data: []byte(blob)}
		c := newTestCache(a, store)

		st, err := c.Resync(ctx, 7, "2025-06-10")
		require.NoError(t, err, "blob %q", blob)
		assert.Equal(t, ActionRebuild, st.Action, "blob %q", blob)
		assert.Len(t, st.Window, 7)
	}
}

func TestResync_FetchErrorLeavesBlobUntouched(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	store := &memStore{}
	c := newTestCache(a, store)

	a.closeAt("2025-06-10", 10)
	_, err := c.Resync(ctx, 7, "2025-06-10")
	require.NoError(t, err)
	before := append([]byte(nil), store.data...)

	a.failOn["2025-06-11"] = true
	_, err = c.Resync(ctx, 7, "2025-06-11")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrFetch))
	var fe *model.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, model.AggLastPoint, fe.Agg)

	assert.Equal(t, before, store.data, "failed slide must not overwrite the blob")

	// Next trigger retries naturally.
	delete(a.failOn, "2025-06-11")
	st, err := c.Resync(ctx, 7, "2025-06-11")
	require.NoError(t, err)
	assert.Equal(t, ActionSlide, st.Action)
}

func TestResync_LoadErrorAborts(t *testing.T) {
	a := newFakeArchive()
	store := &memStore{loadErr: errors.New("redis: connection refused")}
	c := newTestCache(a, store)

	_, err := c.Resync(context.Background(), 7, "2025-06-10")
	require.Error(t, err)
	assert.Empty(t, a.queriedDays())
	assert.Zero(t, store.saves)
}

func TestResync_RejectsNonPositiveSize(t *testing.T) {
	c := newTestCache(newFakeArchive(), &memStore{})
	_, err := c.Resync(context.Background(), 0, "2025-06-10")
	assert.ErrorIs(t, err, model.ErrConfigInvalid)
}

func TestRebuild_Idempotent(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	for i := 0; i < 30; i += 3 {
		a.closeAt(model.DayKey("2025-06-30").AddDays(-i), float64(i)*1.25)
	}

	s1, s2 := &memStore{}, &memStore{}
	_, err := newTestCache(a, s1).Resync(ctx, 30, "2025-06-30")
	require.NoError(t, err)
	_, err = newTestCache(a, s2).Resync(ctx, 30, "2025-06-30")
	require.NoError(t, err)

	assert.Equal(t, s1.data, s2.data)
}

func TestSlide_ShiftsPositionally(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	a.closeAt("2025-06-05", 5)
	c := newTestCache(a, &memStore{})

	w := model.Window{
		{Day: "2025-06-01", Value: model.Float(1)},
		{Day: "2025-06-02"},
		{Day: "2025-06-03", Value: model.Float(3)},
		{Day: "2025-06-04", Value: model.Float(4)},
	}
	orig := append(model.Window(nil), w...)

	next, err := c.Slide(ctx, w, "2025-06-05")
	require.NoError(t, err)

	if diff := cmp.Diff(w[1:], next[:len(next)-1]); diff != "" {
		t.Errorf("slid window mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, model.DayKey("2025-06-05"), next[len(next)-1].Day)
	assert.Equal(t, 5.0, *next[len(next)-1].Value)
	if diff := cmp.Diff(orig, w); diff != "" {
		t.Errorf("input window modified:\n%s", diff)
	}
}

func TestExportValues_SortsPersistedKeys(t *testing.T) {
	// Keys deliberately out of order with gaps in between.
	store := &memStore{data: []byte(`{"2025-06-03":3,"2025-06-01":1,"2025-06-04":null,"2025-06-02":2}`)}
	c := newTestCache(newFakeArchive(), store)

	vals, err := c.ExportValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vals)
}

func TestExportValues_EmptyAndCorrupt(t *testing.T) {
	ctx := context.Background()

	vals, err := newTestCache(newFakeArchive(), &memStore{}).ExportValues(ctx)
	require.NoError(t, err)
	assert.NotNil(t, vals)
	assert.Empty(t, vals)

	vals, err = newTestCache(newFakeArchive(), &memStore{data: []byte("{")}).ExportValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestExportValues_NeverExceedsWindow(t *testing.T) {
	ctx := context.Background()
	a := newFakeArchive()
	for i := 0; i < 60; i++ {
		a.closeAt(model.DayKey("2025-06-30").AddDays(-i), float64(i))
	}
	c := newTestCache(a, &memStore{})

	_, err := c.Resync(ctx, 30, "2025-06-30")
	require.NoError(t, err)
	vals, err := c.ExportValues(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(vals), 30)
}

func TestDiscard_DropsPersistedAndLiveState(t *testing.T) {
	ctx := context.Background()
	today := model.DayKey("2025-06-10")
	a := newFakeArchive()
	a.closeAt(today, 7)
	store := &memStore{}
	c := newTestCache(a, store)

	_, err := c.Resync(ctx, 7, today)
	require.NoError(t, err)
	require.NotNil(t, store.data)

	require.NoError(t, c.Discard(ctx))
	assert.Nil(t, store.data)
	assert.Equal(t, 1, store.deletes)
	vals, err := c.ExportValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, vals)

	_, err = c.Resync(ctx, 1, today)
	require.NoError(t, err)
	require.NoError(t, c.Discard(ctx))
	vals, err = c.ExportValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, vals, "live samples are forgotten too")
}
