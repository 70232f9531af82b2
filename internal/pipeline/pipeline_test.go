package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwrapped/internal/model"
)

type fakeSource struct {
	name   string
	events []model.CalendarEvent
	err    error

	calls  int
	window model.Window
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Events(_ context.Context, w model.Window) ([]model.CalendarEvent, error) {
	f.calls++
	f.window = w
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func event(start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		Summary: "sync",
		Start:   model.EventTime{DateTime: start},
		End:     model.EventTime{DateTime: end},
	}
}

var fixedNow = time.Date(2025, 12, 31, 18, 0, 0, 0, time.UTC)

func TestRunAggregatesAllSources(t *testing.T) {
	a := &fakeSource{name: "google", events: []model.CalendarEvent{event("2025-12-30T09:00:00Z", "2025-12-30T10:00:00Z")}}
	b := &fakeSource{name: "ics", events: []model.CalendarEvent{event("2025-12-31T09:00:00Z", "2025-12-31T09:30:00Z")}}

	reg := prometheus.NewRegistry()
	r := NewRunner([]Source{a, b}, Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Window:   FixedWindow(time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC), time.Time{}),
		Metrics:  NewMetrics(reg),
	})

	snap, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, snap.ID)
	assert.Equal(t, fixedNow, snap.GeneratedAt)
	assert.Equal(t, "UTC", snap.Timezone)
	assert.Equal(t, 2, snap.EventCount)
	assert.EqualValues(t, 90, snap.Stats.TotalEventMinutes)
	// 29th is free, 30th and 31st are busy.
	assert.Equal(t, 1, snap.Stats.FreeDays.FreeDayCount)
	assert.Equal(t, model.Window{TimeMin: time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC), TimeMax: fixedNow}, a.window)

	assert.EqualValues(t, 2, testutil.ToFloat64(r.opts.Metrics.eventsAggregated))
	assert.Equal(t, 2, testutil.CollectAndCount(r.opts.Metrics.fetchDuration))
}

func TestRunStopsAtFirstFetchError(t *testing.T) {
	boom := errors.New("401 unauthorized")
	a := &fakeSource{name: "google", events: []model.CalendarEvent{event("2025-12-30T09:00:00Z", "2025-12-30T10:00:00Z")}}
	b := &fakeSource{name: "ics", err: boom}
	c := &fakeSource{name: "later"}

	reg := prometheus.NewRegistry()
	r := NewRunner([]Source{a, b, c}, Options{Metrics: NewMetrics(reg)})

	snap, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, Snapshot{}, snap)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "ics", fe.Source)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "fetch ics: 401 unauthorized", err.Error())
	assert.Zero(t, c.calls)

	assert.EqualValues(t, 1, testutil.ToFloat64(r.opts.Metrics.fetchErrors.WithLabelValues("ics")))
	assert.Zero(t, testutil.ToFloat64(r.opts.Metrics.eventsAggregated))
}

func TestRunWithoutSources(t *testing.T) {
	_, err := NewRunner(nil, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestRunDefaultWindowIsLastYear(t *testing.T) {
	src := &fakeSource{name: "google"}
	r := NewRunner([]Source{src}, Options{Location: time.UTC, Now: func() time.Time { return fixedNow }})

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(-1, 0, 0), snap.Window.TimeMin)
	assert.Equal(t, fixedNow, snap.Window.TimeMax)
	// Every day of the window is free.
	assert.Equal(t, 366, snap.Stats.FreeDays.FreeDayCount)
}
