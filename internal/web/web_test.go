package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwrapped/internal/config"
	"calwrapped/internal/model"
	"calwrapped/internal/pipeline"
	"calwrapped/internal/stats"
)

type fakeRunner struct {
	snaps []pipeline.Snapshot
	errs  []error
	calls int
}

func (f *fakeRunner) Run(context.Context) (pipeline.Snapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return pipeline.Snapshot{}, f.errs[i]
	}
	return f.snaps[i], nil
}

func testSnapshot(total float64) pipeline.Snapshot {
	return pipeline.Snapshot{
		ID:          uuid.New(),
		GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Window: model.Window{
			TimeMin: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			TimeMax: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Timezone:   "UTC",
		EventCount: 3,
		Stats: stats.CalendarStats{
			TotalEventMinutes: total,
			FreeDays:          stats.FreeDays{FreeDayCount: 300},
		},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(), &fakeRunner{}, prometheus.NewRegistry())
	rec := do(t, s.Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestNoSnapshotYet(t *testing.T) {
	s := NewServer(testConfig(), &fakeRunner{}, prometheus.NewRegistry())
	h := s.Handler()

	for _, path := range []string{"/api/stats", "/api/cards"} {
		rec := do(t, h, http.MethodGet, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "no snapshot yet")
	}
}

func TestRefreshThenServe(t *testing.T) {
	snap := testSnapshot(600)
	s := NewServer(testConfig(), &fakeRunner{snaps: []pipeline.Snapshot{snap}}, prometheus.NewRegistry())
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, 600.0, got.Stats.TotalEventMinutes)

	rec = do(t, h, http.MethodGet, "/api/cards")
	require.Equal(t, http.StatusOK, rec.Code)
	var cards struct {
		SnapshotID string `json:"snapshotId"`
		Summary    struct {
			Year       int `json:"year"`
			TotalHours int `json:"totalHours"`
		} `json:"summary"`
		Cards []struct {
			Key string `json:"key"`
		} `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cards))
	assert.Equal(t, snap.ID.String(), cards.SnapshotID)
	assert.Equal(t, 2025, cards.Summary.Year)
	assert.Equal(t, 10, cards.Summary.TotalHours)
	require.NotEmpty(t, cards.Cards)
	assert.Equal(t, "year-numbers", cards.Cards[0].Key)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	first := testSnapshot(60)
	runner := &fakeRunner{
		snaps: []pipeline.Snapshot{first},
		errs:  []error{nil, &pipeline.FetchError{Source: "google", Err: errors.New("401 Unauthorized")}},
	}
	s := NewServer(testConfig(), runner, prometheus.NewRegistry())
	h := s.Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/refresh").Code)

	rec := do(t, h, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "fetch google")

	got, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)
}

func TestRefreshOtherErrorIs500(t *testing.T) {
	runner := &fakeRunner{errs: []error{pipeline.ErrNoSources}}
	s := NewServer(testConfig(), runner, prometheus.NewRegistry())

	rec := do(t, s.Handler(), http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRefreshRequiresPost(t *testing.T) {
	s := NewServer(testConfig(), &fakeRunner{}, prometheus.NewRegistry())
	rec := do(t, s.Handler(), http.MethodGet, "/api/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	s := NewServer(cfg, &fakeRunner{snaps: []pipeline.Snapshot{testSnapshot(0)}}, prometheus.NewRegistry())
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)

	rec := do(t, h, http.MethodGet, "/api/stats")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.SetBasicAuth("me", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.SetBasicAuth("me", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "calwrapped_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := NewServer(testConfig(), &fakeRunner{}, reg)
	rec := do(t, s.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "calwrapped_test_total 1")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Listen = "127.0.0.1:0"
	s := NewServer(cfg, &fakeRunner{}, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
