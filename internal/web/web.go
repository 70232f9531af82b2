package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"calwrapped/internal/config"
	appLog "calwrapped/internal/log"
	"calwrapped/internal/pipeline"
	"calwrapped/internal/wrapped"
)

// Refresher produces a new snapshot. *pipeline.Runner implements it.
type Refresher interface {
	Run(ctx context.Context) (pipeline.Snapshot, error)
}

// Server provides HTTP APIs for the latest stats snapshot and the
// wrapped cards derived from it.
type Server struct {
	cfg      *config.Config
	loc      *time.Location
	runner   Refresher
	gatherer prometheus.Gatherer
	mux      *http.ServeMux

	// The latest successful snapshot. Replaced wholesale on refresh.
	snapMu sync.RWMutex
	snap   *pipeline.Snapshot

	// Serializes pipeline runs between cron and /api/refresh.
	refreshMu sync.Mutex
}

// NewServer constructs a new Server. A nil gatherer serves the default
// Prometheus registry.
func NewServer(cfg *config.Config, runner Refresher, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		loc:      resolveLocationOrLocal(cfg.Timezone),
		runner:   runner,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Snapshot returns the latest snapshot, if any.
func (s *Server) Snapshot() (pipeline.Snapshot, bool) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.snap == nil {
		return pipeline.Snapshot{}, false
	}
	return *s.snap, true
}

// Refresh runs the pipeline once and, on success, replaces the served
// snapshot. On failure the previous snapshot stays in place.
func (s *Server) Refresh(ctx context.Context) (pipeline.Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snap, err := s.runner.Run(ctx)
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	s.snapMu.Lock()
	s.snap = &snap
	s.snapMu.Unlock()
	return snap, nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calwrapped", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/cards", s.handleCards)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleStats returns the latest snapshot as-is.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// cardsResponse is the JSON response shape for /api/cards.
type cardsResponse struct {
	SnapshotID  string    `json:"snapshotId"`
	GeneratedAt time.Time `json:"generatedAt"`
	wrapped.Deck
}

// handleCards renders the wrapped deck for the latest snapshot. The deck
// year is the year the window starts in, in the display timezone.
func (s *Server) handleCards(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	year := snap.Window.TimeMin.In(s.loc).Year()
	writeJSON(w, http.StatusOK, cardsResponse{
		SnapshotID:  snap.ID.String(),
		GeneratedAt: snap.GeneratedAt,
		Deck:        wrapped.Build(snap.Stats, year),
	})
}

// handleRefresh runs the pipeline synchronously.
//
// POST /api/refresh
//   - 200: the new snapshot
//   - 502: a source failed; the previous snapshot is still served
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Refresh(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		var fe *pipeline.FetchError
		if errors.As(err, &fe) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
