package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oceanguard/hazard-fusion/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Feed serves the read side of the store: fused events and raw reports,
// newest first.
type Feed interface {
	ListEvents(ctx context.Context, limit int) ([]domain.HazardEvent, error)
	ListReports(ctx context.Context, limit int) ([]domain.RawReport, error)
}

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 500
)

// Server exposes health, readiness, metrics, and read-feed HTTP endpoints.
type Server struct {
	httpServer *http.Server
	feed       Feed
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /hazards, and /reports routes.
func NewServer(addr string, ready ReadinessChecker, feed Feed, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		feed:   feed,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /hazards", s.handleHazards)
	mux.HandleFunc("GET /reports", s.handleReports)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleHazards(w http.ResponseWriter, r *http.Request) {
	limit, ok := feedLimit(w, r)
	if !ok {
		return
	}

	events, err := s.feed.ListEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("list hazard events failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if events == nil {
		events = []domain.HazardEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hazards": events, "count": len(events)})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := feedLimit(w, r)
	if !ok {
		return
	}

	reports, err := s.feed.ListReports(r.Context(), limit)
	if err != nil {
		s.logger.Error("list reports failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if reports == nil {
		reports = []domain.RawReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

// feedLimit parses the limit query parameter, rejecting garbage and capping
// oversized requests. Returns false after writing the error response.
func feedLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultFeedLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return 0, false
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
