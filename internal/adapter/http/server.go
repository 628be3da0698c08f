// Package http exposes the service endpoints: health, readiness, metrics,
// and read-only access to stored analysis results.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/lakerise/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ResultReader serves stored analysis results.
type ResultReader interface {
	Shoreline(ctx context.Context, year int, kind string) (domain.Shoreline, error)
	Changes(ctx context.Context) ([]domain.Change, error)
	LatestEvaluation(ctx context.Context) (domain.Evaluation, string, error)
	ZoneSummaries(ctx context.Context) ([]domain.ZoneSummary, error)
}

// Server exposes the HTTP surface of the service.
type Server struct {
	httpServer *http.Server
	results    ResultReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, metrics, and results routes.
func NewServer(addr string, ready ReadinessChecker, results ResultReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		results: results,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/shorelines/{year}", s.handleShoreline)
	mux.HandleFunc("GET /api/v1/changes", s.handleChanges)
	mux.HandleFunc("GET /api/v1/evaluation", s.handleEvaluation)
	mux.HandleFunc("GET /api/v1/zones", s.handleZones)

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

// shorelineResponse is the wire form of a stored shoreline.
type shorelineResponse struct {
	Year       int            `json:"year"`
	Kind       string         `json:"kind"`
	AreaM2     float64        `json:"area_m2"`
	ProducedAt time.Time      `json:"produced_at"`
	Rings      [][][2]float64 `json:"rings"`
}

func (s *Server) handleShoreline(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "observed"
	}

	sh, err := s.results.Shoreline(r.Context(), year, kind)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	resp := shorelineResponse{
		Year:       sh.Year,
		Kind:       kind,
		AreaM2:     sh.AreaM2,
		ProducedAt: sh.ProducedAt,
	}
	for _, ring := range sh.Geom {
		pts := make([][2]float64, len(ring))
		for i, pt := range ring {
			pts[i] = [2]float64{pt.X, pt.Y}
		}
		resp.Rings = append(resp.Rings, pts)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := s.results.Changes(r.Context())
	if err != nil {
		s.logger.Error("load changes failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	type changeResponse struct {
		YearEarly  int     `json:"year_early"`
		YearLate   int     `json:"year_late"`
		GrowthM2   float64 `json:"growth_m2"`
		ShrinkM2   float64 `json:"shrink_m2"`
		NetDeltaM2 float64 `json:"net_delta_m2"`
	}
	resp := make([]changeResponse, len(changes))
	for i, ch := range changes {
		resp[i] = changeResponse{
			YearEarly:  ch.YearEarly,
			YearLate:   ch.YearLate,
			GrowthM2:   ch.GrowthM2,
			ShrinkM2:   ch.ShrinkM2,
			NetDeltaM2: ch.NetDeltaM2,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	ev, version, err := s.results.LatestEvaluation(r.Context())
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no evaluation yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model_version":     version,
		"holdout_year":      ev.HoldoutYear,
		"samples":           ev.Samples,
		"accuracy":          ev.Accuracy,
		"balanced_accuracy": ev.BalancedAccuracy,
	})
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.results.ZoneSummaries(r.Context())
	if err != nil {
		s.logger.Error("load zone summaries failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
