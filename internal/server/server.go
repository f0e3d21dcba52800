// Package server exposes the ranked result set as a read-only JSON feed for
// the dashboard, plus a trigger for an on-demand scrape cycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/export"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/monitoring"
	"github.com/sells-group/property-finder/internal/pipeline"
	"github.com/sells-group/property-finder/internal/resultset"
	"github.com/sells-group/property-finder/internal/store"
)

// maxLimit caps ?limit= on list endpoints.
const maxLimit = 1000

// RunReader is the read side of the run log.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Deps holds what the server reads from and triggers.
type Deps struct {
	Board     *resultset.Board
	Cycler    pipeline.Cycler
	Runs      RunReader
	Routes    []model.Route
	Collector *monitoring.Collector
	Lookback  int
}

// Server serves the dashboard feed.
type Server struct {
	cfg  config.ServerConfig
	deps Deps
}

// New creates a Server.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 50
	}
	return &Server{cfg: cfg, deps: deps}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/properties", s.handleProperties)
		r.Get("/properties/{id}", s.handleProperty)
		r.Get("/stats", s.handleStats)
		r.Get("/routes", s.handleRoutes)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
		r.Post("/search", s.handleSearch)
		r.Get("/export/{format}", s.handleExport)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"listings": s.deps.Board.Current().Len(),
	})
}

type propertiesResponse struct {
	Total      int                   `json:"total"`
	Count      int                   `json:"count"`
	Properties []model.ScoredListing `json:"properties"`
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, s.cfg.ResultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rs := s.deps.Board.Current()
	top := rs.Top(limit)
	writeJSON(w, http.StatusOK, propertiesResponse{Total: rs.Len(), Count: len(top), Properties: top})
}

func (s *Server) handleProperty(w http.ResponseWriter, r *http.Request) {
	sl, ok := s.deps.Board.Current().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collector == nil {
		writeError(w, http.StatusServiceUnavailable, "stats not configured")
		return
	}
	snap, err := s.deps.Collector.Collect(r.Context(), s.deps.Lookback)
	if err != nil {
		zap.L().Error("server: collect stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	routes := s.deps.Routes
	if routes == nil {
		routes = []model.Route{}
	}
	writeJSON(w, http.StatusOK, routes)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.RunFilter{Limit: limit, Status: model.RunStatus(r.URL.Query().Get("status"))}
	runs, err := s.deps.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleSearch runs one cycle and returns its run record. A cycle that is
// already running yields 409. The cycle outlives a disconnected client so a
// requested search is never discarded halfway.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cycler == nil {
		writeError(w, http.StatusServiceUnavailable, "search not configured")
		return
	}
	run, err := s.deps.Cycler.RunCycle(context.WithoutCancel(r.Context()), pipeline.TriggerAPI)
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		writeError(w, http.StatusConflict, "a search is already running")
	case err != nil && run == nil:
		zap.L().Error("server: search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
	case err != nil:
		writeJSON(w, http.StatusBadGateway, run)
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := s.deps.Board.Current().Top(limit)
	filename := fmt.Sprintf("properties_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.Write(w, format, items); err != nil {
		zap.L().Error("server: export", zap.String("format", string(format)), zap.Error(err))
	}
}

// parseLimit reads ?limit=. Missing means def; 0 means everything.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid limit %q", raw)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
