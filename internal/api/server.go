// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	handler "github.com/newthinker/enercast/internal/api/handler/api"
	"github.com/newthinker/enercast/internal/api/middleware"
	"github.com/newthinker/enercast/internal/metrics"
)

// Server represents the HTTP server for ENERCAST
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Dependencies are the services the routes delegate to. Metrics is
// optional; without it no /metrics route or HTTP metrics are installed.
type Dependencies struct {
	Runner  *handler.Runner
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil || deps.Runner.Jobs == nil || deps.Runner.Backtester == nil {
		return nil, fmt.Errorf("api: runner with job store and backtester is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	exempt := []string{"/api/health"}
	if deps.Metrics != nil {
		exempt = append(exempt, metricsPath(cfg))
	}
	var h http.Handler = middleware.APIKeyAuth(cfg.APIKey, exempt...)(mux)
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func metricsPath(cfg Config) string {
	if cfg.MetricsPath == "" {
		return "/metrics"
	}
	return cfg.MetricsPath
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	runner := deps.Runner
	backtests := handler.NewBacktestHandler(runner)
	compare := handler.NewCompareHandler(runner)
	jobs := handler.NewJobsHandler(runner.Jobs)
	catalog := handler.NewCatalogHandler(runner)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/backtests", backtests.Create)
	s.mux.HandleFunc("POST /api/v1/compare", compare.Create)

	s.mux.HandleFunc("GET /api/v1/jobs", jobs.List)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobs.GetStatus(w, r, r.PathValue("id"))
	})
	s.mux.HandleFunc("DELETE /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobs.Cancel(w, r, r.PathValue("id"))
	})

	s.mux.HandleFunc("GET /api/v1/models", catalog.Models)
	s.mux.HandleFunc("GET /api/v1/strategies", catalog.Strategies)

	if runner.Reports != nil {
		runs := handler.NewRunsHandler(runner.Reports)
		s.mux.HandleFunc("GET /api/v1/runs", runs.List)
		s.mux.HandleFunc("GET /api/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			runs.Get(w, r, r.PathValue("id"))
		})
		s.mux.HandleFunc("GET /api/v1/runs/{id}/ledger", func(w http.ResponseWriter, r *http.Request) {
			runs.Ledger(w, r, r.PathValue("id"))
		})
	}

	if deps.Metrics != nil {
		s.mux.Handle("GET "+metricsPath(cfg), deps.Metrics.Handler())
	}
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
