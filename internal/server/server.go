// Package server exposes the core index operations over HTTP: upsert,
// search, forget, retention configuration, decay preview, the decision
// ledger, and aggregate stats. Routing uses the standard library's
// method-pattern ServeMux.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heimgewebe/indexd/internal/forget"
	"github.com/heimgewebe/indexd/internal/ingest"
	"github.com/heimgewebe/indexd/internal/ledger"
	"github.com/heimgewebe/indexd/internal/retention"
	"github.com/heimgewebe/indexd/internal/retrieval"
	"github.com/heimgewebe/indexd/internal/store"
)

// Deps holds every core component the HTTP surface dispatches to.
type Deps struct {
	Store     *store.Store
	Pipeline  *ingest.Pipeline
	Engine    *retrieval.Engine
	Ledger    *ledger.Ledger
	Forget    *forget.Engine
	Retention *retention.Sweeper
	Logger    *slog.Logger
}

// Server is the index's HTTP surface.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	deps       Deps
}

// Config holds listen and timeout settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New builds a Server with every route wired and the middleware chain
// applied outermost-first: request ID -> logging -> recovery -> tracing
// -> mux.
func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	m := newMetrics(deps)
	h := &handlers{deps: deps, metrics: m}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /v1/upsert", h.handleUpsert)
	mux.HandleFunc("POST /v1/search", h.handleSearch)
	mux.HandleFunc("POST /v1/forget", h.handleForget)
	mux.HandleFunc("GET /v1/retention", h.handleGetRetention)
	mux.HandleFunc("PUT /v1/retention/{namespace}", h.handlePutRetention)
	mux.HandleFunc("GET /v1/decay/preview", h.handleDecayPreview)
	mux.HandleFunc("GET /v1/snapshots", h.handleListSnapshots)
	mux.HandleFunc("POST /v1/outcomes", h.handleRecordOutcome)
	mux.HandleFunc("GET /v1/outcomes/{decision_id}", h.handleGetOutcome)
	mux.HandleFunc("GET /v1/outcomes", h.handleListOutcomes)
	mux.HandleFunc("GET /v1/stats", h.handleStats)

	var handler http.Handler = mux
	handler = tracingMiddleware(handler)
	handler = recoveryMiddleware(deps.Logger, handler)
	handler = loggingMiddleware(deps.Logger, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		deps:    deps,
		handler: handler,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.deps.Logger.Info("http server starting", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
