package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/flowgraph/internal/config"
	"github.com/me/flowgraph/internal/definition"
	"github.com/me/flowgraph/internal/metrics"
	"github.com/me/flowgraph/internal/scheduler"
	"github.com/me/flowgraph/internal/store"
	"github.com/me/flowgraph/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies; history snapshots can be large.
const maxBodyBytes = 32 << 20

// Server is the flowgraph REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	codec     *definition.Codec
	store     store.Store
	scheduler scheduler.Scheduler
	tools     model.ToolLookup // optional; nil accepts any tool id
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithTools sets the tool registry used to validate saved workflows.
func WithTools(tools model.ToolLookup) Option {
	return func(s *Server) {
		s.tools = tools
	}
}

// New creates a new Server with all routes registered.
// sched may be nil if no scheduling is desired (e.g. in tests).
func New(cfg config.ServerConfig, st store.Store, sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		codec:     definition.New(logger),
		store:     st,
		scheduler: sched,
		metrics:   metrics.New(),
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics.MustRegister(s.registry)
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.routes()
	return s
}

// Metrics returns the server's collectors so other components can report
// into the same registry.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleCreateWorkflow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Put("/", s.handleUpdateWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
				r.Post("/run", s.handleRunWorkflow)
				r.Get("/invocations", s.handleListInvocations)
				r.Post("/outputs", s.handleTagOutputs)
				r.Post("/layout", s.handleLayoutWorkflow)
			})
		})

		r.Route("/histories", func(r chi.Router) {
			r.Post("/jobs", s.handleHistoryJobs)
			r.Post("/extract", s.handleExtractWorkflow)
		})
	})
}
