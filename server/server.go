// Package server provides HTTP server management and lifecycle handling for the benefits API.
// It includes server setup, middleware configuration, route management, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/giygas/benefits-api/config"
	"github.com/giygas/benefits-api/handlers"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// rateLimitCleanupInterval is how often refilled client buckets are dropped
const rateLimitCleanupInterval = 30 * time.Minute

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	router      chi.Router
	handler     *handlers.HTTPHandler
	config      *config.Config
	rateLimiter *RateLimiter

	stopOnce sync.Once
	stop     chan struct{}
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, handler *handlers.HTTPHandler) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:      router,
		handler:     handler,
		config:      cfg,
		rateLimiter: NewRateLimiter(),
		stop:        make(chan struct{}),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware(s.config.TrustedProxies))
	s.router.Use(logging.LoggingMiddleware(logging.Logger()))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Metrics)
	s.router.Use(RequestSizeMiddleware(s.config.MaxRequestBody))
	s.router.Use(s.rateLimiter.Middleware)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler

	s.router.Route("/coverage-codes", func(r chi.Router) {
		r.Get("/", h.ListCoverageCodes)
		r.Post("/", h.AddCoverageCode)
		r.Get("/{id}", h.GetCoverageCode)
		r.Put("/{id}", h.EditCoverageCode)
		r.Delete("/{id}", h.DeleteCoverageCode)
	})

	s.router.Route("/medical-plans", func(r chi.Router) {
		r.Get("/", h.ListPlans)
		r.Post("/", h.AddPlan)
		r.Delete("/{id}", h.DeletePlan)
		r.Post("/{id}/form", h.OpenPlanForm)
	})

	s.router.Route("/forms/{formID}", func(r chi.Router) {
		r.Get("/", h.GetPlanForm)
		r.Delete("/", h.DiscardPlanForm)
		r.Post("/ops", h.ApplyPlanFormOps)
		r.Post("/save", h.SavePlanForm)
	})

	s.router.Get("/health", h.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the routed handler with its middleware
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	go s.cleanupRateLimiter()

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) cleanupRateLimiter() {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.rateLimiter.Cleanup(); removed > 0 {
				logging.Debug("Rate limiter cleanup", "removed", removed)
			}
		case <-s.stop:
			return
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.stopOnce.Do(func() { close(s.stop) })

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}
