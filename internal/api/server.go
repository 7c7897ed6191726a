package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledgerwatch/internal/api/handlers"
	"github.com/eshaffer321/ledgerwatch/internal/api/middleware"
	"github.com/eshaffer321/ledgerwatch/internal/application/service"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string

	// RateLimitPerSecond applies to /api; zero disables limiting.
	RateLimitPerSecond float64
	RateBurst          int
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:               8085,
		AllowedOrigins:     []string{"http://localhost:3000"},
		RateLimitPerSecond: 20,
		RateBurst:          40,
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	svc        *service.ReconcileService
}

// NewServer creates a new API server over svc.
func NewServer(cfg Config, svc *service.ReconcileService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		svc:    svc,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	// CORS
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check and metrics (no /api prefix, not rate limited)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)
	s.router.Handle("/metrics", s.svc.Metrics().Handler())

	base := handlers.NewBase(s.svc, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.config.RateLimitPerSecond, s.config.RateBurst, s.logger))

		transfers := handlers.NewTransfersHandler(base)
		subscriptions := handlers.NewSubscriptionsHandler(base)
		alerts := handlers.NewAlertsHandler(base)
		imports := handlers.NewImportsHandler(base)
		transactions := handlers.NewTransactionsHandler(base)
		jobs := handlers.NewJobsHandler(base)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/transfers/detect", transfers.Detect)

			r.Post("/subscriptions/scan", subscriptions.Scan)
			r.Post("/subscriptions/statuses", subscriptions.Statuses)
			r.Get("/subscriptions/insights", subscriptions.Insights)
			r.Get("/subscriptions/upcoming", subscriptions.Upcoming)
			r.Get("/subscriptions/calendar", subscriptions.Calendar)
			r.Delete("/subscriptions/{seriesID}", subscriptions.Exclude)

			r.Post("/alerts/check", alerts.Check)

			r.Post("/accounts/{accountID}/imports", imports.Upload)

			r.Get("/transactions/search", transactions.Search)
			r.Get("/transactions/duplicates", transactions.Duplicates)

			r.Post("/jobs", jobs.Start)
		})

		// Imports (JSON batch round trip)
		r.Post("/imports/dedup", imports.Dedup)
		r.Post("/imports/confirm", imports.Confirm)

		// Jobs
		r.Get("/jobs", jobs.List)
		r.Get("/jobs/{jobID}", jobs.Get)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
