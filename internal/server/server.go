// Package server provides the HTTP server and routing for CoinKeeper.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/config"
	"github.com/avelis/coinkeeper/internal/di"
	accountshandlers "github.com/avelis/coinkeeper/internal/modules/accounts/handlers"
	budgetshandlers "github.com/avelis/coinkeeper/internal/modules/budgets/handlers"
	calendarhandlers "github.com/avelis/coinkeeper/internal/modules/calendar/handlers"
	categorieshandlers "github.com/avelis/coinkeeper/internal/modules/categories/handlers"
	recurringhandlers "github.com/avelis/coinkeeper/internal/modules/recurring/handlers"
	reportshandlers "github.com/avelis/coinkeeper/internal/modules/reports/handlers"
	transactionshandlers "github.com/avelis/coinkeeper/internal/modules/transactions/handlers"
	"github.com/avelis/coinkeeper/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Port      int
	DevMode   bool
	Container *di.Container
}

// Server represents the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		cfg.Container.LedgerDB,
		cfg.Container.PlansDB,
		cfg.Container.CacheDB,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers job instances for manual triggering via API.
func (s *Server) SetJobs(walCheckpoint, pastDueDigest, integrityCheck, backup scheduler.Job) {
	s.systemHandlers.SetJobs(walCheckpoint, pastDueDigest, integrityCheck, backup)
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check (before API routing)
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event feeds (SSE and WebSocket) - must be before other routes
		// for proper handling
		eventsStream := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", eventsStream.ServeHTTP)

		eventsSocket := NewEventsSocketHandler(s.container.EventBus, s.log)
		r.Get("/events/ws", eventsSocket.ServeHTTP)

		// System monitoring and manual job triggers
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/disk", s.systemHandlers.HandleDiskUsage)

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/wal-checkpoint", s.systemHandlers.HandleTriggerWALCheckpoint)
				r.Post("/pastdue-digest", s.systemHandlers.HandleTriggerPastDueDigest)
				r.Post("/integrity-check", s.systemHandlers.HandleTriggerIntegrityCheck)
				r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
			})
		})

		// Accounts module
		accountsHandler := accountshandlers.NewHandler(
			s.container.AccountRepo,
			s.container.CalendarService,
			s.log,
		)
		accountsHandler.RegisterRoutes(r)

		// Transactions module
		transactionsHandler := transactionshandlers.NewHandler(
			s.container.TransactionRepo,
			s.container.AccountRepo,
			s.container.EventBus,
			s.log,
		)
		transactionsHandler.RegisterRoutes(r)

		// Categories module
		categoriesHandler := categorieshandlers.NewHandler(s.container.CategoryRepo, s.log)
		categoriesHandler.RegisterRoutes(r)

		// Budgets module
		budgetsHandler := budgetshandlers.NewHandler(
			s.container.BudgetRepo,
			s.container.BudgetService,
			s.log,
		)
		budgetsHandler.RegisterRoutes(r)

		// Recurring module (rules, exceptions, realization, past-due)
		recurringHandler := recurringhandlers.NewHandler(
			s.container.RecurringRepo,
			s.container.RealizationService,
			s.container.PastDueDetector,
			s.container.EventBus,
			s.log,
		)
		recurringHandler.RegisterRoutes(r)

		// Calendar module
		calendarHandler := calendarhandlers.NewHandler(s.container.CalendarService, s.log)
		calendarHandler.RegisterRoutes(r)

		// Reports module
		reportsHandler := reportshandlers.NewHandler(s.container.ReportsService, s.log)
		reportsHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
