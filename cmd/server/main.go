// Package main is the entry point for the CoinKeeper personal finance server.
// It tracks accounts and transactions in an append-style ledger, projects
// recurring transactions and transfers onto a calendar, and converts planned
// occurrences into ledger rows exactly once.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelis/coinkeeper/internal/config"
	"github.com/avelis/coinkeeper/internal/di"
	"github.com/avelis/coinkeeper/internal/scheduler"
	"github.com/avelis/coinkeeper/internal/server"
	"github.com/avelis/coinkeeper/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Load configuration from environment variables
// 2. Initialize logging
// 3. Wire all dependencies via the DI container (databases, repositories, services, jobs)
// 4. Start the scheduler and HTTP server
// 5. Wait for a shutdown signal and shut down gracefully
//
// The application uses a 3-database architecture:
// - ledger.db: Immutable financial record (accounts, transactions)
// - plans.db: Forward-looking state (recurring rules, exceptions, categories, budgets)
// - cache.db: Ephemeral data (calendar projections), safe to delete
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting CoinKeeper")

	sched := scheduler.New(log)

	container, jobs, err := di.Wire(cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Container: container,
	})
	srv.SetJobs(jobs.WALCheckpoint, jobs.PastDueDigest, jobs.IntegrityCheck, jobs.Backup)

	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
