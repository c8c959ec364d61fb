package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/backup"
	"github.com/avelis/coinkeeper/internal/config"
	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/budgets"
	"github.com/avelis/coinkeeper/internal/modules/calendar"
	"github.com/avelis/coinkeeper/internal/modules/recurring"
	"github.com/avelis/coinkeeper/internal/modules/reports"
)

// InitializeServices wires all services onto repositories and the event bus.
// Repositories must be initialized first.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	clock := domain.SystemClock{}

	container.RealizationService = recurring.NewRealizationService(
		container.LedgerDB,
		container.RecurringRepo,
		container.TransactionRepo,
		container.EventBus,
		log,
	)

	container.PastDueDetector = recurring.NewPastDueDetector(
		container.RecurringRepo,
		container.TransactionRepo,
		container.AccountRepo,
		clock,
		log,
	)

	// The cache subscribes to ledger-mutating events and invalidates itself.
	container.CalendarCache = calendar.NewCache(container.CacheDB, container.EventBus, log)

	container.CalendarService = calendar.NewService(
		container.TransactionRepo,
		container.RecurringRepo,
		container.AccountRepo,
		clock,
		container.CalendarCache,
		log,
	)

	container.BudgetService = budgets.NewService(
		container.BudgetRepo,
		container.TransactionRepo,
		container.CategoryRepo,
		log,
	)

	container.ReportsService = reports.NewService(
		container.TransactionRepo,
		container.CategoryRepo,
		clock,
		log,
	)

	if cfg.Backup.Enabled {
		uploader, err := backup.NewUploader(context.Background(), cfg.Backup, container.EventBus, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup uploader: %w", err)
		}
		container.BackupUploader = uploader
	}

	return nil
}
