// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/avelis/coinkeeper/internal/backup"
	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/events"
	"github.com/avelis/coinkeeper/internal/modules/accounts"
	"github.com/avelis/coinkeeper/internal/modules/budgets"
	"github.com/avelis/coinkeeper/internal/modules/calendar"
	"github.com/avelis/coinkeeper/internal/modules/categories"
	"github.com/avelis/coinkeeper/internal/modules/recurring"
	"github.com/avelis/coinkeeper/internal/modules/reports"
	"github.com/avelis/coinkeeper/internal/modules/transactions"
	"github.com/avelis/coinkeeper/internal/scheduler"
)

// Container holds all initialized dependencies.
type Container struct {
	// Databases (3-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	LedgerDB *database.DB // Immutable financial record (accounts, transactions)
	PlansDB  *database.DB // Forward-looking state (rules, exceptions, categories, budgets)
	CacheDB  *database.DB // Ephemeral data (calendar projections)

	// Event bus - in-process pub/sub for module decoupling
	EventBus *events.Bus

	// Repositories - data access layer
	AccountRepo     *accounts.Repository     // Accounts (ledger.db)
	TransactionRepo *transactions.Repository // Ledger transactions (ledger.db)
	CategoryRepo    *categories.Repository   // Spending categories (plans.db)
	BudgetRepo      *budgets.Repository      // Monthly budgets (plans.db)
	RecurringRepo   *recurring.Repository    // Recurring rules and exceptions (plans.db)

	// Services - business logic layer
	RealizationService *recurring.RealizationService // Occurrence to ledger-row conversion
	PastDueDetector    *recurring.PastDueDetector    // Missed occurrence scanning
	CalendarCache      *calendar.Cache               // Cached month aggregates (cache.db)
	CalendarService    *calendar.Service             // Month grid, day detail, account timelines
	BudgetService      *budgets.Service              // Budget progress tracking
	ReportsService     *reports.Service              // Spending and cashflow reports

	// Backup uploader, nil when S3 backups are not configured
	BackupUploader *backup.Uploader
}

// JobInstances holds scheduled job instances so they can also be triggered
// manually through the API.
type JobInstances struct {
	WALCheckpoint  scheduler.Job
	PastDueDigest  scheduler.Job
	IntegrityCheck scheduler.Job
	Backup         scheduler.Job // nil when backups are disabled
}

// Close closes all databases. Safe to call on a partially initialized
// container.
func (c *Container) Close() {
	for _, db := range []*database.DB{c.LedgerDB, c.PlansDB, c.CacheDB} {
		if db != nil {
			db.Close()
		}
	}
}
