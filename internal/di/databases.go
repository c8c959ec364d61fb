package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/config"
	"github.com/avelis/coinkeeper/internal/database"
)

// InitializeDatabases opens all three databases and applies their schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. ledger.db - Immutable financial record (accounts, transactions)
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("ledger"),
		Profile: database.ProfileLedger, // Maximum durability for the money record
		Name:    "ledger",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// 2. plans.db - Forward-looking state (rules, exceptions, categories, budgets)
	plansDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("plans"),
		Profile: database.ProfileStandard,
		Name:    "plans",
	})
	if err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to initialize plans database: %w", err)
	}
	container.PlansDB = plansDB

	// 3. cache.db - Ephemeral data (calendar projections), rebuilt on demand
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("cache"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		ledgerDB.Close()
		plansDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{ledgerDB, plansDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("ledger", ledgerDB.Path()).
		Str("plans", plansDB.Path()).
		Str("cache", cacheDB.Path()).
		Msg("Databases initialized")

	return container, nil
}
