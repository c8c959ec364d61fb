package scheduler

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/events"
)

// IntegrityCheckJob verifies SQLite integrity of the ledger and plans
// databases. Corruption of the financial record cannot be auto-recovered, so
// a failure is reported loudly and left for the operator.
type IntegrityCheckJob struct {
	log      zerolog.Logger
	ledgerDB *database.DB
	plansDB  *database.DB
	bus      *events.Bus
}

// NewIntegrityCheckJob creates a new IntegrityCheckJob
func NewIntegrityCheckJob(ledgerDB, plansDB *database.DB, bus *events.Bus, log zerolog.Logger) *IntegrityCheckJob {
	return &IntegrityCheckJob{
		log:      log.With().Str("job", "integrity_check").Logger(),
		ledgerDB: ledgerDB,
		plansDB:  plansDB,
		bus:      bus,
	}
}

// Name returns the job name
func (j *IntegrityCheckJob) Name() string {
	return "integrity_check"
}

// Run executes the integrity check job. The cache database is excluded: it
// can always be deleted and rebuilt.
func (j *IntegrityCheckJob) Run() error {
	databases := map[string]*database.DB{
		"ledger": j.ledgerDB,
		"plans":  j.plansDB,
	}

	for name, db := range databases {
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := j.checkDatabaseIntegrity(db.Conn()); err != nil {
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")

			j.bus.Emit(events.ErrorOccurred, "scheduler", map[string]interface{}{
				"job":      j.Name(),
				"database": name,
				"error":    err.Error(),
			})
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		j.log.Debug().Str("database", name).Msg("Database integrity OK")
	}

	j.log.Info().Msg("Database integrity check passed")
	return nil
}

// checkDatabaseIntegrity runs SQLite's PRAGMA integrity_check
func (j *IntegrityCheckJob) checkDatabaseIntegrity(db *sql.DB) error {
	var result string
	err := db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}

	return nil
}
