package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/database"
)

// WALCheckpointJob monitors WAL checkpoint status across all databases and
// forces a passive checkpoint when the log grows.
type WALCheckpointJob struct {
	log      zerolog.Logger
	ledgerDB *database.DB
	plansDB  *database.DB
	cacheDB  *database.DB
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(ledgerDB, plansDB, cacheDB *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		log:      log.With().Str("job", "wal_checkpoint").Logger(),
		ledgerDB: ledgerDB,
		plansDB:  plansDB,
		cacheDB:  cacheDB,
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checks WAL checkpoint status for every database.
func (j *WALCheckpointJob) Run() error {
	databases := map[string]*database.DB{
		"ledger": j.ledgerDB,
		"plans":  j.plansDB,
		"cache":  j.cacheDB,
	}

	for name, db := range databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, logFrames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logFrames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if busy == 1 {
			j.log.Warn().
				Str("database", name).
				Msg("WAL checkpoint blocked by concurrent activity")
			continue
		}

		if logFrames > 0 && checkpointed < logFrames {
			j.log.Info().
				Str("database", name).
				Int("log_frames", logFrames).
				Int("checkpointed", checkpointed).
				Msg("WAL checkpoint lag detected")
		}
	}

	return nil
}
