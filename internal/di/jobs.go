package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/config"
	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/scheduler"
)

// Cron schedules use the six-field form with a seconds column.
const (
	// Hourly WAL maintenance keeps -wal files from growing unbounded.
	walCheckpointSchedule = "0 0 * * * *"
	// Past-due digest runs every morning at 07:00.
	pastDueDigestSchedule = "0 0 7 * * *"
	// Backups run nightly at 03:30, outside interactive hours.
	backupSchedule = "0 30 3 * * *"
	// Integrity check runs nightly at 04:00, after the backup.
	integrityCheckSchedule = "0 0 4 * * *"
)

// RegisterJobs creates all scheduled jobs and registers them with the
// scheduler. Services must be initialized first.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{}

	instances.WALCheckpoint = scheduler.NewWALCheckpointJob(
		container.LedgerDB,
		container.PlansDB,
		container.CacheDB,
		log,
	)
	if err := sched.AddJob(walCheckpointSchedule, instances.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to schedule WAL checkpoint job: %w", err)
	}

	instances.PastDueDigest = scheduler.NewPastDueDigestJob(
		container.PastDueDetector,
		container.EventBus,
		log,
	)
	if err := sched.AddJob(pastDueDigestSchedule, instances.PastDueDigest); err != nil {
		return nil, fmt.Errorf("failed to schedule past-due digest job: %w", err)
	}

	instances.IntegrityCheck = scheduler.NewIntegrityCheckJob(
		container.LedgerDB,
		container.PlansDB,
		container.EventBus,
		log,
	)
	if err := sched.AddJob(integrityCheckSchedule, instances.IntegrityCheck); err != nil {
		return nil, fmt.Errorf("failed to schedule integrity check job: %w", err)
	}

	if container.BackupUploader != nil {
		instances.Backup = scheduler.NewBackupJob(
			container.BackupUploader,
			[]*database.DB{container.LedgerDB, container.PlansDB},
			log,
		)
		if err := sched.AddJob(backupSchedule, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to schedule backup job: %w", err)
		}
	}

	return instances, nil
}
