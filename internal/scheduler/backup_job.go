package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/backup"
	"github.com/avelis/coinkeeper/internal/database"
)

// backupTimeout bounds one backup run; a stuck upload must not pile up
// behind the next scheduled run.
const backupTimeout = 10 * time.Minute

// BackupJob uploads the ledger and plans databases to S3.
type BackupJob struct {
	uploader  *backup.Uploader
	databases []*database.DB
	log       zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(uploader *backup.Uploader, databases []*database.DB, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		uploader:  uploader,
		databases: databases,
		log:       log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run uploads all configured databases.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	return j.uploader.Backup(ctx, j.databases)
}
