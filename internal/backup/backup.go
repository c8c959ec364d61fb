// Package backup uploads database snapshots to S3. The ledger is the system
// of record for real money movements, so offsite copies matter; the cache
// database is deliberately excluded.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/config"
	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/events"
)

// Uploader copies database files to an S3 bucket.
type Uploader struct {
	uploader *manager.Uploader
	cfg      config.BackupConfig
	bus      *events.Bus
	log      zerolog.Logger
}

// NewUploader creates a backup uploader from the backup configuration.
// Explicit credentials take priority; otherwise the default AWS credential
// chain applies.
func NewUploader(ctx context.Context, cfg config.BackupConfig, bus *events.Bus, log zerolog.Logger) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &Uploader{
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		bus:      bus,
		log:      log.With().Str("component", "backup").Logger(),
	}, nil
}

// Backup checkpoints and uploads the given databases. Each file lands under
// <prefix>/<date>/<name>.db so daily snapshots do not overwrite each other.
func (u *Uploader) Backup(ctx context.Context, databases []*database.DB) error {
	datePrefix := time.Now().UTC().Format("2006-01-02")

	for _, db := range databases {
		// Fold the WAL into the main file so the snapshot is complete.
		if _, err := db.Conn().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			u.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to checkpoint before backup")
		}

		if err := u.uploadFile(ctx, db.Path(), fmt.Sprintf("%s/%s/%s.db", u.cfg.Prefix, datePrefix, db.Name())); err != nil {
			return fmt.Errorf("failed to back up database %s: %w", db.Name(), err)
		}
	}

	u.log.Info().
		Int("databases", len(databases)).
		Str("bucket", u.cfg.Bucket).
		Msg("Backup completed")
	u.bus.Emit(events.BackupCompleted, "backup", map[string]interface{}{
		"bucket":    u.cfg.Bucket,
		"prefix":    fmt.Sprintf("%s/%s", u.cfg.Prefix, datePrefix),
		"databases": len(databases),
	})

	return nil
}

func (u *Uploader) uploadFile(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	u.log.Debug().Str("key", key).Msg("Uploaded backup object")
	return nil
}
