package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const backupTimeout = 10 * time.Minute

// BackupJob creates a database backup on a schedule
type BackupJob struct {
	service *BackupService
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		log:     log.With().Str("job", "database_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "database_backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	info, err := j.service.CreateBackup(ctx)
	if err != nil {
		return err
	}

	if _, err := j.service.VerifyBackup(info.Filename); err != nil {
		j.log.Error().Err(err).Str("archive", info.Filename).Msg("Backup verification failed")
		return err
	}
	return nil
}
