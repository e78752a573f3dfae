package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/studyflow/internal/backup"
)

// BackupJob runs the nightly backup and remote rotation.
type BackupJob struct {
	service       *backup.Service
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates the nightly backup job.
func NewBackupJob(service *backup.Service, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "nightly_backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if err := j.service.Run(ctx); err != nil {
		return err
	}
	if err := j.service.RotateRemote(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Remote rotation failed")
	}
	return nil
}
