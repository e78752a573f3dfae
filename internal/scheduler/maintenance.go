package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/studyflow/internal/database"
)

// MaintenanceJob runs the nightly database upkeep: WAL checkpoint, an
// integrity check and incremental vacuum of freed pages.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates the nightly maintenance job.
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	if err := j.db.Checkpoint(); err != nil {
		return fmt.Errorf("wal checkpoint failed: %w", err)
	}

	if err := j.db.IntegrityCheck(); err != nil {
		j.log.Error().Err(err).Msg("Database integrity check reported corruption")
		return err
	}

	if _, err := j.db.Conn().Exec("PRAGMA incremental_vacuum"); err != nil {
		j.log.Warn().Err(err).Msg("Incremental vacuum failed")
	}

	j.log.Info().Msg("Database maintenance completed")
	return nil
}
