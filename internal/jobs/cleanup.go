package jobs

import (
	"log/slog"
)

// AdminCleaner removes expired admin sessions and old login attempts.
type AdminCleaner interface {
	Cleanup() (sessions int64, attempts int64, err error)
}

// AdminCleanupJob keeps the admin auth tables small.
type AdminCleanupJob struct {
	cleaner AdminCleaner
	logger  *slog.Logger
}

func NewAdminCleanupJob(cleaner AdminCleaner, logger *slog.Logger) *AdminCleanupJob {
	return &AdminCleanupJob{cleaner: cleaner, logger: logger}
}

func (j *AdminCleanupJob) Name() string { return "admin_cleanup" }

func (j *AdminCleanupJob) Run() error {
	sessions, attempts, err := j.cleaner.Cleanup()
	if err != nil {
		return err
	}
	if sessions > 0 || attempts > 0 {
		j.logger.Info("Cleaned up admin auth records",
			slog.Int64("expired_sessions", sessions),
			slog.Int64("old_login_attempts", attempts))
	}
	return nil
}

// Checkpointer is implemented by the database manager.
type Checkpointer interface {
	CheckpointWAL(mode string) error
}

// CheckpointJob folds the WAL back into the database file.
type CheckpointJob struct {
	db     Checkpointer
	logger *slog.Logger
}

func NewCheckpointJob(db Checkpointer, logger *slog.Logger) *CheckpointJob {
	return &CheckpointJob{db: db, logger: logger}
}

func (j *CheckpointJob) Name() string { return "wal_checkpoint" }

func (j *CheckpointJob) Run() error {
	if err := j.db.CheckpointWAL("TRUNCATE"); err != nil {
		return err
	}
	j.logger.Info("WAL checkpoint completed")
	return nil
}
