package jobs

import (
	"log/slog"

	"storepulse/internal/accesslog"
	"storepulse/internal/config"
	"storepulse/internal/database"
)

// CleanupJob prunes expired access-log entries and checkpoints the WAL so
// the database file stays compact on long-running installs.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.AccessLogRetentionDays
	db := j.dbManager.GetConnection()

	deleted, err := accesslog.PruneOlderThan(db, j.logger, retentionDays)
	if err != nil {
		j.logger.Error("Failed to prune access log",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", deleted))
		return err
	}

	if err := j.dbManager.CheckpointWAL("PASSIVE"); err != nil {
		j.logger.Warn("WAL checkpoint failed", slog.Any("error", err))
	}

	return nil
}
