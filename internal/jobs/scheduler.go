package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storepulse/internal/config"
	"storepulse/internal/database"
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	// Job instances
	deviceSyncJob *DeviceSyncJob
	cleanupJob    *CleanupJob
	geoLiteJob    *GeoLiteUpdaterJob

	// Tickers for each job type
	syncTicker    *time.Ticker
	cleanupTicker *time.Ticker
	geoLiteTicker *time.Ticker
}

func NewScheduler(dbManager *database.DBManager, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	s := &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		enabled:   true,
		isRunning: false,
		cfg:       cfg,
	}

	// Initialize job instances
	s.deviceSyncJob = NewDeviceSyncJob(dbManager, logger)
	s.cleanupJob = NewCleanupJob(dbManager, logger, cfg)
	s.geoLiteJob = NewGeoLiteUpdaterJob(dbManager, logger)

	return s, nil
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")

	s.isRunning = true

	s.startDeviceSyncJob()
	s.startCleanupJob()
	s.startGeoLiteUpdaterJob()

	s.logger.Info("Background jobs started",
		slog.Bool("enabled", s.enabled),
		slog.Bool("isRunning", s.isRunning))

	return nil
}

func (s *Scheduler) startDeviceSyncJob() {
	interval := time.Duration(s.cfg.DeviceSyncIntervalMinutes) * time.Minute
	s.logger.Info("Starting device sync job", slog.Duration("interval", interval))
	s.syncTicker = time.NewTicker(interval)

	go func() {
		// Run initial sync
		s.logger.Info("Running initial device sync...")
		s.executeJobSafely("device_sync", s.deviceSyncJob.Run)

		for {
			select {
			case <-s.syncTicker.C:
				s.executeJobSafely("device_sync", s.deviceSyncJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Device sync job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startCleanupJob() {
	interval := 24 * time.Hour
	s.logger.Info("Starting cleanup job", slog.Duration("interval", interval))
	s.cleanupTicker = time.NewTicker(interval)

	go func() {
		// Run initial cleanup
		s.logger.Info("Running initial cleanup...")
		if err := s.cleanupJob.Run(); err != nil {
			s.logger.Error("Error in initial cleanup job", slog.Any("error", err))
		}

		for {
			select {
			case <-s.cleanupTicker.C:
				if err := s.cleanupJob.Run(); err != nil {
					s.logger.Error("Error in cleanup job", slog.Any("error", err))
				}
			case <-s.ctx.Done():
				s.logger.Info("Cleanup job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startGeoLiteUpdaterJob() {
	interval := 7 * 24 * time.Hour
	s.logger.Info("Starting GeoLite updater job", slog.Duration("interval", interval))
	s.geoLiteTicker = time.NewTicker(interval)

	go func() {
		// Check on startup: the database may be missing entirely
		s.executeJobSafely("geolite_updater", s.geoLiteJob.Run)

		for {
			select {
			case <-s.geoLiteTicker.C:
				s.executeJobSafely("geolite_updater", s.geoLiteJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("GeoLite updater job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.syncTicker != nil {
		s.syncTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	if s.geoLiteTicker != nil {
		s.geoLiteTicker.Stop()
	}

	s.cancel()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// SyncDevices allows manual triggering of a device sync, used by the CLI.
func (s *Scheduler) SyncDevices() error {
	if !s.enabled {
		return nil
	}
	return s.deviceSyncJob.Run()
}
