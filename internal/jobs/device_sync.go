package jobs

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"storepulse/internal/clients"
	"storepulse/internal/config"
	"storepulse/internal/database"
	"storepulse/internal/displayforce"
	"storepulse/internal/settings"
	"storepulse/internal/stores"
)

// InventoryLister is the slice of the provider client the sync job needs.
type InventoryLister interface {
	ListFolders(ctx context.Context) ([]displayforce.Folder, error)
	ListDevices(ctx context.Context) ([]displayforce.Device, error)
}

// ListerFactory builds a provider client from a stored config. Swappable in
// tests.
type ListerFactory func(cfg settings.APIConfig) InventoryLister

// DeviceSyncJob mirrors the provider's folder and device inventory into the
// local stores and devices tables, once per configured client.
type DeviceSyncJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	factory   ListerFactory
}

func NewDeviceSyncJob(dbManager *database.DBManager, logger *slog.Logger) *DeviceSyncJob {
	return &DeviceSyncJob{
		dbManager: dbManager,
		logger:    logger,
		factory:   defaultListerFactory,
	}
}

// NewDeviceSyncJobWithFactory creates a sync job with a custom provider
// client factory.
func NewDeviceSyncJobWithFactory(dbManager *database.DBManager, logger *slog.Logger, factory ListerFactory) *DeviceSyncJob {
	j := NewDeviceSyncJob(dbManager, logger)
	j.factory = factory
	return j
}

func defaultListerFactory(cfg settings.APIConfig) InventoryLister {
	appCfg := config.GetConfig()
	return displayforce.NewClient(displayforce.Config{
		BaseURL:           cfg.BaseURL,
		APIToken:          cfg.APIToken,
		CustomHeaderName:  cfg.CustomHeaderName,
		CustomHeaderValue: cfg.CustomHeaderValue,
		ProxyPrefix:       appCfg.ProviderProxyPrefix,
		Timeout:           time.Duration(appCfg.ProviderTimeoutSeconds) * time.Second,
	}, slog.Default())
}

// Run syncs every client that has a provider config. A failure for one
// client is logged and does not stop the others.
func (j *DeviceSyncJob) Run() error {
	return SyncAllClients(j.dbManager.GetConnection(), j.logger, j.factory)
}

// SyncAllClients mirrors the provider inventory for every client with a
// provider config. Used by the scheduled job and the manual sync action.
// A nil factory means the real provider client.
func SyncAllClients(db *gorm.DB, logger *slog.Logger, factory ListerFactory) error {
	if factory == nil {
		factory = defaultListerFactory
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	all, err := clients.GetAllClients(db)
	if err != nil {
		return err
	}

	for _, client := range all {
		cfg, err := settings.GetAPIConfig(db, client.ID)
		if err != nil {
			logger.Error("Failed to load provider config",
				slog.Uint64("client_id", uint64(client.ID)),
				slog.Any("error", err))
			continue
		}
		if cfg == nil {
			continue
		}

		if err := syncClient(ctx, db, logger, factory, client.ID, *cfg); err != nil {
			logger.Error("Device sync failed",
				slog.Uint64("client_id", uint64(client.ID)),
				slog.String("client", client.Name),
				slog.Any("error", err))
		}
	}
	return nil
}

func syncClient(ctx context.Context, db *gorm.DB, logger *slog.Logger, factory ListerFactory, clientID uint, cfg settings.APIConfig) error {
	provider := factory(cfg)

	folders, err := provider.ListFolders(ctx)
	if err != nil {
		return err
	}
	devices, err := provider.ListDevices(ctx)
	if err != nil {
		return err
	}

	stats, err := stores.SyncProviderInventory(db, logger, clientID, folders, devices)
	if err != nil {
		return err
	}

	logger.Info("Device sync completed",
		slog.Uint64("client_id", uint64(clientID)),
		slog.Int("stores_created", stats.StoresCreated),
		slog.Int("stores_updated", stats.StoresUpdated),
		slog.Int("devices_created", stats.DevicesCreated),
		slog.Int("devices_updated", stats.DevicesUpdated),
		slog.Int("orphans", stats.Orphans))
	return nil
}
