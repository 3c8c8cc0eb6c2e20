package stores

import (
	"time"

	"log/slog"

	"gorm.io/gorm"

	"storepulse/internal/displayforce"
	"storepulse/internal/models"
)

// SyncStats summarizes one inventory sync run.
type SyncStats struct {
	StoresCreated  int
	StoresUpdated  int
	DevicesCreated int
	DevicesUpdated int
	Orphans        int // provider devices matching no folder
}

// SyncProviderInventory mirrors the provider's folder/device listings into a
// client's store tree. Folders become stores; devices attach to the store
// whose folder they hang under. Stores that vanished from the provider are
// left in place so manual records survive a provider-side reshuffle.
func SyncProviderInventory(db *gorm.DB, logger *slog.Logger, clientID uint, folders []displayforce.Folder, devices []displayforce.Device) (SyncStats, error) {
	var stats SyncStats
	now := time.Now().UTC()

	err := models.PerformWrite(logger, db, func(tx *gorm.DB) error {
		matched := make(map[displayforce.FlexID]bool)

		for _, folder := range folders {
			var store Store
			err := tx.Where("client_id = ? AND provider_folder_id = ?", clientID, string(folder.ID)).First(&store).Error
			switch err {
			case nil:
				if store.Name != folder.Name {
					store.Name = folder.Name
					if err := tx.Save(&store).Error; err != nil {
						return err
					}
					stats.StoresUpdated++
				}
			case gorm.ErrRecordNotFound:
				store = Store{
					ClientID:         clientID,
					Name:             folder.Name,
					ProviderFolderID: string(folder.ID),
					CreatedAt:        now,
				}
				if err := tx.Create(&store).Error; err != nil {
					return err
				}
				stats.StoresCreated++
			default:
				return err
			}

			for _, device := range devices {
				if !device.BelongsToFolder(folder.ID) {
					continue
				}
				matched[device.ID] = true
				if err := upsertDevice(tx, &stats, store.ID, device, now); err != nil {
					return err
				}
			}
		}

		for _, device := range devices {
			if !matched[device.ID] {
				stats.Orphans++
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	logger.Info("Provider inventory sync complete",
		slog.Uint64("client_id", uint64(clientID)),
		slog.Int("stores_created", stats.StoresCreated),
		slog.Int("devices_created", stats.DevicesCreated),
		slog.Int("orphan_devices", stats.Orphans))
	return stats, nil
}

func upsertDevice(tx *gorm.DB, stats *SyncStats, storeID uint, device displayforce.Device, now time.Time) error {
	providerID := device.ID.Int64()

	var existing Device
	err := tx.Where("store_id = ? AND provider_device_id = ?", storeID, providerID).First(&existing).Error
	switch err {
	case nil:
		existing.Name = device.Name
		existing.ConnectionState = device.ConnectionState
		existing.LastSyncAt = now
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		stats.DevicesUpdated++
		return nil
	case gorm.ErrRecordNotFound:
		created := Device{
			StoreID:          storeID,
			Name:             device.Name,
			ProviderDeviceID: providerID,
			ConnectionState:  device.ConnectionState,
			LastSyncAt:       now,
			CreatedAt:        now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		stats.DevicesCreated++
		return nil
	default:
		return err
	}
}
