package stores

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StoreNotFoundError represents an error when a store is not found
type StoreNotFoundError struct {
	ID uint
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("store not found: %d", e.ID)
}

// NewStoreNotFoundError creates a new StoreNotFoundError
func NewStoreNotFoundError(id uint) *StoreNotFoundError {
	return &StoreNotFoundError{ID: id}
}

// Store represents a physical location belonging to a client. Stores map
// one-to-one onto the analytics provider's device folders.
type Store struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID         uint      `gorm:"index;not null" json:"client_id"`
	Name             string    `gorm:"not null" json:"name"`
	ProviderFolderID string    `gorm:"index" json:"provider_folder_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Device represents a camera/sensor inside a store. ProviderDeviceID is the
// numeric ID the analytics provider uses in visitor queries.
type Device struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID          uint      `gorm:"index;not null" json:"store_id"`
	Name             string    `json:"name"`
	ProviderDeviceID int64     `gorm:"index" json:"provider_device_id"`
	ConnectionState  string    `json:"connection_state"`
	LastSyncAt       time.Time `json:"last_sync_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GetStoresByClient retrieves all stores for a client ordered by name
func GetStoresByClient(db *gorm.DB, clientID uint) ([]Store, error) {
	var result []Store
	if err := db.Where("client_id = ?", clientID).Order("name asc").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to get stores: %w", err)
	}
	return result, nil
}

// GetStoreByID retrieves a store by its ID
func GetStoreByID(db *gorm.DB, id uint) (Store, error) {
	var store Store
	if err := db.First(&store, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Store{}, NewStoreNotFoundError(id)
		}
		return Store{}, err
	}
	return store, nil
}

// CreateStore creates a new store
func CreateStore(db *gorm.DB, store *Store) error {
	if store.ClientID == 0 {
		return fmt.Errorf("store requires a client")
	}
	if store.Name == "" {
		return fmt.Errorf("store name cannot be empty")
	}
	store.CreatedAt = time.Now().UTC()
	return db.Create(store).Error
}

// UpdateStore updates an existing store
func UpdateStore(db *gorm.DB, store *Store) error {
	return db.Save(store).Error
}

// DeleteStore deletes a store and its devices
func DeleteStore(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_id = ?", id).Delete(&Device{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&Store{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CreateDevice creates a new device inside a store
func CreateDevice(db *gorm.DB, device *Device) error {
	if device.StoreID == 0 {
		return fmt.Errorf("device requires a store")
	}
	device.CreatedAt = time.Now().UTC()
	return db.Create(device).Error
}

// GetDevicesByStore retrieves all devices for a store
func GetDevicesByStore(db *gorm.DB, storeID uint) ([]Device, error) {
	var result []Device
	if err := db.Where("store_id = ?", storeID).Order("name asc").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	return result, nil
}

// GetDeviceByID retrieves a device by its ID
func GetDeviceByID(db *gorm.DB, id uint) (Device, error) {
	var device Device
	if err := db.First(&device, id).Error; err != nil {
		return Device{}, err
	}
	return device, nil
}

// GetDevicesByClient retrieves all devices across a client's stores
func GetDevicesByClient(db *gorm.DB, clientID uint) ([]Device, error) {
	var result []Device
	err := db.Joins("JOIN stores ON stores.id = devices.store_id").
		Where("stores.client_id = ?", clientID).
		Order("devices.name asc").
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	return result, nil
}

// StoreWithDevices represents a store with its devices for tree views
type StoreWithDevices struct {
	Store   Store    `json:"store"`
	Devices []Device `json:"devices"`
}

// GetStoreTree returns a client's stores each with its devices
func GetStoreTree(db *gorm.DB, clientID uint) ([]StoreWithDevices, error) {
	clientStores, err := GetStoresByClient(db, clientID)
	if err != nil {
		return nil, err
	}

	result := make([]StoreWithDevices, len(clientStores))
	for i, store := range clientStores {
		devices, err := GetDevicesByStore(db, store.ID)
		if err != nil {
			return nil, err
		}
		result[i] = StoreWithDevices{Store: store, Devices: devices}
	}
	return result, nil
}

// ScopeDeviceIDs translates a store/camera selection into the provider device
// IDs attached to a visitor query. Nil is returned for a whole-network view:
// no filter means all devices.
func ScopeDeviceIDs(db *gorm.DB, storeID, deviceID *uint) ([]int64, error) {
	if deviceID != nil {
		device, err := GetDeviceByID(db, *deviceID)
		if err != nil {
			return nil, err
		}
		return []int64{device.ProviderDeviceID}, nil
	}

	if storeID != nil {
		devices, err := GetDevicesByStore(db, *storeID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(devices))
		for _, d := range devices {
			ids = append(ids, d.ProviderDeviceID)
		}
		return ids, nil
	}

	return nil, nil
}
