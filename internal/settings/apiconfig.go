package settings

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// KeyAPIConfigs is the settings key holding every client's provider config,
// as a JSON map keyed by client ID string.
const KeyAPIConfigs = "client_api_configs"

// APIConfig is one client's analytics provider configuration. Absence of a
// config means the dashboard skips the provider fetch for that client and
// renders zero-valued aggregates.
type APIConfig struct {
	BaseURL           string `json:"base_url"`
	AnalyticsPath     string `json:"analytics_path,omitempty"`
	APIToken          string `json:"api_token"`
	CustomHeaderName  string `json:"custom_header_name,omitempty"`
	CustomHeaderValue string `json:"custom_header_value,omitempty"`

	// Optional fixed collection window overrides, RFC 3339. Empty means the
	// scope defaults apply.
	StartOverride string `json:"start_override,omitempty"`
	EndOverride   string `json:"end_override,omitempty"`

	// Soft-attribute toggles forwarded on every visitor query.
	Tracks      bool `json:"tracks"`
	FaceQuality bool `json:"face_quality"`
	Glasses     bool `json:"glasses"`
	FacialHair  bool `json:"facial_hair"`
	HairColor   bool `json:"hair_color"`
	HairType    bool `json:"hair_type"`
	Headwear    bool `json:"headwear"`
}

type apiConfigStore struct {
	Configs map[string]APIConfig `json:"configs"`
}

func loadAPIConfigStore(db *gorm.DB) apiConfigStore {
	store := apiConfigStore{Configs: make(map[string]APIConfig)}

	raw, err := GetSetting(db, KeyAPIConfigs)
	if err != nil || raw == "" {
		return store
	}
	if err := json.Unmarshal([]byte(raw), &store); err != nil || store.Configs == nil {
		store.Configs = make(map[string]APIConfig)
	}
	return store
}

// GetAPIConfig retrieves a client's provider config. A missing config is not
// an error: the caller gets (nil, nil) and must degrade to empty aggregates.
func GetAPIConfig(db *gorm.DB, clientID uint) (*APIConfig, error) {
	store := loadAPIConfigStore(db)

	key := strconv.FormatUint(uint64(clientID), 10)
	cfg, ok := store.Configs[key]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// SaveAPIConfig upserts a client's provider config.
func SaveAPIConfig(db *gorm.DB, clientID uint, cfg APIConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("provider base URL cannot be empty")
	}
	if cfg.APIToken == "" {
		return fmt.Errorf("provider API token cannot be empty")
	}

	store := loadAPIConfigStore(db)
	store.Configs[strconv.FormatUint(uint64(clientID), 10)] = cfg

	updated, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to marshal provider configs: %w", err)
	}
	if err := CreateOrUpdateSetting(db, KeyAPIConfigs, string(updated)); err != nil {
		return fmt.Errorf("failed to save provider configs: %w", err)
	}
	return nil
}

// DeleteAPIConfig removes a client's provider config.
func DeleteAPIConfig(db *gorm.DB, clientID uint) error {
	store := loadAPIConfigStore(db)
	delete(store.Configs, strconv.FormatUint(uint64(clientID), 10))

	updated, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to marshal provider configs: %w", err)
	}
	return CreateOrUpdateSetting(db, KeyAPIConfigs, string(updated))
}
