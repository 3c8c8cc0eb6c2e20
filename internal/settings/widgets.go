package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"
)

// Widget settings keys
const (
	KeyDefaultWidgets = "default_widgets"
	KeyWidgetConfigs  = "widget_configs"
)

// HardcodedDefaultWidgets is the last-resort dashboard layout when neither a
// per-client list nor a global default is stored.
var HardcodedDefaultWidgets = []string{
	"flow_trend",
	"hourly_flow",
	"age_pyramid",
	"gender_dist",
	"attributes",
	"campaigns",
}

var widgetCache *cache.Cache[string, []string]

func defaultWidgetsJSON() string {
	data, _ := json.Marshal(HardcodedDefaultWidgets)
	return string(data)
}

func loadWidgetCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) ([]string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).Scan(&value).Error
		if err != nil {
			return nil, err
		}
		var widgets []string
		if err := json.Unmarshal([]byte(value), &widgets); err != nil {
			return nil, err
		}
		return widgets, nil
	}
	widgetCache = cache.NewCache[string, []string](logger, 5*time.Minute, fetchFunc)
}

// widgetConfigStore maps client ID strings to ordered widget lists.
type widgetConfigStore struct {
	Widgets map[string][]string `json:"widgets"`
}

func loadWidgetConfigStore(db *gorm.DB) widgetConfigStore {
	store := widgetConfigStore{Widgets: make(map[string][]string)}

	raw, err := GetSetting(db, KeyWidgetConfigs)
	if err != nil || raw == "" {
		return store
	}
	if err := json.Unmarshal([]byte(raw), &store); err != nil || store.Widgets == nil {
		store.Widgets = make(map[string][]string)
	}
	return store
}

// GetWidgets resolves a client's dashboard widget list with the fallback
// chain: per-client list, then the stored global default, then the hardcoded
// default. The returned order is the render order.
func GetWidgets(db *gorm.DB, clientID uint) []string {
	store := loadWidgetConfigStore(db)

	key := strconv.FormatUint(uint64(clientID), 10)
	if widgets, ok := store.Widgets[key]; ok && len(widgets) > 0 {
		return widgets
	}

	if widgetCache != nil {
		if widgets, err := widgetCache.Get(KeyDefaultWidgets); err == nil && len(widgets) > 0 {
			return widgets
		}
	}

	if raw, err := GetSetting(db, KeyDefaultWidgets); err == nil && raw != "" {
		var widgets []string
		if err := json.Unmarshal([]byte(raw), &widgets); err == nil && len(widgets) > 0 {
			return widgets
		}
	}

	return HardcodedDefaultWidgets
}

// SaveWidgets stores a client's widget list. An empty list removes the
// per-client override so the global default applies again.
func SaveWidgets(db *gorm.DB, clientID uint, widgets []string) error {
	store := loadWidgetConfigStore(db)

	cleaned := make([]string, 0, len(widgets))
	seen := make(map[string]bool)
	for _, widget := range widgets {
		widget = strings.TrimSpace(widget)
		if widget != "" && !seen[widget] {
			seen[widget] = true
			cleaned = append(cleaned, widget)
		}
	}

	key := strconv.FormatUint(uint64(clientID), 10)
	if len(cleaned) == 0 {
		delete(store.Widgets, key)
	} else {
		store.Widgets[key] = cleaned
	}

	updated, err := json.Marshal(store)
	if err != nil {
		return err
	}
	return CreateOrUpdateSetting(db, KeyWidgetConfigs, string(updated))
}

// SaveDefaultWidgets stores the global default widget list.
func SaveDefaultWidgets(db *gorm.DB, widgets []string) error {
	data, err := json.Marshal(widgets)
	if err != nil {
		return err
	}
	return CreateOrUpdateSetting(db, KeyDefaultWidgets, string(data))
}
