// Package accesslog records login and administrative actions: who did what,
// from which IP and agent, against which client and store. Entries land in
// the database for the logs view and in a rotated JSON audit file.
package accesslog

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"storepulse/internal/config"
	"storepulse/internal/models"
	"storepulse/internal/pkg/geoip"
	"storepulse/internal/pkg/useragent"
)

// Actions recorded in the log.
const (
	ActionLogin             = "login"
	ActionLoginFailed       = "login_failed"
	ActionLogout            = "logout"
	ActionPermissionsChange = "permissions_change"
	ActionSettingsChange    = "settings_change"
	ActionExport            = "export"
)

// Scopes an entry can carry: network-wide actions vs store-specific ones.
const (
	ScopeNetwork = "network"
	ScopeStore   = "store"
)

// Entry is one audit record.
type Entry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserEmail string    `gorm:"index" json:"user_email"`
	Action    string    `gorm:"index" json:"action"`
	Success   bool      `json:"success"`
	Scope     string    `gorm:"index" json:"scope"`
	ClientID  uint      `gorm:"index" json:"client_id"`
	StoreID   uint      `json:"store_id"`
	IP        string    `json:"ip"`
	Country   string    `json:"country"`
	UserAgent string    `json:"user_agent"`
	AgentInfo string    `json:"agent_info"` // classified "Browser / OS"
	Detail    string    `json:"detail"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

var (
	auditSink   *lumberjack.Logger
	auditSinkMu sync.Mutex
)

// auditWriter lazily opens the rotated audit file using the app log settings.
func auditWriter() *lumberjack.Logger {
	auditSinkMu.Lock()
	defer auditSinkMu.Unlock()
	if auditSink == nil {
		cfg := config.GetConfig()
		auditSink = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogsDirectory, "audit.log"),
			MaxSize:    cfg.LogsMaxSizeInMb,
			MaxBackups: cfg.LogsMaxBackups,
			MaxAge:     cfg.LogsMaxAgeInDays,
		}
	}
	return auditSink
}

// Record persists one entry, enriching it with GeoIP country and a
// classified user agent. The file sink is best-effort: a write failure there
// never fails the request that triggered the entry.
func Record(db *gorm.DB, logger *slog.Logger, entry Entry) error {
	entry.CreatedAt = time.Now().UTC()
	if entry.Scope == "" {
		entry.Scope = ScopeNetwork
	}
	if entry.Country == "" && entry.IP != "" {
		entry.Country = geoip.CountryCode(entry.IP)
	}
	if entry.AgentInfo == "" && entry.UserAgent != "" {
		entry.AgentInfo = useragent.Parse(entry.UserAgent).Label()
	}

	if err := models.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(&entry).Error
	}); err != nil {
		return fmt.Errorf("failed to record access log entry: %w", err)
	}

	if line, err := json.Marshal(entry); err == nil {
		if _, err := auditWriter().Write(append(line, '\n')); err != nil {
			logger.Warn("audit file write failed", slog.Any("error", err))
		}
	}

	return nil
}

// Filter narrows a log listing.
type Filter struct {
	Scope    string // "", ScopeNetwork or ScopeStore
	ClientID uint
	StoreID  uint
	Search   string // matches user email or action
	Limit    int
}

// List returns entries newest first, applying the filter.
func List(db *gorm.DB, f Filter) ([]Entry, error) {
	query := db.Model(&Entry{}).Order("created_at desc")

	if f.Scope != "" {
		query = query.Where("scope = ?", f.Scope)
	}
	if f.ClientID != 0 {
		query = query.Where("client_id = ?", f.ClientID)
	}
	if f.StoreID != 0 {
		query = query.Where("store_id = ?", f.StoreID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("user_email LIKE ? OR action LIKE ?", like, like)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []Entry
	if err := query.Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list access log entries: %w", err)
	}
	return entries, nil
}

// PruneOlderThan deletes entries past the retention cutoff in batches,
// returning the number deleted.
func PruneOlderThan(db *gorm.DB, logger *slog.Logger, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	batchSize := 1000
	var totalDeleted int64

	for {
		result := db.Where("created_at < ?", cutoff).Limit(batchSize).Delete(&Entry{})
		if result.Error != nil {
			return totalDeleted, result.Error
		}
		totalDeleted += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			break
		}
		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	if totalDeleted > 0 {
		logger.Info("Pruned old access log entries",
			slog.Int64("deleted_count", totalDeleted),
			slog.Int("retention_days", retentionDays))
	}
	return totalDeleted, nil
}
