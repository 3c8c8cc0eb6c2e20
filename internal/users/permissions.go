package users

import (
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Permission holds a user's capability flags for one client. Admins bypass
// permission checks entirely; everyone else needs an explicit row per client.
type Permission struct {
	ID             uint `gorm:"primaryKey"`
	UserID         uint `gorm:"uniqueIndex:idx_user_client;not null" json:"user_id"`
	ClientID       uint `gorm:"uniqueIndex:idx_user_client;not null" json:"client_id"`
	ViewDashboard  bool `json:"view_dashboard"`
	ViewReports    bool `json:"view_reports"`
	ViewAnalytics  bool `json:"view_analytics"`
	ExportData     bool `json:"export_data"`
	ManageSettings bool `json:"manage_settings"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Capability names accepted by HasCapability.
const (
	CapViewDashboard  = "view_dashboard"
	CapViewReports    = "view_reports"
	CapViewAnalytics  = "view_analytics"
	CapExportData     = "export_data"
	CapManageSettings = "manage_settings"
)

// PermissionsFor returns a user's permission row for a client. A missing row
// comes back as an all-false Permission, not an error.
func PermissionsFor(db *gorm.DB, userID, clientID uint) (Permission, error) {
	var p Permission
	err := db.Where("user_id = ? AND client_id = ?", userID, clientID).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return Permission{UserID: userID, ClientID: clientID}, nil
	}
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

// SetPermissions upserts a user's permission flags for a client.
func SetPermissions(dbConn *gorm.DB, p Permission) error {
	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		var existing Permission
		err := tx.Where("user_id = ? AND client_id = ?", p.UserID, p.ClientID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(&p).Error
		}
		if err != nil {
			return err
		}
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		return tx.Save(&p).Error
	})
}

// HasCapability checks one capability for a user on a client. Admins always
// pass.
func HasCapability(db *gorm.DB, user *User, clientID uint, capability string) (bool, error) {
	if user.IsAdmin {
		return true, nil
	}

	p, err := PermissionsFor(db, user.ID, clientID)
	if err != nil {
		return false, err
	}

	switch capability {
	case CapViewDashboard:
		return p.ViewDashboard, nil
	case CapViewReports:
		return p.ViewReports, nil
	case CapViewAnalytics:
		return p.ViewAnalytics, nil
	case CapExportData:
		return p.ExportData, nil
	case CapManageSettings:
		return p.ManageSettings, nil
	default:
		return false, nil
	}
}

// UserWithPermissions pairs a user with their flags for one client, for the
// permissions management view.
type UserWithPermissions struct {
	User       User       `json:"user"`
	Permission Permission `json:"permission"`
}

// ListUsersWithPermissions returns every user alongside their permission row
// for the given client.
func ListUsersWithPermissions(db *gorm.DB, clientID uint) ([]UserWithPermissions, error) {
	all, err := GetAllUsers(db)
	if err != nil {
		return nil, err
	}

	result := make([]UserWithPermissions, len(all))
	for i, user := range all {
		p, err := PermissionsFor(db, user.ID, clientID)
		if err != nil {
			return nil, err
		}
		result[i] = UserWithPermissions{User: user, Permission: p}
	}
	return result, nil
}
