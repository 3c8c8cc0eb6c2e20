package http

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"

	"storepulse/internal/accesslog"
	"storepulse/internal/config"
	"storepulse/internal/jobs"
	"storepulse/internal/settings"
	"storepulse/internal/users"
)

// SettingsIndexAction renders the settings page: provider config for the
// selected client, its widget layout, GeoLite status and general settings
// (Inertia)
func SettingsIndexAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	clientID, _ := currentClientID(ctx)

	settingsData, err := settings.GetAllSettingsForDisplay(db)
	if err != nil {
		ctx.Logger.Error("Failed to fetch settings", slog.Any("error", err))
		settingsData = []settings.SettingResponse{}
	}

	var apiCfg *settings.APIConfig
	if clientID != 0 {
		apiCfg, err = settings.GetAPIConfig(db, clientID)
		if err != nil {
			ctx.Logger.Error("Failed to fetch provider config", slog.Any("error", err))
		}
	}

	// GeoLite status for the warning indicator
	geoAccountID, geoLicenseKey, _ := settings.GetGeoLiteCredentials(db)
	geoConfigured := geoAccountID != "" && geoLicenseKey != ""

	cfg := config.GetConfig()
	geoDBPath := cfg.GeoDBPath
	if geoDBPath == "" {
		geoDBPath = filepath.Join("storage", "GeoLite2-Country.mmdb")
	}
	_, geoDBErr := os.Stat(geoDBPath)
	geoDBExists := geoDBErr == nil

	var geoLastUpdate string
	if lastUpdateStr, _ := settings.GetSetting(db, jobs.KeyGeoLiteLastUpdate); lastUpdateStr != "" {
		if t, err := time.Parse(time.RFC3339, lastUpdateStr); err == nil {
			geoLastUpdate = t.Format("January 2, 2006 at 3:04 PM")
		}
	}

	return inertia.RenderPage(ctx.Ctx, "Settings", inertia.Props{
		"title":               "Settings",
		"current_client_id":   clientID,
		"settings":            settingsData,
		"api_config":          apiCfg,
		"widgets":             settings.GetWidgets(db, clientID),
		"available_widgets":   settings.HardcodedDefaultWidgets,
		"geolite_configured":  geoConfigured,
		"geolite_account_id":  geoAccountID,
		"geolite_db_exists":   geoDBExists,
		"geolite_last_update": geoLastUpdate,
	})
}

// APIConfigFormAction saves the selected client's provider connection (form
// submission). Requires the manage_settings capability; the change lands in
// the access log.
func APIConfigFormAction(ctx *cartridge.Context) error {
	clientID, ok := currentClientID(ctx)
	if !ok {
		flash.SetFlash(ctx.Ctx, "error", "No client selected")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	actor, err := requireCapability(ctx, clientID, users.CapManageSettings)
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	// Parse form data - try both form value and JSON body (for Inertia.js)
	var body settings.APIConfig
	body.BaseURL = ctx.FormValue("base_url")
	body.AnalyticsPath = ctx.FormValue("analytics_path")
	body.APIToken = ctx.FormValue("api_token")
	body.CustomHeaderName = ctx.FormValue("custom_header_name")
	body.CustomHeaderValue = ctx.FormValue("custom_header_value")
	body.StartOverride = ctx.FormValue("start_override")
	body.EndOverride = ctx.FormValue("end_override")
	body.Tracks = ctx.FormValue("tracks") == "true"
	body.FaceQuality = ctx.FormValue("face_quality") == "true"
	body.Glasses = ctx.FormValue("glasses") == "true"
	body.FacialHair = ctx.FormValue("facial_hair") == "true"
	body.HairColor = ctx.FormValue("hair_color") == "true"
	body.HairType = ctx.FormValue("hair_type") == "true"
	body.Headwear = ctx.FormValue("headwear") == "true"

	if body.BaseURL == "" && body.APIToken == "" {
		var jsonBody settings.APIConfig
		if err := ctx.BodyParser(&jsonBody); err == nil && jsonBody.BaseURL != "" {
			body = jsonBody
		}
	}

	if body.BaseURL == "" || body.APIToken == "" {
		flash.SetFlash(ctx.Ctx, "error", "API base URL and token are required")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	db := ctx.DB()
	if err := settings.SaveAPIConfig(db, clientID, body); err != nil {
		ctx.Logger.Error("Failed to save provider config", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to save API configuration")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	recordSettingsChange(ctx, actor.Email, clientID, "provider config updated")

	ctx.Logger.Info("Provider config saved",
		slog.Uint64("client_id", uint64(clientID)),
		slog.String("base_url", body.BaseURL),
		slog.String("by", actor.Email))

	flash.SetFlash(ctx.Ctx, "success", "API configuration saved successfully")
	return ctx.Redirect("/admin/settings", fiber.StatusFound)
}

// WidgetsFormAction saves the selected client's dashboard widget layout (form
// submission). An empty list restores the global default.
func WidgetsFormAction(ctx *cartridge.Context) error {
	clientID, ok := currentClientID(ctx)
	if !ok {
		flash.SetFlash(ctx.Ctx, "error", "No client selected")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	actor, err := requireCapability(ctx, clientID, users.CapManageSettings)
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	// Comma-separated form field, or a JSON array for Inertia.js
	var widgets []string
	if raw := ctx.FormValue("widgets"); raw != "" {
		widgets = strings.Split(raw, ",")
	} else {
		var jsonBody struct {
			Widgets []string `json:"widgets"`
		}
		if err := ctx.BodyParser(&jsonBody); err == nil {
			widgets = jsonBody.Widgets
		}
	}

	db := ctx.DB()
	if err := settings.SaveWidgets(db, clientID, widgets); err != nil {
		ctx.Logger.Error("Failed to save widgets", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to save widget layout")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	recordSettingsChange(ctx, actor.Email, clientID, "widget layout updated")

	ctx.Logger.Info("Widget layout saved",
		slog.Uint64("client_id", uint64(clientID)),
		slog.Int("widget_count", len(widgets)))

	flash.SetFlash(ctx.Ctx, "success", "Widget layout saved successfully")
	return ctx.Redirect("/admin/settings", fiber.StatusFound)
}

// GeoLiteFormAction handles POST form submission for GeoLite settings (Inertia)
func GeoLiteFormAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	// Parse form data - try both form value and JSON body (for Inertia.js)
	accountID := ctx.FormValue("geolite_account_id")
	licenseKey := ctx.FormValue("geolite_license_key")

	if accountID == "" && licenseKey == "" {
		var jsonBody struct {
			AccountID  string `json:"geolite_account_id"`
			LicenseKey string `json:"geolite_license_key"`
		}
		if err := ctx.BodyParser(&jsonBody); err == nil {
			accountID = jsonBody.AccountID
			licenseKey = jsonBody.LicenseKey
		}
	}

	if err := settings.SaveGeoLiteCredentials(db, accountID, licenseKey); err != nil {
		ctx.Logger.Error("Failed to save GeoLite settings", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to save GeoLite settings")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	ctx.Logger.Info("GeoLite settings updated",
		slog.String("account_id", accountID),
		slog.Bool("has_license_key", licenseKey != ""))

	// Trigger immediate download if credentials were provided
	if accountID != "" && licenseKey != "" {
		cfg := ctx.Config.(*config.Config)
		jobs.TriggerImmediateDownload(db, ctx.Logger, cfg)
		flash.SetFlash(ctx.Ctx, "success", "GeoLite settings saved. Database download started in the background.")
	} else {
		flash.SetFlash(ctx.Ctx, "success", "GeoLite settings saved successfully")
	}
	return ctx.Redirect("/admin/settings", fiber.StatusFound)
}

// GeoLiteDownloadAction triggers an immediate GeoLite database download (Inertia)
func GeoLiteDownloadAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	accountID, licenseKey, _ := settings.GetGeoLiteCredentials(db)
	if accountID == "" || licenseKey == "" {
		flash.SetFlash(ctx.Ctx, "error", "GeoLite credentials not configured. Please enter your Account ID and License Key first.")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	cfg := ctx.Config.(*config.Config)
	jobs.TriggerImmediateDownload(db, ctx.Logger, cfg)

	ctx.Logger.Info("Manual GeoLite database download triggered")
	flash.SetFlash(ctx.Ctx, "success", "Database download started in the background. Refresh this page in a moment to check status.")
	return ctx.Redirect("/admin/settings", fiber.StatusFound)
}

// PurgeCacheFormAction handles POST form submission for cache purge (Inertia)
func PurgeCacheFormAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	// Clear generic_cache table using cache package
	rowsAffected, err := cache.PurgeAllCaches(db)
	if err != nil {
		ctx.Logger.Error("Failed to clear generic_cache", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to clear caches")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	ctx.Logger.Info("Caches purged successfully", slog.Int64("rows_deleted", rowsAffected))
	flash.SetFlash(ctx.Ctx, "success", "All caches have been purged successfully")
	return ctx.Redirect("/admin/settings", fiber.StatusFound)
}

// ExportDatabaseAction streams the SQLite database file as a download
func ExportDatabaseAction(ctx *cartridge.Context) error {
	// Type-assert to get storepulse-specific config fields
	cfg := ctx.Config.(*config.Config)

	dbPath := cfg.DatabaseName
	if dbPath == "" {
		dbPath = filepath.Join(cfg.DatabasePath, fmt.Sprintf("%s-%s.db", cfg.AppName, cfg.Environment))
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		ctx.Logger.Error("Database file not found", slog.String("path", dbPath))
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Database file not found",
		})
	}

	file, err := os.Open(dbPath)
	if err != nil {
		ctx.Logger.Error("Failed to open database file", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to read database file",
		})
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		ctx.Logger.Error("Failed to get database file info", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to get database file info",
		})
	}

	ctx.Set("Content-Type", "application/octet-stream")
	ctx.Set("Content-Disposition", "attachment; filename=storepulse-backup.db")

	ctx.Logger.Info("Database exported", slog.String("path", dbPath), slog.Int64("size", fileInfo.Size()))

	// Stream the file to the response
	_, err = io.Copy(ctx.Response().BodyWriter(), file)
	if err != nil {
		ctx.Logger.Error("Failed to stream database file", slog.Any("error", err))
		return err
	}

	return nil
}

// ChangePasswordFormAction lets the signed-in user change their own password
func ChangePasswordFormAction(ctx *cartridge.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	// Parse form data - try both form value and JSON body (for Inertia.js)
	currentPassword := ctx.FormValue("current_password")
	newPassword := ctx.FormValue("new_password")

	if currentPassword == "" && newPassword == "" {
		var jsonBody struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := ctx.BodyParser(&jsonBody); err == nil {
			currentPassword = jsonBody.CurrentPassword
			newPassword = jsonBody.NewPassword
		}
	}

	if currentPassword == "" || newPassword == "" {
		flash.SetFlash(ctx.Ctx, "error", "Current and new password are required")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}
	if len(newPassword) < 8 {
		flash.SetFlash(ctx.Ctx, "error", "New password must be at least 8 characters long")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	if !crypto.VerifyPassword(user.EncryptedPassword, currentPassword) {
		ctx.Logger.Warn("Password change rejected: wrong current password",
			slog.String("email", user.Email))
		flash.SetFlash(ctx.Ctx, "error", "Current password is incorrect")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	if err := users.ChangePassword(ctx.DB(), user.Email, newPassword); err != nil {
		ctx.Logger.Error("Failed to change password", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to change password")
		return ctx.Redirect("/admin/settings", fiber.StatusFound)
	}

	ctx.Logger.Info("Password changed", slog.String("email", user.Email))
	flash.SetFlash(ctx.Ctx, "success", "Password changed successfully")
	return ctx.Redirect("/admin/settings", fiber.StatusFound)
}

// recordSettingsChange writes a settings_change entry to the access log.
func recordSettingsChange(ctx *cartridge.Context, email string, clientID uint, detail string) {
	entry := accesslog.Entry{
		UserEmail: email,
		Action:    accesslog.ActionSettingsChange,
		Success:   true,
		ClientID:  clientID,
		Detail:    detail,
		IP:        ctx.IP(),
		UserAgent: ctx.Get("User-Agent"),
	}
	if err := accesslog.Record(ctx.DB(), ctx.Logger, entry); err != nil {
		ctx.Logger.Warn("Failed to record settings change", slog.Any("error", err))
	}
}
