package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"storepulse/internal/config"
	"storepulse/internal/http"
	"storepulse/internal/http/middleware"
)

// SetupSession configures session management on the server.
func SetupSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/login",
	})
	srv.SetSession(sessionMgr)
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	// Create and set session manager
	SetupSession(srv)
	MountAppRoutesWithoutSession(srv)
}

// MountAppRoutesWithoutSession mounts routes without setting up session.
// Used by tests that configure the session themselves.
func MountAppRoutesWithoutSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := srv.Session()

	// Helper to conditionally apply rate limiting (only in production)
	// In development/test, rate limiting would interfere with testing
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Stricter rate limiter for auth endpoints (10 requests per minute)
	// Prevents brute force login attempts
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Get dependencies for middleware
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	adminConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			sessionMgr.Middleware(),
			middleware.ClientFilter(db, logger),
		},
	}

	// === ROOT ROUTES ===
	srv.Get("/", http.HomeIndexAction)

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === AUTHENTICATION ROUTES ===
	// Login needs rate limiting to prevent brute force attacks
	loginConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter},
	}
	srv.Get("/login", http.RenderLoginAction)
	srv.Post("/login", http.ProcessLoginAction, loginConfig)
	srv.Post("/logout", http.LogoutAction)

	// === DASHBOARD ===
	srv.Get("/admin/dashboard", http.DashboardIndexAction, adminConfig)

	// === CLIENT ROUTES (PRG pattern) ===
	srv.Get("/admin/clients", http.ClientsIndexAction, adminConfig)
	srv.Get("/admin/clients/new", http.ClientNewPageAction, adminConfig)
	srv.Post("/admin/clients", http.ClientCreateAction, adminConfig)
	srv.Get("/admin/clients/:id/edit", http.ClientEditPageAction, adminConfig)
	srv.Post("/admin/clients/:id", http.ClientUpdateAction, adminConfig)
	srv.Delete("/admin/clients/:id", http.ClientDeleteAction, adminConfig)
	srv.Post("/admin/clients/:id/delete", http.ClientDeleteAction, adminConfig)

	// === STORE AND DEVICE ROUTES ===
	srv.Get("/admin/stores", http.StoresIndexAction, adminConfig)
	srv.Post("/admin/stores", http.StoreCreateAction, adminConfig)
	srv.Post("/admin/stores/sync", http.StoresSyncAction, adminConfig)
	srv.Post("/admin/stores/:id", http.StoreUpdateAction, adminConfig)
	srv.Delete("/admin/stores/:id", http.StoreDeleteAction, adminConfig)
	srv.Post("/admin/stores/:id/delete", http.StoreDeleteAction, adminConfig)
	srv.Post("/admin/devices/:id", http.DeviceUpdateAction, adminConfig)

	// === USER AND PERMISSION ROUTES ===
	srv.Get("/admin/users", http.UsersIndexAction, adminConfig)
	srv.Post("/admin/users", http.UserCreateAction, adminConfig)
	srv.Delete("/admin/users/:id", http.UserDeleteAction, adminConfig)
	srv.Post("/admin/users/:id/delete", http.UserDeleteAction, adminConfig)
	srv.Post("/admin/users/:id/permissions", http.PermissionsUpdateAction, adminConfig)

	// === SETTINGS ROUTES ===
	srv.Get("/admin/settings", http.SettingsIndexAction, adminConfig)
	srv.Post("/admin/settings/api-config", http.APIConfigFormAction, adminConfig)
	srv.Post("/admin/settings/widgets", http.WidgetsFormAction, adminConfig)
	srv.Post("/admin/settings/geolite", http.GeoLiteFormAction, adminConfig)
	srv.Post("/admin/settings/geolite/download", http.GeoLiteDownloadAction, adminConfig)
	srv.Post("/admin/settings/purge-cache", http.PurgeCacheFormAction, adminConfig)
	srv.Post("/admin/account/change-password", http.ChangePasswordFormAction, adminConfig)
	srv.Get("/admin/api/system/export-database", http.ExportDatabaseAction, adminConfig)

	// === ACCESS LOG ROUTES ===
	srv.Get("/admin/logs", http.LogsIndexAction, adminConfig)

	// === REPORT ROUTES ===
	srv.Get("/admin/reports", http.ReportsIndexAction, adminConfig)
	srv.Get("/admin/reports/download", http.ReportsDownloadAction, adminConfig)

	// === PROVIDER PROXY ===
	// Same-origin mount for the browser-facing provider API calls
	srv.Get("/api-proxy/*", http.ProviderProxyAction, adminConfig)
	srv.Post("/api-proxy/*", http.ProviderProxyAction, adminConfig)
}
