package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/karloscodes/cartridge"
	"log/slog"

	"storepulse/internal/displayforce"
	"storepulse/internal/settings"
)

// ProviderProxyAction forwards /api-proxy/* requests to the analytics
// provider, attaching the selected client's API token server-side. The token
// never reaches the browser.
func ProviderProxyAction(ctx *cartridge.Context) error {
	clientID, ok := currentClientID(ctx)
	if !ok {
		return ctx.Status(fiber.StatusBadRequest).SendString("No client selected")
	}

	if _, err := currentUser(ctx); err != nil {
		return ctx.Status(fiber.StatusUnauthorized).SendString("Not authenticated")
	}

	cfg, err := settings.GetAPIConfig(ctx.DB(), clientID)
	if err != nil {
		ctx.Logger.Error("Failed to load provider config for proxy", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Provider config unavailable")
	}
	if cfg == nil {
		return ctx.Status(fiber.StatusNotFound).SendString("Provider not configured for this client")
	}

	// Strip the mount prefix and rebuild the upstream URL
	path := strings.TrimPrefix(ctx.Path(), "/api-proxy")
	target := "https://" + displayforce.ProviderHost + path
	if qs := string(ctx.Request().URI().QueryString()); qs != "" {
		target += "?" + qs
	}

	ctx.Request().Header.Set("X-API-Token", cfg.APIToken)
	if cfg.CustomHeaderName != "" {
		ctx.Request().Header.Set(cfg.CustomHeaderName, cfg.CustomHeaderValue)
	}

	ctx.Logger.Debug("Proxying provider request",
		slog.Uint64("client_id", uint64(clientID)),
		slog.String("path", path))

	if err := proxy.Do(ctx.Ctx, target); err != nil {
		ctx.Logger.Error("Provider proxy request failed",
			slog.String("target", target),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusBadGateway).SendString("Provider unreachable")
	}

	// Upstream response headers must not leak hop-by-hop values
	ctx.Response().Header.Del(fiber.HeaderServer)
	return nil
}
