package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"

	"storepulse/internal/accesslog"
	"storepulse/internal/stores"
)

// LogsIndexAction renders the access log view with scope, store and search
// filters (Inertia)
func LogsIndexAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	user, err := currentUser(ctx)
	if err != nil {
		return ctx.Redirect("/login", fiber.StatusFound)
	}
	if !user.IsAdmin {
		return ctx.Status(fiber.StatusForbidden).SendString("Admin access required")
	}

	clientID, _ := currentClientID(ctx)

	filter := accesslog.Filter{
		Scope:    ctx.Query("scope"),
		ClientID: clientID,
		Search:   ctx.Query("search"),
	}
	if raw := ctx.Query("store_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.StoreID = uint(id)
		}
	}
	if raw := ctx.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}

	entries, err := accesslog.List(db, filter)
	if err != nil {
		ctx.Logger.Error("Failed to list access log entries", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to load access logs")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	storeTree, err := stores.GetStoreTree(db, clientID)
	if err != nil {
		storeTree = []stores.StoreWithDevices{}
	}

	return inertia.RenderPage(ctx.Ctx, "Logs", inertia.Props{
		"title":             "Access Logs",
		"current_client_id": clientID,
		"entries":           entries,
		"stores":            storeTree,
		"scope":             filter.Scope,
		"search":            filter.Search,
	})
}
