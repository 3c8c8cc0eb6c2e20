package http

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/inertia"
	"github.com/karloscodes/cartridge/structs"
	"log/slog"

	"storepulse/internal/clients"
	"storepulse/internal/dashboard"
	"storepulse/internal/stores"
	"storepulse/internal/users"
	"storepulse/internal/visits"
)

// runner is shared across requests so scope-version bookkeeping survives
// between a viewer's consecutive dashboard loads.
var runner = dashboard.NewRunner(slog.Default())

// parseSelection reads the store/camera/date selection from the request.
func parseSelection(ctx *cartridge.Context) dashboard.Selection {
	sel := dashboard.Selection{
		From: ctx.Query("from"),
		To:   ctx.Query("to"),
	}

	if raw := ctx.Query("store_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			storeID := uint(id)
			sel.StoreID = &storeID
		}
	}
	if raw := ctx.Query("device_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			deviceID := uint(id)
			sel.DeviceID = &deviceID
		}
	}

	// Timezone cookie is set at login; URL-decode it (e.g. Europe%2FBerlin)
	tz := ctx.Cookies("_tz")
	if tz != "" {
		if decoded, err := url.QueryUnescape(tz); err == nil {
			tz = decoded
		}
	}
	sel.Timezone = tz

	return sel
}

// DashboardIndexAction renders the visitor analytics dashboard for the
// selected client, store or camera.
func DashboardIndexAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	clientID, ok := currentClientID(ctx)
	if !ok {
		ctx.Logger.Warn("Dashboard accessed with no client available")
		return inertia.RenderPage(ctx.Ctx, "Dashboard", inertia.Props{
			"clients":   []map[string]interface{}{},
			"no_client": true,
		})
	}

	user, err := requireCapability(ctx, clientID, users.CapViewDashboard)
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	sel := parseSelection(ctx)

	ctx.Logger.Info("Dashboard accessed",
		slog.Uint64("client_id", uint64(clientID)),
		slog.String("from", sel.From),
		slog.String("to", sel.To),
		slog.String("timezone", sel.Timezone))

	// One version counter per user+client pair: a new load cancels the
	// viewer's previous in-flight fetch.
	viewerKey := fmt.Sprintf("%d:%d", user.ID, clientID)
	result, err := runner.Run(ctx.Context(), db, viewerKey, clientID, sel)
	if err != nil {
		ctx.Logger.Error("Dashboard cycle failed", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Error fetching visitor metrics")
	}

	clientsData, err := clients.GetClientsForSelector(db)
	if err != nil {
		ctx.Logger.Error("Failed to fetch clients for selector", slog.Any("error", err))
		clientsData = []map[string]interface{}{}
	}

	storeTree, err := stores.GetStoreTree(db, clientID)
	if err != nil {
		ctx.Logger.Error("Failed to fetch store tree", slog.Any("error", err))
		storeTree = []stores.StoreWithDevices{}
	}

	props := structs.Map(result)
	props["current_client_id"] = clientID
	props["clients"] = clientsData
	props["stores"] = storeTree
	// Percentages are shares of all fetched visitors, so unknown-sex records
	// keep the split honest instead of inflating it.
	props["avg_visit_display"] = visits.FormatDuration(result.Aggregate.AvgVisitSeconds)
	props["male_percent"] = visits.GenderPercent(result.Aggregate.GenderStats.Male, result.Aggregate.TotalVisitors)
	props["female_percent"] = visits.GenderPercent(result.Aggregate.GenderStats.Female, result.Aggregate.TotalVisitors)

	return inertia.RenderPage(ctx.Ctx, "Dashboard", props)
}
