package http

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"

	"storepulse/internal/accesslog"
	"storepulse/internal/reports"
	"storepulse/internal/stores"
	"storepulse/internal/users"
)

// generator is shared across requests so its worker pool is reused.
var generator = reports.NewGenerator(slog.Default(), nil)

// ReportsIndexAction renders the report builder page (Inertia)
func ReportsIndexAction(ctx *cartridge.Context) error {
	clientID, ok := currentClientID(ctx)
	if !ok {
		flash.SetFlash(ctx.Ctx, "error", "Create a client first")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	if _, err := requireCapability(ctx, clientID, users.CapViewReports); err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	storeTree, err := stores.GetStoreTree(ctx.DB(), clientID)
	if err != nil {
		ctx.Logger.Error("Failed to fetch store tree", slog.Any("error", err))
		storeTree = []stores.StoreWithDevices{}
	}

	return inertia.RenderPage(ctx.Ctx, "Reports", inertia.Props{
		"title":             "Reports",
		"current_client_id": clientID,
		"stores":            storeTree,
		"types":             []string{reports.TypeGeneral, reports.TypeClients, reports.TypeStores, reports.TypeDevices},
		"formats":           []string{reports.FormatXLSX, reports.FormatCSV},
	})
}

// ReportsDownloadAction builds an export and streams it as an attachment.
// Requires the export_data capability; the download lands in the access log.
func ReportsDownloadAction(ctx *cartridge.Context) error {
	clientID, ok := currentClientID(ctx)
	if !ok {
		flash.SetFlash(ctx.Ctx, "error", "No client selected")
		return ctx.Redirect("/admin/reports", fiber.StatusFound)
	}

	actor, err := requireCapability(ctx, clientID, users.CapExportData)
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	req := reports.Request{
		ClientID: clientID,
		Type:     ctx.Query("type", reports.TypeGeneral),
		Format:   ctx.Query("format", reports.FormatXLSX),
		From:     ctx.Query("from"),
		To:       ctx.Query("to"),
	}

	if raw := ctx.Query("store_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			storeID := uint(id)
			req.StoreID = &storeID
		}
	}

	// Timezone cookie is set at login; URL-decode it (e.g. Europe%2FBerlin)
	tz := ctx.Cookies("_tz")
	if tz != "" {
		if decoded, err := url.QueryUnescape(tz); err == nil {
			tz = decoded
		}
	}
	req.Timezone = tz

	export, err := generator.Generate(ctx.Context(), ctx.DB(), req)
	if err != nil {
		ctx.Logger.Error("Report generation failed",
			slog.Any("error", err),
			slog.String("type", req.Type),
			slog.String("format", req.Format))
		flash.SetFlash(ctx.Ctx, "error", "Failed to generate report: "+err.Error())
		return ctx.Redirect("/admin/reports", fiber.StatusFound)
	}

	entry := accesslog.Entry{
		UserEmail: actor.Email,
		Action:    accesslog.ActionExport,
		Success:   true,
		ClientID:  clientID,
		Detail:    req.Type + " report (" + req.Format + ")",
		IP:        ctx.IP(),
		UserAgent: ctx.Get("User-Agent"),
	}
	if req.StoreID != nil {
		entry.Scope = accesslog.ScopeStore
		entry.StoreID = *req.StoreID
	}
	if err := accesslog.Record(ctx.DB(), ctx.Logger, entry); err != nil {
		ctx.Logger.Warn("Failed to record export", slog.Any("error", err))
	}

	ctx.Logger.Info("Report generated",
		slog.String("type", req.Type),
		slog.String("format", req.Format),
		slog.String("filename", export.Filename),
		slog.Int("bytes", len(export.Data)),
		slog.String("by", actor.Email))

	ctx.Set("Content-Type", export.ContentType)
	ctx.Set("Content-Disposition", "attachment; filename="+export.Filename)
	return ctx.Send(export.Data)
}
