package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"

	"storepulse/internal/jobs"
	"storepulse/internal/stores"
	"storepulse/internal/users"
)

// StoresIndexAction lists the selected client's stores with their cameras
// (Inertia)
func StoresIndexAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	clientID, ok := currentClientID(ctx)
	if !ok {
		flash.SetFlash(ctx.Ctx, "error", "Create a client first")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	if _, err := requireCapability(ctx, clientID, users.CapManageSettings); err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	tree, err := stores.GetStoreTree(db, clientID)
	if err != nil {
		ctx.Logger.Error("Failed to get store tree", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to load stores")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	return inertia.RenderPage(ctx.Ctx, "Stores", inertia.Props{
		"title":             "Stores",
		"current_client_id": clientID,
		"stores":            tree,
	})
}

type storeForm struct {
	Name     string `json:"name"`
	FolderID string `json:"folder_id"`
}

func parseStoreForm(ctx *cartridge.Context) storeForm {
	form := storeForm{
		Name:     ctx.FormValue("name"),
		FolderID: ctx.FormValue("folder_id"),
	}
	if form.Name == "" {
		var jsonBody storeForm
		if err := ctx.BodyParser(&jsonBody); err == nil && jsonBody.Name != "" {
			form = jsonBody
		}
	}
	return form
}

// StoreCreateAction creates a store under the selected client
func StoreCreateAction(ctx *cartridge.Context) error {
	clientID, ok := currentClientID(ctx)
	if !ok {
		flash.SetFlash(ctx.Ctx, "error", "No client selected")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	if _, err := requireCapability(ctx, clientID, users.CapManageSettings); err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	form := parseStoreForm(ctx)
	if form.Name == "" {
		flash.SetFlash(ctx.Ctx, "error", "Store name is required")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	store := stores.Store{
		ClientID:         clientID,
		Name:             form.Name,
		ProviderFolderID: form.FolderID,
	}
	if err := stores.CreateStore(ctx.DB(), &store); err != nil {
		ctx.Logger.Error("Failed to create store", slog.Any("error", err), slog.String("name", form.Name))
		flash.SetFlash(ctx.Ctx, "error", "Failed to create store: "+err.Error())
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	ctx.Logger.Info("Store created",
		slog.Uint64("id", uint64(store.ID)),
		slog.Uint64("client_id", uint64(clientID)),
		slog.String("name", store.Name))

	flash.SetFlash(ctx.Ctx, "success", "Store created successfully")
	return ctx.Redirect("/admin/stores", fiber.StatusFound)
}

// StoreUpdateAction renames a store or reassigns its provider folder
func StoreUpdateAction(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid store ID")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	db := ctx.DB()
	store, err := stores.GetStoreByID(db, uint(id))
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Store not found")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	if _, err := requireCapability(ctx, store.ClientID, users.CapManageSettings); err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	form := parseStoreForm(ctx)
	if form.Name != "" {
		store.Name = form.Name
	}
	if form.FolderID != "" {
		store.ProviderFolderID = form.FolderID
	}

	if err := stores.UpdateStore(db, &store); err != nil {
		ctx.Logger.Error("Failed to update store", slog.Any("error", err), slog.Int("id", id))
		flash.SetFlash(ctx.Ctx, "error", "Failed to update store")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Store updated successfully")
	return ctx.Redirect("/admin/stores", fiber.StatusFound)
}

// StoreDeleteAction removes a store and its cameras
func StoreDeleteAction(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid store ID")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	db := ctx.DB()
	store, err := stores.GetStoreByID(db, uint(id))
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Store not found")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	if _, err := requireCapability(ctx, store.ClientID, users.CapManageSettings); err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	if err := stores.DeleteStore(db, uint(id)); err != nil {
		ctx.Logger.Error("Failed to delete store", slog.Any("error", err), slog.Int("id", id))
		flash.SetFlash(ctx.Ctx, "error", "Failed to delete store")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	ctx.Logger.Info("Store deleted",
		slog.Int("id", id),
		slog.String("name", store.Name))

	flash.SetFlash(ctx.Ctx, "success", "Store deleted successfully")
	return ctx.Redirect("/admin/stores", fiber.StatusFound)
}

// StoresSyncAction triggers an on-demand inventory sync against the provider
// for all configured clients. The sync itself reuses the scheduled job.
func StoresSyncAction(ctx *cartridge.Context) error {
	clientID, ok := currentClientID(ctx)
	if !ok {
		flash.SetFlash(ctx.Ctx, "error", "No client selected")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	if _, err := requireCapability(ctx, clientID, users.CapManageSettings); err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	if err := jobs.SyncAllClients(ctx.DB(), ctx.Logger, nil); err != nil {
		ctx.Logger.Error("Manual device sync failed", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Device sync failed: "+err.Error())
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	ctx.Logger.Info("Manual device sync completed", slog.Uint64("client_id", uint64(clientID)))
	flash.SetFlash(ctx.Ctx, "success", "Device inventory synced")
	return ctx.Redirect("/admin/stores", fiber.StatusFound)
}

// DeviceUpdateAction renames a camera
func DeviceUpdateAction(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid device ID")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	db := ctx.DB()
	device, err := stores.GetDeviceByID(db, uint(id))
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Device not found")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	store, err := stores.GetStoreByID(db, device.StoreID)
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Store not found")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	if _, err := requireCapability(ctx, store.ClientID, users.CapManageSettings); err != nil {
		return ctx.Status(fiber.StatusForbidden).SendString(err.Error())
	}

	name := ctx.FormValue("name")
	if name == "" {
		var jsonBody struct {
			Name string `json:"name"`
		}
		if err := ctx.BodyParser(&jsonBody); err == nil {
			name = jsonBody.Name
		}
	}
	if name == "" {
		flash.SetFlash(ctx.Ctx, "error", "Device name is required")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	device.Name = name
	if err := db.Save(&device).Error; err != nil {
		ctx.Logger.Error("Failed to update device", slog.Any("error", err), slog.Int("id", id))
		flash.SetFlash(ctx.Ctx, "error", "Failed to update device")
		return ctx.Redirect("/admin/stores", fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Device "+strconv.Itoa(id)+" updated")
	return ctx.Redirect("/admin/stores", fiber.StatusFound)
}
