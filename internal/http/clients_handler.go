package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"
	"gorm.io/gorm"

	"storepulse/internal/clients"
	"storepulse/internal/settings"
)

// ClientsIndexAction lists all client networks with inventory stats (Inertia)
func ClientsIndexAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	clientsWithStats, err := clients.GetClientsWithStats(db)
	if err != nil {
		ctx.Logger.Error("Failed to get clients with stats", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to load clients")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	// If no clients exist, go straight to the creation page
	if len(clientsWithStats) == 0 {
		ctx.Logger.Info("No clients found - redirecting to client creation")
		return ctx.Redirect("/admin/clients/new", fiber.StatusFound)
	}

	return inertia.RenderPage(ctx.Ctx, "Clients", inertia.Props{
		"title":   "Clients",
		"clients": clientsWithStats,
	})
}

// ClientNewPageAction shows the client creation form (Inertia)
func ClientNewPageAction(ctx *cartridge.Context) error {
	return inertia.RenderPage(ctx.Ctx, "ClientNew", inertia.Props{
		"title":    "New Client",
		"statuses": []string{clients.StatusActive, clients.StatusInactive, clients.StatusPending},
		"plans":    []string{clients.PlanEnterprise, clients.PlanPro, clients.PlanBasic},
	})
}

// clientForm holds the shared create/update fields.
type clientForm struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Country string `json:"country"`
	Status  string `json:"status"`
	Plan    string `json:"plan"`
}

func parseClientForm(ctx *cartridge.Context) clientForm {
	form := clientForm{
		Name:    ctx.FormValue("name"),
		Company: ctx.FormValue("company"),
		Email:   ctx.FormValue("email"),
		Phone:   ctx.FormValue("phone"),
		Country: ctx.FormValue("country"),
		Status:  ctx.FormValue("status"),
		Plan:    ctx.FormValue("plan"),
	}

	// Try parsing as JSON for Inertia.js requests
	if form.Name == "" {
		var jsonBody clientForm
		if err := ctx.BodyParser(&jsonBody); err == nil && jsonBody.Name != "" {
			form = jsonBody
		}
	}
	return form
}

// ClientCreateAction creates a new client network (form submission)
func ClientCreateAction(ctx *cartridge.Context) error {
	form := parseClientForm(ctx)

	if form.Name == "" {
		flash.SetFlash(ctx.Ctx, "error", "Client name is required")
		return ctx.Redirect("/admin/clients/new", fiber.StatusFound)
	}

	db := ctx.DB()
	client := clients.Client{
		Name:    form.Name,
		Company: form.Company,
		Email:   form.Email,
		Phone:   form.Phone,
		Country: form.Country,
		Status:  form.Status,
		Plan:    form.Plan,
	}

	if err := clients.CreateClient(db, &client); err != nil {
		ctx.Logger.Error("Failed to create client", slog.Any("error", err), slog.String("name", form.Name))
		flash.SetFlash(ctx.Ctx, "error", "Failed to create client: "+err.Error())
		return ctx.Redirect("/admin/clients/new", fiber.StatusFound)
	}

	ctx.Logger.Info("Client created",
		slog.Uint64("id", uint64(client.ID)),
		slog.String("name", client.Name))

	flash.SetFlash(ctx.Ctx, "success", "Client created successfully")
	return ctx.Redirect("/admin/clients", fiber.StatusFound)
}

// ClientEditPageAction shows the client edit form along with its provider
// connection status (Inertia)
func ClientEditPageAction(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid client ID")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	db := ctx.DB()
	client, err := clients.GetClientByID(db, uint(id))
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Client not found")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	apiCfg, err := settings.GetAPIConfig(db, client.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load provider config", slog.Any("error", err))
	}

	return inertia.RenderPage(ctx.Ctx, "ClientEdit", inertia.Props{
		"title":               "Edit Client",
		"client":              client,
		"country_name":        clients.CountryName(client.Country),
		"provider_configured": apiCfg != nil,
		"statuses":            []string{clients.StatusActive, clients.StatusInactive, clients.StatusPending},
		"plans":               []string{clients.PlanEnterprise, clients.PlanPro, clients.PlanBasic},
	})
}

// ClientUpdateAction updates a client (form submission)
func ClientUpdateAction(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid client ID")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	db := ctx.DB()
	client, err := clients.GetClientByID(db, uint(id))
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Client not found")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	form := parseClientForm(ctx)
	if form.Name != "" {
		client.Name = form.Name
	}
	client.Company = form.Company
	client.Email = form.Email
	client.Phone = form.Phone
	client.Country = form.Country
	if form.Status != "" {
		client.Status = form.Status
	}
	if form.Plan != "" {
		client.Plan = form.Plan
	}

	if err := clients.UpdateClient(db, &client); err != nil {
		ctx.Logger.Error("Failed to update client", slog.Any("error", err), slog.Int("id", id))
		flash.SetFlash(ctx.Ctx, "error", "Failed to update client: "+err.Error())
		return ctx.Redirect("/admin/clients/"+strconv.Itoa(id)+"/edit", fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Client updated successfully")
	return ctx.Redirect("/admin/clients/"+strconv.Itoa(id)+"/edit", fiber.StatusFound)
}

// ClientDeleteAction deletes a client and its provider config (form submission)
func ClientDeleteAction(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid client ID")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	db := ctx.DB()
	if err := clients.DeleteClient(db, uint(id)); err != nil {
		if err == gorm.ErrRecordNotFound {
			flash.SetFlash(ctx.Ctx, "error", "Client not found")
			return ctx.Redirect("/admin/clients", fiber.StatusFound)
		}
		ctx.Logger.Error("Failed to delete client", slog.Any("error", err), slog.Int("id", id))
		flash.SetFlash(ctx.Ctx, "error", "Failed to delete client")
		return ctx.Redirect("/admin/clients", fiber.StatusFound)
	}

	if err := settings.DeleteAPIConfig(db, uint(id)); err != nil {
		ctx.Logger.Warn("Failed to remove provider config for deleted client",
			slog.Any("error", err), slog.Int("id", id))
	}

	flash.SetFlash(ctx.Ctx, "success", "Client deleted successfully")
	return ctx.Redirect("/admin/clients", fiber.StatusFound)
}
