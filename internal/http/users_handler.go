package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"

	"storepulse/internal/accesslog"
	"storepulse/internal/users"
)

// UsersIndexAction lists all users with their permission flags for the
// selected client (Inertia)
func UsersIndexAction(ctx *cartridge.Context) error {
	db := ctx.DB()

	user, err := currentUser(ctx)
	if err != nil {
		return ctx.Redirect("/login", fiber.StatusFound)
	}
	if !user.IsAdmin {
		return ctx.Status(fiber.StatusForbidden).SendString("Admin access required")
	}

	clientID, _ := currentClientID(ctx)

	usersData, err := users.ListUsersWithPermissions(db, clientID)
	if err != nil {
		ctx.Logger.Error("Failed to list users", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Failed to load users")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	return inertia.RenderPage(ctx.Ctx, "Users", inertia.Props{
		"title":             "Users",
		"current_client_id": clientID,
		"users":             usersData,
	})
}

// UserCreateAction creates a new user (form submission, admin only)
func UserCreateAction(ctx *cartridge.Context) error {
	actor, err := currentUser(ctx)
	if err != nil {
		return ctx.Redirect("/login", fiber.StatusFound)
	}
	if !actor.IsAdmin {
		return ctx.Status(fiber.StatusForbidden).SendString("Admin access required")
	}

	// Parse form - try both form value and JSON body (for Inertia.js)
	email := ctx.FormValue("email")
	name := ctx.FormValue("name")
	password := ctx.FormValue("password")
	isAdmin := ctx.FormValue("admin") == "true"

	if email == "" {
		var jsonBody struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Password string `json:"password"`
			Admin    bool   `json:"admin"`
		}
		if err := ctx.BodyParser(&jsonBody); err == nil && jsonBody.Email != "" {
			email = jsonBody.Email
			name = jsonBody.Name
			password = jsonBody.Password
			isAdmin = jsonBody.Admin
		}
	}

	if email == "" || password == "" {
		flash.SetFlash(ctx.Ctx, "error", "Email and password are required")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}
	if len(password) < 8 {
		flash.SetFlash(ctx.Ctx, "error", "Password must be at least 8 characters long")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	user, err := users.CreateUser(ctx.DB(), email, name, password, isAdmin)
	if err != nil {
		ctx.Logger.Error("Failed to create user", slog.Any("error", err), slog.String("email", email))
		flash.SetFlash(ctx.Ctx, "error", "Failed to create user: "+err.Error())
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	ctx.Logger.Info("User created",
		slog.Uint64("id", uint64(user.ID)),
		slog.String("email", user.Email),
		slog.Bool("admin", user.IsAdmin))

	flash.SetFlash(ctx.Ctx, "success", "User created successfully")
	return ctx.Redirect("/admin/users", fiber.StatusFound)
}

// UserDeleteAction removes a user and their permission rows (admin only)
func UserDeleteAction(ctx *cartridge.Context) error {
	actor, err := currentUser(ctx)
	if err != nil {
		return ctx.Redirect("/login", fiber.StatusFound)
	}
	if !actor.IsAdmin {
		return ctx.Status(fiber.StatusForbidden).SendString("Admin access required")
	}

	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid user ID")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	// A user cannot delete their own account from here
	if uint(id) == actor.ID {
		flash.SetFlash(ctx.Ctx, "error", "You cannot delete your own account")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	if err := users.DeleteUser(ctx.DB(), uint(id)); err != nil {
		ctx.Logger.Error("Failed to delete user", slog.Any("error", err), slog.Int("id", id))
		flash.SetFlash(ctx.Ctx, "error", "Failed to delete user")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	ctx.Logger.Info("User deleted", slog.Int("id", id), slog.String("by", actor.Email))
	flash.SetFlash(ctx.Ctx, "success", "User deleted successfully")
	return ctx.Redirect("/admin/users", fiber.StatusFound)
}

// PermissionsUpdateAction upserts a user's capability flags for a client
// (admin only). The change is written to the access log.
func PermissionsUpdateAction(ctx *cartridge.Context) error {
	actor, err := currentUser(ctx)
	if err != nil {
		return ctx.Redirect("/login", fiber.StatusFound)
	}
	if !actor.IsAdmin {
		return ctx.Status(fiber.StatusForbidden).SendString("Admin access required")
	}

	userID, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Invalid user ID")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	target, err := users.FindByID(ctx.DB(), uint(userID))
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "User not found")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	// Parse form - try both form value and JSON body (for Inertia.js)
	var body struct {
		ClientID       uint `json:"client_id"`
		ViewDashboard  bool `json:"view_dashboard"`
		ViewReports    bool `json:"view_reports"`
		ViewAnalytics  bool `json:"view_analytics"`
		ExportData     bool `json:"export_data"`
		ManageSettings bool `json:"manage_settings"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.ClientID == 0 {
		if clientID, ok := currentClientID(ctx); ok {
			body.ClientID = clientID
			body.ViewDashboard = ctx.FormValue("view_dashboard") == "true"
			body.ViewReports = ctx.FormValue("view_reports") == "true"
			body.ViewAnalytics = ctx.FormValue("view_analytics") == "true"
			body.ExportData = ctx.FormValue("export_data") == "true"
			body.ManageSettings = ctx.FormValue("manage_settings") == "true"
		}
	}
	if body.ClientID == 0 {
		flash.SetFlash(ctx.Ctx, "error", "No client selected")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	perm := users.Permission{
		UserID:         target.ID,
		ClientID:       body.ClientID,
		ViewDashboard:  body.ViewDashboard,
		ViewReports:    body.ViewReports,
		ViewAnalytics:  body.ViewAnalytics,
		ExportData:     body.ExportData,
		ManageSettings: body.ManageSettings,
	}
	if err := users.SetPermissions(ctx.DB(), perm); err != nil {
		ctx.Logger.Error("Failed to update permissions",
			slog.Any("error", err),
			slog.Uint64("user_id", uint64(target.ID)),
			slog.Uint64("client_id", uint64(body.ClientID)))
		flash.SetFlash(ctx.Ctx, "error", "Failed to update permissions")
		return ctx.Redirect("/admin/users", fiber.StatusFound)
	}

	entry := accesslog.Entry{
		UserEmail: actor.Email,
		Action:    accesslog.ActionPermissionsChange,
		Success:   true,
		ClientID:  body.ClientID,
		Detail:    "permissions updated for " + target.Email,
		IP:        ctx.IP(),
		UserAgent: ctx.Get("User-Agent"),
	}
	if err := accesslog.Record(ctx.DB(), ctx.Logger, entry); err != nil {
		ctx.Logger.Warn("Failed to record permissions change", slog.Any("error", err))
	}

	ctx.Logger.Info("Permissions updated",
		slog.String("target", target.Email),
		slog.Uint64("client_id", uint64(body.ClientID)),
		slog.String("by", actor.Email))

	flash.SetFlash(ctx.Ctx, "success", "Permissions updated successfully")
	return ctx.Redirect("/admin/users", fiber.StatusFound)
}
