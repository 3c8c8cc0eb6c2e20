package http

import (
	"fmt"

	"github.com/karloscodes/cartridge"
	"log/slog"

	"storepulse/internal/users"
)

// currentClientID returns the client selected by the ClientFilter middleware.
func currentClientID(ctx *cartridge.Context) (uint, bool) {
	clientID, ok := ctx.Locals("client_id").(uint)
	return clientID, ok
}

// currentUser loads the authenticated user from the session.
func currentUser(ctx *cartridge.Context) (*users.User, error) {
	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return nil, fmt.Errorf("not authenticated")
	}
	return users.FindByID(ctx.DB(), userID)
}

// requireCapability checks that the session user holds the capability on the
// current client. Admins always pass.
func requireCapability(ctx *cartridge.Context, clientID uint, capability string) (*users.User, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	allowed, err := users.HasCapability(ctx.DB(), user, clientID, capability)
	if err != nil {
		return nil, err
	}
	if !allowed {
		ctx.Logger.Warn("Capability denied",
			slog.String("email", user.Email),
			slog.Uint64("client_id", uint64(clientID)),
			slog.String("capability", capability))
		return nil, fmt.Errorf("missing %s permission", capability)
	}
	return user, nil
}
