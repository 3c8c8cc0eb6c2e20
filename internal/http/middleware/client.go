package middleware

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"storepulse/internal/clients"
)

// ClientFilter sets the client_id in the request context.
// Dependencies are injected via the factory function for clean architecture.
func ClientFilter(db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Try to get client_id from query param or header
		clientIDStr := c.Query("client_id", c.Get("X-Client-ID"))
		if clientIDStr != "" {
			clientID, err := strconv.ParseUint(clientIDStr, 10, 64)
			if err != nil {
				logger.Warn("Invalid client_id provided",
					slog.String("client_id", clientIDStr),
					slog.Any("error", err))
				return c.Status(fiber.StatusBadRequest).SendString("Invalid client_id")
			}
			c.Locals("client_id", uint(clientID))
			logger.Debug("Applied client filter", slog.Uint64("client_id", clientID))
		} else {
			logger.Debug("No client_id provided, attempting to set default client")
			firstClient, err := clients.GetFirstClient(db)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					logger.Debug("No clients found in database - continuing without client_id")
					// Don't set client_id, let individual controllers handle this case
				} else {
					logger.Error("Failed to get first client for default", slog.Any("error", err))
				}
			} else {
				c.Locals("client_id", firstClient.ID)
				logger.Debug("Set default client",
					slog.Uint64("client_id", uint64(firstClient.ID)),
					slog.String("name", firstClient.Name))
			}
		}

		return c.Next()
	}
}
