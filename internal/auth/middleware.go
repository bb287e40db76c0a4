package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ledger-backend/internal/apperr"
)

const userIDKey = "user_id"

// Middleware validates the bearer token and stores the caller's user id on
// the request context.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperr.Unauthorized("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperr.Unauthorized("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return apperr.Unauthorized("Invalid or expired token")
		}

		c.Locals(userIDKey, claims.Subject)
		return c.Next()
	}
}

// UserID extracts the authenticated user id from a Fiber context.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}
