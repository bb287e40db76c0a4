package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RequestID assigns every request a uuid, honoring one supplied by the
// client, and echoes it in the X-Request-ID header.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Generator:  func() string { return uuid.New().String() },
		ContextKey: requestIDKey,
	})
}

// GetRequestID returns the request id set by RequestID.
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
