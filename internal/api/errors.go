package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"ledger-backend/internal/apperr"
)

// ErrorHandler is the central Fiber error handler. Tagged application errors
// render through the registry; everything else is logged and redacted to the
// generic internal response.
func ErrorHandler(c *fiber.Ctx, err error) error {
	requestID := GetRequestID(c)

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code == fiber.StatusNotFound {
		err = apperr.New(apperr.LayerEndpoint, apperr.TypeResource, apperr.CodeNotFound, "Route not found")
	}

	if _, ok := apperr.As(err); !ok {
		log.Printf("request %s: unhandled error: %v", requestID, err)
	}

	status, envelope := apperr.ToResponse(err, requestID)
	return c.Status(status).JSON(envelope)
}
