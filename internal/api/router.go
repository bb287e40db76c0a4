package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"ledger-backend/internal/auth"
	"ledger-backend/internal/features"
)

// NewApp assembles the Fiber application: middleware, auth endpoints, the
// import endpoint and the dynamic feature routes.
func NewApp(reg *features.Registry, authHandler *auth.Handler, importHandler *ImportHandler, jwtSecret string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(RequestID())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${locals:request_id}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authHandler.RegisterRoutes(app)

	h := NewHandler(reg)
	api := app.Group("/api", auth.Middleware(jwtSecret))

	// fixed routes go first so they never resolve as entity names
	api.Get("/me", h.Me)
	api.Put("/me", h.UpdateMe)
	if importHandler != nil {
		api.Post("/imports", importHandler.Upload)
	}

	api.Get("/:entity", h.List)
	api.Post("/:entity", h.Create)
	api.Post("/:entity/batch", h.CreateMany)
	api.Get("/:entity/:id", h.GetByID)
	api.Put("/:entity/:id", h.Update)
	api.Delete("/:entity/:id", h.Delete)
	// composite identifiers (for example bucket_participants)
	api.Get("/:entity/:id/:id2", h.GetByID)
	api.Put("/:entity/:id/:id2", h.Update)
	api.Delete("/:entity/:id/:id2", h.Delete)

	return app
}
