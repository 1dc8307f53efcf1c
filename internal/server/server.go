package server

import (
	"context"
	"time"

	"github.com/appforge/connectorhub/internal/controllers"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type HTTPServerDependencies struct {
	ConnectorController *controllers.ConnectorController
}

func NewHTTPServer(ctx context.Context, deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "connectorhub",
	})

	router.Use(cors.New())
	router.Use(logger.New())

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "connectorhub",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.Get("/connectors", deps.ConnectorController.ListConnectors)

	users := router.Group("/users/:userID/connections/:connectorKey")

	users.Post("/authorize", deps.ConnectorController.StartAuthorization)
	users.Post("/callback", deps.ConnectorController.CompleteAuthorization)
	users.Delete("/", deps.ConnectorController.RevokeConnection)
	users.Get("/resources", deps.ConnectorController.QueryPersonalResources)

	projects := router.Group("/projects/:projectID/connections/:connectorKey")

	projects.Put("/", deps.ConnectorController.ConfigureSharedConnection)
	projects.Delete("/", deps.ConnectorController.RemoveSharedConnection)
	projects.Get("/resources", deps.ConnectorController.QuerySharedResources)

	return router
}
