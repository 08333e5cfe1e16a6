package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/truckwise/truckwise/app/controllers"
	"github.com/truckwise/truckwise/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes; everything below requires a tenant API key
	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())

	v1.Get("/catalog", controllers.HandleListCatalog)

	v1.Get("/integrations", controllers.HandleListIntegrations)
	v1.Post("/integrations/:key/connect", controllers.HandleConnectIntegration)
	v1.Delete("/integrations/:id", controllers.HandleDisconnectIntegration)
	v1.Post("/integrations/:id/sync", controllers.HandleTriggerSync)
	v1.Get("/integrations/:id/health", controllers.HandleIntegrationHealth)

	v1.Get("/vehicles", controllers.HandleListVehicles)
	v1.Get("/drivers", controllers.HandleListDrivers)
	v1.Get("/fuel-transactions", controllers.HandleListFuelTransactions)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
