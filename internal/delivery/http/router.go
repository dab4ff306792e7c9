package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ecoshore/backend/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, heatmapSvc *service.HeatmapService) {
	handler := NewHandler(heatmapSvc)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		heatmap := api.Group("/heatmap")
		heatmap.Get("/", handler.GetHeatmap)
		// Registered before /:beachId so "health" is not taken as an id
		heatmap.Get("/health", handler.GetHeatmapHealth)
		heatmap.Post("/refresh", handler.RefreshHeatmap)
		heatmap.Get("/:beachId", handler.GetBeachHeatmap)
	}
}
