package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/handlers"
)

// RegisterCompletionRoutes registers the device finish route
func RegisterCompletionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewCompletionHandler(c)

	rounds := e.Group("/api/v1/rounds")
	{
		rounds.POST("/:id/devices/:deviceId/finish", h.FinishDevice) // POST /api/v1/rounds/{round_id}/devices/{device_id}/finish
	}
}
