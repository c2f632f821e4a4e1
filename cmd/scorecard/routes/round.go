package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/handlers"
)

// RegisterRoundRoutes registers round lifecycle routes
func RegisterRoundRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRoundHandler(c)

	rounds := e.Group("/api/v1/rounds")
	{
		rounds.POST("", h.CreateRound)   // POST /api/v1/rounds
		rounds.GET("/:id", h.GetRound)   // GET /api/v1/rounds/{round_id}
	}
}
