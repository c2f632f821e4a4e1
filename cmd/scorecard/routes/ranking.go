package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/handlers"
)

// RegisterRankingRoutes registers the standings route
func RegisterRankingRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRankingHandler(c)

	rounds := e.Group("/api/v1/rounds")
	{
		rounds.GET("/:id/ranking", h.GetRanking) // GET /api/v1/rounds/{round_id}/ranking
	}
}
