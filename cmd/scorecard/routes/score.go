package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/handlers"
	scmiddleware "github.com/fairwaylink/scorecard/common/middleware"
)

// RegisterScoreRoutes registers score ledger routes
func RegisterScoreRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewScoreHandler(c)

	// Score writes carry a per-round limit on top of the global one
	var writeMiddleware []echo.MiddlewareFunc
	if c.Components.Config.RateLimit.Enabled {
		writeMiddleware = append(writeMiddleware,
			scmiddleware.RoundRateLimit(c.RateLimiter, c.Components.Config.RateLimit.PerRoundPerMin))
	}

	rounds := e.Group("/api/v1/rounds")
	{
		rounds.PUT("/:id/scores", h.UpsertScore, writeMiddleware...)         // PUT /api/v1/rounds/{round_id}/scores
		rounds.GET("/:id/scores", h.ListScores)                              // GET /api/v1/rounds/{round_id}/scores
		rounds.GET("/:id/participants/:pid/scores", h.GetParticipantScores) // GET /api/v1/rounds/{round_id}/participants/{pid}/scores?lo=1&hi=9
	}
}
