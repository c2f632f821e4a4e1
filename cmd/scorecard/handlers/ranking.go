package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/service"
	"github.com/fairwaylink/scorecard/common/bootstrap"
)

// RankingHandler handles standings requests
type RankingHandler struct {
	components     *bootstrap.Components
	rankingService *service.RankingService
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(c *container.Container) *RankingHandler {
	return &RankingHandler{
		components:     c.Components,
		rankingService: c.RankingService,
	}
}

// GetRanking returns the current standings, best total first
// GET /api/v1/rounds/:id/ranking
func (h *RankingHandler) GetRanking(c echo.Context) error {
	ctx := c.Request().Context()

	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid round id",
		})
	}

	standings, err := h.rankingService.Rank(ctx, roundID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"round_id":  roundID,
		"standings": standings,
	})
}
