package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/service"
	"github.com/fairwaylink/scorecard/common/bootstrap"
)

// RoundHandler handles round lifecycle requests
type RoundHandler struct {
	components   *bootstrap.Components
	roundService *service.RoundService
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(c *container.Container) *RoundHandler {
	return &RoundHandler{
		components:   c.Components,
		roundService: c.RoundService,
	}
}

// CreateRound opens a new round with its device and participant roster
// POST /api/v1/rounds
func (h *RoundHandler) CreateRound(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.CreateRoundRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	resp, err := h.roundService.CreateRound(ctx, &req)
	if err != nil {
		h.components.Logger.Error("failed to create round", "error", err)
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, resp)
}

// GetRound returns the round's barrier state and per-device progress
// GET /api/v1/rounds/:id
func (h *RoundHandler) GetRound(c echo.Context) error {
	ctx := c.Request().Context()

	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid round id",
		})
	}

	status, err := h.roundService.GetStatus(ctx, roundID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, status)
}
