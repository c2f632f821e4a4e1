package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/service"
	"github.com/fairwaylink/scorecard/common/bootstrap"
)

// CompletionHandler handles device finish signals
type CompletionHandler struct {
	components        *bootstrap.Components
	completionService *service.CompletionService
}

// NewCompletionHandler creates a new completion handler
func NewCompletionHandler(c *container.Container) *CompletionHandler {
	return &CompletionHandler{
		components:        c.Components,
		completionService: c.CompletionService,
	}
}

// FinishDevice marks one device as done scoring. Safe to repeat; the
// response always reflects the round's current barrier state.
// POST /api/v1/rounds/:id/devices/:deviceId/finish
func (h *CompletionHandler) FinishDevice(c echo.Context) error {
	ctx := c.Request().Context()

	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid round id",
		})
	}

	deviceID := c.Param("deviceId")
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "device id is required",
		})
	}

	result, err := h.completionService.MarkFinished(ctx, roundID, deviceID)
	if err != nil {
		h.components.Logger.Error("finish signal failed",
			"round_id", roundID,
			"device_id", deviceID,
			"error", err)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
