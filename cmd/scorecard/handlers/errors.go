package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/common/models"
)

// writeError maps domain errors onto HTTP status codes. Anything not
// recognized is a 500 with a generic body; the real cause stays in the
// logs.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrRoundNotFound):
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "round not found",
		})
	case errors.Is(err, models.ErrUnknownDevice):
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "device not part of round",
		})
	case errors.Is(err, models.ErrUnknownParticipant):
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "participant not part of round",
		})
	case errors.Is(err, models.ErrRoundClosed):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": "round already completed",
		})
	case errors.Is(err, models.ErrEquipmentUnavailable):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, models.ErrInvalidUnit),
		errors.Is(err, models.ErrInvalidScore),
		errors.Is(err, models.ErrInvalidConfiguration):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "internal error",
		})
	}
}
