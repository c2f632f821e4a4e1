package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/service"
	"github.com/fairwaylink/scorecard/common/bootstrap"
)

// ScoreHandler handles score ledger requests
type ScoreHandler struct {
	components    *bootstrap.Components
	ledgerService *service.LedgerService
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(c *container.Container) *ScoreHandler {
	return &ScoreHandler{
		components:    c.Components,
		ledgerService: c.LedgerService,
	}
}

// UpsertScore records or overwrites the score for one participant on
// one hole
// PUT /api/v1/rounds/:id/scores
func (h *ScoreHandler) UpsertScore(c echo.Context) error {
	ctx := c.Request().Context()

	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid round id",
		})
	}

	var req service.UpsertScoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	req.RoundID = roundID

	entryID, err := h.ledgerService.UpsertScore(ctx, &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"entry_id": entryID,
	})
}

// GetParticipantScores returns one participant's entries ordered by
// hole; with lo and hi set it returns the subtotal over that band
// instead
// GET /api/v1/rounds/:id/participants/:pid/scores?lo=1&hi=9
func (h *ScoreHandler) GetParticipantScores(c echo.Context) error {
	ctx := c.Request().Context()

	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid round id",
		})
	}

	participantID, err := uuid.Parse(c.Param("pid"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid participant id",
		})
	}

	loRaw, hiRaw := c.QueryParam("lo"), c.QueryParam("hi")
	if loRaw != "" || hiRaw != "" {
		lo, err := strconv.Atoi(loRaw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "lo must be an integer",
			})
		}
		hi, err := strconv.Atoi(hiRaw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "hi must be an integer",
			})
		}

		agg, err := h.ledgerService.AggregateRange(ctx, roundID, participantID, lo, hi)
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"participant_id": participantID,
			"lo":             lo,
			"hi":             hi,
			"sum":            agg.Sum,
			"has_data":       agg.HasData,
		})
	}

	entries, err := h.ledgerService.EntriesForParticipant(ctx, roundID, participantID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"participant_id": participantID,
		"entries":        entries,
		"count":          len(entries),
	})
}

// ListScores returns every entry of the round
// GET /api/v1/rounds/:id/scores
func (h *ScoreHandler) ListScores(c echo.Context) error {
	ctx := c.Request().Context()

	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid round id",
		})
	}

	entries, err := h.ledgerService.EntriesForRound(ctx, roundID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"round_id": roundID,
		"entries":  entries,
		"count":    len(entries),
	})
}
