package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/logger"
)

// Event names published on the round channel
const (
	EventScoreUpdated   = "score.updated"
	EventDeviceFinished = "device.finished"
	EventRoundCompleted = "round.completed"
)

// eventChannel is the per-round pub/sub channel
func eventChannel(roundID uuid.UUID) string {
	return fmt.Sprintf("scorecard:events:%s", roundID)
}

// publishEvent sends a round event. Publishing is best effort:
// failures are logged, never surfaced, so a flaky broker cannot fail a
// score write.
func publishEvent(ctx context.Context, bus EventBus, log *logger.Logger, roundID uuid.UUID, eventType string, fields map[string]interface{}) {
	payload := map[string]interface{}{
		"type":      eventType,
		"round_id":  roundID,
		"timestamp": time.Now().Unix(),
	}
	for k, v := range fields {
		payload[k] = v
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal event", "type", eventType, "error", err)
		return
	}

	if err := bus.PublishEvent(ctx, eventChannel(roundID), string(msg)); err != nil {
		log.Warn("failed to publish event", "type", eventType, "round_id", roundID, "error", err)
	}
}
