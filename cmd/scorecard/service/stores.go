package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/models"
)

// Store interfaces consumed by the services. The pgx repositories in
// common/repository satisfy them; tests substitute in-memory fakes.

// RoundStore persists rounds and owns the open->completed transition
type RoundStore interface {
	// Create persists a round with its full roster (devices,
	// assignments, participants, equipment leases) atomically. A busy
	// equipment tag fails the whole create with
	// models.ErrEquipmentUnavailable and persists nothing.
	Create(ctx context.Context, round *models.Round, devices []models.DeviceAssignment, participants []models.Participant, equipment []string) error
	GetByID(ctx context.Context, roundID uuid.UUID) (*models.Round, error)

	// TryComplete is the barrier claim: a single conditional write
	// that succeeds for exactly one caller when the round is open and
	// every device has finished.
	TryComplete(ctx context.Context, roundID uuid.UUID, at time.Time) (bool, error)
}

// DeviceStore persists per-device progress
type DeviceStore interface {
	Get(ctx context.Context, roundID uuid.UUID, deviceID string) (*models.DeviceProgress, error)
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.DeviceProgress, error)
	MarkFinished(ctx context.Context, roundID uuid.UUID, deviceID string, at time.Time) (bool, error)
	PendingCount(ctx context.Context, roundID uuid.UUID) (int, error)
	SetCurrentUnit(ctx context.Context, roundID uuid.UUID, deviceID string, unit int) error
}

// ParticipantStore reads participants; rows are written as part of the
// round create transaction
type ParticipantStore interface {
	Get(ctx context.Context, roundID, participantID uuid.UUID) (*models.Participant, error)
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Participant, error)
}

// ScoreStore persists score entries keyed on (round, participant, unit)
type ScoreStore interface {
	Upsert(ctx context.Context, entry *models.ScoreEntry) (uuid.UUID, error)
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.ScoreEntry, error)
	ListByParticipant(ctx context.Context, roundID, participantID uuid.UUID) ([]models.ScoreEntry, error)
	AggregateRange(ctx context.Context, roundID, participantID uuid.UUID, unitLow, unitHigh int) (models.RangeAggregate, error)
}

// LeaseStore reads and releases equipment leases; acquisition happens
// inside the round create transaction
type LeaseStore interface {
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.EquipmentLease, error)
	ReleaseByRound(ctx context.Context, roundID uuid.UUID) (int64, error)
}

// AssignmentStore clears display-scoped device assignments
type AssignmentStore interface {
	DeleteByRound(ctx context.Context, roundID uuid.UUID) (int64, error)
}

// EventBus publishes domain events and backs the saga's cleanup
// markers and one-shot publish guard. The common/redis client
// satisfies it.
type EventBus interface {
	PublishEvent(ctx context.Context, channel, message string) error
	SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, expiry time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
