package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundState represents the lifecycle state of a round
type RoundState string

const (
	RoundOpen      RoundState = "open"
	RoundCompleted RoundState = "completed"
)

// Round represents one shared scoring session covering a fixed hole
// sequence and a fixed roster of devices and participants.
// Maps to: rounds table
type Round struct {
	RoundID uuid.UUID `db:"round_id" json:"round_id"`

	// First hole played (supports shotgun-style wrap-around starts)
	StartUnit int `db:"start_unit" json:"start_unit"`

	// Number of holes in the round
	TotalUnits int `db:"total_units" json:"total_units"`

	// Lifecycle state; transitions open -> completed exactly once,
	// never reopened
	State RoundState `db:"state" json:"state"`

	// Optional CEL expression validating score writes, e.g.
	// "value >= 1 && value <= 15"
	ScoreRule *string `db:"score_rule" json:"score_rule,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// DeviceProgress tracks one scorekeeper device within a round.
// The finished flag is monotonic: it flips false -> true at most once
// and is never reversed.
// Maps to: round_devices table
type DeviceProgress struct {
	RoundID     uuid.UUID  `db:"round_id" json:"round_id"`
	DeviceID    string     `db:"device_id" json:"device_id"`
	CurrentUnit int        `db:"current_unit" json:"current_unit"`
	Finished    bool       `db:"finished" json:"finished"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// DeviceAssignment is a display-scoped binding of a device to a round.
// Deleted by the completion saga; deletion is repeatable.
// Maps to: device_assignments table
type DeviceAssignment struct {
	AssignmentID uuid.UUID `db:"assignment_id" json:"assignment_id"`
	RoundID      uuid.UUID `db:"round_id" json:"round_id"`
	DeviceID     string    `db:"device_id" json:"device_id"`
	Label        string    `db:"label" json:"label"`
}
