package models

import "github.com/google/uuid"

// Participant represents one scored person within a round.
// The device assignment is immutable for the lifetime of the round.
// Maps to: participants table
type Participant struct {
	ParticipantID uuid.UUID `db:"participant_id" json:"participant_id"`
	RoundID       uuid.UUID `db:"round_id" json:"round_id"`

	// Device that owns this participant's results
	DeviceID string `db:"device_id" json:"device_id"`

	DisplayName string `db:"display_name" json:"display_name"`
	Handicap    *int   `db:"handicap" json:"handicap,omitempty"`

	// Reference into the external participant registry, if linked.
	// Patched to completed status by the completion saga.
	RegistryRef *string `db:"registry_ref" json:"registry_ref,omitempty"`
}
