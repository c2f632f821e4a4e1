package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoreEntry is one recorded result for (round, participant, unit).
// The storage key is the triple itself, so a second write overwrites
// rather than duplicates.
// Maps to: score_entries table
type ScoreEntry struct {
	EntryID       uuid.UUID `db:"entry_id" json:"entry_id"`
	RoundID       uuid.UUID `db:"round_id" json:"round_id"`
	ParticipantID uuid.UUID `db:"participant_id" json:"participant_id"`
	Unit          int       `db:"unit" json:"unit"`

	// Strokes-equivalent value; lower is better
	Value int `db:"value" json:"value"`

	// Secondary metrics
	Putts  *int `db:"putts" json:"putts,omitempty"`
	Hazard bool `db:"hazard" json:"hazard"`

	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// RangeAggregate is the subtotal over a band of units.
// HasData distinguishes a true zero from an empty band.
type RangeAggregate struct {
	Sum     int  `json:"sum"`
	HasData bool `json:"has_data"`
}

// Standing is one row of a round's ranking.
// Position 0 means unranked (no completed units).
type Standing struct {
	ParticipantID  uuid.UUID `json:"participant_id"`
	DisplayName    string    `json:"display_name"`
	Total          int       `json:"total"`
	UnitsCompleted int       `json:"units_completed"`
	Position       int       `json:"position"`
}
