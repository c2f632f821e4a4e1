package models

import "github.com/google/uuid"

// LeaseStatus represents the availability of a piece of shared equipment
type LeaseStatus string

const (
	LeaseAvailable LeaseStatus = "available"
	LeaseAssigned  LeaseStatus = "assigned"
)

// EquipmentLease binds a piece of shared equipment (e.g. a cart) to a
// round. Released by the completion saga or by explicit early
// cancellation; releasing an already-released lease is a no-op.
// Maps to: equipment_leases table
type EquipmentLease struct {
	LeaseID      uuid.UUID   `db:"lease_id" json:"lease_id"`
	EquipmentTag string      `db:"equipment_tag" json:"equipment_tag"`
	Status       LeaseStatus `db:"status" json:"status"`
	RoundID      *uuid.UUID  `db:"round_id" json:"round_id,omitempty"`
}
