package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/db"
	"github.com/fairwaylink/scorecard/common/models"
)

// LeaseRepository handles database operations for equipment leases
type LeaseRepository struct {
	db *db.DB
}

// NewLeaseRepository creates a new lease repository
func NewLeaseRepository(database *db.DB) *LeaseRepository {
	return &LeaseRepository{db: database}
}

// ListByRound retrieves leases currently referencing a round
func (r *LeaseRepository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.EquipmentLease, error) {
	query := `
		SELECT lease_id, equipment_tag, status, round_id
		FROM equipment_leases
		WHERE round_id = $1
	`

	rows, err := r.db.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}
	defer rows.Close()

	var leases []models.EquipmentLease
	for rows.Next() {
		var l models.EquipmentLease
		err := rows.Scan(&l.LeaseID, &l.EquipmentTag, &l.Status, &l.RoundID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		leases = append(leases, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leases: %w", err)
	}

	return leases, nil
}

// ReleaseByRound clears the round reference and makes the equipment
// available again. Leases already released are untouched, so repeating
// the call is a no-op.
func (r *LeaseRepository) ReleaseByRound(ctx context.Context, roundID uuid.UUID) (int64, error) {
	query := `
		UPDATE equipment_leases
		SET status = $2, round_id = NULL
		WHERE round_id = $1
	`

	tag, err := r.db.Exec(ctx, query, roundID, models.LeaseAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to release leases: %w", err)
	}

	return tag.RowsAffected(), nil
}
