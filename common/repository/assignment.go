package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/db"
)

// AssignmentRepository handles database operations for device assignments
type AssignmentRepository struct {
	db *db.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(database *db.DB) *AssignmentRepository {
	return &AssignmentRepository{db: database}
}

// DeleteByRound removes all assignment records scoped to a round.
// Deleting rows that are already gone affects zero rows, not an error.
func (r *AssignmentRepository) DeleteByRound(ctx context.Context, roundID uuid.UUID) (int64, error) {
	query := `DELETE FROM device_assignments WHERE round_id = $1`

	tag, err := r.db.Exec(ctx, query, roundID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}

	return tag.RowsAffected(), nil
}
