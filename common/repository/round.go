package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairwaylink/scorecard/common/db"
	"github.com/fairwaylink/scorecard/common/models"
)

// RoundRepository handles database operations for rounds
type RoundRepository struct {
	db *db.DB
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(database *db.DB) *RoundRepository {
	return &RoundRepository{db: database}
}

// Create inserts a round together with its device roster, participants,
// display assignments and equipment leases in one transaction. A lease
// conflict rolls the whole round back, so a rejected create leaves no
// orphan rows behind.
func (r *RoundRepository) Create(ctx context.Context, round *models.Round, devices []models.DeviceAssignment, participants []models.Participant, equipment []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin round create: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rounds (round_id, start_unit, total_units, state, score_rule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		round.RoundID,
		round.StartUnit,
		round.TotalUnits,
		round.State,
		round.ScoreRule,
		round.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}

	for _, d := range devices {
		_, err = tx.Exec(ctx, `
			INSERT INTO round_devices (round_id, device_id, current_unit, finished)
			VALUES ($1, $2, $3, false)
		`,
			round.RoundID,
			d.DeviceID,
			round.StartUnit,
		)
		if err != nil {
			return fmt.Errorf("failed to register device %s: %w", d.DeviceID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO device_assignments (assignment_id, round_id, device_id, label)
			VALUES ($1, $2, $3, $4)
		`,
			d.AssignmentID,
			round.RoundID,
			d.DeviceID,
			d.Label,
		)
		if err != nil {
			return fmt.Errorf("failed to create assignment for %s: %w", d.DeviceID, err)
		}
	}

	for _, p := range participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO participants (participant_id, round_id, device_id, display_name, handicap, registry_ref)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			p.ParticipantID,
			round.RoundID,
			p.DeviceID,
			p.DisplayName,
			p.Handicap,
			p.RegistryRef,
		)
		if err != nil {
			return fmt.Errorf("failed to create participant %q: %w", p.DisplayName, err)
		}
	}

	// The upsert only takes equipment whose lease is available; a busy
	// tag returns no row and aborts the transaction.
	for _, tag := range equipment {
		var leaseID uuid.UUID
		err = tx.QueryRow(ctx, `
			INSERT INTO equipment_leases (lease_id, equipment_tag, status, round_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (equipment_tag) DO UPDATE SET
				status   = EXCLUDED.status,
				round_id = EXCLUDED.round_id
			WHERE equipment_leases.status = 'available'
			RETURNING lease_id
		`, uuid.New(), tag, models.LeaseAssigned, round.RoundID).Scan(&leaseID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrEquipmentUnavailable, tag)
		}
		if err != nil {
			return fmt.Errorf("failed to acquire lease for %s: %w", tag, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit round create: %w", err)
	}

	return nil
}

// GetByID retrieves a round by its ID
func (r *RoundRepository) GetByID(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	query := `
		SELECT round_id, start_unit, total_units, state, score_rule, created_at, completed_at
		FROM rounds
		WHERE round_id = $1
	`

	round := &models.Round{}
	err := r.db.QueryRow(ctx, query, roundID).Scan(
		&round.RoundID,
		&round.StartUnit,
		&round.TotalUnits,
		&round.State,
		&round.ScoreRule,
		&round.CreatedAt,
		&round.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}

	return round, nil
}

// TryComplete performs the open->completed transition as a single
// conditional write. It succeeds only when the round is still open AND
// every device on the roster has finished, so of any number of
// concurrent callers exactly one wins and owns the completion saga.
func (r *RoundRepository) TryComplete(ctx context.Context, roundID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE rounds
		SET state = $2, completed_at = $3
		WHERE round_id = $1
		  AND state = $4
		  AND NOT EXISTS (
			SELECT 1 FROM round_devices
			WHERE round_id = $1 AND NOT finished
		  )
	`

	tag, err := r.db.Exec(ctx, query, roundID, models.RoundCompleted, at, models.RoundOpen)
	if err != nil {
		return false, fmt.Errorf("failed to complete round: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
