package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairwaylink/scorecard/common/db"
	"github.com/fairwaylink/scorecard/common/models"
)

// ParticipantRepository handles database operations for participants
type ParticipantRepository struct {
	db *db.DB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(database *db.DB) *ParticipantRepository {
	return &ParticipantRepository{db: database}
}

// Get retrieves a participant, scoped to the round it belongs to
func (r *ParticipantRepository) Get(ctx context.Context, roundID, participantID uuid.UUID) (*models.Participant, error) {
	query := `
		SELECT participant_id, round_id, device_id, display_name, handicap, registry_ref
		FROM participants
		WHERE round_id = $1 AND participant_id = $2
	`

	p := &models.Participant{}
	err := r.db.QueryRow(ctx, query, roundID, participantID).Scan(
		&p.ParticipantID,
		&p.RoundID,
		&p.DeviceID,
		&p.DisplayName,
		&p.Handicap,
		&p.RegistryRef,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUnknownParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return p, nil
}

// ListByRound retrieves all participants of a round
func (r *ParticipantRepository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Participant, error) {
	query := `
		SELECT participant_id, round_id, device_id, display_name, handicap, registry_ref
		FROM participants
		WHERE round_id = $1
		ORDER BY display_name
	`

	rows, err := r.db.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		err := rows.Scan(
			&p.ParticipantID,
			&p.RoundID,
			&p.DeviceID,
			&p.DisplayName,
			&p.Handicap,
			&p.RegistryRef,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}
