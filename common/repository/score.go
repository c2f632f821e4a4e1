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

// ScoreRepository handles database operations for score entries
type ScoreRepository struct {
	db *db.DB
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(database *db.DB) *ScoreRepository {
	return &ScoreRepository{db: database}
}

// Upsert writes the entry for (round, participant, unit). The triple
// is the primary key, so a second write replaces the first instead of
// duplicating it; the original entry_id survives the overwrite. The
// round-open check rides in the same statement, so a write racing the
// completion barrier cannot land after the round closes.
func (r *ScoreRepository) Upsert(ctx context.Context, entry *models.ScoreEntry) (uuid.UUID, error) {
	query := `
		INSERT INTO score_entries
			(entry_id, round_id, participant_id, unit, value, putts, hazard, recorded_by, recorded_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		WHERE EXISTS (
			SELECT 1 FROM rounds WHERE round_id = $2 AND state = 'open'
		)
		ON CONFLICT (round_id, participant_id, unit) DO UPDATE SET
			value       = EXCLUDED.value,
			putts       = EXCLUDED.putts,
			hazard      = EXCLUDED.hazard,
			recorded_by = EXCLUDED.recorded_by,
			recorded_at = EXCLUDED.recorded_at
		RETURNING entry_id
	`

	var entryID uuid.UUID
	err := r.db.QueryRow(
		ctx,
		query,
		entry.EntryID,
		entry.RoundID,
		entry.ParticipantID,
		entry.Unit,
		entry.Value,
		entry.Putts,
		entry.Hazard,
		entry.RecordedBy,
		entry.RecordedAt,
	).Scan(&entryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, models.ErrRoundClosed
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert score: %w", err)
	}

	return entryID, nil
}

// ListByRound retrieves all score entries of a round
func (r *ScoreRepository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.ScoreEntry, error) {
	query := `
		SELECT entry_id, round_id, participant_id, unit, value, putts, hazard, recorded_by, recorded_at
		FROM score_entries
		WHERE round_id = $1
	`

	return r.queryEntries(ctx, query, roundID)
}

// ListByParticipant retrieves a participant's entries ordered by unit
func (r *ScoreRepository) ListByParticipant(ctx context.Context, roundID, participantID uuid.UUID) ([]models.ScoreEntry, error) {
	query := `
		SELECT entry_id, round_id, participant_id, unit, value, putts, hazard, recorded_by, recorded_at
		FROM score_entries
		WHERE round_id = $1 AND participant_id = $2
		ORDER BY unit
	`

	return r.queryEntries(ctx, query, roundID, participantID)
}

// AggregateRange sums a participant's values over [unitLow, unitHigh].
// An empty band yields a zero sum with HasData=false, never a null.
func (r *ScoreRepository) AggregateRange(ctx context.Context, roundID, participantID uuid.UUID, unitLow, unitHigh int) (models.RangeAggregate, error) {
	query := `
		SELECT COALESCE(SUM(value), 0), COUNT(*)
		FROM score_entries
		WHERE round_id = $1 AND participant_id = $2 AND unit BETWEEN $3 AND $4
	`

	var sum, count int
	err := r.db.QueryRow(ctx, query, roundID, participantID, unitLow, unitHigh).Scan(&sum, &count)
	if err != nil {
		return models.RangeAggregate{}, fmt.Errorf("failed to aggregate range: %w", err)
	}

	return models.RangeAggregate{Sum: sum, HasData: count > 0}, nil
}

func (r *ScoreRepository) queryEntries(ctx context.Context, query string, args ...any) ([]models.ScoreEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list score entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ScoreEntry
	for rows.Next() {
		var e models.ScoreEntry
		err := rows.Scan(
			&e.EntryID,
			&e.RoundID,
			&e.ParticipantID,
			&e.Unit,
			&e.Value,
			&e.Putts,
			&e.Hazard,
			&e.RecordedBy,
			&e.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score entries: %w", err)
	}

	return entries, nil
}
