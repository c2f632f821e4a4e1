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

// DeviceRepository handles database operations for device progress
type DeviceRepository struct {
	db *db.DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(database *db.DB) *DeviceRepository {
	return &DeviceRepository{db: database}
}

// Get retrieves one device's progress within a round
func (r *DeviceRepository) Get(ctx context.Context, roundID uuid.UUID, deviceID string) (*models.DeviceProgress, error) {
	query := `
		SELECT round_id, device_id, current_unit, finished, finished_at
		FROM round_devices
		WHERE round_id = $1 AND device_id = $2
	`

	dp := &models.DeviceProgress{}
	err := r.db.QueryRow(ctx, query, roundID, deviceID).Scan(
		&dp.RoundID,
		&dp.DeviceID,
		&dp.CurrentUnit,
		&dp.Finished,
		&dp.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUnknownDevice
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device progress: %w", err)
	}

	return dp, nil
}

// ListByRound retrieves all device progress rows for a round
func (r *DeviceRepository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.DeviceProgress, error) {
	query := `
		SELECT round_id, device_id, current_unit, finished, finished_at
		FROM round_devices
		WHERE round_id = $1
		ORDER BY device_id
	`

	rows, err := r.db.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []models.DeviceProgress
	for rows.Next() {
		var dp models.DeviceProgress
		err := rows.Scan(
			&dp.RoundID,
			&dp.DeviceID,
			&dp.CurrentUnit,
			&dp.Finished,
			&dp.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device progress: %w", err)
		}
		devices = append(devices, dp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

// MarkFinished flips the device's finished flag. The flag is
// monotonic: the WHERE clause makes a repeat call a no-op, reported by
// flipped=false.
func (r *DeviceRepository) MarkFinished(ctx context.Context, roundID uuid.UUID, deviceID string, at time.Time) (bool, error) {
	query := `
		UPDATE round_devices
		SET finished = true, finished_at = $3
		WHERE round_id = $1 AND device_id = $2 AND NOT finished
	`

	tag, err := r.db.Exec(ctx, query, roundID, deviceID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark device finished: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// PendingCount returns how many devices on the round have not finished
func (r *DeviceRepository) PendingCount(ctx context.Context, roundID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM round_devices
		WHERE round_id = $1 AND NOT finished
	`

	var count int
	if err := r.db.QueryRow(ctx, query, roundID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending devices: %w", err)
	}

	return count, nil
}

// SetCurrentUnit advances the device's position pointer for progress display
func (r *DeviceRepository) SetCurrentUnit(ctx context.Context, roundID uuid.UUID, deviceID string, unit int) error {
	query := `
		UPDATE round_devices
		SET current_unit = $3
		WHERE round_id = $1 AND device_id = $2
	`

	tag, err := r.db.Exec(ctx, query, roundID, deviceID, unit)
	if err != nil {
		return fmt.Errorf("failed to set current unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUnknownDevice
	}

	return nil
}
