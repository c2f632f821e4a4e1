package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/cache"
	"github.com/fairwaylink/scorecard/common/logger"
	"github.com/fairwaylink/scorecard/common/models"
	"github.com/fairwaylink/scorecard/common/rules"
	"github.com/fairwaylink/scorecard/common/sequence"
)

// LedgerService owns the score ledger: one live entry per
// (round, participant, unit) triple
type LedgerService struct {
	rounds  RoundStore
	devices DeviceStore
	parts   ParticipantStore
	scores  ScoreStore
	rules   *rules.Evaluator
	cfg     *cache.RoundConfigCache
	bus     EventBus
	log     *logger.Logger
}

// LedgerServiceOpts contains options for creating a LedgerService
type LedgerServiceOpts struct {
	Rounds  RoundStore
	Devices DeviceStore
	Parts   ParticipantStore
	Scores  ScoreStore
	Rules   *rules.Evaluator
	Config  *cache.RoundConfigCache
	Bus     EventBus
	Logger  *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(opts *LedgerServiceOpts) *LedgerService {
	return &LedgerService{
		rounds:  opts.Rounds,
		devices: opts.Devices,
		parts:   opts.Parts,
		scores:  opts.Scores,
		rules:   opts.Rules,
		cfg:     opts.Config,
		bus:     opts.Bus,
		log:     opts.Logger,
	}
}

// UpsertScoreRequest records one result
type UpsertScoreRequest struct {
	RoundID       uuid.UUID `json:"round_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Unit          int       `json:"unit"`
	Value         int       `json:"value"`
	Putts         *int      `json:"putts,omitempty"`
	Hazard        bool      `json:"hazard"`
	RecordedBy    string    `json:"recorded_by"`
}

// UpsertScore writes the entry for the triple, overwriting any prior
// value. The round must be open, the unit must belong to the round's
// sequence, the participant must be on the round, and the round's
// score rule (if any) must allow the value.
//
// The open check is enforced inside the upsert statement itself, so
// only the immutable round config is ever served from cache and a
// write racing the completion barrier cannot land after close.
func (s *LedgerService) UpsertScore(ctx context.Context, req *UpsertScoreRequest) (uuid.UUID, error) {
	cfg, err := s.roundConfig(ctx, req.RoundID)
	if err != nil {
		return uuid.Nil, err
	}

	ok, err := sequence.Contains(cfg.StartUnit, cfg.TotalUnits, req.Unit)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unit %d not in [1,%d]", models.ErrInvalidUnit, req.Unit, cfg.TotalUnits)
	}

	participant, err := s.parts.Get(ctx, req.RoundID, req.ParticipantID)
	if err != nil {
		return uuid.Nil, err
	}

	putts := 0
	if req.Putts != nil {
		putts = *req.Putts
	}
	allowed, err := s.rules.Allow(cfg.ScoreRule, rules.ScoreInput{
		Value: req.Value,
		Unit:  req.Unit,
		Putts: putts,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("score rule: %w", err)
	}
	if !allowed {
		return uuid.Nil, fmt.Errorf("%w: value %d on unit %d", models.ErrInvalidScore, req.Value, req.Unit)
	}

	entryID, err := s.scores.Upsert(ctx, &models.ScoreEntry{
		EntryID:       uuid.New(),
		RoundID:       req.RoundID,
		ParticipantID: req.ParticipantID,
		Unit:          req.Unit,
		Value:         req.Value,
		Putts:         req.Putts,
		Hazard:        req.Hazard,
		RecordedBy:    req.RecordedBy,
		RecordedAt:    time.Now().UTC(),
	})
	if err != nil {
		return uuid.Nil, err
	}

	// Advance the recording device's position pointer; failure here is
	// display-only and does not fail the write
	if err := s.devices.SetCurrentUnit(ctx, req.RoundID, participant.DeviceID, req.Unit); err != nil {
		s.log.Warn("failed to advance device position",
			"round_id", req.RoundID,
			"device_id", participant.DeviceID,
			"error", err)
	}

	publishEvent(ctx, s.bus, s.log, req.RoundID, EventScoreUpdated, map[string]interface{}{
		"participant_id": req.ParticipantID,
		"unit":           req.Unit,
		"value":          req.Value,
	})

	return entryID, nil
}

// EntriesForRound returns every entry of the round
func (s *LedgerService) EntriesForRound(ctx context.Context, roundID uuid.UUID) ([]models.ScoreEntry, error) {
	if _, err := s.rounds.GetByID(ctx, roundID); err != nil {
		return nil, err
	}
	return s.scores.ListByRound(ctx, roundID)
}

// EntriesForParticipant returns one participant's entries ordered by unit
func (s *LedgerService) EntriesForParticipant(ctx context.Context, roundID, participantID uuid.UUID) ([]models.ScoreEntry, error) {
	if _, err := s.parts.Get(ctx, roundID, participantID); err != nil {
		return nil, err
	}
	return s.scores.ListByParticipant(ctx, roundID, participantID)
}

// AggregateRange sums a participant's values over a band of units,
// e.g. front nine / back nine subtotals
func (s *LedgerService) AggregateRange(ctx context.Context, roundID, participantID uuid.UUID, unitLow, unitHigh int) (models.RangeAggregate, error) {
	if _, err := s.parts.Get(ctx, roundID, participantID); err != nil {
		return models.RangeAggregate{}, err
	}
	return s.scores.AggregateRange(ctx, roundID, participantID, unitLow, unitHigh)
}

// roundConfig serves the immutable round fields, from cache when warm.
// A cache miss falls back to the store, which also rejects writes to
// rounds that do not exist or are already closed.
func (s *LedgerService) roundConfig(ctx context.Context, roundID uuid.UUID) (cache.RoundConfig, error) {
	if cfg, ok := s.cfg.Get(roundID); ok {
		return cfg, nil
	}

	round, err := s.rounds.GetByID(ctx, roundID)
	if err != nil {
		return cache.RoundConfig{}, err
	}
	if round.State != models.RoundOpen {
		return cache.RoundConfig{}, models.ErrRoundClosed
	}

	cfg := cache.RoundConfig{
		StartUnit:  round.StartUnit,
		TotalUnits: round.TotalUnits,
	}
	if round.ScoreRule != nil {
		cfg.ScoreRule = *round.ScoreRule
	}
	s.cfg.Set(roundID, cfg)
	return cfg, nil
}
