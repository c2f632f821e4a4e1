package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/logger"
	"github.com/fairwaylink/scorecard/common/models"
	"github.com/fairwaylink/scorecard/common/rules"
	"github.com/fairwaylink/scorecard/common/sequence"
)

// RoundService handles round creation and status reads
type RoundService struct {
	rounds  RoundStore
	devices DeviceStore
	rules   *rules.Evaluator
	log     *logger.Logger
}

// RoundServiceOpts contains options for creating a RoundService
type RoundServiceOpts struct {
	Rounds  RoundStore
	Devices DeviceStore
	Rules   *rules.Evaluator
	Logger  *logger.Logger
}

// NewRoundService creates a new round service
func NewRoundService(opts *RoundServiceOpts) *RoundService {
	return &RoundService{
		rounds:  opts.Rounds,
		devices: opts.Devices,
		rules:   opts.Rules,
		log:     opts.Logger,
	}
}

// CreateRoundRequest describes a new round: the hole sequence, the
// device roster, the participants and their device assignment, and the
// equipment to lease for the duration of the round.
type CreateRoundRequest struct {
	StartUnit  int    `json:"start_unit"`
	TotalUnits int    `json:"total_units"`
	ScoreRule  string `json:"score_rule,omitempty"`

	Devices []CreateDevice `json:"devices"`

	Participants []CreateParticipant `json:"participants"`

	Equipment []string `json:"equipment,omitempty"`
}

// CreateDevice registers one scorekeeper device
type CreateDevice struct {
	DeviceID string `json:"device_id"`
	Label    string `json:"label,omitempty"`
}

// CreateParticipant registers one scored person
type CreateParticipant struct {
	DisplayName string  `json:"display_name"`
	DeviceID    string  `json:"device_id"`
	Handicap    *int    `json:"handicap,omitempty"`
	RegistryRef *string `json:"registry_ref,omitempty"`
}

// CreateRoundResponse is the created round plus its participant ids
type CreateRoundResponse struct {
	RoundID      uuid.UUID            `json:"round_id"`
	Participants []models.Participant `json:"participants"`
}

// CreateRound validates and persists a new round with its roster
func (s *RoundService) CreateRound(ctx context.Context, req *CreateRoundRequest) (*CreateRoundResponse, error) {
	if _, err := sequence.Order(req.StartUnit, req.TotalUnits); err != nil {
		return nil, err
	}

	if len(req.Devices) == 0 {
		return nil, fmt.Errorf("%w: round needs at least one device", models.ErrInvalidConfiguration)
	}

	if err := s.rules.Validate(req.ScoreRule); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfiguration, err)
	}

	deviceIDs := make([]string, 0, len(req.Devices))
	known := make(map[string]bool, len(req.Devices))
	for _, d := range req.Devices {
		if known[d.DeviceID] {
			return nil, fmt.Errorf("%w: duplicate device %s", models.ErrInvalidConfiguration, d.DeviceID)
		}
		known[d.DeviceID] = true
		deviceIDs = append(deviceIDs, d.DeviceID)
	}

	for _, p := range req.Participants {
		if !known[p.DeviceID] {
			return nil, fmt.Errorf("%w: participant %q assigned to unknown device %s",
				models.ErrInvalidConfiguration, p.DisplayName, p.DeviceID)
		}
	}

	var rule *string
	if req.ScoreRule != "" {
		rule = &req.ScoreRule
	}

	round := &models.Round{
		RoundID:    uuid.New(),
		StartUnit:  req.StartUnit,
		TotalUnits: req.TotalUnits,
		State:      models.RoundOpen,
		ScoreRule:  rule,
		CreatedAt:  time.Now().UTC(),
	}

	participants := make([]models.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, models.Participant{
			ParticipantID: uuid.New(),
			RoundID:       round.RoundID,
			DeviceID:      p.DeviceID,
			DisplayName:   p.DisplayName,
			Handicap:      p.Handicap,
			RegistryRef:   p.RegistryRef,
		})
	}

	assignments := make([]models.DeviceAssignment, 0, len(req.Devices))
	for _, d := range req.Devices {
		assignments = append(assignments, models.DeviceAssignment{
			AssignmentID: uuid.New(),
			RoundID:      round.RoundID,
			DeviceID:     d.DeviceID,
			Label:        d.Label,
		})
	}

	// One transaction covers the round, its roster and the equipment
	// leases; a busy tag rejects the create without leaving an orphan
	// open round behind
	if err := s.rounds.Create(ctx, round, assignments, participants, req.Equipment); err != nil {
		return nil, err
	}

	s.log.Info("round created",
		"round_id", round.RoundID,
		"devices", len(deviceIDs),
		"participants", len(participants),
		"start_unit", round.StartUnit,
		"total_units", round.TotalUnits)

	return &CreateRoundResponse{
		RoundID:      round.RoundID,
		Participants: participants,
	}, nil
}

// DeviceStatus is one device's line in the round status
type DeviceStatus struct {
	DeviceID   string     `json:"device_id"`
	Finished   bool       `json:"finished"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RoundStatus summarizes a round's barrier state
type RoundStatus struct {
	RoundID     uuid.UUID         `json:"round_id"`
	State       models.RoundState `json:"state"`
	Devices     []DeviceStatus    `json:"devices"`
	AllFinished bool              `json:"all_finished"`
}

// GetStatus returns the per-device finished flags and the aggregate
func (s *RoundService) GetStatus(ctx context.Context, roundID uuid.UUID) (*RoundStatus, error) {
	round, err := s.rounds.GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}

	devices, err := s.devices.ListByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	status := &RoundStatus{
		RoundID:     round.RoundID,
		State:       round.State,
		Devices:     make([]DeviceStatus, 0, len(devices)),
		AllFinished: true,
	}
	for _, d := range devices {
		status.Devices = append(status.Devices, DeviceStatus{
			DeviceID:   d.DeviceID,
			Finished:   d.Finished,
			FinishedAt: d.FinishedAt,
		})
		if !d.Finished {
			status.AllFinished = false
		}
	}

	return status, nil
}
