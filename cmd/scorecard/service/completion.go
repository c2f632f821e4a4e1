package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/cache"
	"github.com/fairwaylink/scorecard/common/logger"
	"github.com/fairwaylink/scorecard/common/models"
	"github.com/fairwaylink/scorecard/common/registry"
)

// sagaRetries bounds in-process saga re-runs before the error is left
// for a later MarkFinished call to resume
const sagaRetries = 3

// cleanupMarkerTTL keeps the saga-done marker around long enough for
// any straggling repeat calls; after expiry a repeat re-runs the
// idempotent saga, which is harmless
const cleanupMarkerTTL = 24 * time.Hour

// CompletionService owns the completion barrier and the cleanup saga
// that runs exactly once when the barrier closes
type CompletionService struct {
	rounds      RoundStore
	devices     DeviceStore
	parts       ParticipantStore
	leases      LeaseStore
	assignments AssignmentStore
	registry    registry.Client
	cfg         *cache.RoundConfigCache
	bus         EventBus
	log         *logger.Logger
}

// CompletionServiceOpts contains options for creating a CompletionService
type CompletionServiceOpts struct {
	Rounds      RoundStore
	Devices     DeviceStore
	Parts       ParticipantStore
	Leases      LeaseStore
	Assignments AssignmentStore
	Registry    registry.Client
	Config      *cache.RoundConfigCache
	Bus         EventBus
	Logger      *logger.Logger
}

// NewCompletionService creates a new completion service
func NewCompletionService(opts *CompletionServiceOpts) *CompletionService {
	return &CompletionService{
		rounds:      opts.Rounds,
		devices:     opts.Devices,
		parts:       opts.Parts,
		leases:      opts.Leases,
		assignments: opts.Assignments,
		registry:    opts.Registry,
		cfg:         opts.Config,
		bus:         opts.Bus,
		log:         opts.Logger,
	}
}

// MarkFinishedResult reports the barrier state after a finish signal
type MarkFinishedResult struct {
	RoundCompleted bool `json:"round_completed"`
	PendingDevices int  `json:"pending_devices"`
}

// MarkFinished records that a device is done scoring. The call is
// idempotent: repeating it changes nothing and reports current state.
//
// When the last pending device finishes, the open->completed claim is
// a single conditional write on the round row, so of N concurrent
// finish signals exactly one caller wins and runs the cleanup saga;
// the others observe RoundCompleted=true without re-running it.
func (s *CompletionService) MarkFinished(ctx context.Context, roundID uuid.UUID, deviceID string) (*MarkFinishedResult, error) {
	round, err := s.rounds.GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}

	progress, err := s.devices.Get(ctx, roundID, deviceID)
	if err != nil {
		return nil, err
	}

	log := s.log.WithRoundID(roundID.String()).WithDeviceID(deviceID)

	if progress.Finished {
		pending, err := s.devices.PendingCount(ctx, roundID)
		if err != nil {
			return nil, err
		}

		if round.State == models.RoundCompleted {
			// Resume a saga a previous caller may have left unfinished
			s.resumeCleanup(ctx, roundID)
			log.Debug("repeat finish signal ignored", "pending", pending)
			return &MarkFinishedResult{RoundCompleted: true, PendingDevices: pending}, nil
		}

		if pending == 0 {
			// Every flag is set but the round is still open: an earlier
			// call flipped the last flag and died before the claim.
			// Retry the claim so the round cannot strand open.
			won, err := s.rounds.TryComplete(ctx, roundID, time.Now().UTC())
			if err != nil {
				return nil, err
			}
			if won {
				log.Info("barrier closed on repeat finish signal, running completion saga")
				s.runSagaWithRetries(ctx, roundID)
			}
			return &MarkFinishedResult{RoundCompleted: true, PendingDevices: 0}, nil
		}

		log.Debug("repeat finish signal ignored", "pending", pending)
		return &MarkFinishedResult{RoundCompleted: false, PendingDevices: pending}, nil
	}

	flipped, err := s.devices.MarkFinished(ctx, roundID, deviceID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !flipped {
		log.Debug("finish flag already set by concurrent call")
	}

	pending, err := s.devices.PendingCount(ctx, roundID)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.bus, s.log, roundID, EventDeviceFinished, map[string]interface{}{
		"device_id": deviceID,
		"pending":   pending,
	})

	if pending > 0 {
		log.Info("device finished", "pending", pending)
		return &MarkFinishedResult{RoundCompleted: false, PendingDevices: pending}, nil
	}

	// All devices look finished; the conditional write decides who
	// actually closes the barrier
	won, err := s.rounds.TryComplete(ctx, roundID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if won {
		log.Info("barrier closed, running completion saga")
		s.runSagaWithRetries(ctx, roundID)
	} else {
		log.Info("barrier closed by concurrent caller")
	}

	return &MarkFinishedResult{RoundCompleted: true, PendingDevices: 0}, nil
}

// runSagaWithRetries drives the saga to completion with bounded
// in-process retries. A saga that still fails is logged and left for a
// later finish signal to resume; the round stays completed throughout
// (forward recovery, never rollback).
func (s *CompletionService) runSagaWithRetries(ctx context.Context, roundID uuid.UUID) {
	var err error
	for attempt := 1; attempt <= sagaRetries; attempt++ {
		if err = s.runSaga(ctx, roundID); err == nil {
			s.markCleanupDone(ctx, roundID)
			return
		}
		s.log.Warn("completion saga attempt failed",
			"round_id", roundID,
			"attempt", attempt,
			"error", err)
	}

	s.log.Error("completion saga exhausted retries, will resume on next finish signal",
		"round_id", roundID,
		"error", err)
}

// runSaga executes the cleanup cascade. Every step is idempotent, so
// the saga is safe to re-run from the top after a partial failure; no
// step assumes an earlier run did not already apply its effect.
func (s *CompletionService) runSaga(ctx context.Context, roundID uuid.UUID) error {
	// Step 1: re-assert the lifecycle state for restart safety. The
	// conditional write reports false when the round is already
	// completed, which is the expected steady state here.
	if _, err := s.rounds.TryComplete(ctx, roundID, time.Now().UTC()); err != nil {
		return &models.SagaStepError{Step: "complete_round", Err: err}
	}

	// Step 2: close out linked registry records. The merge patch
	// carries only the status field, so settlement state on the record
	// is copied forward untouched; an already-completed record is a
	// no-op.
	participants, err := s.parts.ListByRound(ctx, roundID)
	if err != nil {
		return &models.SagaStepError{Step: "list_participants", Err: err}
	}
	for _, p := range participants {
		if p.RegistryRef == nil {
			continue
		}
		if err := s.registry.MarkCompleted(ctx, *p.RegistryRef); err != nil {
			return &models.SagaStepError{Step: "registry_complete", Err: err}
		}
	}

	// Step 3: hand shared equipment back. Leases already released are
	// untouched by the WHERE clause.
	released, err := s.leases.ReleaseByRound(ctx, roundID)
	if err != nil {
		return &models.SagaStepError{Step: "release_leases", Err: err}
	}

	// Step 4: drop display-scoped assignment records. Zero rows
	// affected just means an earlier run got here already.
	deleted, err := s.assignments.DeleteByRound(ctx, roundID)
	if err != nil {
		return &models.SagaStepError{Step: "delete_assignments", Err: err}
	}

	s.cfg.Delete(roundID)

	s.publishCompletedOnce(ctx, roundID)

	s.log.Info("completion saga finished",
		"round_id", roundID,
		"leases_released", released,
		"assignments_deleted", deleted)

	return nil
}

// resumeCleanup re-runs the saga for a completed round whose cleanup
// marker is missing, i.e. a previous run failed partway. The SetNX
// claim keeps concurrent repeat calls from piling on; the steps being
// idempotent keeps even that case harmless.
func (s *CompletionService) resumeCleanup(ctx context.Context, roundID uuid.UUID) {
	claimed, err := s.bus.SetNX(ctx, cleanupMarkerKey(roundID), "done", cleanupMarkerTTL)
	if err != nil {
		s.log.Warn("cleanup marker check failed", "round_id", roundID, "error", err)
		return
	}
	if !claimed {
		return
	}

	if err := s.runSaga(ctx, roundID); err != nil {
		s.log.Error("resumed completion saga failed", "round_id", roundID, "error", err)
		// Drop the claim so the next repeat call retries
		if delErr := s.bus.Delete(ctx, cleanupMarkerKey(roundID)); delErr != nil {
			s.log.Warn("failed to release cleanup marker", "round_id", roundID, "error", delErr)
		}
	}
}

// markCleanupDone records saga success so repeat finish signals skip
// straight to reporting state
func (s *CompletionService) markCleanupDone(ctx context.Context, roundID uuid.UUID) {
	if err := s.bus.Set(ctx, cleanupMarkerKey(roundID), "done", cleanupMarkerTTL); err != nil {
		s.log.Warn("failed to set cleanup marker", "round_id", roundID, "error", err)
	}
}

// publishCompletedOnce publishes round.completed at most once per
// round (consumers must still tolerate replays after marker expiry)
func (s *CompletionService) publishCompletedOnce(ctx context.Context, roundID uuid.UUID) {
	key := fmt.Sprintf("scorecard:round:%s:completed_event", roundID)
	first, err := s.bus.SetNX(ctx, key, "1", cleanupMarkerTTL)
	if err != nil {
		s.log.Warn("completed-event guard failed", "round_id", roundID, "error", err)
		return
	}
	if !first {
		return
	}

	publishEvent(ctx, s.bus, s.log, roundID, EventRoundCompleted, nil)
}

func cleanupMarkerKey(roundID uuid.UUID) string {
	return fmt.Sprintf("scorecard:round:%s:cleanup", roundID)
}
