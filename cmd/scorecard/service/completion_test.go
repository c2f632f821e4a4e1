package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fairwaylink/scorecard/common/models"
)

// seedRound creates a round with the given devices, one registry-linked
// participant per device, one cart lease and one assignment per device.
func seedRound(t *testing.T, env *testEnv, deviceIDs ...string) (uuid.UUID, []models.Participant) {
	t.Helper()

	devices := make([]CreateDevice, 0, len(deviceIDs))
	participants := make([]CreateParticipant, 0, len(deviceIDs))
	equipment := make([]string, 0, len(deviceIDs))
	for i, id := range deviceIDs {
		devices = append(devices, CreateDevice{DeviceID: id, Label: "flight " + id})
		ref := fmt.Sprintf("reg-%s", id)
		participants = append(participants, CreateParticipant{
			DisplayName: fmt.Sprintf("player-%d", i+1),
			DeviceID:    id,
			RegistryRef: &ref,
		})
		equipment = append(equipment, "cart-"+id)

		env.reg.Put(ref, json.RawMessage(`{"status":"active","paid":true,"settlement":"card"}`))
	}

	resp, err := env.rounds.CreateRound(context.Background(), &CreateRoundRequest{
		StartUnit:    1,
		TotalUnits:   18,
		Devices:      devices,
		Participants: participants,
		Equipment:    equipment,
	})
	require.NoError(t, err)

	return resp.RoundID, resp.Participants
}

func TestMarkFinished_UnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	roundID, _ := seedRound(t, env, "tab-a")

	_, err := env.completion.MarkFinished(context.Background(), roundID, "tab-x")
	require.ErrorIs(t, err, models.ErrUnknownDevice)
}

func TestMarkFinished_UnknownRound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.completion.MarkFinished(context.Background(), uuid.New(), "tab-a")
	require.ErrorIs(t, err, models.ErrRoundNotFound)
}

// The two-device walkthrough: A finishes (round stays open), B
// finishes (barrier closes, saga runs once), A repeats (idempotent, no
// extra cleanup effects).
func TestMarkFinished_TwoDeviceRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roundID, _ := seedRound(t, env, "tab-a", "tab-b")

	res, err := env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)
	require.False(t, res.RoundCompleted)
	require.Equal(t, 1, res.PendingDevices)

	res, err = env.completion.MarkFinished(ctx, roundID, "tab-b")
	require.NoError(t, err)
	require.True(t, res.RoundCompleted)
	require.Equal(t, 0, res.PendingDevices)

	round, err := env.store.GetByID(ctx, roundID)
	require.NoError(t, err)
	require.Equal(t, models.RoundCompleted, round.State)
	require.NotNil(t, round.CompletedAt)

	// Cleanup effects applied exactly once
	require.EqualValues(t, 2, env.store.effectiveReleases)
	require.EqualValues(t, 2, env.store.effectiveDeletes)

	leases, err := env.store.ListLeases(ctx, roundID)
	require.NoError(t, err)
	require.Empty(t, leases, "all leases released")

	for _, ref := range []string{"reg-tab-a", "reg-tab-b"} {
		rec, err := env.reg.GetRecord(ctx, ref)
		require.NoError(t, err)
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(rec, &doc))
		require.Equal(t, "completed", doc["status"])
		require.Equal(t, "card", doc["settlement"], "settlement copied forward")
	}

	// Repeat from A: same outcome, zero additional effects
	res, err = env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)
	require.True(t, res.RoundCompleted)
	require.Equal(t, 0, res.PendingDevices)
	require.EqualValues(t, 2, env.store.effectiveReleases)
	require.EqualValues(t, 2, env.store.effectiveDeletes)
	require.Equal(t, 1, env.store.completeWins)
}

func TestMarkFinished_RepeatBeforeCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roundID, _ := seedRound(t, env, "tab-a", "tab-b", "tab-c")

	res, err := env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)
	require.Equal(t, 2, res.PendingDevices)

	// Repeating must not change the pending count
	res, err = env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)
	require.False(t, res.RoundCompleted)
	require.Equal(t, 2, res.PendingDevices)
}

// The final finisher can die between flipping its flag and claiming
// the completion. A retry of the same signal must pick the claim back
// up instead of stranding the round open with zero pending devices.
func TestMarkFinished_RetryAfterInterruptedFinish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roundID, _ := seedRound(t, env, "tab-a")

	// The flag flip landed but the caller never reached the claim
	flipped, err := env.store.MarkFinished(ctx, roundID, "tab-a", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, flipped)

	res, err := env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)
	require.True(t, res.RoundCompleted)
	require.Equal(t, 0, res.PendingDevices)

	round, err := env.store.GetByID(ctx, roundID)
	require.NoError(t, err)
	require.Equal(t, models.RoundCompleted, round.State)
	require.Equal(t, 1, env.store.completeWins)

	// The retry owns the saga, applied exactly once
	require.EqualValues(t, 1, env.store.effectiveReleases)
	require.EqualValues(t, 1, env.store.effectiveDeletes)
}

// All devices signal finished at the same instant, many times over.
// However the store interleaves them, the saga must run exactly once.
func TestMarkFinished_ConcurrentFinalDevices(t *testing.T) {
	const devices = 8
	const rounds = 25

	for iter := 0; iter < rounds; iter++ {
		env := newTestEnv(t)
		ctx := context.Background()

		ids := make([]string, devices)
		for i := range ids {
			ids[i] = fmt.Sprintf("tab-%d", i)
		}
		roundID, _ := seedRound(t, env, ids...)

		var wg sync.WaitGroup
		completions := make([]bool, devices)
		for i, id := range ids {
			wg.Add(1)
			go func(slot int, deviceID string) {
				defer wg.Done()
				res, err := env.completion.MarkFinished(ctx, roundID, deviceID)
				if err != nil {
					t.Errorf("MarkFinished(%s) failed: %v", deviceID, err)
					return
				}
				completions[slot] = res.RoundCompleted
			}(i, id)
		}
		wg.Wait()

		require.Equal(t, 1, env.store.completeWins, "exactly one caller may win the transition")

		round, err := env.store.GetByID(ctx, roundID)
		require.NoError(t, err)
		require.Equal(t, models.RoundCompleted, round.State)

		sawCompleted := false
		for _, c := range completions {
			sawCompleted = sawCompleted || c
		}
		require.True(t, sawCompleted, "at least the last finisher observes completion")

		require.EqualValues(t, devices, env.store.effectiveReleases, "each lease released exactly once")
		require.EqualValues(t, devices, env.store.effectiveDeletes, "each assignment deleted exactly once")
	}
}

// A transient failure mid-saga is retried in process and converges
// without duplicate effects.
func TestSaga_TransientFailureRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roundID, _ := seedRound(t, env, "tab-a")

	env.store.releaseErr = errors.New("connection reset")
	env.store.releaseErrOnce = true

	res, err := env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)
	require.True(t, res.RoundCompleted)

	require.EqualValues(t, 1, env.store.effectiveReleases)
	require.EqualValues(t, 1, env.store.effectiveDeletes)
}

// A saga that exhausts its retries leaves the round completed and is
// resumed by a later finish signal.
func TestSaga_ResumeAfterExhaustedRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roundID, _ := seedRound(t, env, "tab-a", "tab-b")

	_, err := env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)

	env.store.releaseErr = errors.New("store down")

	res, err := env.completion.MarkFinished(ctx, roundID, "tab-b")
	require.NoError(t, err)
	require.True(t, res.RoundCompleted, "completion holds even when cleanup lags")
	require.EqualValues(t, 0, env.store.effectiveReleases)

	// Store recovers; a repeat signal resumes the cleanup
	env.store.releaseErr = nil

	res, err = env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)
	require.True(t, res.RoundCompleted)
	require.EqualValues(t, 2, env.store.effectiveReleases)

	leases, err := env.store.ListLeases(ctx, roundID)
	require.NoError(t, err)
	require.Empty(t, leases)
}

// Writes racing the barrier: once the round completes, upserts are
// rejected with RoundClosed.
func TestUpsertAfterCompletionRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roundID, parts := seedRound(t, env, "tab-a")

	_, err := env.ledger.UpsertScore(ctx, &UpsertScoreRequest{
		RoundID:       roundID,
		ParticipantID: parts[0].ParticipantID,
		Unit:          1,
		Value:         4,
		RecordedBy:    "tab-a",
	})
	require.NoError(t, err)

	_, err = env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)

	_, err = env.ledger.UpsertScore(ctx, &UpsertScoreRequest{
		RoundID:       roundID,
		ParticipantID: parts[0].ParticipantID,
		Unit:          2,
		Value:         5,
		RecordedBy:    "tab-a",
	})
	require.ErrorIs(t, err, models.ErrRoundClosed)
}

func TestMarkFinished_SetsFinishedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	roundID, _ := seedRound(t, env, "tab-a", "tab-b")

	before := time.Now().Add(-time.Second)
	_, err := env.completion.MarkFinished(ctx, roundID, "tab-a")
	require.NoError(t, err)

	status, err := env.rounds.GetStatus(ctx, roundID)
	require.NoError(t, err)
	require.False(t, status.AllFinished)

	for _, d := range status.Devices {
		if d.DeviceID == "tab-a" {
			require.True(t, d.Finished)
			require.NotNil(t, d.FinishedAt)
			require.True(t, d.FinishedAt.After(before))
		} else {
			require.False(t, d.Finished)
			require.Nil(t, d.FinishedAt)
		}
	}
}
