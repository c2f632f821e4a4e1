package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fairwaylink/scorecard/common/cache"
	"github.com/fairwaylink/scorecard/common/logger"
	"github.com/fairwaylink/scorecard/common/models"
	rediscommon "github.com/fairwaylink/scorecard/common/redis"
	"github.com/fairwaylink/scorecard/common/registry"
	"github.com/fairwaylink/scorecard/common/rules"
)

// memStore is an in-memory stand-in for the pgx repositories. Its
// conditional operations (TryComplete, monotonic MarkFinished, the
// open-guarded score upsert) are atomic under one mutex, mirroring the
// single-statement semantics of the SQL they fake.
type memStore struct {
	mu sync.Mutex

	rounds      map[uuid.UUID]*models.Round
	devices     map[uuid.UUID]map[string]*models.DeviceProgress
	parts       map[uuid.UUID]map[uuid.UUID]*models.Participant
	scores      map[uuid.UUID]map[scoreKey]*models.ScoreEntry
	leases      map[string]*models.EquipmentLease
	assignments map[uuid.UUID]*models.DeviceAssignment

	// Failure injection and effect counters for saga tests
	releaseErr        error
	releaseErrOnce    bool
	completeWins      int
	effectiveReleases int64
	effectiveDeletes  int64
}

type scoreKey struct {
	participantID uuid.UUID
	unit          int
}

func newMemStore() *memStore {
	return &memStore{
		rounds:      make(map[uuid.UUID]*models.Round),
		devices:     make(map[uuid.UUID]map[string]*models.DeviceProgress),
		parts:       make(map[uuid.UUID]map[uuid.UUID]*models.Participant),
		scores:      make(map[uuid.UUID]map[scoreKey]*models.ScoreEntry),
		leases:      make(map[string]*models.EquipmentLease),
		assignments: make(map[uuid.UUID]*models.DeviceAssignment),
	}
}

// RoundStore

func (m *memStore) Create(ctx context.Context, round *models.Round, devices []models.DeviceAssignment, participants []models.Participant, equipment []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Availability check before any write, so a rejected create mutates
	// nothing, like the SQL transaction rolling back
	for _, tag := range equipment {
		if l, ok := m.leases[tag]; ok && l.Status == models.LeaseAssigned {
			return fmt.Errorf("%w: %s", models.ErrEquipmentUnavailable, tag)
		}
	}

	cp := *round
	m.rounds[round.RoundID] = &cp

	m.devices[round.RoundID] = make(map[string]*models.DeviceProgress)
	for _, d := range devices {
		m.devices[round.RoundID][d.DeviceID] = &models.DeviceProgress{
			RoundID:     round.RoundID,
			DeviceID:    d.DeviceID,
			CurrentUnit: round.StartUnit,
		}
		acp := d
		m.assignments[d.AssignmentID] = &acp
	}

	m.parts[round.RoundID] = make(map[uuid.UUID]*models.Participant)
	for _, p := range participants {
		pcp := p
		m.parts[round.RoundID][p.ParticipantID] = &pcp
	}

	m.scores[round.RoundID] = make(map[scoreKey]*models.ScoreEntry)

	for _, tag := range equipment {
		rid := round.RoundID
		m.leases[tag] = &models.EquipmentLease{
			LeaseID:      uuid.New(),
			EquipmentTag: tag,
			Status:       models.LeaseAssigned,
			RoundID:      &rid,
		}
	}
	return nil
}

func (m *memStore) GetByID(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	round, ok := m.rounds[roundID]
	if !ok {
		return nil, models.ErrRoundNotFound
	}
	cp := *round
	return &cp, nil
}

func (m *memStore) TryComplete(ctx context.Context, roundID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	round, ok := m.rounds[roundID]
	if !ok {
		return false, models.ErrRoundNotFound
	}
	if round.State != models.RoundOpen {
		return false, nil
	}
	for _, d := range m.devices[roundID] {
		if !d.Finished {
			return false, nil
		}
	}

	round.State = models.RoundCompleted
	round.CompletedAt = &at
	m.completeWins++
	return true, nil
}

// DeviceStore

func (m *memStore) Get(ctx context.Context, roundID uuid.UUID, deviceID string) (*models.DeviceProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[roundID][deviceID]
	if !ok {
		return nil, models.ErrUnknownDevice
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.DeviceProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.DeviceProgress
	for _, d := range m.devices[roundID] {
		out = append(out, *d)
	}
	return out, nil
}

func (m *memStore) MarkFinished(ctx context.Context, roundID uuid.UUID, deviceID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[roundID][deviceID]
	if !ok {
		return false, models.ErrUnknownDevice
	}
	if d.Finished {
		return false, nil
	}
	d.Finished = true
	d.FinishedAt = &at
	return true, nil
}

func (m *memStore) PendingCount(ctx context.Context, roundID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, d := range m.devices[roundID] {
		if !d.Finished {
			count++
		}
	}
	return count, nil
}

func (m *memStore) SetCurrentUnit(ctx context.Context, roundID uuid.UUID, deviceID string, unit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[roundID][deviceID]
	if !ok {
		return models.ErrUnknownDevice
	}
	d.CurrentUnit = unit
	return nil
}

// ParticipantStore

func (m *memStore) GetParticipant(ctx context.Context, roundID, participantID uuid.UUID) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parts[roundID][participantID]
	if !ok {
		return nil, models.ErrUnknownParticipant
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListParticipants(ctx context.Context, roundID uuid.UUID) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Participant
	for _, p := range m.parts[roundID] {
		out = append(out, *p)
	}
	return out, nil
}

// ScoreStore

func (m *memStore) Upsert(ctx context.Context, entry *models.ScoreEntry) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	round, ok := m.rounds[entry.RoundID]
	if !ok || round.State != models.RoundOpen {
		return uuid.Nil, models.ErrRoundClosed
	}

	key := scoreKey{participantID: entry.ParticipantID, unit: entry.Unit}
	if prev, exists := m.scores[entry.RoundID][key]; exists {
		// Overwrite keeps the original entry id, like the SQL upsert
		cp := *entry
		cp.EntryID = prev.EntryID
		m.scores[entry.RoundID][key] = &cp
		return prev.EntryID, nil
	}

	cp := *entry
	m.scores[entry.RoundID][key] = &cp
	return entry.EntryID, nil
}

func (m *memStore) ListScores(ctx context.Context, roundID uuid.UUID) ([]models.ScoreEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ScoreEntry
	for _, e := range m.scores[roundID] {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) ListByParticipant(ctx context.Context, roundID, participantID uuid.UUID) ([]models.ScoreEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ScoreEntry
	for _, e := range m.scores[roundID] {
		if e.ParticipantID == participantID {
			out = append(out, *e)
		}
	}
	sortByUnit(out)
	return out, nil
}

func (m *memStore) AggregateRange(ctx context.Context, roundID, participantID uuid.UUID, unitLow, unitHigh int) (models.RangeAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := models.RangeAggregate{}
	for _, e := range m.scores[roundID] {
		if e.ParticipantID == participantID && e.Unit >= unitLow && e.Unit <= unitHigh {
			agg.Sum += e.Value
			agg.HasData = true
		}
	}
	return agg, nil
}

// LeaseStore

func (m *memStore) ListLeases(ctx context.Context, roundID uuid.UUID) ([]models.EquipmentLease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.EquipmentLease
	for _, l := range m.leases {
		if l.RoundID != nil && *l.RoundID == roundID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memStore) ReleaseByRound(ctx context.Context, roundID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.releaseErr != nil {
		err := m.releaseErr
		if m.releaseErrOnce {
			m.releaseErr = nil
		}
		return 0, err
	}

	var released int64
	for _, l := range m.leases {
		if l.RoundID != nil && *l.RoundID == roundID {
			l.RoundID = nil
			l.Status = models.LeaseAvailable
			released++
		}
	}
	m.effectiveReleases += released
	return released, nil
}

// AssignmentStore

func (m *memStore) DeleteByRound(ctx context.Context, roundID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, a := range m.assignments {
		if a.RoundID == roundID {
			delete(m.assignments, id)
			deleted++
		}
	}
	m.effectiveDeletes += deleted
	return deleted, nil
}

func sortByUnit(entries []models.ScoreEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Unit < entries[j-1].Unit; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Adapters renaming memStore methods onto the store interfaces where
// names collide (Create, Get, ListByRound).

type fakeParts struct{ *memStore }

func (f fakeParts) Get(ctx context.Context, roundID, participantID uuid.UUID) (*models.Participant, error) {
	return f.GetParticipant(ctx, roundID, participantID)
}

func (f fakeParts) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Participant, error) {
	return f.ListParticipants(ctx, roundID)
}

type fakeScores struct{ *memStore }

func (f fakeScores) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.ScoreEntry, error) {
	return f.ListScores(ctx, roundID)
}

type fakeLeases struct{ *memStore }

func (f fakeLeases) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.EquipmentLease, error) {
	return f.ListLeases(ctx, roundID)
}

// newTestBus spins up a miniredis-backed EventBus
func newTestBus(t *testing.T) EventBus {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return rediscommon.NewClient(rdb, testLogger())
}

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func testEvaluator() *rules.Evaluator {
	return rules.NewEvaluator()
}

func testCache(t *testing.T) *cache.RoundConfigCache {
	t.Helper()

	c := cache.New(time.Minute)
	t.Cleanup(c.Stop)
	return c
}

// testEnv wires every service over one shared memStore
type testEnv struct {
	store      *memStore
	reg        *registry.Memory
	bus        EventBus
	rounds     *RoundService
	ledger     *LedgerService
	completion *CompletionService
	ranking    *RankingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	reg := registry.NewMemory()
	bus := newTestBus(t)
	log := testLogger()
	eval := testEvaluator()
	cfg := testCache(t)

	return &testEnv{
		store: store,
		reg:   reg,
		bus:   bus,
		rounds: NewRoundService(&RoundServiceOpts{
			Rounds:  store,
			Devices: store,
			Rules:   eval,
			Logger:  log,
		}),
		ledger: NewLedgerService(&LedgerServiceOpts{
			Rounds:  store,
			Devices: store,
			Parts:   fakeParts{store},
			Scores:  fakeScores{store},
			Rules:   eval,
			Config:  cfg,
			Bus:     bus,
			Logger:  log,
		}),
		completion: NewCompletionService(&CompletionServiceOpts{
			Rounds:      store,
			Devices:     store,
			Parts:       fakeParts{store},
			Leases:      fakeLeases{store},
			Assignments: store,
			Registry:    reg,
			Config:      cfg,
			Bus:         bus,
			Logger:      log,
		}),
		ranking: NewRankingService(store, fakeParts{store}, fakeScores{store}, log),
	}
}
