package container

import (
	"github.com/fairwaylink/scorecard/cmd/scorecard/service"
	"github.com/fairwaylink/scorecard/common/bootstrap"
	"github.com/fairwaylink/scorecard/common/cache"
	"github.com/fairwaylink/scorecard/common/ratelimit"
	"github.com/fairwaylink/scorecard/common/registry"
	"github.com/fairwaylink/scorecard/common/repository"
	"github.com/fairwaylink/scorecard/common/rules"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Repositories
	RoundRepo       *repository.RoundRepository
	DeviceRepo      *repository.DeviceRepository
	ParticipantRepo *repository.ParticipantRepository
	ScoreRepo       *repository.ScoreRepository
	LeaseRepo       *repository.LeaseRepository
	AssignmentRepo  *repository.AssignmentRepository

	// Shared infrastructure
	Registry    registry.Client
	Rules       *rules.Evaluator
	ConfigCache *cache.RoundConfigCache
	RateLimiter *ratelimit.RateLimiter

	// Services
	RoundService      *service.RoundService
	LedgerService     *service.LedgerService
	CompletionService *service.CompletionService
	RankingService    *service.RankingService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	roundRepo := repository.NewRoundRepository(components.DB)
	deviceRepo := repository.NewDeviceRepository(components.DB)
	participantRepo := repository.NewParticipantRepository(components.DB)
	scoreRepo := repository.NewScoreRepository(components.DB)
	leaseRepo := repository.NewLeaseRepository(components.DB)
	assignmentRepo := repository.NewAssignmentRepository(components.DB)

	reg := registry.NewHTTPClient(
		components.Config.Registry.BaseURL,
		components.Config.Registry.Timeout,
		components.Logger,
	)

	evaluator := rules.NewEvaluator()

	// A zero TTL makes every lookup a miss, which is how the cache is
	// switched off without a second code path
	cacheTTL := components.Config.Cache.DefaultTTL
	if !components.Config.Cache.Enabled {
		cacheTTL = 0
	}
	configCache := cache.New(cacheTTL)

	rateLimiter := ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)

	roundService := service.NewRoundService(&service.RoundServiceOpts{
		Rounds:  roundRepo,
		Devices: deviceRepo,
		Rules:   evaluator,
		Logger:  components.Logger,
	})

	ledgerService := service.NewLedgerService(&service.LedgerServiceOpts{
		Rounds:  roundRepo,
		Devices: deviceRepo,
		Parts:   participantRepo,
		Scores:  scoreRepo,
		Rules:   evaluator,
		Config:  configCache,
		Bus:     components.Redis,
		Logger:  components.Logger,
	})

	completionService := service.NewCompletionService(&service.CompletionServiceOpts{
		Rounds:      roundRepo,
		Devices:     deviceRepo,
		Parts:       participantRepo,
		Leases:      leaseRepo,
		Assignments: assignmentRepo,
		Registry:    reg,
		Config:      configCache,
		Bus:         components.Redis,
		Logger:      components.Logger,
	})

	rankingService := service.NewRankingService(roundRepo, participantRepo, scoreRepo, components.Logger)

	return &Container{
		Components:        components,
		RoundRepo:         roundRepo,
		DeviceRepo:        deviceRepo,
		ParticipantRepo:   participantRepo,
		ScoreRepo:         scoreRepo,
		LeaseRepo:         leaseRepo,
		AssignmentRepo:    assignmentRepo,
		Registry:          reg,
		Rules:             evaluator,
		ConfigCache:       configCache,
		RateLimiter:       rateLimiter,
		RoundService:      roundService,
		LedgerService:     ledgerService,
		CompletionService: completionService,
		RankingService:    rankingService,
	}, nil
}
