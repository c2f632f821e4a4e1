package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/fairwaylink/scorecard/common/logger"
	"github.com/fairwaylink/scorecard/common/models"
)

// RankingService converts the ledger into ordered standings
type RankingService struct {
	rounds RoundStore
	parts  ParticipantStore
	scores ScoreStore
	log    *logger.Logger
}

// NewRankingService creates a new ranking service
func NewRankingService(rounds RoundStore, parts ParticipantStore, scores ScoreStore, log *logger.Logger) *RankingService {
	return &RankingService{
		rounds: rounds,
		parts:  parts,
		scores: scores,
		log:    log,
	}
}

// Rank computes the standings for a round.
//
// Policy: lower total is better (stroke play). A participant with no
// completed units is unranked: position 0, sorted below everyone with
// at least one unit. Equal totals share a position and the next
// distinct total resumes at its sorted index + 1 (competition
// ranking). Partial totals are the literal sum of recorded units, no
// pro-rating.
func (s *RankingService) Rank(ctx context.Context, roundID uuid.UUID) ([]models.Standing, error) {
	if _, err := s.rounds.GetByID(ctx, roundID); err != nil {
		return nil, err
	}

	participants, err := s.parts.ListByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	entries, err := s.scores.ListByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	totals := make(map[uuid.UUID]int, len(participants))
	units := make(map[uuid.UUID]int, len(participants))
	for _, e := range entries {
		totals[e.ParticipantID] += e.Value
		units[e.ParticipantID]++
	}

	var ranked, unranked []models.Standing
	for _, p := range participants {
		st := models.Standing{
			ParticipantID:  p.ParticipantID,
			DisplayName:    p.DisplayName,
			Total:          totals[p.ParticipantID],
			UnitsCompleted: units[p.ParticipantID],
		}
		if st.UnitsCompleted == 0 {
			unranked = append(unranked, st)
		} else {
			ranked = append(ranked, st)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total < ranked[j].Total
		}
		return ranked[i].DisplayName < ranked[j].DisplayName
	})
	sort.Slice(unranked, func(i, j int) bool {
		return unranked[i].DisplayName < unranked[j].DisplayName
	})

	for i := range ranked {
		if i > 0 && ranked[i].Total == ranked[i-1].Total {
			ranked[i].Position = ranked[i-1].Position
		} else {
			ranked[i].Position = i + 1
		}
	}
	// Unranked keep position 0

	return append(ranked, unranked...), nil
}
