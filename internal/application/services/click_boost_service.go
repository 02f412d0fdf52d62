package services

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/repositories"
)

// ClickBoostConfig tunes how click telemetry is turned into a multiplier.
type ClickBoostConfig struct {
	// WindowDays is the trailing window clicks are aggregated over
	WindowDays int
	// DecayWindowDays controls exponential decay since the last click
	DecayWindowDays int
	// MinClicksForBoost gates entities with too little evidence
	MinClicksForBoost int
}

// DefaultClickBoostConfig mirrors the production tuning.
func DefaultClickBoostConfig() ClickBoostConfig {
	return ClickBoostConfig{
		WindowDays:        30,
		DecayWindowDays:   14,
		MinClicksForBoost: 3,
	}
}

// ClickBoostService derives a bounded ranking multiplier from historical
// click telemetry. Missing history is "no signal", never an error.
type ClickBoostService struct {
	repo repositories.SearchHistoryRepository
	cfg  ClickBoostConfig
	now  func() time.Time
}

// NewClickBoostService creates a click boost service over the history store.
func NewClickBoostService(repo repositories.SearchHistoryRepository, cfg ClickBoostConfig) *ClickBoostService {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.DecayWindowDays <= 0 {
		cfg.DecayWindowDays = 14
	}
	return &ClickBoostService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// GetClickBoost computes the boost for one entity. Failures and missing
// data both yield 0: click boosting is additive and fail-open.
func (s *ClickBoostService) GetClickBoost(ctx context.Context, entityType, entityID string) float64 {
	window := time.Duration(s.cfg.WindowDays) * 24 * time.Hour
	signal, err := s.repo.GetClickStats(ctx, entityType, entityID, window)
	if err != nil {
		log.Warn().Err(err).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("click stats lookup failed, using zero boost")
		return 0
	}
	return s.BoostFromSignal(signal)
}

// GetClickBoosts computes boosts for many entities in one aggregate
// query, keyed by entity id. Entities without history are omitted.
func (s *ClickBoostService) GetClickBoosts(ctx context.Context, entityType string, entityIDs []string) map[string]float64 {
	boosts := make(map[string]float64, len(entityIDs))
	if len(entityIDs) == 0 {
		return boosts
	}

	window := time.Duration(s.cfg.WindowDays) * 24 * time.Hour
	signals, err := s.repo.GetClickStatsBatch(ctx, entityType, entityIDs, window)
	if err != nil {
		log.Warn().Err(err).
			Str("entity_type", entityType).
			Int("entities", len(entityIDs)).
			Msg("batch click stats lookup failed, using zero boosts")
		return boosts
	}

	for id, signal := range signals {
		if boost := s.BoostFromSignal(signal); boost > 0 {
			boosts[id] = boost
		}
	}
	return boosts
}

// BoostFromSignal turns an aggregated signal into a boost in [0, 1]:
//
//	min(ctr*2, 1) * 1/(1+ln(1+avg_position)) * exp(-days_since_click/decay_window)
//
// The ctr contribution is capped, entities already ranking near the top
// are discounted, and stale clicks decay exponentially.
func (s *ClickBoostService) BoostFromSignal(signal *entities.ClickSignal) float64 {
	if signal == nil || signal.TotalClicks < s.cfg.MinClicksForBoost {
		return 0
	}

	ctrComponent := signal.CTR() * 2
	if ctrComponent > 1 {
		ctrComponent = 1
	}

	positionDiscount := 1 / (1 + math.Log(1+signal.AvgClickPosition))

	boost := ctrComponent * positionDiscount

	if !signal.LastClicked.IsZero() {
		daysSince := s.now().Sub(signal.LastClicked).Hours() / 24
		if daysSince < 0 {
			daysSince = 0
		}
		boost *= math.Exp(-daysSince / float64(s.cfg.DecayWindowDays))
	}

	if boost < 0 {
		return 0
	}
	if boost > 1 {
		return 1
	}
	return boost
}
