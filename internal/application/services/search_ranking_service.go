package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/searchforge/relevance/internal/domain/entities"
)

// RankingWeights are the tunable multiplier weights. A running ranking
// experiment may override them per request.
type RankingWeights struct {
	ClickBoostWeight float64 `json:"click_boost_weight"`
	FreshnessWeight  float64 `json:"freshness_weight"`
}

// SearchRankingService re-scores backend hits using click boosts, entity
// type boosts, freshness, and intent hints.
type SearchRankingService struct {
	clickBoosts         *ClickBoostService
	flags               *FeatureFlags
	weights             RankingWeights
	entityBoostFactors  map[string]float64
	freshnessWindowDays float64
	now                 func() time.Time
}

// NewSearchRankingService creates a ranking service.
func NewSearchRankingService(clickBoosts *ClickBoostService, flags *FeatureFlags, weights RankingWeights, entityBoostFactors map[string]float64, freshnessWindowDays int) *SearchRankingService {
	if freshnessWindowDays <= 0 {
		freshnessWindowDays = 90
	}
	return &SearchRankingService{
		clickBoosts:         clickBoosts,
		flags:               flags,
		weights:             weights,
		entityBoostFactors:  entityBoostFactors,
		freshnessWindowDays: float64(freshnessWindowDays),
		now:                 time.Now,
	}
}

// Rank re-scores and re-orders hits. Each multiplier is neutral when its
// feature flag is disabled, so ranking degrades additively, never fatally.
func (s *SearchRankingService) Rank(ctx context.Context, hits []*entities.SearchHit, intent *entities.QueryIntent, weights RankingWeights) []entities.ScoredHit {
	if len(hits) == 0 {
		return nil
	}

	boostRecent := intent != nil && intent.Adjustments != nil && intent.Adjustments.BoostRecent

	boosts := s.lookupClickBoosts(ctx, hits)

	scored := make([]entities.ScoredHit, len(hits))
	for i, hit := range hits {
		score, breakdown := s.score(hit, boosts[hit.Document.ID], weights, boostRecent)
		scored[i] = entities.ScoredHit{
			Hit:            hit,
			Score:          score,
			ScoreBreakdown: breakdown,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}

func (s *SearchRankingService) lookupClickBoosts(ctx context.Context, hits []*entities.SearchHit) map[string]float64 {
	if s.clickBoosts == nil || !s.flags.ClickBoostEnabled() {
		return nil
	}

	// One batch query per entity type present in the results.
	byType := make(map[string][]string)
	for _, hit := range hits {
		byType[hit.Document.EntityType] = append(byType[hit.Document.EntityType], hit.Document.ID)
	}

	boosts := make(map[string]float64, len(hits))
	for entityType, ids := range byType {
		for id, boost := range s.clickBoosts.GetClickBoosts(ctx, entityType, ids) {
			boosts[id] = boost
		}
	}
	return boosts
}

// score computes base * (1 + clickBoost*w) * entityBoost * (1 + freshness*w).
func (s *SearchRankingService) score(hit *entities.SearchHit, clickBoost float64, weights RankingWeights, boostRecent bool) (float64, map[string]float64) {
	breakdown := map[string]float64{"base": hit.BaseScore}
	score := hit.BaseScore

	clickMultiplier := 1.0
	if s.flags.ClickBoostEnabled() {
		clickMultiplier = 1 + clickBoost*weights.ClickBoostWeight
	}
	breakdown["click_multiplier"] = clickMultiplier
	score *= clickMultiplier

	entityBoost := 1.0
	if s.flags.EntityBoostEnabled() {
		if factor, ok := s.entityBoostFactors[hit.Document.EntityType]; ok && factor > 0 {
			entityBoost = factor
		}
	}
	breakdown["entity_boost"] = entityBoost
	score *= entityBoost

	freshnessMultiplier := 1.0
	if s.flags.FreshnessEnabled() || boostRecent {
		freshnessMultiplier = 1 + s.freshness(hit.Document)*weights.FreshnessWeight
	}
	breakdown["freshness_multiplier"] = freshnessMultiplier
	score *= freshnessMultiplier

	return score, breakdown
}

// freshness decays from 1 toward 0 as the document ages.
func (s *SearchRankingService) freshness(doc *entities.Document) float64 {
	if doc.UpdatedAt.IsZero() {
		return 0
	}
	ageDays := s.now().Sub(doc.UpdatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / s.freshnessWindowDays)
}
