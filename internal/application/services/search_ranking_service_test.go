package services

import (
	"context"
	"testing"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHit(id, entityType string, base float64) *entities.SearchHit {
	return &entities.SearchHit{
		Document: &entities.Document{
			ID:         id,
			EntityType: entityType,
			IsActive:   true,
		},
		BaseScore: base,
	}
}

func newTestRanking(signals map[string]*entities.ClickSignal, flags *FeatureFlags) *SearchRankingService {
	weights := RankingWeights{ClickBoostWeight: 0.5, FreshnessWeight: 0.2}
	factors := map[string]float64{"article": 1.2, "product": 1.0}
	svc := NewSearchRankingService(newTestClickBoost(signals), flags, weights, factors, 90)
	svc.now = fixedNow
	return svc
}

func TestRank_AllFlagsOffPreservesBaseOrder(t *testing.T) {
	signals := map[string]*entities.ClickSignal{
		"b": {TotalClicks: 50, UniqueSearches: 60, AvgClickPosition: 1, LastClicked: fixedNow()},
	}
	svc := newTestRanking(signals, NewFeatureFlagsStatic(false, false, false, false))

	hits := []*entities.SearchHit{
		testHit("a", "article", 3.0),
		testHit("b", "article", 2.0),
	}
	scored := svc.Rank(context.Background(), hits, nil, svc.weights)

	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].Hit.Document.ID)
	assert.Equal(t, 3.0, scored[0].Score)
	assert.Equal(t, 2.0, scored[1].Score)
}

func TestRank_ClickBoostReordersHits(t *testing.T) {
	signals := map[string]*entities.ClickSignal{
		"popular": {TotalClicks: 50, UniqueSearches: 60, AvgClickPosition: 1, LastClicked: fixedNow()},
	}
	svc := newTestRanking(signals, NewFeatureFlagsStatic(true, false, false, true))

	hits := []*entities.SearchHit{
		testHit("plain", "article", 2.0),
		testHit("popular", "article", 1.9),
	}
	scored := svc.Rank(context.Background(), hits, nil, svc.weights)

	require.Len(t, scored, 2)
	assert.Equal(t, "popular", scored[0].Hit.Document.ID)
	assert.Greater(t, scored[0].ScoreBreakdown["click_multiplier"], 1.0)
	assert.Equal(t, 1.0, scored[1].ScoreBreakdown["click_multiplier"])
}

func TestRank_EntityBoostFactor(t *testing.T) {
	svc := newTestRanking(nil, NewFeatureFlagsStatic(false, true, false, true))

	hits := []*entities.SearchHit{
		testHit("p1", "product", 1.0),
		testHit("a1", "article", 1.0),
	}
	scored := svc.Rank(context.Background(), hits, nil, svc.weights)

	require.Len(t, scored, 2)
	assert.Equal(t, "a1", scored[0].Hit.Document.ID)
	assert.InDelta(t, 1.2, scored[0].Score, 1e-9)
	assert.Equal(t, 1.2, scored[0].ScoreBreakdown["entity_boost"])
	assert.Equal(t, 1.0, scored[1].ScoreBreakdown["entity_boost"])
}

func TestRank_UnknownEntityTypeIsNeutral(t *testing.T) {
	svc := newTestRanking(nil, NewFeatureFlagsStatic(false, true, false, true))

	scored := svc.Rank(context.Background(), []*entities.SearchHit{testHit("x", "comment", 1.0)}, nil, svc.weights)

	require.Len(t, scored, 1)
	assert.Equal(t, 1.0, scored[0].ScoreBreakdown["entity_boost"])
}

func TestRank_FreshnessPrefersRecentlyUpdated(t *testing.T) {
	svc := newTestRanking(nil, NewFeatureFlagsStatic(false, false, true, true))

	fresh := testHit("fresh", "article", 1.0)
	fresh.Document.UpdatedAt = fixedNow().AddDate(0, 0, -1)
	stale := testHit("stale", "article", 1.0)
	stale.Document.UpdatedAt = fixedNow().AddDate(0, 0, -300)

	scored := svc.Rank(context.Background(), []*entities.SearchHit{stale, fresh}, nil, svc.weights)

	require.Len(t, scored, 2)
	assert.Equal(t, "fresh", scored[0].Hit.Document.ID)
	assert.Greater(t, scored[0].ScoreBreakdown["freshness_multiplier"], scored[1].ScoreBreakdown["freshness_multiplier"])
}

func TestRank_IntentBoostRecentOverridesDisabledFlag(t *testing.T) {
	// Freshness flag off, but the intent asks for recency.
	svc := newTestRanking(nil, NewFeatureFlagsStatic(false, false, false, true))

	hit := testHit("recent", "article", 1.0)
	hit.Document.UpdatedAt = fixedNow()

	intent := &entities.QueryIntent{
		Type: entities.IntentExploratory,
		Adjustments: &entities.RankingAdjustments{
			BoostRecent: true,
		},
	}
	scored := svc.Rank(context.Background(), []*entities.SearchHit{hit}, intent, svc.weights)

	require.Len(t, scored, 1)
	assert.Greater(t, scored[0].ScoreBreakdown["freshness_multiplier"], 1.0)
}

func TestRank_MissingUpdatedAtGetsNoFreshness(t *testing.T) {
	svc := newTestRanking(nil, NewFeatureFlagsStatic(false, false, true, true))

	hit := testHit("no-ts", "article", 1.0)
	scored := svc.Rank(context.Background(), []*entities.SearchHit{hit}, nil, svc.weights)

	require.Len(t, scored, 1)
	assert.Equal(t, 1.0, scored[0].ScoreBreakdown["freshness_multiplier"])
}

func TestRank_VariantWeightsChangeScores(t *testing.T) {
	signals := map[string]*entities.ClickSignal{
		"d": {TotalClicks: 50, UniqueSearches: 60, AvgClickPosition: 1, LastClicked: fixedNow()},
	}
	svc := newTestRanking(signals, NewFeatureFlagsStatic(true, false, false, true))

	hits := []*entities.SearchHit{testHit("d", "article", 1.0)}

	base := svc.Rank(context.Background(), hits, nil, RankingWeights{ClickBoostWeight: 0.5})
	heavy := svc.Rank(context.Background(), hits, nil, RankingWeights{ClickBoostWeight: 1.0})

	require.Len(t, base, 1)
	require.Len(t, heavy, 1)
	assert.Greater(t, heavy[0].Score, base[0].Score)
}

func TestRank_EmptyAndStability(t *testing.T) {
	svc := newTestRanking(nil, NewFeatureFlagsStatic(true, true, true, true))

	assert.Nil(t, svc.Rank(context.Background(), nil, nil, svc.weights))

	// Equal scores keep backend order.
	hits := []*entities.SearchHit{
		testHit("first", "article", 1.0),
		testHit("second", "article", 1.0),
	}
	scored := svc.Rank(context.Background(), hits, nil, svc.weights)
	require.Len(t, scored, 2)
	assert.Equal(t, "first", scored[0].Hit.Document.ID)
	assert.Equal(t, "second", scored[1].Hit.Document.ID)
}

func TestRank_BreakdownContainsAllComponents(t *testing.T) {
	svc := newTestRanking(nil, NewFeatureFlagsStatic(true, true, true, true))

	hit := testHit("x", "article", 2.5)
	hit.Document.UpdatedAt = fixedNow().AddDate(0, 0, -10)

	scored := svc.Rank(context.Background(), []*entities.SearchHit{hit}, nil, svc.weights)
	require.Len(t, scored, 1)

	breakdown := scored[0].ScoreBreakdown
	assert.Equal(t, 2.5, breakdown["base"])
	for _, key := range []string{"click_multiplier", "entity_boost", "freshness_multiplier"} {
		assert.Contains(t, breakdown, key)
	}

	expected := breakdown["base"] * breakdown["click_multiplier"] * breakdown["entity_boost"] * breakdown["freshness_multiplier"]
	assert.InDelta(t, expected, scored[0].Score, 1e-9)
}
