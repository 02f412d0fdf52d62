package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearchRepo struct {
	hits   []*entities.SearchHit
	err    error
	params []repositories.SearchParams
}

func (r *stubSearchRepo) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.SearchHit, error) {
	r.params = append(r.params, params)
	if r.err != nil {
		return nil, r.err
	}
	return r.hits, nil
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
	err   error
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.items[key], nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.items[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memCache) DeletePattern(ctx context.Context, pattern string) error { return nil }

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok, nil
}

type searchPipeline struct {
	svc       *SearchService
	repo      *stubSearchRepo
	cache     *memCache
	history   *stubHistoryRepo
	expRepo   *memExperimentRepo
	synonyms  *SynonymExpansionService
	expConfig *ExperimentService
}

func newSearchPipeline(t *testing.T, hits []*entities.SearchHit, rankingExperiment string) *searchPipeline {
	t.Helper()

	repo := &stubSearchRepo{hits: hits}
	cache := newMemCache()
	history := &stubHistoryRepo{}
	expRepo := newMemExperimentRepo()
	experiments := newTestExperimentService(expRepo)

	synonyms := NewSynonymExpansionService()
	synonyms.AddGroup([]string{"laptop", "notebook"}, "laptop")

	flags := NewFeatureFlagsStatic(true, true, true, true)
	clickBoost := NewClickBoostService(history, DefaultClickBoostConfig())
	weights := RankingWeights{ClickBoostWeight: 0.5, FreshnessWeight: 0.2}
	ranking := NewSearchRankingService(clickBoost, flags, weights, nil, 90)

	svc := NewSearchService(SearchServiceDeps{
		Parser:            NewQueryParserService(),
		Intents:           NewIntentClassificationService(0.3, entities.IntentInformational),
		Synonyms:          synonyms,
		Ranking:           ranking,
		Analytics:         NewSearchAnalyticsService(history, experiments),
		Experiments:       experiments,
		SearchRepo:        repo,
		Cache:             cache,
		Flags:             flags,
		DefaultWeights:    weights,
		DefaultLimit:      10,
		CacheSeconds:      60,
		RankingExperiment: rankingExperiment,
	})

	return &searchPipeline{
		svc: svc, repo: repo, cache: cache, history: history,
		expRepo: expRepo, synonyms: synonyms, expConfig: experiments,
	}
}

func TestSearch_PipelineEndToEnd(t *testing.T) {
	hits := []*entities.SearchHit{
		testHit("low", "article", 1.0),
		testHit("high", "article", 2.0),
	}
	p := newSearchPipeline(t, hits, "")

	resp, err := p.svc.Search(context.Background(), SearchRequest{
		Query: `status:active what is a laptop`,
	})
	require.NoError(t, err)

	require.Len(t, resp.Hits, 2)
	assert.Equal(t, "high", resp.Hits[0].Hit.Document.ID)
	assert.Equal(t, 2, resp.Total)
	assert.False(t, resp.CacheHit)

	require.NotNil(t, resp.Intent)
	assert.Equal(t, entities.IntentInformational, resp.Intent.Type)

	// Field filters never leak into the backend text query, and the
	// informational intent enables synonym expansion.
	require.Len(t, p.repo.params, 1)
	params := p.repo.params[0]
	assert.NotContains(t, params.Query, "status:")
	assert.Contains(t, params.Query, "(laptop OR notebook)")
	assert.Equal(t, []string{"active"}, params.FieldFilters.Get("status"))
}

func TestSearch_SecondCallServedFromCache(t *testing.T) {
	p := newSearchPipeline(t, []*entities.SearchHit{testHit("a", "article", 1.0)}, "")
	ctx := context.Background()
	req := SearchRequest{Query: "cached thing"}

	first, err := p.svc.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := p.svc.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Total, second.Total)

	assert.Len(t, p.repo.params, 1, "backend hit exactly once")
}

func TestSearch_BackendErrorPropagates(t *testing.T) {
	p := newSearchPipeline(t, nil, "")
	p.repo.err = errors.New("typesense unavailable")

	_, err := p.svc.Search(context.Background(), SearchRequest{Query: "anything"})
	assert.Error(t, err)
}

func TestSearch_CacheFailureIsInvisible(t *testing.T) {
	p := newSearchPipeline(t, []*entities.SearchHit{testHit("a", "article", 1.0)}, "")
	p.cache.err = errors.New("redis down")

	resp, err := p.svc.Search(context.Background(), SearchRequest{Query: "resilient"})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 1)
}

func TestSearch_NavigationalIntentCapsLimit(t *testing.T) {
	p := newSearchPipeline(t, nil, "")

	_, err := p.svc.Search(context.Background(), SearchRequest{
		Query: "github login",
		Limit: 50,
	})
	require.NoError(t, err)

	require.Len(t, p.repo.params, 1)
	assert.Equal(t, 5, p.repo.params[0].Limit, "navigational queries want few precise results")
	assert.True(t, p.repo.params[0].ExactMatch, "navigational queries disable typo tolerance")
}

func TestSearch_TransactionalIntentForcesActiveOnly(t *testing.T) {
	p := newSearchPipeline(t, nil, "")

	_, err := p.svc.Search(context.Background(), SearchRequest{
		Query: "buy cheap laptop price",
	})
	require.NoError(t, err)

	require.Len(t, p.repo.params, 1)
	assert.True(t, p.repo.params[0].ActiveOnly)
}

func TestSearch_ExperimentVariantOverridesWeights(t *testing.T) {
	hits := []*entities.SearchHit{testHit("a", "article", 1.0)}
	p := newSearchPipeline(t, hits, "ranking-weights")

	exp := &entities.Experiment{
		Name: "ranking-weights",
		Variants: map[string]json.RawMessage{
			"control":   json.RawMessage(`{"click_boost_weight":0.5,"freshness_weight":0.2}`),
			"treatment": json.RawMessage(`{"click_boost_weight":1.0,"freshness_weight":0.2}`),
		},
		TrafficPercentage: 100,
		PrimaryMetric:     "click",
	}
	require.NoError(t, p.expConfig.Create(context.Background(), exp))
	require.NoError(t, p.expConfig.Start(context.Background(), "ranking-weights"))

	resp, err := p.svc.Search(context.Background(), SearchRequest{
		Query:  "some query",
		UserID: "user-42",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Variant)
	assert.Len(t, p.expRepo.assignments, 1)

	// The same user keeps the same variant on every search.
	again, err := p.svc.Search(context.Background(), SearchRequest{
		Query:  "another query",
		UserID: "user-42",
	})
	require.NoError(t, err)
	assert.Equal(t, resp.Variant, again.Variant)
	assert.Len(t, p.expRepo.assignments, 1)
}

func TestSearch_ExperimentFailureFallsBackToDefaults(t *testing.T) {
	// The named experiment does not exist; search must still work.
	p := newSearchPipeline(t, []*entities.SearchHit{testHit("a", "article", 1.0)}, "ghost-experiment")

	resp, err := p.svc.Search(context.Background(), SearchRequest{
		Query:  "robust query",
		UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Variant)
	assert.Len(t, resp.Hits, 1)
}

func TestSearch_TracksAnalyticsEvent(t *testing.T) {
	p := newSearchPipeline(t, []*entities.SearchHit{testHit("a", "article", 1.0)}, "")

	_, err := p.svc.Search(context.Background(), SearchRequest{
		Query:     "how to configure dns",
		SessionID: "sess-1",
	})
	require.NoError(t, err)

	// TrackSearch is fire-and-forget; give the goroutine a moment.
	require.Eventually(t, func() bool {
		return len(p.history.loggedEvents()) == 1
	}, time.Second, 10*time.Millisecond)

	event := p.history.loggedEvents()[0]
	assert.Equal(t, "how to configure dns", event.Query)
	assert.Equal(t, string(entities.IntentInformational), event.DetectedIntent)
	assert.Equal(t, 1, event.ResultCount)
	assert.Equal(t, "sess-1", event.SessionID)
}
