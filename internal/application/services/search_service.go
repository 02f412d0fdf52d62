package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/providers"
	"github.com/searchforge/relevance/internal/domain/repositories"
	"github.com/searchforge/relevance/internal/infrastructure/observability"
)

// SearchRequest is one end-user search.
type SearchRequest struct {
	Query       string   `json:"query"`
	EntityTypes []string `json:"entity_types,omitempty"`
	ActiveOnly  bool     `json:"active_only"`
	Limit       int      `json:"limit"`
	Offset      int      `json:"offset"`
	SessionID   string   `json:"session_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
}

// SearchResponse is the ranked result set plus the relevance metadata
// the caller may want to surface or debug with.
type SearchResponse struct {
	Hits          []entities.ScoredHit  `json:"hits"`
	Total         int                   `json:"total"`
	Query         string                `json:"query"`
	ExpandedQuery string                `json:"expanded_query,omitempty"`
	Intent        *entities.QueryIntent `json:"intent,omitempty"`
	Variant       string                `json:"variant,omitempty"`
	CacheHit      bool                  `json:"cache_hit"`
	TookMs        int                   `json:"took_ms"`
}

// SearchService orchestrates the relevance pipeline: parse, classify,
// expand, search, re-rank, cache, and track. Every enhancement layer is
// additive; only the backend search itself can fail a request.
type SearchService struct {
	parser      *QueryParserService
	intents     *IntentClassificationService
	synonyms    *SynonymExpansionService
	ranking     *SearchRankingService
	analytics   *SearchAnalyticsService
	experiments *ExperimentService
	searchRepo  repositories.DocumentSearchRepository
	cache       providers.CacheProvider
	flags       *FeatureFlags
	metrics     *observability.Metrics

	defaultWeights RankingWeights
	defaultLimit   int
	cacheSeconds   int
	// rankingExperiment names the experiment whose variants carry
	// RankingWeights overrides; empty disables experimentation
	rankingExperiment string

	now func() time.Time
}

// SearchServiceDeps wires the pipeline; cache, analytics, and experiments
// may be nil and their stages are skipped.
type SearchServiceDeps struct {
	Parser      *QueryParserService
	Intents     *IntentClassificationService
	Synonyms    *SynonymExpansionService
	Ranking     *SearchRankingService
	Analytics   *SearchAnalyticsService
	Experiments *ExperimentService
	SearchRepo  repositories.DocumentSearchRepository
	Cache       providers.CacheProvider
	Flags       *FeatureFlags
	Metrics     *observability.Metrics

	DefaultWeights    RankingWeights
	DefaultLimit      int
	CacheSeconds      int
	RankingExperiment string
}

// NewSearchService creates the search pipeline service.
func NewSearchService(deps SearchServiceDeps) *SearchService {
	if deps.DefaultLimit <= 0 {
		deps.DefaultLimit = 10
	}
	if deps.CacheSeconds <= 0 {
		deps.CacheSeconds = 120
	}
	return &SearchService{
		parser:            deps.Parser,
		intents:           deps.Intents,
		synonyms:          deps.Synonyms,
		ranking:           deps.Ranking,
		analytics:         deps.Analytics,
		experiments:       deps.Experiments,
		searchRepo:        deps.SearchRepo,
		cache:             deps.Cache,
		flags:             deps.Flags,
		metrics:           deps.Metrics,
		defaultWeights:    deps.DefaultWeights,
		defaultLimit:      deps.DefaultLimit,
		cacheSeconds:      deps.CacheSeconds,
		rankingExperiment: deps.RankingExperiment,
		now:               time.Now,
	}
}

// Search runs the full pipeline for one request.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	started := s.now()

	if req.Limit <= 0 {
		req.Limit = s.defaultLimit
	}

	parsed := s.parser.Parse(req.Query)
	intent := s.intents.Classify(req.Query)

	if intent.Adjustments != nil && intent.Adjustments.ResultLimit > 0 && req.Limit > intent.Adjustments.ResultLimit {
		req.Limit = intent.Adjustments.ResultLimit
	}

	variant, weights := s.resolveWeights(ctx, req.UserID)

	cacheKey := s.cacheKey(req, variant)
	if cached := s.cachedResponse(ctx, cacheKey); cached != nil {
		cached.CacheHit = true
		cached.TookMs = int(s.now().Sub(started).Milliseconds())
		s.trackSearch(ctx, req, parsed, intent, len(cached.Hits), cached.TookMs)
		if s.metrics != nil {
			observability.RecordSearchMetric(ctx, s.metrics, string(intent.Type), len(cached.Hits), s.now().Sub(started))
		}
		return cached, nil
	}

	textQuery := parsed.NormalizedQuery()
	expandedQuery := ""
	if s.synonyms != nil && s.flags.SynonymsEnabled() && shouldExpand(intent) {
		if expanded := s.synonyms.Expand(textQuery); expanded != textQuery {
			expandedQuery = expanded
			textQuery = expanded
		}
	}

	activeOnly := req.ActiveOnly
	exactMatch := false
	if intent.Adjustments != nil {
		if intent.Adjustments.ActiveOnly {
			activeOnly = true
		}
		exactMatch = intent.Adjustments.SkipFuzzy || intent.Adjustments.ExactMatchPreferred
	}

	hits, err := s.searchRepo.Search(ctx, repositories.SearchParams{
		Query:        textQuery,
		FieldFilters: parsed.FieldFilters,
		RangeFilters: parsed.RangeFilters,
		Exclusions:   parsed.Exclusions,
		ActiveOnly:   activeOnly,
		ExactMatch:   exactMatch,
		Limit:        req.Limit,
		Offset:       req.Offset,
	})
	if err != nil {
		return nil, err
	}

	scored := s.ranking.Rank(ctx, hits, intent, weights)

	resp := &SearchResponse{
		Hits:          scored,
		Total:         len(scored),
		Query:         req.Query,
		ExpandedQuery: expandedQuery,
		Intent:        intent,
		Variant:       variant,
		TookMs:        int(s.now().Sub(started).Milliseconds()),
	}

	s.cacheResponse(ctx, cacheKey, resp)
	s.trackSearch(ctx, req, parsed, intent, len(scored), resp.TookMs)
	if s.metrics != nil {
		observability.RecordSearchMetric(ctx, s.metrics, string(intent.Type), len(scored), s.now().Sub(started))
	}

	return resp, nil
}

// resolveWeights applies the user's experiment variant on top of the
// default ranking weights. Any experiment failure falls back to the
// defaults: experimentation never blocks search.
func (s *SearchService) resolveWeights(ctx context.Context, userID string) (string, RankingWeights) {
	weights := s.defaultWeights
	if s.experiments == nil || s.rankingExperiment == "" || userID == "" {
		return "", weights
	}

	variant, blob, err := s.experiments.VariantConfig(ctx, s.rankingExperiment, userID)
	if err != nil {
		log.Warn().Err(err).
			Str("experiment", s.rankingExperiment).
			Msg("variant lookup failed, using default weights")
		return "", weights
	}
	if variant == "" {
		return "", weights
	}

	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &weights); err != nil {
			log.Warn().Err(err).
				Str("experiment", s.rankingExperiment).
				Str("variant", variant).
				Msg("malformed variant config, using default weights")
			return variant, s.defaultWeights
		}
	}
	return variant, weights
}

func shouldExpand(intent *entities.QueryIntent) bool {
	if intent == nil || intent.Adjustments == nil {
		return true
	}
	return intent.Adjustments.ExpandSynonyms
}

// cacheKey is stable across requests that must share a result set. The
// variant is part of the key so experiment arms never see each other's
// rankings.
func (s *SearchService) cacheKey(req SearchRequest, variant string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%t|%d|%d|%s",
		req.Query, strings.Join(req.EntityTypes, ","), req.ActiveOnly, req.Limit, req.Offset, variant)
	return fmt.Sprintf("search:results:%x", h.Sum64())
}

func (s *SearchService) cachedResponse(ctx context.Context, key string) *SearchResponse {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil || data == nil {
		observability.RecordCacheMiss(ctx)
		return nil
	}
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cached response")
		return nil
	}
	observability.RecordCacheHit(ctx)
	return &resp
}

func (s *SearchService) cacheResponse(ctx context.Context, key string, resp *SearchResponse) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheSeconds); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("response cache write failed")
	}
}

func (s *SearchService) trackSearch(ctx context.Context, req SearchRequest, parsed *entities.ParsedQuery, intent *entities.QueryIntent, resultCount, tookMs int) {
	if s.analytics == nil {
		return
	}
	s.analytics.TrackSearch(ctx, &entities.SearchEvent{
		Query:            req.Query,
		NormalizedQuery:  parsed.NormalizedQuery(),
		DetectedIntent:   string(intent.Type),
		IntentConfidence: intent.Confidence,
		EntityTypes:      req.EntityTypes,
		ResultCount:      resultCount,
		LatencyMs:        tookMs,
		SessionID:        req.SessionID,
		UserID:           req.UserID,
	})
}
