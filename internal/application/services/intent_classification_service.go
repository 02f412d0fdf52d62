package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/searchforge/relevance/internal/domain/entities"
)

// intentPattern is one weighted signal for an intent type.
type intentPattern struct {
	re     *regexp.Regexp
	weight float64
	signal string
}

// Flat bonuses from query length heuristics.
const (
	shortQueryBonus = 1.0 // ≤2 words favors navigational
	longQueryBonus  = 1.0 // ≥5 words favors informational
)

// IntentClassificationService scores a query against per-intent pattern
// lists and returns the winning intent with confidence and ranking
// hints. Pattern lists are built once and read-only afterwards.
type IntentClassificationService struct {
	patterns      map[entities.IntentType][]intentPattern
	adjustments   map[entities.IntentType]*entities.RankingAdjustments
	minConfidence float64
	defaultIntent entities.IntentType
}

// NewIntentClassificationService creates a classifier with the default
// pattern lists. Queries whose winning confidence falls below
// minConfidence fall back to defaultIntent.
func NewIntentClassificationService(minConfidence float64, defaultIntent entities.IntentType) *IntentClassificationService {
	return &IntentClassificationService{
		patterns:      defaultIntentPatterns(),
		adjustments:   defaultRankingAdjustments(),
		minConfidence: minConfidence,
		defaultIntent: defaultIntent,
	}
}

func defaultIntentPatterns() map[entities.IntentType][]intentPattern {
	return map[entities.IntentType][]intentPattern{
		entities.IntentNavigational: {
			{re: regexp.MustCompile(`\b(login|log in|sign in|signin)\b`), weight: 2.0, signal: "login_word"},
			{re: regexp.MustCompile(`\b(homepage|home page|official site|website)\b`), weight: 2.0, signal: "site_word"},
			{re: regexp.MustCompile(`\b(www\.|\.com|\.org|\.io)\b`), weight: 2.5, signal: "url_fragment"},
			{re: regexp.MustCompile(`\b(dashboard|account|profile|settings)\b`), weight: 1.5, signal: "destination_word"},
		},
		entities.IntentInformational: {
			{re: regexp.MustCompile(`\b(how|what|why|when|where|who)\b`), weight: 2.0, signal: "question_word"},
			{re: regexp.MustCompile(`\b(guide|tutorial|documentation|docs|manual)\b`), weight: 1.5, signal: "learning_word"},
			{re: regexp.MustCompile(`\b(example|examples|explained|meaning|definition)\b`), weight: 1.5, signal: "explanation_word"},
			{re: regexp.MustCompile(`\?$`), weight: 1.0, signal: "question_mark"},
		},
		entities.IntentTransactional: {
			{re: regexp.MustCompile(`\b(buy|purchase|order|checkout)\b`), weight: 2.5, signal: "purchase_word"},
			{re: regexp.MustCompile(`\b(price|pricing|cost|cheap|cheapest|deal|discount)\b`), weight: 2.0, signal: "price_word"},
			{re: regexp.MustCompile(`\b(download|install|subscribe|signup|sign up)\b`), weight: 1.5, signal: "acquire_word"},
		},
		entities.IntentExploratory: {
			{re: regexp.MustCompile(`\b(best|top|greatest|popular)\b`), weight: 2.0, signal: "superlative_word"},
			{re: regexp.MustCompile(`\b(ideas|inspiration|recommendations|suggestions)\b`), weight: 1.5, signal: "discovery_word"},
			{re: regexp.MustCompile(`\b(alternatives?|similar to|like|vs|versus|compare)\b`), weight: 1.5, signal: "comparison_word"},
			{re: regexp.MustCompile(`\b(list of|types of|kinds of)\b`), weight: 1.5, signal: "enumeration_word"},
		},
	}
}

func defaultRankingAdjustments() map[entities.IntentType]*entities.RankingAdjustments {
	return map[entities.IntentType]*entities.RankingAdjustments{
		entities.IntentNavigational: {
			ExactMatchPreferred: true,
			ResultLimit:         5,
			SkipFuzzy:           true,
		},
		entities.IntentInformational: {
			ExpandSynonyms: true,
			IncludeRelated: true,
		},
		entities.IntentTransactional: {
			BoostRecent: true,
			ActiveOnly:  true,
		},
		entities.IntentExploratory: {
			IncludeFacets: true,
			ResultLimit:   20,
		},
	}
}

// Classify scores the query against every intent's patterns plus the
// length heuristics and returns the winner. An empty query yields
// IntentUnknown with zero confidence.
func (s *IntentClassificationService) Classify(query string) *entities.QueryIntent {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return &entities.QueryIntent{Type: entities.IntentUnknown, Confidence: 0.0}
	}

	scores := make(map[entities.IntentType]float64)
	signals := make(map[entities.IntentType][]string)

	for intent, patterns := range s.patterns {
		for _, p := range patterns {
			if p.re.MatchString(q) {
				scores[intent] += p.weight
				signals[intent] = append(signals[intent], p.signal)
			}
		}
	}

	wordCount := len(strings.Fields(q))
	if wordCount <= 2 {
		scores[entities.IntentNavigational] += shortQueryBonus
		signals[entities.IntentNavigational] = append(signals[entities.IntentNavigational], "short_query")
	}
	if wordCount >= 5 {
		scores[entities.IntentInformational] += longQueryBonus
		signals[entities.IntentInformational] = append(signals[entities.IntentInformational], "long_query")
	}

	var total float64
	for _, score := range scores {
		total += score
	}
	if total == 0 {
		return &entities.QueryIntent{Type: entities.IntentUnknown, Confidence: 0.0}
	}

	winner := entities.IntentUnknown
	var winning float64
	// Stable tie-break across map iteration order.
	for _, intent := range sortedIntents(scores) {
		if scores[intent] > winning {
			winner = intent
			winning = scores[intent]
		}
	}

	confidence := winning / total
	if confidence < s.minConfidence {
		return &entities.QueryIntent{
			Type:        s.defaultIntent,
			Confidence:  s.minConfidence,
			Signals:     []string{"default_fallback"},
			Adjustments: s.adjustments[s.defaultIntent],
		}
	}

	return &entities.QueryIntent{
		Type:        winner,
		Confidence:  confidence,
		Signals:     signals[winner],
		Adjustments: s.adjustments[winner],
	}
}

// AdjustmentsFor returns the static ranking hints for an intent.
func (s *IntentClassificationService) AdjustmentsFor(intent entities.IntentType) *entities.RankingAdjustments {
	return s.adjustments[intent]
}

func sortedIntents(scores map[entities.IntentType]float64) []entities.IntentType {
	intents := make([]entities.IntentType, 0, len(scores))
	for intent := range scores {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })
	return intents
}
