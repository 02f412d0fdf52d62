package entities

// IntentType represents the detected search intent category.
type IntentType string

const (
	IntentNavigational  IntentType = "navigational"  // e.g., "github login"
	IntentInformational IntentType = "informational" // e.g., "how to reset password"
	IntentTransactional IntentType = "transactional" // e.g., "buy standing desk"
	IntentExploratory   IntentType = "exploratory"   // e.g., "best python books"
	IntentUnknown       IntentType = "unknown"
)

// ValidIntents returns all classifiable intent values.
func ValidIntents() []IntentType {
	return []IntentType{IntentNavigational, IntentInformational, IntentTransactional, IntentExploratory}
}

// IsValid checks if the intent value is one of the defined constants.
func (i IntentType) IsValid() bool {
	switch i {
	case IntentNavigational, IntentInformational, IntentTransactional, IntentExploratory, IntentUnknown:
		return true
	}
	return false
}

// QueryIntent is the classification outcome for a single query.
type QueryIntent struct {
	Type        IntentType          `json:"type"`
	Confidence  float64             `json:"confidence"`
	Signals     []string            `json:"signals,omitempty"`
	Adjustments *RankingAdjustments `json:"adjustments,omitempty"`
}

// RankingAdjustments are intent-derived hints the search pipeline applies
// when executing and re-scoring a query.
type RankingAdjustments struct {
	ExactMatchPreferred bool `json:"exact_match_preferred,omitempty"`
	ExpandSynonyms      bool `json:"expand_synonyms,omitempty"`
	IncludeRelated      bool `json:"include_related,omitempty"`
	BoostRecent         bool `json:"boost_recent,omitempty"`
	ActiveOnly          bool `json:"active_only,omitempty"`
	IncludeFacets       bool `json:"include_facets,omitempty"`
	SkipFuzzy           bool `json:"skip_fuzzy,omitempty"`
	ResultLimit         int  `json:"result_limit,omitempty"`
}
