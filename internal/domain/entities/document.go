package entities

import "time"

// Document is a searchable record indexed in the search backend. The core
// never persists documents itself; this is the shape hits come back in.
type Document struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SearchHit is a single backend result with its base relevance score.
type SearchHit struct {
	Document  *Document `json:"document"`
	BaseScore float64   `json:"base_score"`
}

// ScoredHit is a hit after relevance re-scoring, with the per-factor
// breakdown retained for debugging and evaluation.
type ScoredHit struct {
	Hit            *SearchHit         `json:"hit"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`
}
