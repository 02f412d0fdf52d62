package entities

import (
	"time"
)

// SearchEvent represents a single search interaction for analytics.
// Click fields are populated when the row records a result click.
type SearchEvent struct {
	ID                string    `json:"id" db:"id"`
	Query             string    `json:"query" db:"query"`
	NormalizedQuery   string    `json:"normalized_query" db:"normalized_query"`
	DetectedIntent    string    `json:"detected_intent" db:"detected_intent"`
	IntentConfidence  float64   `json:"intent_confidence" db:"intent_confidence"`
	EntityTypes       []string  `json:"entity_types,omitempty" db:"entity_types"`
	ResultCount       int       `json:"result_count" db:"result_count"`
	LatencyMs         int       `json:"latency_ms" db:"latency_ms"`
	SessionID         string    `json:"session_id,omitempty" db:"session_id"`
	UserID            string    `json:"user_id,omitempty" db:"user_id"`
	Clicked           bool      `json:"clicked" db:"clicked"`
	ClickPosition     int       `json:"click_position,omitempty" db:"click_position"`
	ClickedEntityType string    `json:"clicked_entity_type,omitempty" db:"clicked_entity_type"`
	ClickedEntityID   string    `json:"clicked_entity_id,omitempty" db:"clicked_entity_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// ClickEvent represents a single search result click published on the
// event bus by the layer that serves results.
type ClickEvent struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Position    int       `json:"position"`
	SessionID   string    `json:"session_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	ResultCount int       `json:"result_count"`
	ClickedAt   time.Time `json:"clicked_at"`
}
