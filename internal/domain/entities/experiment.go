package entities

import (
	"encoding/json"
	"sort"
	"time"
)

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentCancelled ExperimentStatus = "cancelled"
)

// Experiment is an A/B test over ranking (or other) configuration.
// Variants map variant name to an opaque config blob.
type Experiment struct {
	ID                string                     `json:"id" db:"id"`
	Name              string                     `json:"name" db:"name"`
	Description       string                     `json:"description,omitempty" db:"description"`
	Variants          map[string]json.RawMessage `json:"variants" db:"variants"`
	Status            ExperimentStatus           `json:"status" db:"status"`
	TrafficPercentage int                        `json:"traffic_percentage" db:"traffic_percentage"`
	PrimaryMetric     string                     `json:"primary_metric" db:"primary_metric"`
	StartedAt         *time.Time                 `json:"started_at,omitempty" db:"started_at"`
	EndedAt           *time.Time                 `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt         time.Time                  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at" db:"updated_at"`
}

// VariantNames returns the declared variant names in a stable (sorted)
// order. Deterministic bucketing depends on this ordering.
func (e *Experiment) VariantNames() []string {
	names := make([]string, 0, len(e.Variants))
	for name := range e.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ControlVariant returns the variant treated as the baseline: "control"
// when declared, otherwise the first name in stable order.
func (e *Experiment) ControlVariant() string {
	if _, ok := e.Variants["control"]; ok {
		return "control"
	}
	names := e.VariantNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// ExperimentAssignment is the sticky (experiment, user) → variant record.
// Immutable once written.
type ExperimentAssignment struct {
	ExperimentID string    `json:"experiment_id" db:"experiment_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Variant      string    `json:"variant" db:"variant"`
	AssignedAt   time.Time `json:"assigned_at" db:"assigned_at"`
}

// ExperimentEvent is an append-only observation tied to an assignment.
type ExperimentEvent struct {
	ID           string    `json:"id" db:"id"`
	ExperimentID string    `json:"experiment_id" db:"experiment_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Variant      string    `json:"variant" db:"variant"`
	EventType    string    `json:"event_type" db:"event_type"`
	Value        float64   `json:"value" db:"value"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// VariantResult summarizes one variant's performance in an analysis.
type VariantResult struct {
	Variant        string  `json:"variant"`
	Participants   int     `json:"participants"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	IsControl      bool    `json:"is_control"`
	PValue         float64 `json:"p_value,omitempty"`
	IsSignificant  bool    `json:"is_significant"`
}

// ExperimentResults is the statistical readout for an experiment.
type ExperimentResults struct {
	ExperimentName string           `json:"experiment_name"`
	Status         ExperimentStatus `json:"status"`
	Variants       []VariantResult  `json:"variants"`
	IsSignificant  bool             `json:"is_significant"`
	Winner         string           `json:"winner,omitempty"`
	Recommendation string           `json:"recommendation"`
}
