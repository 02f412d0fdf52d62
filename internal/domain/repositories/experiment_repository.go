package repositories

import (
	"context"

	"github.com/searchforge/relevance/internal/domain/entities"
)

// ExperimentRepository persists experiments, sticky assignments, and
// append-only events. At-most-once assignment per (experiment, user) is
// enforced by the store via a unique constraint; Create returns a
// conflict error when the pair already exists.
type ExperimentRepository interface {
	CreateExperiment(ctx context.Context, exp *entities.Experiment) error
	GetByName(ctx context.Context, name string) (*entities.Experiment, error)
	UpdateStatus(ctx context.Context, exp *entities.Experiment) error

	GetAssignment(ctx context.Context, experimentID, userID string) (*entities.ExperimentAssignment, error)
	CreateAssignment(ctx context.Context, assignment *entities.ExperimentAssignment) error

	InsertEvent(ctx context.Context, event *entities.ExperimentEvent) error

	// CountAssignmentsByVariant returns participants per variant
	CountAssignmentsByVariant(ctx context.Context, experimentID string) (map[string]int, error)

	// CountConvertersByVariant returns distinct users per variant with at
	// least one event of the given types
	CountConvertersByVariant(ctx context.Context, experimentID string, eventTypes []string) (map[string]int, error)
}
