package repositories

import (
	"context"
	"time"

	"github.com/searchforge/relevance/internal/domain/entities"
)

// SearchHistoryRepository is the append-and-aggregate boundary over the
// search/click history log.
type SearchHistoryRepository interface {
	// LogEvent appends one search (or click) interaction
	LogEvent(ctx context.Context, event *entities.SearchEvent) error

	// GetClickStats aggregates click telemetry for one entity over a
	// trailing window. Entities with no history return a zero signal.
	GetClickStats(ctx context.Context, entityType, entityID string, window time.Duration) (*entities.ClickSignal, error)

	// GetClickStatsBatch aggregates click telemetry for many entities in
	// one query, keyed by entity id. Missing entities are absent.
	GetClickStatsBatch(ctx context.Context, entityType string, entityIDs []string, window time.Duration) (map[string]*entities.ClickSignal, error)

	// GetZeroResultQueries returns recent searches that matched nothing
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}
