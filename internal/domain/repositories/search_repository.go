package repositories

import (
	"context"

	"github.com/searchforge/relevance/internal/domain/entities"
)

// SearchParams is the request handed to the search backend. The backend
// owns its own query language; this core only supplies the normalized
// text plus structured filters.
type SearchParams struct {
	Query        string
	FieldFilters *entities.FieldFilterSet
	RangeFilters map[string]entities.RangeFilter
	Exclusions   []string
	ActiveOnly   bool
	// ExactMatch disables typo tolerance in the backend, used for
	// navigational queries where fuzziness hurts precision
	ExactMatch bool
	Limit      int
	Offset     int
}

// DocumentSearchRepository is the full-text search backend boundary.
type DocumentSearchRepository interface {
	// Search executes a query and returns hits with base relevance scores
	Search(ctx context.Context, params SearchParams) ([]*entities.SearchHit, error)
}
