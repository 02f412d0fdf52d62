package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/repositories"
	tsclient "github.com/searchforge/relevance/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements document search using Typesense.
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.DocumentSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts one document into the collection
func (a *TypesenseAdapter) Index(ctx context.Context, doc *entities.Document) error {
	document := map[string]interface{}{
		"id":          doc.ID,
		"title":       doc.Title,
		"body":        doc.Body,
		"entity_type": doc.EntityType,
		"tags":        doc.Tags,
		"is_active":   doc.IsActive,
		"created_at":  doc.CreatedAt.Unix(),
		"updated_at":  doc.UpdatedAt.Unix(),
	}

	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	return nil
}

// Delete removes a document from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete document from index: %w", err)
	}
	return nil
}

// Search executes a query with the structured filters produced by the
// query parser. Exclusions ride along in the text query as -term; the
// structured filters become a filter_by expression.
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.SearchHit, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(buildTextQuery(params)),
		QueryBy: pointer.String("title,body,tags"),
		Page:    pointer.Int(params.Offset/limit + 1),
		PerPage: pointer.Int(limit),
	}
	if filterBy := buildFilterBy(params); filterBy != "" {
		searchParams.FilterBy = pointer.String(filterBy)
	}
	if params.ExactMatch {
		searchParams.NumTypos = pointer.String("0")
	}

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	hits := []*entities.SearchHit{}
	if result.Hits == nil {
		return hits, nil
	}

	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document

		document := &entities.Document{}
		if v, ok := doc["id"].(string); ok {
			document.ID = v
		}
		if v, ok := doc["title"].(string); ok {
			document.Title = v
		}
		if v, ok := doc["body"].(string); ok {
			document.Body = v
		}
		if v, ok := doc["entity_type"].(string); ok {
			document.EntityType = v
		}
		if v, ok := doc["is_active"].(bool); ok {
			document.IsActive = v
		}
		if v, ok := doc["tags"].([]interface{}); ok {
			for _, tag := range v {
				if s, ok := tag.(string); ok {
					document.Tags = append(document.Tags, s)
				}
			}
		}
		if v, ok := doc["created_at"].(float64); ok {
			document.CreatedAt = time.Unix(int64(v), 0)
		}
		if v, ok := doc["updated_at"].(float64); ok {
			document.UpdatedAt = time.Unix(int64(v), 0)
		}

		baseScore := 1.0
		if hit.TextMatch != nil {
			baseScore = float64(*hit.TextMatch)
		}

		hits = append(hits, &entities.SearchHit{
			Document:  document,
			BaseScore: baseScore,
		})
	}

	return hits, nil
}

// SyncSynonyms replaces the collection's synonym set with the given
// groups so the backend expands terms natively at query time.
func (a *TypesenseAdapter) SyncSynonyms(ctx context.Context, groups []*entities.SynonymGroup) error {
	collection := a.client.Client().Collection(a.client.Collection())

	for _, group := range groups {
		id := fmt.Sprintf("syn-%s", group.Canonical)
		schema := &api.SearchSynonymSchema{
			Synonyms: group.Terms,
		}
		if !group.Bidirectional {
			schema.Root = pointer.String(group.Canonical)
		}

		if _, err := collection.Synonyms().Upsert(ctx, id, schema); err != nil {
			return fmt.Errorf("failed to upsert synonym group %q: %w", group.Canonical, err)
		}
	}

	return nil
}

// buildTextQuery appends exclusions to the normalized query; Typesense
// honors the -term syntax natively.
func buildTextQuery(params repositories.SearchParams) string {
	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}
	for _, excluded := range params.Exclusions {
		q += " -" + excluded
	}
	return q
}

// buildFilterBy translates the parser's structured filters into a
// Typesense filter_by expression.
func buildFilterBy(params repositories.SearchParams) string {
	var clauses []string

	if params.ActiveOnly {
		clauses = append(clauses, "is_active:=true")
	}

	if params.FieldFilters != nil {
		for _, field := range params.FieldFilters.Fields() {
			values := params.FieldFilters.Get(field)
			if len(values) == 1 {
				clauses = append(clauses, fmt.Sprintf("%s:=%s", field, values[0]))
			} else if len(values) > 1 {
				clauses = append(clauses, fmt.Sprintf("%s:=[%s]", field, strings.Join(values, ",")))
			}
		}
	}

	// Map iteration order is random; sort for a deterministic expression.
	rangeFields := make([]string, 0, len(params.RangeFilters))
	for field := range params.RangeFilters {
		rangeFields = append(rangeFields, field)
	}
	sort.Strings(rangeFields)

	for _, field := range rangeFields {
		r := params.RangeFilters[field]
		if r.Min != nil {
			op := ">"
			if r.Inclusive {
				op = ">="
			}
			clauses = append(clauses, fmt.Sprintf("%s:%s%s", field, op, *r.Min))
		}
		if r.Max != nil {
			op := "<"
			if r.Inclusive {
				op = "<="
			}
			clauses = append(clauses, fmt.Sprintf("%s:%s%s", field, op, *r.Max))
		}
	}

	return strings.Join(clauses, " && ")
}
