package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/repositories"
	"github.com/searchforge/relevance/internal/infrastructure/clients/postgres"
	apperrors "github.com/searchforge/relevance/pkg/errors"
)

// SearchHistoryAdapter implements SearchHistoryRepository over the
// search_events append-only log.
type SearchHistoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.SearchHistoryRepository = (*SearchHistoryAdapter)(nil)

// NewSearchHistoryAdapter creates a new search history adapter
func NewSearchHistoryAdapter(client *postgres.Client) *SearchHistoryAdapter {
	return &SearchHistoryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// LogEvent appends one search or click interaction
func (a *SearchHistoryAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	record := goqu.Record{
		"id":                  event.ID,
		"query":               event.Query,
		"normalized_query":    event.NormalizedQuery,
		"detected_intent":     event.DetectedIntent,
		"intent_confidence":   event.IntentConfidence,
		"entity_types":        pq.Array(event.EntityTypes),
		"result_count":        event.ResultCount,
		"latency_ms":          event.LatencyMs,
		"session_id":          sql.NullString{String: event.SessionID, Valid: event.SessionID != ""},
		"user_id":             sql.NullString{String: event.UserID, Valid: event.UserID != ""},
		"clicked":             event.Clicked,
		"click_position":      event.ClickPosition,
		"clicked_entity_type": sql.NullString{String: event.ClickedEntityType, Valid: event.ClickedEntityType != ""},
		"clicked_entity_id":   sql.NullString{String: event.ClickedEntityID, Valid: event.ClickedEntityID != ""},
		"created_at":          event.CreatedAt,
	}

	query, args, err := a.db.Insert("search_events").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}

	return nil
}

// clickStatsQuery aggregates the click telemetry for one or more entity
// ids. Impressions are approximated as distinct normalized queries that
// produced at least one result.
const clickStatsQuery = `
	SELECT
		clicked_entity_id,
		COUNT(*) FILTER (WHERE clicked) AS total_clicks,
		COUNT(DISTINCT normalized_query) FILTER (WHERE result_count >= 1) AS unique_searches,
		COALESCE(AVG(click_position) FILTER (WHERE clicked), 0) AS avg_click_position,
		MAX(created_at) FILTER (WHERE clicked) AS last_clicked
	FROM search_events
	WHERE clicked_entity_type = $1
	  AND clicked_entity_id = ANY($2)
	  AND created_at >= $3
	GROUP BY clicked_entity_id
`

// GetClickStats aggregates click telemetry for one entity. Entities with
// no history return a zero signal, not an error.
func (a *SearchHistoryAdapter) GetClickStats(ctx context.Context, entityType, entityID string, window time.Duration) (*entities.ClickSignal, error) {
	signals, err := a.GetClickStatsBatch(ctx, entityType, []string{entityID}, window)
	if err != nil {
		return nil, err
	}
	if signal, ok := signals[entityID]; ok {
		return signal, nil
	}
	return &entities.ClickSignal{EntityType: entityType, EntityID: entityID}, nil
}

// GetClickStatsBatch aggregates click telemetry for many entities in a
// single query. Entities without history are absent from the result.
func (a *SearchHistoryAdapter) GetClickStatsBatch(ctx context.Context, entityType string, entityIDs []string, window time.Duration) (map[string]*entities.ClickSignal, error) {
	signals := make(map[string]*entities.ClickSignal, len(entityIDs))
	if len(entityIDs) == 0 {
		return signals, nil
	}

	since := time.Now().Add(-window)
	rows, err := a.client.DB().QueryContext(ctx, clickStatsQuery, entityType, pq.Array(entityIDs), since)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query click stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		signal := &entities.ClickSignal{EntityType: entityType}
		var lastClicked sql.NullTime
		if err := rows.Scan(
			&signal.EntityID,
			&signal.TotalClicks,
			&signal.UniqueSearches,
			&signal.AvgClickPosition,
			&lastClicked,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan click signal", err)
		}
		if lastClicked.Valid {
			signal.LastClicked = lastClicked.Time
		}
		signals[signal.EntityID] = signal
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read click stats", err)
	}

	return signals, nil
}

// GetZeroResultQueries returns recent searches that matched nothing
func (a *SearchHistoryAdapter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.Select(
		"id", "query", "normalized_query", "detected_intent", "intent_confidence",
		"result_count", "latency_ms", "session_id", "created_at",
	).From("search_events").
		Where(goqu.Ex{"result_count": 0, "clicked": false}).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result queries", err)
	}
	defer rows.Close()

	var events []*entities.SearchEvent
	for rows.Next() {
		e := &entities.SearchEvent{}
		var sessionID sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.Query,
			&e.NormalizedQuery,
			&e.DetectedIntent,
			&e.IntentConfidence,
			&e.ResultCount,
			&e.LatencyMs,
			&sessionID,
			&e.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan search event", err)
		}
		e.SessionID = sessionID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read search events", err)
	}

	return events, nil
}
