package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/repositories"
	"github.com/searchforge/relevance/internal/infrastructure/clients/postgres"
	apperrors "github.com/searchforge/relevance/pkg/errors"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations; the assignment table relies on it for at-most-once writes.
const uniqueViolation = "23505"

// ExperimentAdapter implements ExperimentRepository over PostgreSQL.
type ExperimentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

var _ repositories.ExperimentRepository = (*ExperimentAdapter)(nil)

// NewExperimentAdapter creates a new experiment adapter
func NewExperimentAdapter(client *postgres.Client) *ExperimentAdapter {
	return &ExperimentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// CreateExperiment persists a new experiment. Names are unique.
func (a *ExperimentAdapter) CreateExperiment(ctx context.Context, exp *entities.Experiment) error {
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return apperrors.NewInternalError("failed to encode variants", err)
	}

	record := goqu.Record{
		"id":                 exp.ID,
		"name":               exp.Name,
		"description":        exp.Description,
		"variants":           variants,
		"status":             string(exp.Status),
		"traffic_percentage": exp.TrafficPercentage,
		"primary_metric":     exp.PrimaryMetric,
		"created_at":         exp.CreatedAt,
		"updated_at":         exp.UpdatedAt,
	}

	query, args, err := a.db.Insert("experiments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(
				fmt.Sprintf("experiment %q already exists", exp.Name), err)
		}
		return apperrors.NewInternalError("failed to create experiment", err)
	}

	return nil
}

// GetByName retrieves an experiment by its unique name
func (a *ExperimentAdapter) GetByName(ctx context.Context, name string) (*entities.Experiment, error) {
	query, args, err := a.db.Select(
		"id", "name", "description", "variants", "status",
		"traffic_percentage", "primary_metric",
		"started_at", "ended_at", "created_at", "updated_at",
	).From("experiments").
		Where(goqu.Ex{"name": name}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	exp := &entities.Experiment{}
	var variants []byte
	var status string
	var startedAt, endedAt sql.NullTime

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&exp.ID,
		&exp.Name,
		&exp.Description,
		&variants,
		&status,
		&exp.TrafficPercentage,
		&exp.PrimaryMetric,
		&startedAt,
		&endedAt,
		&exp.CreatedAt,
		&exp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("experiment %q not found", name))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get experiment", err)
	}

	if err := json.Unmarshal(variants, &exp.Variants); err != nil {
		return nil, apperrors.NewInternalError("failed to decode variants", err)
	}
	exp.Status = entities.ExperimentStatus(status)
	if startedAt.Valid {
		exp.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		exp.EndedAt = &endedAt.Time
	}

	return exp, nil
}

// UpdateStatus persists a lifecycle change
func (a *ExperimentAdapter) UpdateStatus(ctx context.Context, exp *entities.Experiment) error {
	record := goqu.Record{
		"status":     string(exp.Status),
		"updated_at": exp.UpdatedAt,
	}
	if exp.StartedAt != nil {
		record["started_at"] = *exp.StartedAt
	}
	if exp.EndedAt != nil {
		record["ended_at"] = *exp.EndedAt
	}

	query, args, err := a.db.Update("experiments").
		Set(record).
		Where(goqu.Ex{"id": exp.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update experiment status", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("experiment %q not found", exp.Name))
	}

	return nil
}

// GetAssignment retrieves the sticky variant for (experiment, user)
func (a *ExperimentAdapter) GetAssignment(ctx context.Context, experimentID, userID string) (*entities.ExperimentAssignment, error) {
	query, args, err := a.db.Select("experiment_id", "user_id", "variant", "assigned_at").
		From("experiment_assignments").
		Where(goqu.Ex{"experiment_id": experimentID, "user_id": userID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	assignment := &entities.ExperimentAssignment{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&assignment.ExperimentID,
		&assignment.UserID,
		&assignment.Variant,
		&assignment.AssignedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("assignment not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get assignment", err)
	}

	return assignment, nil
}

// CreateAssignment inserts a sticky assignment. The unique constraint on
// (experiment_id, user_id) makes concurrent first assignments safe: the
// loser gets a conflict error and must re-read the stored row.
func (a *ExperimentAdapter) CreateAssignment(ctx context.Context, assignment *entities.ExperimentAssignment) error {
	record := goqu.Record{
		"experiment_id": assignment.ExperimentID,
		"user_id":       assignment.UserID,
		"variant":       assignment.Variant,
		"assigned_at":   assignment.AssignedAt,
	}

	query, args, err := a.db.Insert("experiment_assignments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("assignment already exists", err)
		}
		return apperrors.NewInternalError("failed to create assignment", err)
	}

	return nil
}

// InsertEvent appends an experiment observation
func (a *ExperimentAdapter) InsertEvent(ctx context.Context, event *entities.ExperimentEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	record := goqu.Record{
		"id":            event.ID,
		"experiment_id": event.ExperimentID,
		"user_id":       event.UserID,
		"variant":       event.Variant,
		"event_type":    event.EventType,
		"value":         event.Value,
		"created_at":    event.CreatedAt,
	}

	query, args, err := a.db.Insert("experiment_events").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to insert experiment event", err)
	}

	return nil
}

// CountAssignmentsByVariant returns participants per variant
func (a *ExperimentAdapter) CountAssignmentsByVariant(ctx context.Context, experimentID string) (map[string]int, error) {
	query, args, err := a.db.Select("variant", goqu.COUNT("*")).
		From("experiment_assignments").
		Where(goqu.Ex{"experiment_id": experimentID}).
		GroupBy("variant").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.scanVariantCounts(ctx, query, args...)
}

// CountConvertersByVariant returns distinct users per variant with at
// least one event of the given types
func (a *ExperimentAdapter) CountConvertersByVariant(ctx context.Context, experimentID string, eventTypes []string) (map[string]int, error) {
	query := `
		SELECT variant, COUNT(DISTINCT user_id)
		FROM experiment_events
		WHERE experiment_id = $1 AND event_type = ANY($2)
		GROUP BY variant
	`
	return a.scanVariantCounts(ctx, query, experimentID, pq.Array(eventTypes))
}

func (a *ExperimentAdapter) scanVariantCounts(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query variant counts", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var variant string
		var count int
		if err := rows.Scan(&variant, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan variant count", err)
		}
		counts[variant] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read variant counts", err)
	}

	return counts, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
