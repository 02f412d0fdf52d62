package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/searchforge/relevance/internal/domain/repositories"
)

// SearchAnalyticsService records search and click telemetry. Writes are
// best-effort: analytics must never slow down or fail a search.
type SearchAnalyticsService struct {
	repo        repositories.SearchHistoryRepository
	experiments *ExperimentService
}

// NewSearchAnalyticsService creates an analytics service. experiments may
// be nil when experiment tracking is disabled.
func NewSearchAnalyticsService(repo repositories.SearchHistoryRepository, experiments *ExperimentService) *SearchAnalyticsService {
	return &SearchAnalyticsService{
		repo:        repo,
		experiments: experiments,
	}
}

// TrackSearch logs a search event in the background so the caller's
// request never waits on the history store.
func (s *SearchAnalyticsService) TrackSearch(ctx context.Context, event *entities.SearchEvent) {
	go func() {
		// Fresh context: the request context may already be cancelled.
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now()
		}

		if err := s.repo.LogEvent(bgCtx, event); err != nil {
			log.Warn().Err(err).Str("query", event.Query).Msg("failed to log search event")
		}
	}()
}

// RecordClick ingests one result click: it lands in the history log (the
// input to click boosting) and, when the user is in an experiment, in the
// experiment's event stream.
func (s *SearchAnalyticsService) RecordClick(ctx context.Context, click *entities.ClickEvent, experimentName string) error {
	event := &entities.SearchEvent{
		ID:              click.ID,
		Query:           click.Query,
		NormalizedQuery: click.Query,
		ResultCount:     click.ResultCount,
		SessionID:       click.SessionID,
		UserID:          click.UserID,

		Clicked:           true,
		ClickPosition:     click.Position,
		ClickedEntityType: click.EntityType,
		ClickedEntityID:   click.EntityID,
		CreatedAt:         click.ClickedAt,
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if err := s.repo.LogEvent(ctx, event); err != nil {
		return err
	}

	// Experiment tracking is additive: a missing assignment or a stopped
	// experiment is not a click-ingestion failure.
	if s.experiments != nil && experimentName != "" && click.UserID != "" {
		if err := s.experiments.TrackEvent(ctx, experimentName, click.UserID, "click", 1); err != nil {
			log.Debug().Err(err).
				Str("experiment", experimentName).
				Str("user_id", click.UserID).
				Msg("click not attributed to experiment")
		}
	}

	return nil
}

// GetZeroResultQueries surfaces recent searches that matched nothing,
// the main input for growing the synonym dictionary.
func (s *SearchAnalyticsService) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	return s.repo.GetZeroResultQueries(ctx, limit)
}
