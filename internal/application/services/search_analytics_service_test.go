package services

import (
	"context"
	"testing"
	"time"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackSearch_LogsInBackground(t *testing.T) {
	repo := &stubHistoryRepo{}
	svc := NewSearchAnalyticsService(repo, nil)

	svc.TrackSearch(context.Background(), &entities.SearchEvent{
		Query:       "standing desk",
		ResultCount: 7,
	})

	require.Eventually(t, func() bool {
		return len(repo.loggedEvents()) == 1
	}, time.Second, 10*time.Millisecond)

	event := repo.loggedEvents()[0]
	assert.Equal(t, "standing desk", event.Query)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRecordClick_LogsClickRow(t *testing.T) {
	repo := &stubHistoryRepo{}
	svc := NewSearchAnalyticsService(repo, nil)

	err := svc.RecordClick(context.Background(), &entities.ClickEvent{
		Query:       "ergonomic chair",
		EntityType:  "product",
		EntityID:    "p-9",
		Position:    3,
		ResultCount: 12,
		UserID:      "user-1",
		ClickedAt:   time.Now(),
	}, "")
	require.NoError(t, err)

	events := repo.loggedEvents()
	require.Len(t, events, 1)
	assert.True(t, events[0].Clicked)
	assert.Equal(t, "product", events[0].ClickedEntityType)
	assert.Equal(t, "p-9", events[0].ClickedEntityID)
	assert.Equal(t, 3, events[0].ClickPosition)
}

func TestRecordClick_AttributesToExperiment(t *testing.T) {
	repo := &stubHistoryRepo{}
	expRepo := newMemExperimentRepo()
	experiments := newTestExperimentService(expRepo)
	svc := NewSearchAnalyticsService(repo, experiments)
	ctx := context.Background()

	newRunningExperiment(t, experiments, "clicks", 100, "control", "treatment")
	variant, err := experiments.GetVariant(ctx, "clicks", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, variant)

	err = svc.RecordClick(ctx, &entities.ClickEvent{
		Query:      "anything",
		EntityType: "article",
		EntityID:   "a-1",
		UserID:     "user-1",
	}, "clicks")
	require.NoError(t, err)

	require.Len(t, expRepo.events, 1)
	assert.Equal(t, variant, expRepo.events[0].Variant)
}

func TestRecordClick_UnassignedUserStillLogged(t *testing.T) {
	repo := &stubHistoryRepo{}
	expRepo := newMemExperimentRepo()
	experiments := newTestExperimentService(expRepo)
	svc := NewSearchAnalyticsService(repo, experiments)

	newRunningExperiment(t, experiments, "clicks", 0, "control", "treatment")

	err := svc.RecordClick(context.Background(), &entities.ClickEvent{
		Query:      "anything",
		EntityType: "article",
		EntityID:   "a-1",
		UserID:     "outsider",
	}, "clicks")
	require.NoError(t, err, "experiment attribution is best-effort")

	assert.Len(t, repo.loggedEvents(), 1)
	assert.Empty(t, expRepo.events)
}
