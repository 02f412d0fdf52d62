package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/searchforge/relevance/internal/domain/entities"
	"github.com/stretchr/testify/assert"
)

type stubHistoryRepo struct {
	mu      sync.Mutex
	signals map[string]*entities.ClickSignal
	err     error
	logged  []*entities.SearchEvent
}

func (r *stubHistoryRepo) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logged = append(r.logged, event)
	return r.err
}

func (r *stubHistoryRepo) loggedEvents() []*entities.SearchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entities.SearchEvent(nil), r.logged...)
}

func (r *stubHistoryRepo) GetClickStats(ctx context.Context, entityType, entityID string, window time.Duration) (*entities.ClickSignal, error) {
	if r.err != nil {
		return nil, r.err
	}
	if s, ok := r.signals[entityID]; ok {
		return s, nil
	}
	return &entities.ClickSignal{EntityType: entityType, EntityID: entityID}, nil
}

func (r *stubHistoryRepo) GetClickStatsBatch(ctx context.Context, entityType string, entityIDs []string, window time.Duration) (map[string]*entities.ClickSignal, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]*entities.ClickSignal)
	for _, id := range entityIDs {
		if s, ok := r.signals[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (r *stubHistoryRepo) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	return nil, r.err
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestClickBoost(signals map[string]*entities.ClickSignal) *ClickBoostService {
	svc := NewClickBoostService(&stubHistoryRepo{signals: signals}, DefaultClickBoostConfig())
	svc.now = fixedNow
	return svc
}

func TestBoostFromSignal_BelowMinClicks(t *testing.T) {
	svc := newTestClickBoost(nil)

	signal := &entities.ClickSignal{
		TotalClicks:      2, // below the default minimum of 3
		UniqueSearches:   10,
		AvgClickPosition: 1,
		LastClicked:      fixedNow(),
	}
	assert.Equal(t, 0.0, svc.BoostFromSignal(signal))

	signal.TotalClicks = 3
	assert.Greater(t, svc.BoostFromSignal(signal), 0.0)
}

func TestBoostFromSignal_AlwaysWithinUnitInterval(t *testing.T) {
	svc := newTestClickBoost(nil)

	signals := []*entities.ClickSignal{
		{TotalClicks: 100, UniqueSearches: 10, AvgClickPosition: 0, LastClicked: fixedNow()},
		{TotalClicks: 3, UniqueSearches: 1000, AvgClickPosition: 50, LastClicked: fixedNow().AddDate(0, 0, -200)},
		{TotalClicks: 5, UniqueSearches: 5, AvgClickPosition: 1, LastClicked: fixedNow()},
	}
	for _, s := range signals {
		boost := svc.BoostFromSignal(s)
		assert.GreaterOrEqual(t, boost, 0.0)
		assert.LessOrEqual(t, boost, 1.0)
	}
}

func TestBoostFromSignal_DecaysWithAge(t *testing.T) {
	svc := newTestClickBoost(nil)

	base := entities.ClickSignal{
		TotalClicks:      10,
		UniqueSearches:   40,
		AvgClickPosition: 2,
	}

	var prev float64 = 2 // above any possible boost
	for _, daysAgo := range []int{0, 3, 10, 30, 90} {
		s := base
		s.LastClicked = fixedNow().AddDate(0, 0, -daysAgo)
		boost := svc.BoostFromSignal(&s)
		assert.Less(t, boost, prev, "boost must strictly decrease as clicks age (days ago: %d)", daysAgo)
		prev = boost
	}
}

func TestBoostFromSignal_PositionDiscount(t *testing.T) {
	svc := newTestClickBoost(nil)

	low := &entities.ClickSignal{TotalClicks: 10, UniqueSearches: 40, AvgClickPosition: 1, LastClicked: fixedNow()}
	high := &entities.ClickSignal{TotalClicks: 10, UniqueSearches: 40, AvgClickPosition: 8, LastClicked: fixedNow()}

	assert.Greater(t, svc.BoostFromSignal(high), 0.0)
	assert.Greater(t, svc.BoostFromSignal(low), svc.BoostFromSignal(high),
		"entities already clicked near the top get less boost")
}

func TestBoostFromSignal_ZeroImpressions(t *testing.T) {
	svc := newTestClickBoost(nil)

	s := &entities.ClickSignal{TotalClicks: 5, UniqueSearches: 0, LastClicked: fixedNow()}
	assert.Equal(t, 0.0, svc.BoostFromSignal(s))
}

func TestGetClickBoost_RepositoryFailureIsZero(t *testing.T) {
	repo := &stubHistoryRepo{err: errors.New("store down")}
	svc := NewClickBoostService(repo, DefaultClickBoostConfig())

	assert.Equal(t, 0.0, svc.GetClickBoost(context.Background(), "article", "a1"))
	assert.Empty(t, svc.GetClickBoosts(context.Background(), "article", []string{"a1", "a2"}))
}

func TestGetClickBoosts_Batch(t *testing.T) {
	signals := map[string]*entities.ClickSignal{
		"hot":  {TotalClicks: 20, UniqueSearches: 40, AvgClickPosition: 1, LastClicked: fixedNow()},
		"cold": {TotalClicks: 1, UniqueSearches: 40, AvgClickPosition: 1, LastClicked: fixedNow()},
	}
	svc := newTestClickBoost(signals)

	boosts := svc.GetClickBoosts(context.Background(), "article", []string{"hot", "cold", "missing"})
	assert.Contains(t, boosts, "hot")
	assert.NotContains(t, boosts, "cold", "below min clicks")
	assert.NotContains(t, boosts, "missing", "no history")
}
