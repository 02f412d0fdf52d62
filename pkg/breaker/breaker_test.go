package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New("cache", cfg)
	b.now = clock.Now
	return b, clock
}

func TestBreaker_OpensAfterThresholdFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 3, Timeout: 30 * time.Second, HalfOpenMaxCalls: 1})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
	}

	b.RecordFailure() // third failure crosses the threshold
	assert.True(t, b.IsOpen())
	assert.False(t, b.CanExecute())
}

func TestBreaker_BlocksUntilTimeoutElapses(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, Timeout: 30 * time.Second, HalfOpenMaxCalls: 1})

	b.RecordFailure()
	require.True(t, b.IsOpen())

	clock.Advance(29 * time.Second)
	assert.False(t, b.CanExecute())

	clock.Advance(1 * time.Second)
	assert.True(t, b.CanExecute())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})

	b.RecordFailure()
	clock.Advance(time.Second)
	require.True(t, b.CanExecute())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Stats().FailureCount)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})

	b.RecordFailure()
	clock.Advance(time.Second)
	require.True(t, b.CanExecute())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenBoundsProbes(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, Timeout: time.Second, HalfOpenMaxCalls: 2})

	b.RecordFailure()
	clock.Advance(time.Second)

	assert.True(t, b.CanExecute())  // first probe, transitions to half-open
	assert.True(t, b.CanExecute())  // second probe allowed
	assert.False(t, b.CanExecute()) // third probe shed
}

func TestBreaker_CountsRequestsAndBlocked(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	assert.True(t, b.CanExecute())
	b.RecordFailure()
	assert.False(t, b.CanExecute())
	assert.False(t, b.CanExecute())

	stats := b.Stats()
	assert.Equal(t, uint64(3), stats.TotalRequests)
	assert.Equal(t, uint64(2), stats.TotalBlocked)
}

func TestBreaker_ResetRestoresClosed(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	stats := b.Stats()
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, 0, stats.FailureCount)
	assert.Equal(t, uint64(0), stats.TotalRequests)
	assert.True(t, b.CanExecute())
}

func TestBreaker_DoShedsWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	depErr := errors.New("dependency down")
	err := b.Do(func() error { return depErr })
	require.ErrorIs(t, err, depErr)

	err = b.Do(func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_ConcurrentFailuresSingleTransition(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 5, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	transitions := 0
	b.OnStateChange(func(name string, from, to State) {
		if to == StateOpen {
			transitions++
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitions)
	assert.True(t, b.IsOpen())
}

func TestRegistry_SharesInstancePerName(t *testing.T) {
	r := NewRegistry()

	a := r.Get("cache", DefaultConfig())
	b := r.Get("cache", Config{Threshold: 99})
	c := r.Get("history", DefaultConfig())

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, r.All(), 2)
}
