package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned by Do when the breaker refuses the call.
var ErrOpen = errors.New("breaker: circuit open")

// Config holds circuit breaker tuning.
type Config struct {
	// Threshold is the consecutive-failure count that trips the breaker
	Threshold int
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration
	// HalfOpenMaxCalls bounds concurrent probes while half-open
	HalfOpenMaxCalls int
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// Stats is a point-in-time snapshot of breaker counters.
type Stats struct {
	State           State
	FailureCount    int
	SuccessCount    int
	HalfOpenCalls   int
	TotalRequests   uint64
	TotalBlocked    uint64
	LastFailure     time.Time
	LastSuccess     time.Time
	LastStateChange time.Time
}

// Breaker protects a degradable dependency with the usual three-state
// machine. All state transitions happen inside one mutex so a threshold
// crossing fires exactly once even under concurrent callers.
type Breaker struct {
	mu   sync.Mutex
	cfg  Config
	name string

	state         State
	failureCount  int
	successCount  int
	halfOpenCalls int
	totalRequests uint64
	totalBlocked  uint64

	lastFailure     time.Time
	lastSuccess     time.Time
	lastStateChange time.Time

	now func() time.Time

	onStateChange func(name string, from, to State)
}

// New creates a closed breaker with the given config.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		cfg:   cfg.normalize(),
		name:  name,
		state: StateClosed,
		now:   time.Now,
	}
}

// OnStateChange registers a callback invoked (outside hot paths but inside
// the state mutex) on every transition.
func (b *Breaker) OnStateChange(fn func(name string, from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Name returns the breaker's registry name.
func (b *Breaker) Name() string {
	return b.name
}

// CanExecute reports whether a call may proceed. An open breaker moves to
// half-open lazily once Timeout has elapsed since the last failure.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.Timeout {
			b.transition(StateHalfOpen)
			b.halfOpenCalls = 1
			return true
		}
		b.totalBlocked++
		return false
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			b.totalBlocked++
			return false
		}
		b.halfOpenCalls++
		return true
	}
	return false
}

// RecordSuccess marks a successful call. The first success while
// half-open closes the circuit and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successCount++
	b.lastSuccess = b.now()

	if b.state == StateHalfOpen {
		b.transition(StateClosed)
		b.failureCount = 0
		b.halfOpenCalls = 0
	}
}

// RecordFailure marks a failed call. A half-open breaker reopens on the
// first failure; a closed breaker opens once failures reach Threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = b.now()

	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
		b.halfOpenCalls = 0
	case StateClosed:
		if b.failureCount >= b.cfg.Threshold {
			b.transition(StateOpen)
		}
	}
}

// Do runs fn under the breaker, returning ErrOpen when the call is shed.
func (b *Breaker) Do(fn func() error) error {
	if !b.CanExecute() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Reset forces the breaker closed with zeroed counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.transition(StateClosed)
	}
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenCalls = 0
	b.totalRequests = 0
	b.totalBlocked = 0
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether the breaker currently refuses calls.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:           b.state,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		HalfOpenCalls:   b.halfOpenCalls,
		TotalRequests:   b.totalRequests,
		TotalBlocked:    b.totalBlocked,
		LastFailure:     b.lastFailure,
		LastSuccess:     b.lastSuccess,
		LastStateChange: b.lastStateChange,
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastStateChange = b.now()
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
