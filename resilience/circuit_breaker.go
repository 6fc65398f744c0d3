package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCircuitBreakerOpen    = errors.New("circuit breaker is open")
	ErrCircuitBreakerTimeout = errors.New("circuit breaker operation timeout")
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// StateChange is emitted on every state transition so callers can feed
// monitoring. Delivered synchronously from the transition point; listeners
// must not call back into the breaker.
type StateChange struct {
	ID   string
	From CircuitBreakerState
	To   CircuitBreakerState
	At   time.Time
}

// CircuitBreakerConfig defines configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// WindowSize is the number of most-recent call outcomes kept in the
	// sliding window used to compute the failure rate.
	WindowSize int

	// MinimumCalls is the number of recorded calls required before the
	// failure rate is evaluated at all.
	MinimumCalls int

	// FailureRateThreshold opens the circuit when the windowed failure
	// rate meets or exceeds it (0..1).
	FailureRateThreshold float64

	// OpenTimeout is how long to wait before transitioning from Open to Half-Open
	OpenTimeout time.Duration

	// HalfOpenMaxCalls is the number of test calls allowed through in Half-Open state
	HalfOpenMaxCalls int

	// HalfOpenSuccesses is the number of successful test calls needed in Half-Open to go to Closed
	HalfOpenSuccesses int

	// OnStateChange, when set, receives every state transition.
	OnStateChange func(StateChange)
}

// DefaultCircuitBreakerConfig returns a default configuration
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		WindowSize:           100,
		MinimumCalls:         10,
		FailureRateThreshold: 0.5,
		OpenTimeout:          30 * time.Second,
		HalfOpenMaxCalls:     10,
		HalfOpenSuccesses:    5,
	}
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.MinimumCalls <= 0 {
		c.MinimumCalls = def.MinimumCalls
	}
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = def.FailureRateThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = def.OpenTimeout
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = def.HalfOpenSuccesses
	}
	return c
}

// CircuitBreaker implements the circuit breaker pattern for fault tolerance.
// The state and the sliding outcome window are one unit of truth guarded by
// a single mutex: state drives routing decisions on every call, so torn
// reads are not acceptable.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         CircuitBreakerState
	window        []bool // true = failure
	windowLen     int
	windowNext    int
	windowFails   int
	openedAt      time.Time
	halfOpenCalls int
	halfOpenOKs   int
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	config = config.withDefaults()
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		window: make([]bool, config.WindowSize),
	}
}

// Allow reports whether a call may proceed to the delegate right now.
// In Open state it returns ErrCircuitBreakerOpen until the open timeout
// elapses, at which point the breaker moves to Half-Open and admits a
// bounded number of test calls.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.OpenTimeout {
			cb.transitionLocked(StateHalfOpen)
			cb.halfOpenCalls++
			return nil
		}
		return ErrCircuitBreakerOpen

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCalls++
		return nil

	default:
		return ErrCircuitBreakerOpen
	}
}

// Record feeds a call outcome into the breaker. Callers pair every admitted
// Allow with exactly one Record.
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.recordLocked(!success)
		if cb.windowLen >= cb.config.MinimumCalls && cb.failureRateLocked() >= cb.config.FailureRateThreshold {
			cb.transitionLocked(StateOpen)
		}

	case StateHalfOpen:
		if !success {
			cb.transitionLocked(StateOpen)
			return
		}
		cb.halfOpenOKs++
		if cb.halfOpenOKs >= cb.config.HalfOpenSuccesses {
			cb.transitionLocked(StateClosed)
		}

	case StateOpen:
		// Late result from a call admitted before the circuit opened.
		// The window resets on every transition, so drop it.
	}
}

// Execute wraps a function call with circuit breaker logic
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		cb.Record(false)
		return err
	}
	err := fn()
	cb.Record(err == nil)
	return err
}

// recordLocked pushes an outcome into the sliding window.
func (cb *CircuitBreaker) recordLocked(failure bool) {
	if cb.windowLen == len(cb.window) {
		// Overwriting the oldest entry.
		if cb.window[cb.windowNext] {
			cb.windowFails--
		}
	} else {
		cb.windowLen++
	}
	cb.window[cb.windowNext] = failure
	if failure {
		cb.windowFails++
	}
	cb.windowNext = (cb.windowNext + 1) % len(cb.window)
}

func (cb *CircuitBreaker) failureRateLocked() float64 {
	if cb.windowLen == 0 {
		return 0
	}
	return float64(cb.windowFails) / float64(cb.windowLen)
}

// transitionLocked moves to a new state, resets per-state bookkeeping and
// notifies the listener. Callers hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(to CircuitBreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.windowLen = 0
	cb.windowNext = 0
	cb.windowFails = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOKs = 0
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(StateChange{
			ID:   uuid.New().String(),
			From: from,
			To:   to,
			At:   time.Now(),
		})
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureRate returns the windowed failure rate (0..1).
func (cb *CircuitBreaker) FailureRate() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureRateLocked()
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
}

// CircuitBreakerStats is a point-in-time snapshot of breaker internals.
type CircuitBreakerStats struct {
	State       CircuitBreakerState
	WindowCalls int
	Failures    int
	FailureRate float64
}

// Stats returns current statistics
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:       cb.state,
		WindowCalls: cb.windowLen,
		Failures:    cb.windowFails,
		FailureRate: cb.failureRateLocked(),
	}
}
