// Package resilience provides circuit breaker and provider failover primitives
// for the chat and media backends.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open). A
// [FallbackGroup] gives each provider its own breaker and walks them in order,
// so a failing primary is bypassed while a fallback answers. [LLMFallback] and
// [MediaFallback] wrap groups behind the provider interfaces. Context
// cancellation never counts as a backend failure.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected until the reset timeout
	StateHalfOpen              // a few probes decide between closed and open
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker defaults.
const (
	DefaultMaxFailures  = 5
	DefaultResetTimeout = 30 * time.Second
	DefaultHalfOpenMax  = 3
)

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker]. Zero values
// take the package defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: [DefaultMaxFailures].
	MaxFailures int

	// ResetTimeout is how long an open breaker rejects calls before it lets
	// probes through. Default: [DefaultResetTimeout].
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probes admitted while half-open, and the
	// number of successful probes needed to close. Default:
	// [DefaultHalfOpenMax].
	HalfOpenMax int

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// CircuitBreaker is a closed/open/half-open breaker. It is safe for
// concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int       // consecutive failures while closed
	openedAt time.Time // last trip
	probes   int       // probes admitted in the current half-open phase
	passed   int       // probes that succeeded
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = DefaultHalfOpenMax
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the breaker rejects the call with [ErrCircuitOpen].
// A cancellation error from fn leaves the breaker unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, err)
	return err
}

// admit decides whether a call may proceed and whether it is a probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes, cb.passed = 0, 0
		slog.Info("circuit breaker half-open", "name", cb.cfg.Name)
	}
	if cb.state != StateHalfOpen {
		return false, nil
	}
	if cb.probes >= cb.cfg.HalfOpenMax {
		return false, ErrCircuitOpen
	}
	cb.probes++
	return true, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case isCancellation(err):
		if probe {
			cb.probes--
		}
	case err != nil && probe:
		cb.trip()
		slog.Warn("circuit breaker re-opened by failed probe", "name", cb.cfg.Name, "err", err)
	case err != nil:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
			cb.trip()
			slog.Warn("circuit breaker opened", "name", cb.cfg.Name, "consecutive_failures", cb.failures)
		}
	case probe:
		cb.passed++
		if cb.state == StateHalfOpen && cb.passed >= cb.cfg.HalfOpenMax {
			cb.close()
			slog.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
	default:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.cfg.Now()
	cb.failures = cb.cfg.MaxFailures
}

func (cb *CircuitBreaker) close() {
	cb.state = StateClosed
	cb.failures, cb.probes, cb.passed = 0, 0, 0
}

// State returns the breaker state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.close()
	slog.Info("circuit breaker reset", "name", cb.cfg.Name)
}
