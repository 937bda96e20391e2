package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [FallbackGroup] produced a
// result.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig is shared by every member of a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for each member's breaker; its Name is
	// replaced by the member name.
	CircuitBreaker CircuitBreakerConfig

	// OnFailover is called for every member whose call failed. Members
	// skipped because their breaker is open are not reported.
	OnFailover func(name string, err error)

	// Logger receives failover messages. Default: slog.Default().
	Logger *slog.Logger
}

// EntryStatus is the breaker state of one member.
type EntryStatus struct {
	Name  string
	State State
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds instances of one provider type in preference order,
// each behind its own circuit breaker. Members are added before the group is
// shared; after that it is safe for concurrent use.
type FallbackGroup[T any] struct {
	cfg     FallbackConfig
	members []member[T]
}

// NewFallbackGroup returns a group whose first member is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a member tried after all earlier ones.
func (fg *FallbackGroup[T]) AddFallback(name string, v T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name
	fg.members = append(fg.members, member[T]{name: name, value: v, breaker: NewCircuitBreaker(bc)})
}

// Primary returns the first member.
func (fg *FallbackGroup[T]) Primary() T { return fg.members[0].value }

// Status lists every member in preference order.
func (fg *FallbackGroup[T]) Status() []EntryStatus {
	out := make([]EntryStatus, 0, len(fg.members))
	for _, m := range fg.members {
		out = append(out, EntryStatus{Name: m.name, State: m.breaker.State()})
	}
	return out
}

// Healthy fails only when every breaker is open.
func (fg *FallbackGroup[T]) Healthy(context.Context) error {
	for _, m := range fg.members {
		if m.breaker.State() != StateOpen {
			return nil
		}
	}
	return fmt.Errorf("%w: every circuit breaker is open", ErrAllFailed)
}

// Execute is [ExecuteWithResult] for calls without a result.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) { return struct{}{}, fn(v) })
	return err
}

// ExecuteWithResult calls fn on each member in order and returns the first
// success. Members with an open breaker are skipped. When all fail, the
// error wraps [ErrAllFailed] and the last failure. A cancellation ends the
// walk at once and is returned as is.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero R
		last error
	)
	for i := range fg.members {
		m := &fg.members[i]
		var res R
		err := m.breaker.Execute(func() (err error) {
			res, err = fn(m.value)
			return err
		})
		switch {
		case err == nil:
			return res, nil
		case isCancellation(err):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			fg.cfg.Logger.Debug("resilience: circuit open, skipping", "provider", m.name)
		default:
			fg.cfg.Logger.Warn("resilience: provider failed", "provider", m.name, "err", err)
			if fg.cfg.OnFailover != nil {
				fg.cfg.OnFailover(m.name, err)
			}
		}
		last = err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, last)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
