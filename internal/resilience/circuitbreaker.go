// Package resilience guards remote provider calls.
//
// The central type is [CircuitBreaker], a three-state breaker (closed, open,
// half-open) that keeps a failing generative provider from being hammered
// while a broadcast is requested again and again. [Guard] pairs one provider
// with its own breaker, a span, and the provider metrics. The Guarded* types
// wrap each provider interface with a Guard.
//
// Failed calls are never retried. A failure is returned to the caller as is,
// and an open breaker fails fast with [ErrCircuitOpen].
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

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

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs, metrics and the admin dashboard,
	// e.g. "tts/gemini".
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close again.
	// Default: 3.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition. It runs
	// without the breaker's lock held.
	OnStateChange func(name string, from, to State)

	// Logger receives transition logs. Default: [slog.Default].
	Logger *slog.Logger

	// Now supplies the current time. Default: time.Now.
	Now func() time.Time
}

// Snapshot is a point-in-time view of a breaker for the admin dashboard.
type Snapshot struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Trips               int       `json:"trips"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	log           *slog.Logger
	now           func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenCalls   int
	halfOpenOK      int
	trips           int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields
// are replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		log:           cfg.Logger.With("breaker", cfg.Name),
		now:           cfg.Now,
		state:         StateClosed,
	}
}

// Execute runs fn if the breaker allows it and records the outcome. A nil
// error from fn counts as success.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	var moved []transition
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		moved = append(moved, cb.setState(StateHalfOpen))
	}
	if cb.state == StateOpen || (cb.state == StateHalfOpen && cb.halfOpenCalls >= cb.halfOpenMax) {
		cb.mu.Unlock()
		cb.notify(moved)
		return ErrCircuitOpen
	}
	probe := cb.state == StateHalfOpen
	if probe {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()
	cb.notify(moved)

	err := fn()

	cb.mu.Lock()
	moved = moved[:0]
	if t, ok := cb.record(err, probe); ok {
		moved = append(moved, t)
	}
	cb.mu.Unlock()
	cb.notify(moved)
	return err
}

type transition struct{ from, to State }

// record applies the outcome of one call. Must be called with cb.mu held.
func (cb *CircuitBreaker) record(err error, probe bool) (transition, bool) {
	if err != nil {
		cb.consecutiveFail++
		probeFailed := probe && cb.state == StateHalfOpen
		if probeFailed || (cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures) {
			return cb.setState(StateOpen), true
		}
		return transition{}, false
	}

	cb.consecutiveFail = 0
	if probe && cb.state == StateHalfOpen {
		cb.halfOpenOK++
		if cb.halfOpenOK >= cb.halfOpenMax {
			return cb.setState(StateClosed), true
		}
	}
	return transition{}, false
}

// setState switches state and resets the per-state counters. Must be called
// with cb.mu held.
func (cb *CircuitBreaker) setState(to State) transition {
	t := transition{from: cb.state, to: to}
	cb.state = to
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.trips++
	case StateClosed:
		cb.consecutiveFail = 0
		cb.openedAt = time.Time{}
	}
	return t
}

func (cb *CircuitBreaker) notify(moved []transition) {
	for _, t := range moved {
		level := slog.LevelInfo
		if t.to == StateOpen {
			level = slog.LevelWarn
		}
		cb.log.Log(context.Background(), level, "circuit breaker state changed",
			"from", t.from.String(), "to", t.to.String())
		if cb.onStateChange != nil {
			cb.onStateChange(cb.name, t.from, t.to)
		}
	}
}

// State returns the current [State]. An open breaker whose reset timeout
// has elapsed reports [StateHalfOpen]; the transition itself happens on the
// next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.effectiveState()
}

func (cb *CircuitBreaker) effectiveState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Snapshot returns the breaker's current counters.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		Name:                cb.name,
		State:               cb.effectiveState(),
		ConsecutiveFailures: cb.consecutiveFail,
		Trips:               cb.trips,
		OpenedAt:            cb.openedAt,
	}
}

// Reset forces the breaker back to [StateClosed], e.g. after an operator
// fixed a provider key.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var moved []transition
	if cb.state != StateClosed {
		moved = append(moved, cb.setState(StateClosed))
	}
	cb.consecutiveFail = 0
	cb.mu.Unlock()
	cb.notify(moved)
}

// Name returns the label the breaker was created with.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
