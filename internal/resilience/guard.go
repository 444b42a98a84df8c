package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/newscast/internal/observe"
)

// GuardConfig configures the breaker and telemetry of a [Guard].
type GuardConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// Metrics receives provider request, error and latency measurements.
	// Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Guard pairs a single provider with a dedicated circuit breaker. Every call
// made through [Call] runs inside a span and is counted in the provider
// metrics under the guard's kind and name.
type Guard[T any] struct {
	kind    string
	name    string
	value   T
	breaker *CircuitBreaker
	metrics *observe.Metrics
}

// NewGuard creates a [Guard] for value. kind is the provider category (llm,
// tts, image, stt) and name the configured provider name.
func NewGuard[T any](kind, name string, value T, cfg GuardConfig) *Guard[T] {
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = kind + "/" + name
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Guard[T]{
		kind:    kind,
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
		metrics: m,
	}
}

// Name returns the provider name.
func (g *Guard[T]) Name() string { return g.name }

// Kind returns the provider category.
func (g *Guard[T]) Kind() string { return g.kind }

// Breaker returns the guard's circuit breaker.
func (g *Guard[T]) Breaker() *CircuitBreaker { return g.breaker }

// Call runs fn against the guarded provider. It is a package-level function
// because Go does not support method-level type parameters.
//
// A call rejected by an open breaker returns [ErrCircuitOpen] without
// reaching the provider. Errors caused by the caller cancelling ctx are
// returned but not counted against the breaker.
func Call[T any, R any](ctx context.Context, g *Guard[T], op string, fn func(context.Context, T) (R, error)) (R, error) {
	ctx, span := observe.StartSpan(ctx, g.kind+"."+op,
		trace.WithAttributes(
			attribute.String("provider", g.name),
			attribute.String("kind", g.kind),
		),
	)
	defer span.End()

	var (
		result  R
		callErr error
		called  bool
	)
	start := time.Now()
	err := g.breaker.Execute(func() error {
		called = true
		result, callErr = fn(ctx, g.value)
		if callErr != nil && ctx.Err() != nil {
			return nil
		}
		return callErr
	})
	if err == nil {
		err = callErr
	}
	if called {
		g.metrics.RecordProviderDuration(ctx, g.name, g.kind, time.Since(start).Seconds())
	}

	if err == nil {
		g.metrics.RecordProviderRequest(ctx, g.name, g.kind, "ok")
		return result, nil
	}

	status := "error"
	if errors.Is(err, ErrCircuitOpen) {
		status = "circuit_open"
	}
	g.metrics.RecordProviderRequest(ctx, g.name, g.kind, status)
	g.metrics.RecordProviderError(ctx, g.name, g.kind)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observe.Logger(ctx).Warn("provider call failed",
		slog.String("kind", g.kind),
		slog.String("provider", g.name),
		slog.String("op", op),
		slog.String("status", status),
		slog.Any("err", err),
	)

	var zero R
	return zero, fmt.Errorf("%s/%s %s: %w", g.kind, g.name, op, err)
}
