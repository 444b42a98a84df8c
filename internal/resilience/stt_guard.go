package resilience

import (
	"context"

	"github.com/MrWong99/newscast/pkg/provider/stt"
)

// GuardedSTT implements [stt.Provider] on top of a single guarded backend.
type GuardedSTT struct {
	guard *Guard[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*GuardedSTT)(nil)

// NewGuardedSTT wraps p with a circuit breaker and provider telemetry.
func NewGuardedSTT(name string, p stt.Provider, cfg GuardConfig) *GuardedSTT {
	return &GuardedSTT{guard: NewGuard("stt", name, p, cfg)}
}

// Transcribe forwards through the breaker.
func (g *GuardedSTT) Transcribe(ctx context.Context, clip stt.Clip) (*stt.Transcript, error) {
	return Call(ctx, g.guard, "transcribe", func(ctx context.Context, p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, clip)
	})
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedSTT) Breaker() *CircuitBreaker { return g.guard.breaker }
