package resilience

import (
	"context"

	"github.com/MrWong99/newscast/pkg/provider/llm"
)

// GuardedLLM implements [llm.Provider] on top of a single guarded backend.
type GuardedLLM struct {
	guard *Guard[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*GuardedLLM)(nil)

// NewGuardedLLM wraps p with a circuit breaker and provider telemetry.
func NewGuardedLLM(name string, p llm.Provider, cfg GuardConfig) *GuardedLLM {
	return &GuardedLLM{guard: NewGuard("llm", name, p, cfg)}
}

// Complete forwards the request through the breaker.
func (g *GuardedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, g.guard, "complete", func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens is local computation and bypasses the breaker.
func (g *GuardedLLM) CountTokens(messages []llm.Message) (int, error) {
	return g.guard.value.CountTokens(messages)
}

// Capabilities is static metadata and bypasses the breaker.
func (g *GuardedLLM) Capabilities(model string) llm.Capabilities {
	return g.guard.value.Capabilities(model)
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedLLM) Breaker() *CircuitBreaker { return g.guard.breaker }
