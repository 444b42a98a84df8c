package resilience

import (
	"context"

	"github.com/MrWong99/newscast/pkg/provider/image"
)

// GuardedImage implements [image.Provider] on top of a single guarded backend.
type GuardedImage struct {
	guard *Guard[image.Provider]
}

// Compile-time interface assertion.
var _ image.Provider = (*GuardedImage)(nil)

// NewGuardedImage wraps p with a circuit breaker and provider telemetry.
func NewGuardedImage(name string, p image.Provider, cfg GuardConfig) *GuardedImage {
	return &GuardedImage{guard: NewGuard("image", name, p, cfg)}
}

// Generate forwards through the breaker.
func (g *GuardedImage) Generate(ctx context.Context, prompt string) (*image.Image, error) {
	return Call(ctx, g.guard, "generate", func(ctx context.Context, p image.Provider) (*image.Image, error) {
		return p.Generate(ctx, prompt)
	})
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedImage) Breaker() *CircuitBreaker { return g.guard.breaker }
