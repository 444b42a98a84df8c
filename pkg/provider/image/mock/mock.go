// Package mock provides a test double for the image.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/newscast/pkg/provider/image"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Prompt is the prompt passed to Generate.
	Prompt string
}

// Provider is a mock implementation of image.Provider.
type Provider struct {
	mu sync.Mutex

	// GenerateResult is returned by Generate.
	GenerateResult *image.Image

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// Block, if non-nil, makes Generate wait until it is closed or the
	// context is cancelled.
	Block chan struct{}

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall
}

// Generate records the call and returns GenerateResult, GenerateErr.
func (p *Provider) Generate(ctx context.Context, prompt string) (*image.Image, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Prompt: prompt})
	block := p.Block
	res, err := p.GenerateResult, p.GenerateErr
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []GenerateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]GenerateCall, len(p.GenerateCalls))
	copy(out, p.GenerateCalls)
	return out
}

// Ensure Provider implements image.Provider at compile time.
var _ image.Provider = (*Provider)(nil)
