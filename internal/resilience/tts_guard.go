package resilience

import (
	"context"

	"github.com/MrWong99/newscast/pkg/provider/tts"
)

// GuardedTTS implements [tts.Provider] on top of a single guarded backend.
type GuardedTTS struct {
	guard *Guard[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*GuardedTTS)(nil)

// NewGuardedTTS wraps p with a circuit breaker and provider telemetry.
func NewGuardedTTS(name string, p tts.Provider, cfg GuardConfig) *GuardedTTS {
	return &GuardedTTS{guard: NewGuard("tts", name, p, cfg)}
}

// Synthesize forwards through the breaker.
func (g *GuardedTTS) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Speech, error) {
	return Call(ctx, g.guard, "synthesize", func(ctx context.Context, p tts.Provider) (*tts.Speech, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// ListVoices forwards through the breaker.
func (g *GuardedTTS) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return Call(ctx, g.guard, "list_voices", func(ctx context.Context, p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// CloneVoice forwards through the breaker.
func (g *GuardedTTS) CloneVoice(ctx context.Context, name string, samples [][]byte) (*tts.VoiceProfile, error) {
	return Call(ctx, g.guard, "clone_voice", func(ctx context.Context, p tts.Provider) (*tts.VoiceProfile, error) {
		return p.CloneVoice(ctx, name, samples)
	})
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedTTS) Breaker() *CircuitBreaker { return g.guard.breaker }
