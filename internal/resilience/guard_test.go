package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/pkg/provider/image"
	imagemock "github.com/MrWong99/newscast/pkg/provider/image/mock"
	"github.com/MrWong99/newscast/pkg/provider/llm"
	llmmock "github.com/MrWong99/newscast/pkg/provider/llm/mock"
	"github.com/MrWong99/newscast/pkg/provider/stt"
	sttmock "github.com/MrWong99/newscast/pkg/provider/stt/mock"
	"github.com/MrWong99/newscast/pkg/provider/tts"
	ttsmock "github.com/MrWong99/newscast/pkg/provider/tts/mock"
)

func testGuardConfig(t *testing.T, maxFailures int) (GuardConfig, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return GuardConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: maxFailures, ResetTimeout: time.Hour},
		Metrics:        m,
	}, reader
}

// requestCount returns the provider.requests value for the given status.
func requestCount(t *testing.T, reader *sdkmetric.ManualReader, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "newscast.provider.requests" {
				continue
			}
			sum := met.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("status"); ok && v.AsString() == status {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestGuardedLLM_PassesThrough(t *testing.T) {
	cfg, reader := testGuardConfig(t, 3)
	p := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "Good evening."},
		TokenCount:        42,
		ModelCapabilities: llm.Capabilities{ContextWindow: 1000},
	}
	g := NewGuardedLLM("gemini", p, cfg)

	resp, err := g.Complete(context.Background(), llm.CompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Good evening." {
		t.Errorf("content = %q", resp.Content)
	}
	if n, _ := g.CountTokens(nil); n != 42 {
		t.Errorf("CountTokens = %d, want 42", n)
	}
	if c := g.Capabilities("m"); c.ContextWindow != 1000 {
		t.Errorf("Capabilities = %+v", c)
	}
	if got := requestCount(t, reader, "ok"); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
}

func TestGuardedLLM_OpensAndFailsFast(t *testing.T) {
	cfg, reader := testGuardConfig(t, 2)
	boom := errors.New("quota exceeded")
	p := &llmmock.Provider{CompleteErr: boom}
	g := NewGuardedLLM("gemini", p, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := g.Complete(ctx, llm.CompletionRequest{}); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want %v", i, err, boom)
		}
	}
	if g.Breaker().State() != StateOpen {
		t.Fatalf("breaker state = %v, want open", g.Breaker().State())
	}

	_, err := g.Complete(ctx, llm.CompletionRequest{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if n := len(p.Calls()); n != 2 {
		t.Errorf("provider called %d times, want 2 (no retry, no call while open)", n)
	}
	if got := requestCount(t, reader, "circuit_open"); got != 1 {
		t.Errorf("circuit_open requests = %d, want 1", got)
	}
	if got := requestCount(t, reader, "error"); got != 2 {
		t.Errorf("error requests = %d, want 2", got)
	}
}

func TestGuard_CallerCancellationDoesNotTrip(t *testing.T) {
	cfg, _ := testGuardConfig(t, 1)
	p := &ttsmock.Provider{Block: make(chan struct{})}
	g := NewGuardedTTS("gemini", p, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Synthesize(ctx, "x", tts.VoiceProfile{ID: "Kore"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if g.Breaker().State() != StateClosed {
		t.Errorf("breaker state = %v, want closed", g.Breaker().State())
	}
}

func TestGuardedTTS_AllOperations(t *testing.T) {
	cfg, _ := testGuardConfig(t, 3)
	p := &ttsmock.Provider{
		SynthesizeResult: &tts.Speech{PCM: []byte{0, 0}},
		ListVoicesResult: []tts.VoiceProfile{{ID: "Kore"}},
		CloneVoiceResult: &tts.VoiceProfile{ID: "clone-1"},
	}
	g := NewGuardedTTS("elevenlabs", p, cfg)
	ctx := context.Background()

	if sp, err := g.Synthesize(ctx, "hi", tts.VoiceProfile{ID: "Kore"}); err != nil || len(sp.PCM) != 2 {
		t.Errorf("Synthesize = %v, %v", sp, err)
	}
	if vs, err := g.ListVoices(ctx); err != nil || len(vs) != 1 {
		t.Errorf("ListVoices = %v, %v", vs, err)
	}
	if v, err := g.CloneVoice(ctx, "My Clone 1", [][]byte{{1}}); err != nil || v.ID != "clone-1" {
		t.Errorf("CloneVoice = %v, %v", v, err)
	}
	if len(p.CloneVoiceCalls) != 1 || p.CloneVoiceCalls[0].Name != "My Clone 1" {
		t.Errorf("clone calls = %+v", p.CloneVoiceCalls)
	}
}

func TestGuardedImage_WrapsError(t *testing.T) {
	cfg, _ := testGuardConfig(t, 3)
	p := &imagemock.Provider{GenerateErr: image.ErrNoImage}
	g := NewGuardedImage("gemini", p, cfg)

	_, err := g.Generate(context.Background(), "neon skyline")
	if !errors.Is(err, image.ErrNoImage) {
		t.Fatalf("err = %v, want ErrNoImage", err)
	}
}

func TestGuardedSTT_PassesThrough(t *testing.T) {
	cfg, _ := testGuardConfig(t, 3)
	p := &sttmock.Provider{Result: &stt.Transcript{Text: "breaking news"}}
	g := NewGuardedSTT("whisper", p, cfg)

	tr, err := g.Transcribe(context.Background(), stt.Clip{WAV: []byte("RIFF"), Language: "en-US"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "breaking news" {
		t.Errorf("text = %q", tr.Text)
	}
	if p.CallCount() != 1 || p.Calls[0].Clip.Language != "en-US" {
		t.Errorf("calls = %+v", p.Calls)
	}
}
