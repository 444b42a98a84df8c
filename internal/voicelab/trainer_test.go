package voicelab_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/internal/voicelab"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/provider/tts"
	ttsmock "github.com/MrWong99/newscast/pkg/provider/tts/mock"
	"github.com/MrWong99/newscast/pkg/provider/vad"
	vadmock "github.com/MrWong99/newscast/pkg/provider/vad/mock"
)

func stereoSecond(t *testing.T) *audio.Asset {
	t.Helper()
	a, err := audio.DecodePCM16(make([]byte, 48000*2*2), 48000, 2)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	return a
}

// ── SimulatedTrainer ─────────────────────────────────────────────────────────

func TestSimulatedTrainer(t *testing.T) {
	t.Parallel()
	tr := voicelab.NewSimulatedTrainer(5 * time.Millisecond)

	start := time.Now()
	base, err := tr.Train(t.Context(), nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if base != voice.CloneBaseVoice {
		t.Errorf("base voice: got %q, want %q", base, voice.CloneBaseVoice)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("trainer should wait for its delay")
	}
}

func TestSimulatedTrainer_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := voicelab.NewSimulatedTrainer(time.Hour).Train(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

// ── ProviderTrainer ──────────────────────────────────────────────────────────

func TestProviderTrainer_UploadsSample(t *testing.T) {
	t.Parallel()
	p := &ttsmock.Provider{CloneVoiceResult: &tts.VoiceProfile{ID: "el-123"}}
	tr := voicelab.NewProviderTrainer(p, nil, func() string { return "clone-a" })

	base, err := tr.Train(t.Context(), stereoSecond(t))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if base != "el-123" {
		t.Errorf("base voice: got %q", base)
	}
	if len(p.CloneVoiceCalls) != 1 {
		t.Fatalf("clone calls: got %d", len(p.CloneVoiceCalls))
	}
	call := p.CloneVoiceCalls[0]
	if call.Name != "clone-a" || len(call.Samples) != 1 {
		t.Fatalf("clone call: name=%q samples=%d", call.Name, len(call.Samples))
	}
	wav, err := audio.DecodeWAV(call.Samples[0])
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if wav.SampleRate() != 16000 || wav.Channels() != 1 || wav.Frames() != 16000 {
		t.Errorf("uploaded sample: %d Hz, %d ch, %d frames", wav.SampleRate(), wav.Channels(), wav.Frames())
	}
}

func TestProviderTrainer_Errors(t *testing.T) {
	t.Parallel()

	t.Run("empty sample", func(t *testing.T) {
		tr := voicelab.NewProviderTrainer(&ttsmock.Provider{}, nil, nil)
		if _, err := tr.Train(t.Context(), nil); !errors.Is(err, voicelab.ErrEmptySample) {
			t.Errorf("got %v, want ErrEmptySample", err)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		tr := voicelab.NewProviderTrainer(&ttsmock.Provider{CloneVoiceErr: tts.ErrCloneUnsupported}, nil, nil)
		if _, err := tr.Train(t.Context(), stereoSecond(t)); !errors.Is(err, tts.ErrCloneUnsupported) {
			t.Errorf("got %v, want ErrCloneUnsupported", err)
		}
	})

	t.Run("silent sample", func(t *testing.T) {
		quiet := &vadmock.Session{Fallback: vad.Event{Kind: vad.Silence}}
		p := &ttsmock.Provider{}
		tr := voicelab.NewProviderTrainer(p, &vadmock.Engine{Session: quiet}, nil)
		if _, err := tr.Train(t.Context(), stereoSecond(t)); !errors.Is(err, vad.ErrNoSpeech) {
			t.Errorf("got %v, want ErrNoSpeech", err)
		}
		if len(p.CloneVoiceCalls) != 0 {
			t.Error("silent sample should not be uploaded")
		}
	})

	t.Run("no voice id", func(t *testing.T) {
		tr := voicelab.NewProviderTrainer(&ttsmock.Provider{CloneVoiceResult: &tts.VoiceProfile{}}, nil, nil)
		if _, err := tr.Train(t.Context(), stereoSecond(t)); err == nil {
			t.Error("expected error for a profile without id")
		}
	})
}

// ── BufferMicrophone ─────────────────────────────────────────────────────────

func TestBufferMicrophone_Limit(t *testing.T) {
	t.Parallel()
	mic := voicelab.NewBufferMicrophone(audio.Format{SampleRate: 16000, Channels: 1}, time.Second, true)
	if err := mic.Open(t.Context()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for range 4 {
		if n, err := mic.Write(make([]byte, 10001)); err != nil || n != 10001 {
			t.Fatalf("Write: n=%d err=%v", n, err)
		}
	}
	a, err := mic.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.Frames() != 16000 {
		t.Errorf("frames: got %d, want 16000", a.Frames())
	}
	if a2, err := mic.Close(); a2 != nil || err != nil {
		t.Errorf("second close: %v, %v", a2, err)
	}
}

func TestBufferMicrophone_ReopenDiscards(t *testing.T) {
	t.Parallel()
	mic := voicelab.NewBufferMicrophone(audio.Format{SampleRate: 16000, Channels: 1}, time.Second, true)
	_ = mic.Open(t.Context())
	_, _ = mic.Write(make([]byte, 640))
	_ = mic.Open(t.Context())
	_, _ = mic.Write(make([]byte, 321))

	a, err := mic.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.Frames() != 160 {
		t.Errorf("frames: got %d, want 160 (partial frame dropped)", a.Frames())
	}
}
