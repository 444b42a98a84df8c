package energy_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/newscast/pkg/provider/vad"
	"github.com/MrWong99/newscast/pkg/provider/vad/energy"
)

var cfg = vad.Config{SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 0.5, SilenceThreshold: 0.35}

// pcm builds 16 kHz mono audio: silence, a 300 Hz tone, silence (milliseconds each).
func pcm(silenceMs, toneMs, tailMs int) []byte {
	total := (silenceMs + toneMs + tailMs) * 16
	out := make([]byte, total*2)
	for i := range total {
		var v float64
		if i >= silenceMs*16 && i < (silenceMs+toneMs)*16 {
			v = 0.3 * math.Sin(2*math.Pi*300*float64(i)/16000)
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v*32767)))
	}
	return out
}

func TestSession_StartContinueEnd(t *testing.T) {
	sess, err := energy.New(energy.WithHangoverFrames(1)).NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	frame := cfg.FrameBytes()
	audio := pcm(40, 60, 60)

	var got []vad.Kind
	for off := 0; off+frame <= len(audio); off += frame {
		ev, err := sess.ProcessFrame(audio[off : off+frame])
		if err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
		got = append(got, ev.Kind)
	}
	want := []vad.Kind{
		vad.Silence, vad.Silence,
		vad.SpeechStart, vad.Speech, vad.Speech,
		vad.Speech, vad.SpeechEnd, vad.Silence,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v (all %v)", i, got[i], want[i], got)
		}
	}
}

func TestSession_WrongFrameSize(t *testing.T) {
	sess, _ := energy.New().NewSession(cfg)
	if _, err := sess.ProcessFrame(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short frame")
	}
	_ = sess.Close()
	if _, err := sess.ProcessFrame(make([]byte, cfg.FrameBytes())); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestNewSession_Validation(t *testing.T) {
	bad := []vad.Config{
		{SampleRate: 0, FrameSizeMs: 20, SpeechThreshold: 0.5},
		{SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 0},
		{SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 0.5, SilenceThreshold: 0.6},
	}
	for _, c := range bad {
		if _, err := energy.New().NewSession(c); !errors.Is(err, vad.ErrInvalidConfig) {
			t.Errorf("NewSession(%+v) = %v, want ErrInvalidConfig", c, err)
		}
	}
}

func TestSpeechBounds_TrimsSilence(t *testing.T) {
	audio := pcm(100, 200, 100)
	start, end, err := vad.SpeechBounds(energy.New(), cfg, audio)
	if err != nil {
		t.Fatalf("SpeechBounds: %v", err)
	}
	frame := cfg.FrameBytes()
	if start != 5*frame {
		t.Errorf("start = %d, want %d", start, 5*frame)
	}
	if end != 15*frame {
		t.Errorf("end = %d, want %d", end, 15*frame)
	}
}

func TestSpeechBounds_Silence(t *testing.T) {
	if _, _, err := vad.SpeechBounds(energy.New(), cfg, pcm(200, 0, 0)); !errors.Is(err, vad.ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
}
