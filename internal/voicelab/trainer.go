package voicelab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/provider/tts"
	"github.com/MrWong99/newscast/pkg/provider/vad"
)

// ErrEmptySample is returned by trainers that need audio when the capture
// produced none.
var ErrEmptySample = errors.New("voicelab: empty voice sample")

// Trainer turns a voice sample into a base voice id the speech backend can
// synthesize with. sample may be nil when the capture recorded nothing.
type Trainer interface {
	// Name labels the trainer in metrics and logs.
	Name() string

	Train(ctx context.Context, sample *audio.Asset) (baseVoice string, err error)
}

// ── Simulated ───────────────────────────────────────────────────────────────

// SimulatedTrainer stands in for a training service: it waits Delay and
// hands back BaseVoice. The sample is discarded.
type SimulatedTrainer struct {
	Delay     time.Duration
	BaseVoice string
}

var _ Trainer = SimulatedTrainer{}

// NewSimulatedTrainer returns a trainer that waits delay and produces the
// stock clone base voice.
func NewSimulatedTrainer(delay time.Duration) SimulatedTrainer {
	return SimulatedTrainer{Delay: delay, BaseVoice: voice.CloneBaseVoice}
}

// Name implements [Trainer].
func (SimulatedTrainer) Name() string { return "simulated" }

// Train implements [Trainer].
func (t SimulatedTrainer) Train(ctx context.Context, _ *audio.Asset) (string, error) {
	if t.Delay > 0 {
		timer := time.NewTimer(t.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if t.BaseVoice == "" {
		return voice.CloneBaseVoice, nil
	}
	return t.BaseVoice, nil
}

// ── Provider ────────────────────────────────────────────────────────────────

// sampleRate is the rate samples are normalised to before upload.
const sampleRate = 16000

// ProviderTrainer uploads the sample to a speech backend that supports
// instant voice cloning and returns the id it assigns.
type ProviderTrainer struct {
	tts  tts.Provider
	vad  vad.Engine
	name func() string
}

var _ Trainer = (*ProviderTrainer)(nil)

// NewProviderTrainer returns a trainer backed by p. When engine is non-nil
// leading and trailing silence is cut from the sample first. voiceName names
// each uploaded voice; nil uses a timestamp.
func NewProviderTrainer(p tts.Provider, engine vad.Engine, voiceName func() string) *ProviderTrainer {
	if voiceName == nil {
		voiceName = func() string { return "newscast-clone-" + time.Now().UTC().Format("20060102-150405") }
	}
	return &ProviderTrainer{tts: p, vad: engine, name: voiceName}
}

// Name implements [Trainer].
func (*ProviderTrainer) Name() string { return "provider" }

// Train implements [Trainer].
func (t *ProviderTrainer) Train(ctx context.Context, sample *audio.Asset) (string, error) {
	if sample == nil || sample.Frames() == 0 {
		return "", ErrEmptySample
	}
	wav, err := t.prepare(sample)
	if err != nil {
		return "", err
	}
	profile, err := t.tts.CloneVoice(ctx, t.name(), [][]byte{wav})
	if err != nil {
		return "", fmt.Errorf("voicelab: clone voice: %w", err)
	}
	if profile == nil || profile.ID == "" {
		return "", errors.New("voicelab: clone voice: backend returned no voice id")
	}
	return profile.ID, nil
}

// prepare converts the sample to 16 kHz mono WAV, trimmed when a VAD engine
// is configured.
func (t *ProviderTrainer) prepare(sample *audio.Asset) ([]byte, error) {
	target := audio.Format{SampleRate: sampleRate, Channels: 1}
	conv := audio.Converter{Target: target}
	pcm := conv.Convert(audio.Frame{Data: audio.EncodePCM16(sample), Format: sample.Format()}).Data

	if t.vad != nil {
		trimmed, err := vad.Trim(t.vad, vad.DefaultTrimConfig(sampleRate), pcm)
		if err != nil {
			return nil, fmt.Errorf("voicelab: trim sample: %w", err)
		}
		pcm = trimmed
	}
	clip, err := audio.DecodePCM16(pcm, target.SampleRate, target.Channels)
	if err != nil {
		return nil, err
	}
	return audio.EncodeWAV(clip), nil
}
