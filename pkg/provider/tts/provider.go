// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Gemini, OpenAI or
// ElevenLabs) and presents a uniform request/response interface: the full
// broadcast script goes in and a single block of 16-bit PCM comes out,
// tagged with the format the backend produced.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/newscast/pkg/audio"
)

// ErrCloneUnsupported is returned by CloneVoice when the backend has no
// voice-cloning endpoint.
var ErrCloneUnsupported = errors.New("tts: voice cloning not supported")

// ErrEmptyAudio is returned when the backend answers without any audio.
var ErrEmptyAudio = errors.New("tts: no audio in response")

// Speech is the result of one synthesis call.
type Speech struct {
	// PCM is little-endian signed 16-bit audio, interleaved when Format has
	// more than one channel.
	PCM []byte

	// Format describes PCM.
	Format audio.Format
}

// Asset decodes the speech into a playable audio asset.
func (s *Speech) Asset() (*audio.Asset, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil speech", audio.ErrDecode)
	}
	return audio.DecodePCM16(s.PCM, s.Format.SampleRate, s.Format.Channels)
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with voice and returns the complete PCM.
	//
	// voice.ID names the backend voice (for Gemini the prebuilt voice name,
	// e.g. "Kore"). Providers should return an error if the voice is unknown.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (*Speech, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)

	// CloneVoice creates a new voice named name from the supplied audio
	// samples (WAV encoded). Backends without cloning return
	// ErrCloneUnsupported. An empty samples slice returns an error.
	CloneVoice(ctx context.Context, name string, samples [][]byte) (*VoiceProfile, error)
}
