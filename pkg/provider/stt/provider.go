// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider turns a short recorded clip into text. The studio uses it
// for dictation into the article editor: the browser uploads one utterance,
// the server normalises it to 16 kHz mono WAV and hands it to the provider.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ClipSampleRate is the rate every Clip is normalised to before transcription.
const ClipSampleRate = 16000

// ErrEmptyClip is returned when Transcribe receives no audio.
var ErrEmptyClip = errors.New("stt: empty clip")

// Clip is one utterance to transcribe.
type Clip struct {
	// WAV is a RIFF/WAVE file, 16-bit mono at ClipSampleRate.
	WAV []byte

	// Language is the BCP-47 tag of the spoken language (e.g. "hi-IN").
	// Empty lets the provider auto-detect, if supported.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the recognised text of clip.
	Transcribe(ctx context.Context, clip Clip) (*Transcript, error)
}

// BaseLanguage reduces a BCP-47 tag to its primary subtag ("hi-IN" → "hi").
// Some backends only accept ISO-639-1 codes.
func BaseLanguage(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' || tag[i] == '_' {
			return tag[:i]
		}
	}
	return tag
}
