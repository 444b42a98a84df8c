// Package vad trims silence from recorded speech before it reaches a backend.
//
// An [Engine] hands out one [Session] per clip. A session classifies fixed
// size frames of 16-bit little-endian mono PCM and keeps the state needed to
// smooth short pauses, so frames of one clip must go through one session in
// order. Dictation clips and voice samples are cut down to their speech with
// [Trim].
package vad

import (
	"errors"
	"fmt"
)

// Kind classifies one frame.
type Kind int

const (
	// Silence is a frame outside any speech segment.
	Silence Kind = iota

	// SpeechStart is the first frame of a speech segment.
	SpeechStart

	// Speech is a frame inside a speech segment, including short pauses the
	// detector has not yet given up on.
	Speech

	// SpeechEnd is the frame that closes a speech segment.
	SpeechEnd
)

// String returns the lower-case name of k.
func (k Kind) String() string {
	switch k {
	case Silence:
		return "silence"
	case SpeechStart:
		return "speech_start"
	case Speech:
		return "speech"
	case SpeechEnd:
		return "speech_end"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is the classification of one frame.
type Event struct {
	Kind Kind

	// Probability is the speech likelihood of the frame in [0, 1].
	Probability float64
}

// Config describes the frames a session accepts and where it draws the line
// between speech and silence.
type Config struct {
	// SampleRate of the PCM in Hz.
	SampleRate int

	// FrameSizeMs is the duration of every frame passed to ProcessFrame.
	FrameSizeMs int

	// SpeechThreshold is the probability at which a segment starts.
	SpeechThreshold float64

	// SilenceThreshold is the probability below which a frame counts as a
	// pause. It must not exceed SpeechThreshold.
	SilenceThreshold float64
}

// ErrInvalidConfig is wrapped by [Config.Validate] failures.
var ErrInvalidConfig = errors.New("vad: invalid config")

// Validate reports whether c describes a usable session.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0 || c.FrameSizeMs <= 0:
		return fmt.Errorf("%w: %d Hz / %d ms", ErrInvalidConfig, c.SampleRate, c.FrameSizeMs)
	case c.FrameBytes() == 0:
		return fmt.Errorf("%w: %d ms frames at %d Hz hold no samples", ErrInvalidConfig, c.FrameSizeMs, c.SampleRate)
	case c.SpeechThreshold <= 0 || c.SpeechThreshold > 1:
		return fmt.Errorf("%w: speech threshold %v outside (0, 1]", ErrInvalidConfig, c.SpeechThreshold)
	case c.SilenceThreshold < 0 || c.SilenceThreshold > c.SpeechThreshold:
		return fmt.Errorf("%w: silence threshold %v outside [0, %v]", ErrInvalidConfig, c.SilenceThreshold, c.SpeechThreshold)
	}
	return nil
}

// FrameBytes returns the byte length of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// Session classifies the frames of one clip. It is not safe for concurrent
// use.
type Session interface {
	// ProcessFrame classifies frame, which must be exactly
	// Config.FrameBytes long.
	ProcessFrame(frame []byte) (Event, error)

	// Reset forgets any segment in progress.
	Reset()

	// Close releases the session. Later ProcessFrame calls fail.
	Close() error
}

// Engine creates sessions. Implementations must be safe for concurrent use.
type Engine interface {
	NewSession(cfg Config) (Session, error)
}
