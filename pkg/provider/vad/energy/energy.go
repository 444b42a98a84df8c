// Package energy implements vad.Engine with a root-mean-square energy
// detector. It needs no model files and is good enough to trim silence
// around a single speaker recorded close to the microphone.
package energy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/MrWong99/newscast/pkg/provider/vad"
)

const (
	// DefaultReferenceRMS is the normalised RMS that maps to probability 1.
	DefaultReferenceRMS = 0.05

	// DefaultHangoverFrames is how many quiet frames may pass before an active
	// speech segment is ended.
	DefaultHangoverFrames = 10
)

var _ vad.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithReferenceRMS sets the RMS level treated as certain speech.
func WithReferenceRMS(rms float64) Option {
	return func(e *Engine) {
		if rms > 0 {
			e.reference = rms
		}
	}
}

// WithHangoverFrames sets the number of quiet frames tolerated inside speech.
func WithHangoverFrames(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.hangover = n
		}
	}
}

// Engine creates energy-based VAD sessions.
type Engine struct {
	reference float64
	hangover  int
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{reference: DefaultReferenceRMS, hangover: DefaultHangoverFrames}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("energy vad: %w", err)
	}
	n := cfg.FrameBytes()
	return &session{
		cfg:       cfg,
		frameLen:  n,
		reference: e.reference,
		hangover:  e.hangover,
		buf:       make([]float64, n/2),
	}, nil
}

type session struct {
	cfg       vad.Config
	frameLen  int
	reference float64
	hangover  int

	buf      []float64
	inSpeech bool
	quiet    int
	closed   bool
}

var errClosed = errors.New("energy vad: session closed")

// ProcessFrame implements vad.Session.
func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, errClosed
	}
	if len(frame) != s.frameLen {
		return vad.Event{}, fmt.Errorf("energy vad: frame is %d bytes, want %d", len(frame), s.frameLen)
	}
	for i := range s.buf {
		s.buf[i] = float64(int16(uint16(frame[2*i])|uint16(frame[2*i+1])<<8)) / 32768
	}
	rms := floats.Norm(s.buf, 2) / math.Sqrt(float64(len(s.buf)))
	p := math.Min(rms/s.reference, 1)

	ev := vad.Event{Probability: p}
	switch {
	case !s.inSpeech && p >= s.cfg.SpeechThreshold:
		s.inSpeech = true
		s.quiet = 0
		ev.Kind = vad.SpeechStart
	case s.inSpeech && p < s.cfg.SilenceThreshold:
		s.quiet++
		if s.quiet > s.hangover {
			s.inSpeech = false
			s.quiet = 0
			ev.Kind = vad.SpeechEnd
		} else {
			ev.Kind = vad.Speech
		}
	case s.inSpeech:
		s.quiet = 0
		ev.Kind = vad.Speech
	default:
		ev.Kind = vad.Silence
	}
	return ev, nil
}

// Reset implements vad.Session.
func (s *session) Reset() {
	s.inSpeech = false
	s.quiet = 0
}

// Close implements vad.Session.
func (s *session) Close() error {
	s.closed = true
	return nil
}
