// Package mock provides scripted vad sessions for tests.
package mock

import (
	"sync"

	"github.com/MrWong99/newscast/pkg/provider/vad"
)

// Engine hands out Session, or a fresh always-silent session when Session is
// nil.
type Engine struct {
	mu sync.Mutex

	Session vad.Session

	// Err, if non-nil, fails every NewSession call.
	Err error

	// Configs records the config of every NewSession call.
	Configs []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Configs = append(e.Configs, cfg)
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Session replays Script one event per frame, then keeps returning Fallback.
type Session struct {
	mu sync.Mutex

	Script   []vad.Event
	Fallback vad.Event

	// Err, if non-nil, is returned with every event.
	Err error

	// Frames holds a copy of every processed frame.
	Frames [][]byte
	Resets int
	Closes int
}

var _ vad.Session = (*Session)(nil)

// ProcessFrame implements vad.Session.
func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.Frames)
	s.Frames = append(s.Frames, append([]byte(nil), frame...))
	if i < len(s.Script) {
		return s.Script[i], s.Err
	}
	return s.Fallback, s.Err
}

// Reset implements vad.Session.
func (s *Session) Reset() {
	s.mu.Lock()
	s.Resets++
	s.mu.Unlock()
}

// Close implements vad.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	s.Closes++
	s.mu.Unlock()
	return nil
}

// Processed returns the number of frames seen so far.
func (s *Session) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Frames)
}
