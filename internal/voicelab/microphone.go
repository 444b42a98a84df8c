package voicelab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/newscast/pkg/audio"
)

// Microphone is a capture device. Open starts a capture and fails with an
// error wrapping [ErrPermission] when access is denied. Close ends it and
// returns what was recorded, or nil when nothing arrived.
type Microphone interface {
	Open(ctx context.Context) error
	Close() (*audio.Asset, error)
}

// BufferMicrophone is a [Microphone] fed over the network: the browser
// captures audio and posts raw 16-bit little-endian PCM chunks to Write.
type BufferMicrophone struct {
	format  audio.Format
	limit   int
	enabled bool

	mu   sync.Mutex
	open bool
	buf  []byte
}

var _ Microphone = (*BufferMicrophone)(nil)

// NewBufferMicrophone returns a microphone that accepts PCM in format and
// keeps at most maxDuration of it. A disabled microphone denies every Open.
func NewBufferMicrophone(format audio.Format, maxDuration time.Duration, enabled bool) *BufferMicrophone {
	limit := int(maxDuration.Seconds() * float64(format.BytesPerSecond()))
	return &BufferMicrophone{format: format, limit: limit, enabled: enabled}
}

// Format returns the PCM layout Write expects.
func (m *BufferMicrophone) Format() audio.Format { return m.format }

// Open starts a new capture and discards anything left from the last one.
func (m *BufferMicrophone) Open(context.Context) error {
	if !m.enabled {
		return fmt.Errorf("%w: microphone disabled", ErrPermission)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	m.buf = m.buf[:0]
	return nil
}

// Write appends a PCM chunk. Data past the duration limit is dropped. It
// fails with [ErrNotRecording] when no capture is open.
func (m *BufferMicrophone) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, ErrNotRecording
	}
	room := m.limit - len(m.buf)
	if m.limit > 0 && room < len(p) {
		m.buf = append(m.buf, p[:max(room, 0)]...)
		return len(p), nil
	}
	m.buf = append(m.buf, p...)
	return len(p), nil
}

// Close ends the capture and decodes the buffered PCM. A trailing partial
// frame is dropped.
func (m *BufferMicrophone) Close() (*audio.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, nil
	}
	m.open = false

	frame := 2 * m.format.Channels
	n := len(m.buf) - len(m.buf)%frame
	if n == 0 {
		return nil, nil
	}
	pcm := append([]byte(nil), m.buf[:n]...)
	m.buf = m.buf[:0]
	return audio.DecodePCM16(pcm, m.format.SampleRate, m.format.Channels)
}
