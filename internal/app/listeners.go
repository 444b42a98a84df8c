package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/audio/playback"
)

// listenerBuffer is how many rendered frames may queue for one listener
// before new frames are dropped.
const listenerBuffer = 32

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// ErrListenersClosed is returned by Serve after Close.
var ErrListenersClosed = errors.New("app: listener manager closed")

// ListenerInfo holds metadata about a connected stream listener.
type ListenerInfo struct {
	// ID uniquely identifies the connection.
	ID string `json:"id"`

	// RemoteAddr is the client address as seen by the server.
	RemoteAddr string `json:"remote_addr"`

	// StartedAt is when the listener connected.
	StartedAt time.Time `json:"started_at"`

	// Dropped counts frames discarded because the client fell behind.
	Dropped int64 `json:"dropped"`
}

// streamHeader is the first text message sent on every stream so clients
// know how to interpret the binary frames that follow.
type streamHeader struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type listener struct {
	info   ListenerInfo
	frames chan []byte
	cancel context.CancelFunc
}

// ListenerManager fans rendered playback audio out to websocket clients.
// Each listener is a playback sink converting frames to the stream format;
// a slow client loses frames instead of stalling the engine.
// All exported methods are safe for concurrent use.
type ListenerManager struct {
	player  *playback.Engine
	format  audio.Format
	metrics *observe.Metrics
	log     *slog.Logger

	mu        sync.Mutex
	closed    bool
	listeners map[string]*listener
}

// NewListenerManager creates a ListenerManager streaming player output in
// format. A zero sample rate falls back to 24 kHz.
func NewListenerManager(player *playback.Engine, format audio.Format, metrics *observe.Metrics, log *slog.Logger) *ListenerManager {
	if format.SampleRate <= 0 {
		format.SampleRate = 24000
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	return &ListenerManager{
		player:    player,
		format:    format,
		metrics:   metrics,
		log:       log,
		listeners: make(map[string]*listener),
	}
}

// Format returns the PCM layout of the binary stream frames.
func (m *ListenerManager) Format() audio.Format { return m.format }

// Serve streams playback audio to conn until the client disconnects, ctx is
// cancelled or the manager is closed. It sends a JSON [streamHeader] first
// and then one binary message of 16-bit little-endian PCM per render tick.
func (m *ListenerManager) Serve(ctx context.Context, conn *websocket.Conn, remoteAddr string) error {
	// stop ends the stream from our side. It must not reach CloseRead, which
	// tears the connection down when its context ends and would cut off the
	// close handshake.
	stop, cancel := context.WithCancel(ctx)
	defer cancel()

	l := &listener{
		info: ListenerInfo{
			ID:         uuid.NewString(),
			RemoteAddr: remoteAddr,
			StartedAt:  time.Now().UTC(),
		},
		frames: make(chan []byte, listenerBuffer),
		cancel: cancel,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrListenersClosed
	}
	m.listeners[l.info.ID] = l
	m.mu.Unlock()

	m.metrics.ListenerJoined(stop)
	m.log.Info("stream listener joined", "listener_id", l.info.ID, "remote_addr", remoteAddr)

	conv := &audio.Converter{Target: m.format}
	remove := m.player.AddSink(playback.SinkFunc(func(f audio.Frame) {
		out := conv.Convert(f)
		if len(out.Data) == 0 {
			return
		}
		select {
		case l.frames <- out.Data:
		default:
			m.mu.Lock()
			l.info.Dropped++
			m.mu.Unlock()
		}
	}))

	defer func() {
		remove()
		m.mu.Lock()
		delete(m.listeners, l.info.ID)
		dropped := l.info.Dropped
		m.mu.Unlock()
		m.metrics.ListenerLeft(context.WithoutCancel(stop))
		m.log.Info("stream listener left", "listener_id", l.info.ID, "dropped", dropped)
	}()

	// Control frames (ping, close) are only processed while reading; the
	// returned context ends when the client goes away.
	gone := conn.CloseRead(context.WithoutCancel(ctx))

	hdr, _ := json.Marshal(streamHeader{
		Encoding:   "pcm_s16le",
		SampleRate: m.format.SampleRate,
		Channels:   m.format.Channels,
	})
	if err := m.write(gone, conn, websocket.MessageText, hdr); err != nil {
		return err
	}

	for {
		select {
		case <-gone.Done():
			return nil
		case <-stop.Done():
			conn.Close(websocket.StatusGoingAway, "stream ended")
			return nil
		case pcm := <-l.frames:
			if err := m.write(gone, conn, websocket.MessageBinary, pcm); err != nil {
				if gone.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (m *ListenerManager) write(ctx context.Context, conn *websocket.Conn, typ websocket.MessageType, p []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, typ, p); err != nil {
		return fmt.Errorf("stream: write: %w", err)
	}
	return nil
}

// List returns the connected listeners, oldest first.
func (m *ListenerManager) List() []ListenerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ListenerInfo, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l.info)
	}
	slices.SortFunc(out, func(a, b ListenerInfo) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// Count returns the number of connected listeners.
func (m *ListenerManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Disconnect ends the stream of the listener with the given id.
func (m *ListenerManager) Disconnect(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listeners[id]
	if ok {
		l.cancel()
	}
	return ok
}

// Close ends every stream and rejects new ones.
func (m *ListenerManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, l := range m.listeners {
		l.cancel()
	}
	return nil
}
