// Package playback implements the studio's playback engine: a transport state
// machine over a single [audio.Asset] driving a small audio graph.
//
// The graph is source → gain → analyser → sinks. The source node is a
// resampler bound to the asset. It is single-use and rebuilt on every Play.
// The gain and analyser nodes live as long as the Engine, so volume and
// visualization carry over between play sessions.
//
// While playing, a cancellable repeating tick renders the audio that became
// due since the previous tick, hands it to every registered [Sink], and
// refreshes progress. Progress is derived from the clock rather than from
// rendered samples:
//
//	elapsed = (now - start) * rate
//
// rate is the source node's resampling ratio, speed times the detune factor,
// so elapsed is the buffer time the node has actually consumed. start is
// re-based whenever the rate changes, so the offset bookkeeping always holds
// buffer-relative seconds regardless of the settings history.
package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/MrWong99/newscast/pkg/audio"
)

var (
	// ErrNoAsset is returned by Play when nothing has been loaded.
	ErrNoAsset = errors.New("playback: no asset loaded")

	// ErrInvalidTransition is returned when a transport operation is not
	// valid in the current state.
	ErrInvalidTransition = errors.New("playback: invalid transition")
)

const (
	defaultTickInterval    = 50 * time.Millisecond
	defaultResampleQuality = 4
	defaultVolume          = 1.0
	mutedRestoreVolume     = 0.5
)

// State is the transport state of the Engine.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets State serialise as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Clock supplies the current time. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sink receives rendered audio. WriteFrame is called with the Engine's lock
// held and must not block; slow sinks should drop frames.
type Sink interface {
	WriteFrame(frame audio.Frame)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(audio.Frame)

// WriteFrame calls f.
func (f SinkFunc) WriteFrame(frame audio.Frame) { f(frame) }

// Reasons attached to a StateChange.
const (
	ReasonPlay     = "play"
	ReasonPause    = "pause"
	ReasonStop     = "stop"
	ReasonFinished = "finished"
	ReasonLoad     = "load"
)

// StateChange describes one transport transition.
type StateChange struct {
	From   State
	To     State
	Reason string
}

// Snapshot is a point-in-time view of the Engine.
type Snapshot struct {
	State    State `json:"state"`
	HasAsset bool  `json:"has_asset"`

	// CurrentTime is the buffer-relative position in seconds.
	CurrentTime float64 `json:"current_time"`

	// Duration of the loaded asset in seconds.
	Duration float64 `json:"duration"`

	// Progress is CurrentTime / Duration in [0, 1].
	Progress float64 `json:"progress"`

	// Consumed is the buffer time played in the latest session. It equals
	// Duration exactly after the engine stops on its own at the end.
	Consumed float64 `json:"consumed"`

	Settings Settings `json:"settings"`
	Volume   float64  `json:"volume"`
	Muted    bool     `json:"muted"`
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTickInterval sets the period of the progress tick. Defaults to 50ms.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithFFTSize sets the analyser FFT size. Defaults to 64.
func WithFFTSize(n int) Option {
	return func(e *Engine) { e.analyser = NewAnalyser(n) }
}

// WithResampleQuality sets the beep resampler quality (1..64). Defaults to 4.
func WithResampleQuality(q int) Option {
	return func(e *Engine) {
		if q > 0 {
			e.quality = q
		}
	}
}

// WithOnStateChange registers a callback invoked after every transport
// transition. It runs without the Engine's lock held.
func WithOnStateChange(fn func(StateChange)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// session is one Playing stretch. Its context cancels the tick goroutine.
type session struct {
	ctx        context.Context
	cancel     context.CancelFunc
	lastRender time.Time
}

// Engine is the playback engine. All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	clock        Clock
	tickInterval time.Duration
	quality      int
	log          *slog.Logger
	onChange     func(StateChange)
	pending      []StateChange

	asset    *audio.Asset
	state    State
	settings Settings

	volume     float64
	prevVolume float64

	source   *beep.Resampler
	gain     *effects.Gain
	analyser *Analyser

	start       time.Time
	offset      float64
	currentTime float64
	progress    float64
	consumed    float64

	sess      *session
	sinks     map[int]Sink
	nextSink  int
	renderBuf [][2]float64
}

// New creates a stopped Engine with default settings and full volume.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:        systemClock{},
		tickInterval: defaultTickInterval,
		quality:      defaultResampleQuality,
		log:          slog.Default(),
		settings:     DefaultSettings(),
		volume:       defaultVolume,
		sinks:        make(map[int]Sink),
	}
	for _, o := range opts {
		o(e)
	}
	if e.analyser == nil {
		e.analyser = NewAnalyser(DefaultFFTSize)
	}
	e.gain = &effects.Gain{Streamer: beep.Silence(-1), Gain: e.volume - 1}
	e.analyser.Streamer = e.gain
	return e
}

// ── Asset ───────────────────────────────────────────────────────────────────

// Load stops any playback and installs a as the current asset. Settings and
// volume are kept.
func (e *Engine) Load(a *audio.Asset) {
	e.mu.Lock()
	defer e.unlock()
	e.resetLocked(ReasonLoad)
	e.asset = a
	e.consumed = 0
	e.analyser.Reset()
}

// Eject stops playback and discards the current asset.
func (e *Engine) Eject() {
	e.Load(nil)
}

// Asset returns the loaded asset, or nil.
func (e *Engine) Asset() *audio.Asset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asset
}

// ── Transport ───────────────────────────────────────────────────────────────

// Play starts or resumes playback from the recorded offset. It is a no-op
// while already playing.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.unlock()

	if e.asset == nil {
		return ErrNoAsset
	}
	if e.state == Playing {
		return nil
	}

	now := e.clock.Now()
	stream := e.asset.Streamer()
	if err := stream.Seek(int(math.Round(e.offset * float64(e.asset.SampleRate())))); err != nil {
		return fmt.Errorf("playback: seek: %w", err)
	}
	e.source = beep.ResampleRatio(e.quality, e.settings.Rate(), stream)
	e.gain.Streamer = e.source
	e.start = now.Add(-secondsToDuration(e.offset / e.settings.Rate()))

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{ctx: ctx, cancel: cancel, lastRender: now}
	e.sess = s
	go e.loop(s)

	e.setState(Playing, ReasonPlay)
	e.log.Debug("playback started", "offset", e.offset, "settings", e.settings.String())
	return nil
}

// Pause stops the source node and records how much of the buffer has been
// consumed. Only valid while playing.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.unlock()

	if e.state != Playing {
		return fmt.Errorf("%w: pause while %s", ErrInvalidTransition, e.state)
	}
	duration := e.asset.Seconds()
	e.offset = min(e.elapsed(e.clock.Now()), duration)
	e.consumed = e.offset
	e.currentTime = e.offset
	e.progress = e.offset / duration
	e.releaseLocked()
	e.setState(Paused, ReasonPause)
	return nil
}

// Stop releases the source node and resets position and progress to zero.
// Valid in any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.unlock()
	e.resetLocked(ReasonStop)
	e.consumed = 0
}

// Toggle pauses while playing and plays otherwise.
func (e *Engine) Toggle() error {
	e.mu.Lock()
	playing := e.state == Playing
	e.mu.Unlock()
	if playing {
		return e.Pause()
	}
	return e.Play()
}

// ── Live parameters ─────────────────────────────────────────────────────────

// UpdateSettings clamps s and applies it. An active source node is retuned in
// place without restarting. The segment played so far is folded into the
// offset at the previous rate, so the position stays continuous.
func (e *Engine) UpdateSettings(s Settings) Settings {
	e.mu.Lock()
	defer e.unlock()

	s = s.Clamp()
	if e.state == Playing {
		now := e.clock.Now()
		elapsed := e.elapsed(now)
		e.start = now.Add(-secondsToDuration(elapsed / s.Rate()))
		e.source.SetRatio(s.Rate())
	}
	e.settings = s
	return s
}

// Settings returns the current playback settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetVolume clamps v to [0, 1] and applies it to the gain node immediately.
func (e *Engine) SetVolume(v float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setVolumeLocked(v)
	return e.volume
}

// ToggleMute mutes when the volume is above zero, remembering the previous
// level. Otherwise it restores the remembered level, or 0.5 if none was
// recorded. It returns the new volume.
func (e *Engine) ToggleMute() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.volume > 0 {
		e.prevVolume = e.volume
		e.setVolumeLocked(0)
		return e.volume
	}
	restore := e.prevVolume
	if restore <= 0 {
		restore = mutedRestoreVolume
	}
	e.setVolumeLocked(restore)
	return e.volume
}

func (e *Engine) setVolumeLocked(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	e.volume = max(0, min(1, v))
	e.gain.Gain = e.volume - 1
}

// ── Observation ─────────────────────────────────────────────────────────────

// SampleVisualization returns VisualizationBins magnitudes re-sampled from the
// analyser's frequency bins. While not playing it returns the flat baseline.
func (e *Engine) SampleVisualization() [VisualizationBins]uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Playing {
		return Baseline()
	}
	data := make([]uint8, e.analyser.FrequencyBinCount())
	e.analyser.ByteFrequencyData(data)
	return Downsample(data)
}

// Snapshot returns the current transport view. While playing, position is
// computed from the clock at the time of the call.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:       e.state,
		HasAsset:    e.asset != nil,
		CurrentTime: e.currentTime,
		Progress:    e.progress,
		Consumed:    e.consumed,
		Settings:    e.settings,
		Volume:      e.volume,
		Muted:       e.volume == 0,
	}
	if e.asset == nil {
		return snap
	}
	snap.Duration = e.asset.Seconds()
	if e.state == Playing {
		elapsed := min(e.elapsed(e.clock.Now()), snap.Duration)
		snap.CurrentTime = elapsed
		snap.Progress = elapsed / snap.Duration
		snap.Consumed = elapsed
	}
	return snap
}

// State returns the transport state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AddSink registers s for rendered audio and returns a function that
// removes it.
func (e *Engine) AddSink(s Sink) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSink
	e.nextSink++
	e.sinks[id] = s
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.sinks, id)
	}
}

// Close stops playback and drops every sink.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.unlock()
	e.resetLocked(ReasonStop)
	clear(e.sinks)
	return nil
}

// ── Tick ────────────────────────────────────────────────────────────────────

func (e *Engine) loop(s *session) {
	t := time.NewTicker(e.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			e.tick(s)
		}
	}
}

// tick renders due audio, refreshes progress, and stops the engine once the
// whole buffer has been consumed. Ticks from a cancelled session are ignored.
func (e *Engine) tick(s *session) {
	e.mu.Lock()
	defer e.unlock()

	if s != e.sess || s.ctx.Err() != nil || e.state != Playing {
		return
	}
	now := e.clock.Now()
	elapsed := e.elapsed(now)
	e.render(s, now, elapsed)

	duration := e.asset.Seconds()
	if elapsed >= duration {
		e.releaseLocked()
		e.offset = 0
		e.progress = 0
		e.currentTime = 0
		e.consumed = duration
		e.setState(Stopped, ReasonFinished)
		e.log.Debug("playback finished", "duration", duration)
		return
	}
	e.currentTime = elapsed
	e.progress = elapsed / duration
	e.consumed = elapsed
}

// render pulls the frames that became due since the last render through the
// graph and fans them out to the sinks.
func (e *Engine) render(s *session, now time.Time, elapsed float64) {
	rate := e.asset.SampleRate()
	due := int(now.Sub(s.lastRender).Seconds() * float64(rate))
	if due <= 0 {
		return
	}
	if due > rate {
		// Stalled for over a second; skip ahead instead of bursting.
		due = rate
		s.lastRender = now
	} else {
		s.lastRender = s.lastRender.Add(secondsToDuration(float64(due) / float64(rate)))
	}

	if cap(e.renderBuf) < due {
		e.renderBuf = make([][2]float64, due)
	}
	buf := e.renderBuf[:due]
	n, _ := e.analyser.Stream(buf)
	if n < due {
		clear(buf[n:])
		e.analyser.Observe(buf[n:])
	}

	if len(e.sinks) == 0 {
		return
	}
	channels := min(e.asset.Channels(), 2)
	frame := audio.Frame{
		Data:      encodeFrames(buf, channels),
		Format:    audio.Format{SampleRate: rate, Channels: channels},
		Timestamp: secondsToDuration(elapsed),
	}
	for _, sink := range e.sinks {
		sink.WriteFrame(frame)
	}
}

// ── Internals ───────────────────────────────────────────────────────────────

func (e *Engine) elapsed(now time.Time) float64 {
	return now.Sub(e.start).Seconds() * e.settings.Rate()
}

// releaseLocked drops the source node and cancels the tick.
func (e *Engine) releaseLocked() {
	e.source = nil
	e.gain.Streamer = beep.Silence(-1)
	if e.sess != nil {
		e.sess.cancel()
		e.sess = nil
	}
}

func (e *Engine) resetLocked(reason string) {
	e.releaseLocked()
	e.offset = 0
	e.progress = 0
	e.currentTime = 0
	e.setState(Stopped, reason)
}

func (e *Engine) setState(to State, reason string) {
	if e.state == to && reason != ReasonLoad {
		return
	}
	e.pending = append(e.pending, StateChange{From: e.state, To: to, Reason: reason})
	e.state = to
}

// unlock releases the lock and then delivers queued state changes.
func (e *Engine) unlock() {
	events := e.pending
	e.pending = nil
	e.mu.Unlock()
	if e.onChange == nil {
		return
	}
	for _, ev := range events {
		e.onChange(ev)
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// encodeFrames converts stereo float frames to interleaved PCM16 with the
// given channel count (1 or 2).
func encodeFrames(buf [][2]float64, channels int) []byte {
	out := make([]byte, len(buf)*channels*2)
	i := 0
	for _, f := range buf {
		for ch := range channels {
			binary.LittleEndian.PutUint16(out[i:], uint16(audio.FloatToInt16(f[ch])))
			i += 2
		}
	}
	return out
}
