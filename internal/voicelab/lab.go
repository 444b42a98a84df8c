// Package voicelab records a short voice sample and turns it into a custom
// voice in the catalog.
//
// A [Lab] walks Idle → Recording → Processing → Done. Recording is capped by
// a one-second countdown that stops the capture on its last tick. Processing
// hands the sample to a [Trainer] in the background; when it finishes the new
// voice is prepended to the [voice.Catalog] and the lab waits in Done until
// [Lab.Reset]. A failed run returns to Idle with an error message.
//
// All methods are safe for concurrent use.
package voicelab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/pkg/audio"
)

// Sentinel errors.
var (
	// ErrPermission is returned when the microphone is denied or disabled.
	ErrPermission = errors.New("voicelab: permission denied")

	// ErrBusy is returned when an operation does not fit the current state.
	ErrBusy = errors.New("voicelab: busy")

	// ErrNotRecording is returned when audio arrives outside a recording.
	ErrNotRecording = errors.New("voicelab: not recording")
)

// FailedMessage is shown after a processing run fails.
const FailedMessage = "Voice processing failed. Please try again."

// DefaultMaxRecording is the recording cap used when none is configured.
const DefaultMaxRecording = 10 * time.Second

// State is the lab's position in the capture flow.
type State int

const (
	Idle State = iota
	Recording
	Processing
	Done
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets State serialise as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Ticker delivers countdown ticks. *time.Ticker is adapted by the default
// factory; tests inject a manual one.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Option is a functional option for configuring a [Lab].
type Option func(*Lab)

// WithMaxRecording caps a recording. It is rounded down to whole seconds,
// with a minimum of one. Default: 10s.
func WithMaxRecording(d time.Duration) Option {
	return func(l *Lab) {
		if n := int(d / time.Second); n > 0 {
			l.maxTicks = n
		}
	}
}

// WithTicker replaces the countdown ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(l *Lab) { l.newTicker = newTicker }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Lab) { l.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Lab) { l.log = log }
}

// WithOnStateChange registers a callback run after every transition, outside
// the lab's lock.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(l *Lab) { l.onChange = fn }
}

// Status is a point-in-time view of the lab.
type Status struct {
	State     State         `json:"state"`
	Elapsed   int           `json:"elapsed"`
	Remaining int           `json:"remaining"`
	Error     string        `json:"error,omitempty"`
	Voice     *voice.Preset `json:"voice,omitempty"`
}

// Lab is the voice capture and clone flow.
type Lab struct {
	mic       Microphone
	trainer   Trainer
	voices    *voice.Catalog
	metrics   *observe.Metrics
	log       *slog.Logger
	newTicker func(time.Duration) Ticker
	onChange  func(from, to State)
	maxTicks  int

	// base bounds background processing; Close cancels it.
	base   context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	elapsed       int
	errMsg        string
	created       *voice.Preset
	stopCountdown context.CancelFunc
	pending       [][2]State
}

// New creates an idle Lab. mic may be nil, in which case recording is denied
// and only uploads are accepted.
func New(mic Microphone, trainer Trainer, voices *voice.Catalog, opts ...Option) (*Lab, error) {
	var missing []error
	if trainer == nil {
		missing = append(missing, errors.New("trainer is required"))
	}
	if voices == nil {
		missing = append(missing, errors.New("voice catalog is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, fmt.Errorf("voicelab: %w", err)
	}

	l := &Lab{
		mic:       mic,
		trainer:   trainer,
		voices:    voices,
		newTicker: newTimeTicker,
		maxTicks:  int(DefaultMaxRecording / time.Second),
	}
	for _, o := range opts {
		o(l)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	l.log = l.log.With("component", "voicelab", "trainer", trainer.Name())
	l.base, l.cancel = context.WithCancel(context.Background())
	return l, nil
}

// Status returns the current view.
func (l *Lab) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{
		State:   l.state,
		Elapsed: l.elapsed,
		Error:   l.errMsg,
		Voice:   l.created,
	}
	if l.state == Recording {
		st.Remaining = l.maxTicks - l.elapsed
	}
	return st
}

// State returns the current state.
func (l *Lab) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ── Recording ───────────────────────────────────────────────────────────────

// StartRecording opens the microphone and starts the countdown. The
// recording stops by itself on the last tick. It fails with [ErrBusy] unless
// the lab is Idle, and with an error wrapping [ErrPermission] when the
// microphone is unavailable; the lab stays Idle in both cases.
func (l *Lab) StartRecording(ctx context.Context) error {
	if l.mic == nil {
		return fmt.Errorf("%w: no microphone", ErrPermission)
	}

	l.mu.Lock()
	if l.state != Idle {
		st := l.state
		l.mu.Unlock()
		return fmt.Errorf("%w: cannot record while %s", ErrBusy, st)
	}
	if err := l.mic.Open(ctx); err != nil {
		l.mu.Unlock()
		return err
	}

	cdCtx, cancel := context.WithCancel(l.base)
	l.stopCountdown = cancel
	l.elapsed = 0
	l.errMsg = ""
	l.created = nil
	l.setState(Recording)
	ticker := l.newTicker(time.Second)
	l.unlock()

	go l.countdown(cdCtx, ticker)
	l.log.Info("recording started", "max_seconds", l.maxTicks)
	return nil
}

func (l *Lab) countdown(ctx context.Context, t Ticker) {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if l.tick(ctx) {
				return
			}
		}
	}
}

// tick advances the countdown and reports whether it finished.
func (l *Lab) tick(ctx context.Context) bool {
	l.mu.Lock()
	if ctx.Err() != nil || l.state != Recording {
		l.mu.Unlock()
		return true
	}
	l.elapsed++
	if l.elapsed < l.maxTicks {
		l.mu.Unlock()
		return false
	}
	sample, err := l.stopLocked()
	l.unlock()

	l.log.Info("recording reached its limit", "seconds", l.maxTicks)
	l.process(sample, err)
	return true
}

// StopRecording ends the capture and starts processing the sample in the
// background. It fails with [ErrBusy] unless the lab is Recording. The
// returned channel yields the processing outcome once.
func (l *Lab) StopRecording() (<-chan error, error) {
	l.mu.Lock()
	if l.state != Recording {
		st := l.state
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot stop while %s", ErrBusy, st)
	}
	sample, err := l.stopLocked()
	l.unlock()

	return l.process(sample, err), nil
}

// stopLocked closes the microphone and enters Processing.
func (l *Lab) stopLocked() (*audio.Asset, error) {
	l.stopCountdown()
	l.stopCountdown = nil
	sample, err := l.mic.Close()
	l.setState(Processing)
	return sample, err
}

// ── Upload ──────────────────────────────────────────────────────────────────

// Upload decodes an audio file (WAV, MP3 or OGG Vorbis) and processes it
// like a recording. Undecodable input returns an error wrapping
// [audio.ErrDecode] or [audio.ErrUnsupportedContainer] and leaves the lab
// untouched. It fails with [ErrBusy] unless the lab is Idle.
func (l *Lab) Upload(ctx context.Context, filename string, data []byte) (<-chan error, error) {
	sample, err := audio.DecodeFile(filename, data)
	if err != nil {
		return nil, fmt.Errorf("voicelab: upload: %w", err)
	}

	l.mu.Lock()
	if l.state != Idle {
		st := l.state
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot upload while %s", ErrBusy, st)
	}
	l.errMsg = ""
	l.created = nil
	l.elapsed = 0
	l.setState(Processing)
	l.unlock()

	observe.Logger(ctx).Info("voice sample uploaded", "file", filename, "seconds", sample.Seconds())
	return l.process(sample, nil), nil
}

// ── Processing ──────────────────────────────────────────────────────────────

// process trains on sample in the background. captureErr is a failure from
// closing the microphone.
func (l *Lab) process(sample *audio.Asset, captureErr error) <-chan error {
	done := make(chan error, 1)
	go func() {
		err := captureErr
		var preset voice.Preset
		if err == nil {
			preset, err = l.train(sample)
		}
		l.finish(preset, err)
		done <- err
	}()
	return done
}

func (l *Lab) train(sample *audio.Asset) (preset voice.Preset, err error) {
	ctx, span := observe.StartSpan(l.base, "voicelab.train")
	defer func() {
		attrs := []attribute.KeyValue{attribute.String("trainer", l.trainer.Name())}
		// A recording stopped before any chunk arrived has no sample.
		if sample != nil {
			attrs = append(attrs, attribute.Float64("sample_seconds", sample.Seconds()))
		}
		observe.EndSpan(span, err, attrs...)
	}()

	base, err := l.trainer.Train(ctx, sample)
	if err != nil {
		return voice.Preset{}, err
	}
	preset, err = l.voices.AddClone(ctx, base)
	if err != nil {
		return voice.Preset{}, err
	}
	l.metrics.RecordVoiceClone(ctx, l.trainer.Name())
	return preset, nil
}

func (l *Lab) finish(preset voice.Preset, err error) {
	l.mu.Lock()
	if l.state != Processing {
		l.mu.Unlock()
		return
	}
	if err != nil {
		l.errMsg = FailedMessage
		l.setState(Idle)
		l.unlock()
		l.log.Error("voice processing failed", "err", err)
		return
	}
	l.created = &preset
	l.setState(Done)
	l.unlock()
	l.log.Info("voice created", "id", preset.ID, "name", preset.Name, "base_voice", preset.BaseVoice)
}

// ── Reset ───────────────────────────────────────────────────────────────────

// Reset returns to Idle. From Recording it discards the capture. It fails
// with [ErrBusy] while Processing.
func (l *Lab) Reset() error {
	l.mu.Lock()
	switch l.state {
	case Processing:
		l.mu.Unlock()
		return fmt.Errorf("%w: cannot reset while processing", ErrBusy)
	case Recording:
		l.stopCountdown()
		l.stopCountdown = nil
		if _, err := l.mic.Close(); err != nil {
			l.log.Warn("discard recording", "err", err)
		}
	}
	l.elapsed = 0
	l.errMsg = ""
	l.created = nil
	l.setState(Idle)
	l.unlock()
	return nil
}

// Close cancels any countdown or processing run.
func (l *Lab) Close() error {
	l.cancel()
	return nil
}

// ── Internals ───────────────────────────────────────────────────────────────

func (l *Lab) setState(to State) {
	if l.state == to {
		return
	}
	l.pending = append(l.pending, [2]State{l.state, to})
	l.state = to
}

// unlock releases the lock and then delivers queued transitions.
func (l *Lab) unlock() {
	events := l.pending
	l.pending = nil
	l.mu.Unlock()
	if l.onChange == nil {
		return
	}
	for _, ev := range events {
		l.onChange(ev[0], ev[1])
	}
}
