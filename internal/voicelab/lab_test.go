package voicelab_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/internal/voicelab"
	"github.com/MrWong99/newscast/pkg/audio"
)

// ── helpers ──────────────────────────────────────────────────────────────────

var micFormat = audio.Format{SampleRate: 16000, Channels: 1}

// manualTicker is a Ticker driven by the test.
type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// tickers hands out manual tickers and remembers the last one.
type tickers struct {
	mu   sync.Mutex
	last *manualTicker
}

func (f *tickers) New(time.Duration) voicelab.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &manualTicker{ch: make(chan time.Time)}
	return f.last
}

func (f *tickers) tick(t *testing.T, n int) {
	t.Helper()
	f.mu.Lock()
	tk := f.last
	f.mu.Unlock()
	if tk == nil {
		t.Fatal("no ticker was created")
	}
	for range n {
		select {
		case tk.ch <- time.Now():
		case <-time.After(time.Second):
			t.Fatal("countdown is not receiving ticks")
		}
	}
}

// fakeTrainer records calls and can block until released.
type fakeTrainer struct {
	base    string
	err     error
	release chan struct{}

	mu      sync.Mutex
	samples []*audio.Asset
}

func (f *fakeTrainer) Name() string { return "fake" }

func (f *fakeTrainer) Train(ctx context.Context, sample *audio.Asset) (string, error) {
	f.mu.Lock()
	f.samples = append(f.samples, sample)
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.base, f.err
}

func (f *fakeTrainer) calls() []*audio.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*audio.Asset(nil), f.samples...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type fixture struct {
	lab     *voicelab.Lab
	mic     *voicelab.BufferMicrophone
	trainer *fakeTrainer
	voices  *voice.Catalog
	ticks   *tickers
	metrics *observe.Metrics
}

func newFixture(t *testing.T, micEnabled bool, opts ...voicelab.Option) *fixture {
	t.Helper()
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	f := &fixture{
		mic:     voicelab.NewBufferMicrophone(micFormat, 10*time.Second, micEnabled),
		trainer: &fakeTrainer{base: voice.CloneBaseVoice},
		voices:  voice.NewCatalog(nil),
		ticks:   &tickers{},
		metrics: met,
	}
	opts = append([]voicelab.Option{
		voicelab.WithTicker(f.ticks.New),
		voicelab.WithMetrics(met),
	}, opts...)
	f.lab, err = voicelab.New(f.mic, f.trainer, f.voices, opts...)
	if err != nil {
		t.Fatalf("voicelab.New: %v", err)
	}
	t.Cleanup(func() { f.lab.Close() })
	return f
}

// ── Recording ────────────────────────────────────────────────────────────────

func TestStartRecording_PermissionDenied(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	if err := f.lab.StartRecording(t.Context()); !errors.Is(err, voicelab.ErrPermission) {
		t.Fatalf("got %v, want ErrPermission", err)
	}
	if f.lab.State() != voicelab.Idle {
		t.Errorf("state: got %s, want idle", f.lab.State())
	}

	noMic, err := voicelab.New(nil, f.trainer, f.voices)
	if err != nil {
		t.Fatalf("voicelab.New: %v", err)
	}
	defer noMic.Close()
	if err := noMic.StartRecording(t.Context()); !errors.Is(err, voicelab.ErrPermission) {
		t.Errorf("nil microphone: got %v, want ErrPermission", err)
	}
}

func TestRecording_AutoStopsOnTenthTick(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.trainer.release = make(chan struct{}) // hold the lab in Processing

	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if st := f.lab.Status(); st.State != voicelab.Recording || st.Remaining != 10 {
		t.Fatalf("status: %+v", st)
	}

	f.ticks.tick(t, 9)
	waitFor(t, "nine ticks", func() bool { return f.lab.Status().Elapsed == 9 })
	if st := f.lab.Status(); st.State != voicelab.Recording || st.Remaining != 1 {
		t.Fatalf("after 9 ticks: %+v", st)
	}

	f.ticks.tick(t, 1)
	waitFor(t, "processing", func() bool { return f.lab.State() == voicelab.Processing })
	if got := f.lab.Status().Elapsed; got != 10 {
		t.Errorf("elapsed: got %d, want 10", got)
	}
	waitFor(t, "ticker stop", func() bool {
		f.ticks.last.mu.Lock()
		defer f.ticks.last.mu.Unlock()
		return f.ticks.last.stopped
	})

	close(f.trainer.release)
	waitFor(t, "done", func() bool { return f.lab.State() == voicelab.Done })
}

func TestRecording_CustomLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true, voicelab.WithMaxRecording(3*time.Second))

	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	f.ticks.tick(t, 3)
	waitFor(t, "done", func() bool { return f.lab.State() == voicelab.Done })
}

func TestStopRecording_CreatesVoice(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var transitions []voicelab.State
	f := newFixture(t, true, voicelab.WithOnStateChange(func(_, to voicelab.State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	}))

	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := f.mic.Write(make([]byte, 3200)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	done, err := f.lab.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("processing: %v", err)
	}

	st := f.lab.Status()
	if st.State != voicelab.Done || st.Voice == nil {
		t.Fatalf("status: %+v", st)
	}
	if st.Voice.Name != "My Clone 1" || st.Voice.BaseVoice != voice.CloneBaseVoice || !st.Voice.IsCustom {
		t.Errorf("voice: %+v", st.Voice)
	}
	if first := f.voices.List()[0]; first.ID != st.Voice.ID {
		t.Errorf("clone should be prepended, first is %q", first.ID)
	}

	samples := f.trainer.calls()
	if len(samples) != 1 || samples[0] == nil || samples[0].Frames() != 1600 {
		t.Errorf("trainer sample: %+v", samples)
	}
	if _, err := f.mic.Write([]byte{0, 0}); !errors.Is(err, voicelab.ErrNotRecording) {
		t.Errorf("write after stop: got %v, want ErrNotRecording", err)
	}
	if got := f.metrics.Stats().Clones; got != 1 {
		t.Errorf("clone count: got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []voicelab.State{voicelab.Recording, voicelab.Processing, voicelab.Done}
	if len(transitions) != len(want) {
		t.Fatalf("transitions: got %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: got %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestStopRecording_WithoutAudio(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	done, err := f.lab.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("processing: %v", err)
	}
	if samples := f.trainer.calls(); len(samples) != 1 || samples[0] != nil {
		t.Errorf("an empty capture should reach the trainer as nil, got %+v", samples)
	}
}

func TestStopRecording_EmptyCaptureSimulatedTrainer(t *testing.T) {
	t.Parallel()
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	mic := voicelab.NewBufferMicrophone(micFormat, 10*time.Second, true)
	voices := voice.NewCatalog(nil)
	ticks := &tickers{}
	lab, err := voicelab.New(mic, voicelab.NewSimulatedTrainer(0), voices,
		voicelab.WithTicker(ticks.New), voicelab.WithMetrics(met))
	if err != nil {
		t.Fatalf("voicelab.New: %v", err)
	}
	t.Cleanup(func() { lab.Close() })

	if err := lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	done, err := lab.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("processing: %v", err)
	}
	if lab.State() != voicelab.Done {
		t.Errorf("state: got %s, want done", lab.State())
	}
	if got := voices.List(); len(got) == 0 || !got[0].IsCustom {
		t.Errorf("clone not prepended to catalog")
	}
}

func TestBusy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	if _, err := f.lab.StopRecording(); !errors.Is(err, voicelab.ErrBusy) {
		t.Errorf("stop while idle: got %v, want ErrBusy", err)
	}
	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.lab.StartRecording(t.Context()); !errors.Is(err, voicelab.ErrBusy) {
		t.Errorf("second start: got %v, want ErrBusy", err)
	}
	if _, err := f.lab.Upload(t.Context(), "s.wav", sampleWAV(t)); !errors.Is(err, voicelab.ErrBusy) {
		t.Errorf("upload while recording: got %v, want ErrBusy", err)
	}
}

// ── Failure and reset ────────────────────────────────────────────────────────

func TestProcessingFailure_ReturnsToIdle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.trainer.err = errors.New("training service down")
	before := len(f.voices.List())

	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	done, _ := f.lab.StopRecording()
	if err := <-done; err == nil {
		t.Fatal("expected processing error")
	}
	st := f.lab.Status()
	if st.State != voicelab.Idle || st.Error != voicelab.FailedMessage || st.Voice != nil {
		t.Errorf("status: %+v", st)
	}
	if got := len(f.voices.List()); got != before {
		t.Errorf("catalog size: got %d, want %d", got, before)
	}

	if err := f.lab.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if st := f.lab.Status(); st.Error != "" {
		t.Errorf("reset should clear the error, got %q", st.Error)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	// From Recording: the capture is discarded.
	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := f.lab.Reset(); err != nil {
		t.Fatalf("Reset while recording: %v", err)
	}
	if f.lab.State() != voicelab.Idle {
		t.Errorf("state: got %s", f.lab.State())
	}
	if _, err := f.mic.Write([]byte{0, 0}); !errors.Is(err, voicelab.ErrNotRecording) {
		t.Errorf("microphone should be closed, got %v", err)
	}

	// Processing cannot be reset.
	f.trainer.release = make(chan struct{})
	if err := f.lab.StartRecording(t.Context()); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	done, _ := f.lab.StopRecording()
	if err := f.lab.Reset(); !errors.Is(err, voicelab.ErrBusy) {
		t.Errorf("reset while processing: got %v, want ErrBusy", err)
	}
	close(f.trainer.release)
	if err := <-done; err != nil {
		t.Fatalf("processing: %v", err)
	}

	// From Done back to Idle.
	if err := f.lab.Reset(); err != nil {
		t.Fatalf("Reset from done: %v", err)
	}
	if st := f.lab.Status(); st.State != voicelab.Idle || st.Voice != nil {
		t.Errorf("status: %+v", st)
	}
}

// ── Upload ───────────────────────────────────────────────────────────────────

func sampleWAV(t *testing.T) []byte {
	t.Helper()
	a, err := audio.DecodePCM16(make([]byte, 48000*2*2), 48000, 2)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	return audio.EncodeWAV(a)
}

func TestUpload(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	done, err := f.lab.Upload(t.Context(), "sample.wav", sampleWAV(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("processing: %v", err)
	}
	if f.lab.State() != voicelab.Done {
		t.Errorf("state: got %s", f.lab.State())
	}
	samples := f.trainer.calls()
	if len(samples) != 1 || samples[0].SampleRate() != 48000 || samples[0].Frames() != 48000 {
		t.Errorf("trainer sample: %+v", samples)
	}
}

func TestUpload_Undecodable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	_, err := f.lab.Upload(t.Context(), "sample.wav", []byte("RIFF????WAVEjunk"))
	if !errors.Is(err, audio.ErrDecode) {
		t.Errorf("got %v, want ErrDecode", err)
	}
	_, err = f.lab.Upload(t.Context(), "notes.txt", []byte("hello"))
	if !errors.Is(err, audio.ErrUnsupportedContainer) {
		t.Errorf("got %v, want ErrUnsupportedContainer", err)
	}
	if f.lab.State() != voicelab.Idle {
		t.Errorf("state: got %s", f.lab.State())
	}
}
