// Package app wires the NewsCast subsystems into a running HTTP service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API until ctx is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject test doubles via functional options (WithVoiceStore,
// WithMicrophone, WithTrainer, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/newscast/internal/config"
	"github.com/MrWong99/newscast/internal/health"
	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/resilience"
	"github.com/MrWong99/newscast/internal/studio"
	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/internal/voicelab"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/audio/playback"
	"github.com/MrWong99/newscast/pkg/provider/image"
	"github.com/MrWong99/newscast/pkg/provider/llm"
	"github.com/MrWong99/newscast/pkg/provider/stt"
	"github.com/MrWong99/newscast/pkg/provider/tts"
	"github.com/MrWong99/newscast/pkg/provider/vad"
)

// micSampleRate is the PCM rate the browser posts microphone chunks at.
const micSampleRate = 16000

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM   llm.Provider
	TTS   tts.Provider
	Image image.Provider
	STT   stt.Provider
	VAD   vad.Engine
}

// App owns all subsystem lifetimes and serves the NewsCast HTTP API.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger
	logLevel  *slog.LevelVar
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	store     voice.Store
	voices    *voice.Catalog
	player    *playback.Engine
	shell     *studio.Shell
	mic       voicelab.Microphone
	trainer   voicelab.Trainer
	lab       *voicelab.Lab
	listeners *ListenerManager
	health    *health.Handler
	handler   http.Handler

	breakers []*resilience.CircuitBreaker

	clock     playback.Clock
	newTicker func(time.Duration) voicelab.Ticker

	// ctx outlives single requests; background generation and cloning run
	// on it and stop when the app shuts down.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	server *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithVoiceStore injects a voice store instead of creating one from config.
func WithVoiceStore(s voice.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMicrophone injects the capture device used by the voice lab. The
// default is a [voicelab.BufferMicrophone] fed by POST /api/voicelab/chunk.
func WithMicrophone(m voicelab.Microphone) Option {
	return func(a *App) { a.mic = m }
}

// WithTrainer injects the voice lab trainer instead of selecting one from
// voicelab.trainer.
func WithTrainer(t voicelab.Trainer) Option {
	return func(a *App) { a.trainer = t }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the application logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLogLevel hands the app the level variable behind the process logger
// so config reloads can change verbosity.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithPlaybackClock injects the clock driving the playback engine.
func WithPlaybackClock(c playback.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithLabTicker injects the countdown ticker factory of the voice lab.
func WithLabTicker(newTicker func(time.Duration) voicelab.Ticker) Option {
	return func(a *App) { a.newTicker = newTicker }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: store connection and
// migration, catalog loading, engine and shell construction, and route
// registration.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	a.closers = append(a.closers, func() error { a.cancel(); return nil })

	// ── 1. Provider guards ───────────────────────────────────────────────
	a.guardProviders()

	// ── 2. Voice store + catalog ─────────────────────────────────────────
	if err := a.initVoices(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init voices: %w", err)
	}

	// ── 3. Playback engine ───────────────────────────────────────────────
	a.initPlayer()

	// ── 4. Studio shell ──────────────────────────────────────────────────
	if err := a.initShell(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init studio: %w", err)
	}

	// ── 5. Voice lab ─────────────────────────────────────────────────────
	if err := a.initLab(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init voice lab: %w", err)
	}

	// ── 6. Stream listeners ──────────────────────────────────────────────
	a.listeners = NewListenerManager(a.player,
		audio.Format{SampleRate: cfg.Playback.StreamSampleRate, Channels: 1},
		a.metrics, a.log)
	a.closers = append(a.closers, a.listeners.Close)

	// ── 7. Health + routes ───────────────────────────────────────────────
	a.health = health.New(
		health.NoneOf("providers", "circuit open", a.openCircuits),
		health.Ping("voice_store", a.store),
	)
	a.handler = observe.Middleware(a.metrics, a.log)(a.routes())

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// guardProviders wraps every configured remote provider in a circuit
// breaker that also records provider metrics. The caller's struct is left
// untouched.
func (a *App) guardProviders() {
	gc := resilience.GuardConfig{
		Metrics: a.metrics,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Logger: a.log,
			OnStateChange: func(name string, _, to resilience.State) {
				a.metrics.RecordCircuitTransition(a.ctx, name, to.String())
			},
		},
	}
	p := *a.providers
	names := a.cfg.Providers
	if p.LLM != nil {
		g := resilience.NewGuardedLLM(names.LLM.Name, p.LLM, gc)
		p.LLM = g
		a.breakers = append(a.breakers, g.Breaker())
	}
	if p.TTS != nil {
		g := resilience.NewGuardedTTS(names.TTS.Name, p.TTS, gc)
		p.TTS = g
		a.breakers = append(a.breakers, g.Breaker())
	}
	if p.Image != nil {
		g := resilience.NewGuardedImage(names.Image.Name, p.Image, gc)
		p.Image = g
		a.breakers = append(a.breakers, g.Breaker())
	}
	if p.STT != nil {
		g := resilience.NewGuardedSTT(names.STT.Name, p.STT, gc)
		p.STT = g
		a.breakers = append(a.breakers, g.Breaker())
	}
	a.providers = &p
}

// initVoices sets up the voice store (PostgreSQL when a DSN is configured,
// in memory otherwise) and loads the catalog.
func (a *App) initVoices(ctx context.Context) error {
	if a.store == nil {
		if dsn := a.cfg.Store.PostgresDSN; dsn != "" {
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			a.closers = append(a.closers, func() error {
				pool.Close()
				return nil
			})
			pg := voice.NewPostgresStore(pool)
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			a.store = pg
			a.log.Info("voice store connected", "backend", "postgres")
		} else {
			a.store = voice.NewMemStore()
			a.log.Info("voice store ready", "backend", "memory")
		}
	}

	a.voices = voice.NewCatalog(a.store, voice.WithHidden(a.cfg.Voices.Hidden...))
	if err := a.voices.Load(ctx); err != nil {
		return err
	}
	return nil
}

// initPlayer creates the playback engine and hooks its transitions into the
// playback metrics.
func (a *App) initPlayer() {
	opts := []playback.Option{
		playback.WithLogger(a.log.With("component", "playback")),
		playback.WithOnStateChange(a.onPlaybackChange),
	}
	if a.cfg.Playback.TickInterval > 0 {
		opts = append(opts, playback.WithTickInterval(a.cfg.Playback.TickInterval))
	}
	if a.cfg.Playback.ResampleQuality > 0 {
		opts = append(opts, playback.WithResampleQuality(a.cfg.Playback.ResampleQuality))
	}
	if a.cfg.Playback.FFTSize > 0 {
		opts = append(opts, playback.WithFFTSize(a.cfg.Playback.FFTSize))
	}
	if a.clock != nil {
		opts = append(opts, playback.WithClock(a.clock))
	}
	a.player = playback.New(opts...)
	a.closers = append(a.closers, a.player.Close)
}

func (a *App) onPlaybackChange(ch playback.StateChange) {
	switch {
	case ch.From == playback.Stopped && ch.To == playback.Playing:
		a.metrics.RecordPlaybackSession(a.ctx)
	case ch.Reason == playback.ReasonFinished:
		a.metrics.RecordAutoStop(a.ctx)
	}
	a.log.Debug("playback state changed", "from", ch.From, "to", ch.To, "reason", ch.Reason)
}

// initShell builds the orchestration shell over the guarded providers.
func (a *App) initShell() error {
	sc := a.cfg.Studio
	opts := []studio.Option{
		studio.WithModels(sc.Model, sc.Models),
		studio.WithDirectRead(sc.DirectRead),
		studio.WithAdmin(studio.Credentials{ID: a.cfg.Admin.ID, Secret: a.cfg.Admin.Secret}),
		studio.WithMetrics(a.metrics),
		studio.WithLogger(a.log.With("component", "studio")),
	}
	if sc.Language != "" {
		lang, err := studio.ParseLanguage(sc.Language)
		if err != nil {
			return err
		}
		opts = append(opts, studio.WithLanguage(lang))
	}
	if sc.SampleRate > 0 {
		opts = append(opts, studio.WithSampleRate(sc.SampleRate))
	}
	if sc.DefaultVoice != "" {
		opts = append(opts, studio.WithDefaultVoice(sc.DefaultVoice))
	}

	p := a.providers
	shell, err := studio.New(studio.Providers{
		LLM:   p.LLM,
		TTS:   p.TTS,
		Image: p.Image,
		STT:   p.STT,
		VAD:   p.VAD,
	}, a.player, a.voices, opts...)
	if err != nil {
		return err
	}
	a.shell = shell
	return nil
}

// initLab builds the voice lab with the configured microphone and trainer.
func (a *App) initLab() error {
	vc := a.cfg.VoiceLab
	if a.mic == nil {
		a.mic = voicelab.NewBufferMicrophone(
			audio.Format{SampleRate: micSampleRate, Channels: 1},
			vc.MaxRecording, vc.MicrophoneAllowed())
	}
	if a.trainer == nil {
		switch vc.Trainer {
		case config.TrainerProvider:
			if a.providers.TTS == nil {
				return errors.New("voicelab.trainer \"provider\" requires a TTS provider")
			}
			a.trainer = voicelab.NewProviderTrainer(a.providers.TTS, a.providers.VAD, nil)
		default:
			a.trainer = voicelab.NewSimulatedTrainer(vc.ProcessingDelay)
		}
	}

	opts := []voicelab.Option{
		voicelab.WithMetrics(a.metrics),
		voicelab.WithLogger(a.log.With("component", "voicelab")),
	}
	if vc.MaxRecording > 0 {
		opts = append(opts, voicelab.WithMaxRecording(vc.MaxRecording))
	}
	if a.newTicker != nil {
		opts = append(opts, voicelab.WithTicker(a.newTicker))
	}
	lab, err := voicelab.New(a.mic, a.trainer, a.voices, opts...)
	if err != nil {
		return err
	}
	a.lab = lab
	a.closers = append(a.closers, lab.Close)
	return nil
}

// openCircuits lists the providers whose circuit breaker is open.
func (a *App) openCircuits() []string {
	var open []string
	for _, b := range a.breakers {
		if b.State() == resilience.StateOpen {
			open = append(open, b.Name())
		}
	}
	return open
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler serving the full API, including health
// and metrics endpoints.
func (a *App) Handler() http.Handler { return a.handler }

// Shell returns the orchestration shell.
func (a *App) Shell() *studio.Shell { return a.shell }

// Lab returns the voice lab.
func (a *App) Lab() *voicelab.Lab { return a.lab }

// Voices returns the voice catalog.
func (a *App) Voices() *voice.Catalog { return a.voices }

// Player returns the playback engine.
func (a *App) Player() *playback.Engine { return a.player }

// Listeners returns the stream listener registry.
func (a *App) Listeners() *ListenerManager { return a.listeners }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API on server.listen_addr and blocks until ctx is
// cancelled or the listener fails. When ctx is done, Run returns
// context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like Run but accepts connections on ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return a.ctx },
	}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	a.log.Info("app running", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and tears down all subsystems in init
// order. It respects the context deadline: if ctx expires before all closers
// finish, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		a.health.SetDraining()

		// Stop accepting requests first. Websocket listeners are hijacked
		// connections and end through the listener manager closer.
		a.mu.Lock()
		srv := a.server
		a.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				a.log.Warn("http server shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers collected so far after a failed New.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
}
