package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/provider/image"
	"github.com/MrWong99/newscast/pkg/provider/llm"
	"github.com/MrWong99/newscast/pkg/provider/tts"
)

// Pipeline stage names, used for metrics and logs.
const (
	StageSummarize = "summarize"
	StageCover     = "cover"
	StageSpeech    = "speech"
	StageDecode    = "decode"
)

// errSuperseded marks a run whose results were discarded by Restart.
var errSuperseded = errors.New("studio: generation superseded by restart")

// job is the input snapshot of one pipeline run.
type job struct {
	gen        uint64
	articles   []Article
	language   Language
	model      string
	directRead bool
	preset     voice.Preset
}

// Generate runs the whole pipeline and blocks until the shell reaches
// Playing or falls back to Idle. See [Shell.StartGenerate].
func (s *Shell) Generate(ctx context.Context) error {
	done, err := s.StartGenerate(ctx)
	if err != nil {
		return err
	}
	return <-done
}

// StartGenerate enters Summarizing and runs the pipeline in the background.
// It fails with [ErrBusy] unless the shell is Idle and with [ErrNoArticles]
// when nothing is queued. The returned channel yields the outcome once: nil
// on success, or an error wrapping [ErrGeneration].
//
// ctx bounds the background run. Callers serving an HTTP request should pass
// a context that outlives the request.
func (s *Shell) StartGenerate(ctx context.Context) (<-chan error, error) {
	j, err := s.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		err := s.run(ctx, j)
		if errors.Is(err, errSuperseded) {
			err = nil
		}
		done <- err
	}()
	return done, nil
}

func (s *Shell) begin() (job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return job{}, fmt.Errorf("%w: cannot generate while %s", ErrBusy, s.state)
	}
	if len(s.articles) == 0 {
		return job{}, ErrNoArticles
	}
	preset, ok := s.voices.Get(s.voiceID)
	if !ok {
		return job{}, fmt.Errorf("studio: %w: %q", voice.ErrUnknownVoice, s.voiceID)
	}

	s.gen++
	s.clearResultsLocked()
	s.errMsg = ""
	s.state = Summarizing
	return job{
		gen:        s.gen,
		articles:   append([]Article(nil), s.articles...),
		language:   s.language,
		model:      s.model,
		directRead: s.directRead,
		preset:     preset,
	}, nil
}

func (s *Shell) run(ctx context.Context, j job) error {
	ctx, span := observe.StartSpan(ctx, "studio.generate",
		trace.WithAttributes(
			attribute.String("language", string(j.language)),
			attribute.String("model", j.model),
			attribute.Bool("direct_read", j.directRead),
			attribute.String("voice", j.preset.ID),
			attribute.Int("articles", len(j.articles)),
		),
	)
	defer span.End()

	stage, err := s.pipeline(ctx, j)
	if errors.Is(err, errSuperseded) {
		span.SetAttributes(attribute.Bool("superseded", true))
		return err
	}
	s.metrics.RecordGeneration(ctx, stage)
	if err == nil {
		s.log.Info("broadcast ready", "voice", j.preset.ID, "language", j.language)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.fail(j.gen)
	observe.Logger(ctx).Error("generation failed", "stage", stage, "err", err)
	return fmt.Errorf("%w: %s: %w", ErrGeneration, stage, err)
}

// pipeline returns the failing stage alongside the error, or "" on success.
func (s *Shell) pipeline(ctx context.Context, j job) (string, error) {
	combined := Combine(j.articles, j.directRead)

	// ── 1. Script and cover art ──────────────────────────────────────────
	script := combined
	var cover *image.Image

	g, gctx := errgroup.WithContext(ctx)
	if !j.directRead {
		g.Go(func() error {
			return s.timed(gctx, StageSummarize, func(ctx context.Context) error {
				text, err := s.summarize(ctx, combined, j)
				script = text
				return err
			})
		})
	}
	g.Go(func() error {
		_ = s.timed(gctx, StageCover, func(ctx context.Context) error {
			cover = s.coverArt(ctx, combined)
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return StageSummarize, err
	}

	if !s.advance(j.gen, func() {
		s.summary = script
		s.cover = cover
		s.state = GeneratingAudio
	}) {
		return "", errSuperseded
	}

	// ── 2. Speech ────────────────────────────────────────────────────────
	var speech *tts.Speech
	err := s.timed(ctx, StageSpeech, func(ctx context.Context) error {
		var err error
		speech, err = s.providers.TTS.Synthesize(ctx, SpeechText(script), tts.VoiceProfile{
			ID:   j.preset.BaseVoice,
			Name: j.preset.Name,
		})
		if err == nil && (speech == nil || len(speech.PCM) == 0) {
			err = tts.ErrEmptyAudio
		}
		return err
	})
	if err != nil {
		return StageSpeech, err
	}

	// ── 3. Decode ────────────────────────────────────────────────────────
	var asset *audio.Asset
	err = s.timed(ctx, StageDecode, func(context.Context) error {
		var err error
		asset, err = s.decodeSpeech(speech)
		return err
	})
	if err != nil {
		return StageDecode, err
	}

	// ── 4. Hand over to playback ─────────────────────────────────────────
	if !s.advance(j.gen, func() {
		s.asset = asset
		s.player.Load(asset)
		s.settings = s.player.UpdateSettings(s.settings)
		s.state = Playing
	}) {
		return "", errSuperseded
	}
	return "", nil
}

// summarize asks the text model for the broadcast script. The prompt is
// checked against the model's context window first.
func (s *Shell) summarize(ctx context.Context, text string, j job) (string, error) {
	msgs := []llm.Message{{Role: llm.RoleUser, Content: SummarizePrompt(text, j.language, j.preset.Style)}}

	if n, err := s.providers.LLM.CountTokens(msgs); err == nil {
		caps := s.providers.LLM.Capabilities(j.model)
		if caps.ContextWindow > 0 && n > caps.ContextWindow {
			return "", fmt.Errorf("prompt of %d tokens exceeds the %d token window of %s", n, caps.ContextWindow, j.model)
		}
	}

	resp, err := s.providers.LLM.Complete(ctx, llm.CompletionRequest{Model: j.model, Messages: msgs})
	if err != nil {
		return "", err
	}
	script := ""
	if resp != nil {
		script = strings.TrimSpace(resp.Content)
	}
	if script == "" {
		return "", fmt.Errorf("summary: %w", llm.ErrEmptyResponse)
	}
	return script, nil
}

// coverArt requests the cover image. Failures are logged and yield nil.
func (s *Shell) coverArt(ctx context.Context, text string) *image.Image {
	img, err := s.providers.Image.Generate(ctx, CoverPrompt(text))
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("cover art unavailable", "err", err)
		}
		return nil
	}
	if img == nil || len(img.Data) == 0 {
		return nil
	}
	return img
}

// decodeSpeech turns synthesized PCM into an asset. A backend that does not
// report its format is assumed to produce mono at the configured rate.
func (s *Shell) decodeSpeech(sp *tts.Speech) (*audio.Asset, error) {
	rate, channels := sp.Format.SampleRate, sp.Format.Channels
	if rate <= 0 {
		rate = s.sampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	return audio.DecodePCM16(sp.PCM, rate, channels)
}

// timed runs fn and records its latency under stage.
func (s *Shell) timed(ctx context.Context, stage string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordStage(ctx, stage, time.Since(start).Seconds())
	return err
}

// advance applies update if run gen is still current.
func (s *Shell) advance(gen uint64, update func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	update()
	return true
}

// fail returns run gen to Idle with the generic message and no results.
func (s *Shell) fail(gen uint64) {
	s.advance(gen, func() {
		s.clearResultsLocked()
		s.errMsg = GenerationFailedMessage
		s.state = Idle
	})
}
