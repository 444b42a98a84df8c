package studio_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/newscast/internal/studio"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/audio/playback"
	"github.com/MrWong99/newscast/pkg/provider/llm"
	"github.com/MrWong99/newscast/pkg/provider/tts"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func queue(t *testing.T, s *studio.Shell) {
	t.Helper()
	if _, err := s.AddArticle("A", "x"); err != nil {
		t.Fatalf("AddArticle: %v", err)
	}
	if _, err := s.AddArticle("B", "y"); err != nil {
		t.Fatalf("AddArticle: %v", err)
	}
}

// waitFor polls cond until it holds or a second has passed.
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

// ── Combine ──────────────────────────────────────────────────────────────────

func TestCombine(t *testing.T) {
	t.Parallel()
	articles := []studio.Article{
		{Title: "A", Content: "x"},
		{Title: "B", Content: "y"},
	}
	if got, want := studio.Combine(articles, false), "A\nx\n\n---\n\nB\ny"; got != want {
		t.Errorf("summarize mode: got %q, want %q", got, want)
	}
	if got, want := studio.Combine(articles, true), "x\n\ny"; got != want {
		t.Errorf("direct read: got %q, want %q", got, want)
	}
	if got := studio.Combine(nil, false); got != "" {
		t.Errorf("no articles: got %q", got)
	}
}

// ── Generate ─────────────────────────────────────────────────────────────────

func TestGenerate_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: "  **Good** evening. ### Headlines  "}
	queue(t, f.shell)

	if err := f.shell.Generate(t.Context()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	v := f.shell.View()
	if v.State != studio.Playing {
		t.Fatalf("state: got %s, want playing", v.State)
	}
	if v.Summary != "**Good** evening. ### Headlines" {
		t.Errorf("summary: got %q", v.Summary)
	}
	if !strings.HasPrefix(v.Cover, "data:image/png;base64,") {
		t.Errorf("cover: got %q", v.Cover)
	}
	if !v.HasAudio || v.Error != "" {
		t.Errorf("view: has_audio=%v error=%q", v.HasAudio, v.Error)
	}

	calls := f.llm.Calls()
	if len(calls) != 1 {
		t.Fatalf("llm calls: got %d, want 1", len(calls))
	}
	if calls[0].Req.Model != "gemini-2.5-flash" {
		t.Errorf("model: got %q", calls[0].Req.Model)
	}
	prompt := calls[0].Req.Messages[0].Content
	if !strings.Contains(prompt, "Daily Spark") || !strings.HasSuffix(prompt, "A\nx\n\n---\n\nB\ny") {
		t.Errorf("prompt: got %q", prompt)
	}
	if !strings.Contains(prompt, "US English") {
		t.Errorf("default voice should ask for US English: %q", prompt)
	}

	synth := f.tts.Calls()
	if len(synth) != 1 {
		t.Fatalf("tts calls: got %d, want 1", len(synth))
	}
	if synth[0].Text != "Good evening.  Headlines" {
		t.Errorf("speech text: got %q", synth[0].Text)
	}
	if synth[0].Voice.ID != "Puck" {
		t.Errorf("base voice: got %q, want Puck", synth[0].Voice.ID)
	}

	gen := f.image.Calls()
	if len(gen) != 1 || !strings.Contains(gen[0].Prompt, "represents these topics: A\nx") {
		t.Errorf("cover prompt: got %+v", gen)
	}

	a := f.player.Asset()
	if a == nil {
		t.Fatal("player should hold the broadcast")
	}
	if a.SampleRate() != 24000 || a.Channels() != 1 || a.Frames() != 2400 {
		t.Errorf("asset: %d Hz, %d ch, %d frames", a.SampleRate(), a.Channels(), a.Frames())
	}
	if f.player.State() != playback.Stopped {
		t.Errorf("generation should not start playback, got %s", f.player.State())
	}
	if st := f.metrics.Stats(); st.Generations != 1 || st.Failures != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestGenerate_DirectReadSkipsSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, studio.WithDirectRead(true))
	queue(t, f.shell)

	if err := f.shell.Generate(t.Context()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n := len(f.llm.Calls()); n != 0 {
		t.Errorf("llm should not be called in direct-read mode, got %d calls", n)
	}
	synth := f.tts.Calls()
	if len(synth) != 1 || synth[0].Text != "x\n\ny" {
		t.Errorf("speech text: got %+v", synth)
	}
	if got := f.shell.View().Summary; got != "x\n\ny" {
		t.Errorf("summary: got %q", got)
	}
}

func TestGenerate_SpeechFailureResetsToIdle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.tts.SynthesizeErr = errors.New("quota exceeded")
	queue(t, f.shell)

	err := f.shell.Generate(t.Context())
	if !errors.Is(err, studio.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !strings.Contains(err.Error(), studio.StageSpeech) {
		t.Errorf("error should name the stage: %v", err)
	}

	v := f.shell.View()
	if v.State != studio.Idle {
		t.Errorf("state: got %s, want idle", v.State)
	}
	if v.Error != studio.GenerationFailedMessage {
		t.Errorf("error message: got %q", v.Error)
	}
	if v.Summary != "" || v.Cover != "" || v.HasAudio {
		t.Errorf("partial results should be cleared: %+v", v)
	}
	if f.player.Asset() != nil {
		t.Error("player should hold no asset after a failure")
	}
	if len(v.Articles) != 2 {
		t.Errorf("articles should be kept, got %d", len(v.Articles))
	}
	if st := f.metrics.Stats(); st.Failures != 1 {
		t.Errorf("failures: got %d", st.Failures)
	}
}

func TestGenerate_EmptySpeech(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.tts.SynthesizeResult = &tts.Speech{}
	queue(t, f.shell)

	err := f.shell.Generate(t.Context())
	if !errors.Is(err, tts.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestGenerate_SummaryFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"backend error", func(f *fixture) { f.llm.CompleteErr = errors.New("503") }},
		{"empty summary", func(f *fixture) { f.llm.CompleteResponse = &llm.CompletionResponse{Content: "  "} }},
		{"context window", func(f *fixture) {
			f.llm.TokenCount = 5000
			f.llm.ModelCapabilities = llm.Capabilities{ContextWindow: 1000}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			tc.setup(f)
			queue(t, f.shell)

			err := f.shell.Generate(t.Context())
			if !errors.Is(err, studio.ErrGeneration) || !strings.Contains(err.Error(), studio.StageSummarize) {
				t.Fatalf("expected summarize failure, got %v", err)
			}
			if n := len(f.tts.Calls()); n != 0 {
				t.Errorf("speech should not be attempted, got %d calls", n)
			}
			if v := f.shell.View(); v.State != studio.Idle || v.Error != studio.GenerationFailedMessage {
				t.Errorf("view: state=%s error=%q", v.State, v.Error)
			}
		})
	}
}

func TestGenerate_ContextWindowSkipsCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.llm.TokenCount = 2000
	f.llm.ModelCapabilities = llm.Capabilities{ContextWindow: 1000}
	queue(t, f.shell)

	_ = f.shell.Generate(t.Context())
	if n := len(f.llm.Calls()); n != 0 {
		t.Errorf("oversized prompt should not be sent, got %d calls", n)
	}
}

func TestGenerate_CoverFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.image.GenerateErr = errors.New("safety filter")
	queue(t, f.shell)

	if err := f.shell.Generate(t.Context()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	v := f.shell.View()
	if v.State != studio.Playing || v.Cover != "" {
		t.Errorf("view: state=%s cover=%q", v.State, v.Cover)
	}
}

func TestGenerate_UsesVoiceAndLanguage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, studio.WithLanguage(studio.Hindi))
	if _, err := f.shell.Select("v8"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	queue(t, f.shell)

	if err := f.shell.Generate(t.Context()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	prompt := f.llm.Calls()[0].Req.Messages[0].Content
	if !strings.Contains(prompt, "Devanagari") {
		t.Errorf("prompt should request Hindi: %q", prompt)
	}
	if got := f.tts.Calls()[0].Voice.ID; got != "Fenrir" {
		t.Errorf("base voice: got %q, want Fenrir", got)
	}
	want := playback.Settings{Speed: 1.15, Pitch: 0}
	if got := f.player.Settings(); got != want {
		t.Errorf("player settings: got %+v, want %+v", got, want)
	}
}

func TestGenerate_ReportedSpeechFormat(t *testing.T) {
	t.Parallel()
	f := newFixture(t, studio.WithSampleRate(16000))
	f.tts.SynthesizeResult = &tts.Speech{
		PCM:    make([]byte, 8000),
		Format: audio.Format{SampleRate: 48000, Channels: 2},
	}
	queue(t, f.shell)

	if err := f.shell.Generate(t.Context()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	a := f.player.Asset()
	if a.SampleRate() != 48000 || a.Channels() != 2 {
		t.Errorf("reported format should win: %d Hz, %d ch", a.SampleRate(), a.Channels())
	}
}

// ── Preconditions ────────────────────────────────────────────────────────────

func TestGenerate_NoArticles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.shell.Generate(t.Context()); !errors.Is(err, studio.ErrNoArticles) {
		t.Errorf("got %v, want ErrNoArticles", err)
	}
	if f.shell.State() != studio.Idle {
		t.Errorf("state: got %s", f.shell.State())
	}
}

func TestGenerate_BusyWhileRunning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	block := make(chan struct{})
	f.llm.Block = block
	queue(t, f.shell)

	done, err := f.shell.StartGenerate(t.Context())
	if err != nil {
		t.Fatalf("StartGenerate: %v", err)
	}
	if f.shell.State() != studio.Summarizing {
		t.Errorf("state: got %s, want summarizing", f.shell.State())
	}
	if _, err := f.shell.StartGenerate(t.Context()); !errors.Is(err, studio.ErrBusy) {
		t.Errorf("second generate: got %v, want ErrBusy", err)
	}
	if err := f.shell.Login("admin", "gemini-studio-2025"); !errors.Is(err, studio.ErrBusy) {
		t.Errorf("login while generating: got %v, want ErrBusy", err)
	}
	if err := f.shell.OpenAdmin(); !errors.Is(err, studio.ErrBusy) {
		t.Errorf("admin while generating: got %v, want ErrBusy", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("generation: %v", err)
	}
	if f.shell.State() != studio.Playing {
		t.Errorf("state: got %s, want playing", f.shell.State())
	}
	if _, err := f.shell.StartGenerate(t.Context()); !errors.Is(err, studio.ErrBusy) {
		t.Errorf("generate while playing: got %v, want ErrBusy", err)
	}
}

func TestRestart_DiscardsInFlightGeneration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	block := make(chan struct{})
	f.llm.Block = block
	queue(t, f.shell)

	done, err := f.shell.StartGenerate(t.Context())
	if err != nil {
		t.Fatalf("StartGenerate: %v", err)
	}
	waitFor(t, "summarize call", func() bool { return len(f.llm.Calls()) == 1 })

	f.shell.Restart()
	if f.shell.State() != studio.Idle {
		t.Fatalf("state after restart: got %s", f.shell.State())
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("superseded run should finish quietly, got %v", err)
	}
	v := f.shell.View()
	if v.State != studio.Idle || v.Summary != "" || v.HasAudio || v.Error != "" {
		t.Errorf("stale results leaked: %+v", v)
	}
	if n := len(f.tts.Calls()); n != 0 {
		t.Errorf("superseded run should not synthesize, got %d calls", n)
	}
}

func TestRestart_FromPlaying(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	queue(t, f.shell)
	if err := f.shell.Generate(t.Context()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	f.shell.Restart()
	v := f.shell.View()
	if v.State != studio.Idle || v.HasAudio || v.Summary != "" {
		t.Errorf("view after restart: %+v", v)
	}
	if f.player.Asset() != nil {
		t.Error("player should be ejected")
	}
	if err := f.shell.Generate(t.Context()); err != nil {
		t.Errorf("regenerate: %v", err)
	}
}
