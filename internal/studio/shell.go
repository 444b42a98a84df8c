package studio

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/voice"
	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/audio/playback"
	"github.com/MrWong99/newscast/pkg/provider/image"
	"github.com/MrWong99/newscast/pkg/provider/llm"
	"github.com/MrWong99/newscast/pkg/provider/stt"
	"github.com/MrWong99/newscast/pkg/provider/tts"
	"github.com/MrWong99/newscast/pkg/provider/vad"
)

const defaultSampleRate = 24000

// Providers holds the generation backends. LLM, TTS and Image are required.
// STT enables dictation and VAD trims dictated clips; both may be nil.
type Providers struct {
	LLM   llm.Provider
	TTS   tts.Provider
	Image image.Provider
	STT   stt.Provider
	VAD   vad.Engine
}

// Credentials is the static admin id/secret pair.
type Credentials struct {
	ID     string
	Secret string
}

// Option is a functional option for configuring a [Shell].
type Option func(*Shell)

// WithLanguage sets the initial broadcast language. Default: English.
func WithLanguage(l Language) Option {
	return func(s *Shell) { s.language = l }
}

// WithModels sets the selectable text models and the initial one. An empty
// list keeps the defaults.
func WithModels(current string, models []string) Option {
	return func(s *Shell) {
		if len(models) > 0 {
			s.models = slices.Clone(models)
		}
		if current != "" {
			s.model = current
		}
	}
}

// WithDirectRead sets the initial direct-read mode.
func WithDirectRead(on bool) Option {
	return func(s *Shell) { s.directRead = on }
}

// WithSampleRate sets the rate assumed for synthesized PCM when the backend
// does not report one. Default: 24000.
func WithSampleRate(rate int) Option {
	return func(s *Shell) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithDefaultVoice sets the voice selected on startup. Default: v1.
func WithDefaultVoice(id string) Option {
	return func(s *Shell) { s.voiceID = id }
}

// WithAdmin sets the admin credentials.
func WithAdmin(c Credentials) Option {
	return func(s *Shell) { s.admin = c }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Shell) { s.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) { s.log = l }
}

// Shell is the session state container. All methods are safe for concurrent
// use; each is atomic with respect to the others.
type Shell struct {
	providers Providers
	player    *playback.Engine
	voices    *voice.Catalog
	metrics   *observe.Metrics
	log       *slog.Logger

	sampleRate int
	models     []string

	mu         sync.Mutex
	state      State
	errMsg     string
	articles   []Article
	language   Language
	model      string
	directRead bool
	voiceID    string
	settings   playback.Settings
	admin      Credentials

	// Results of the last successful generation.
	summary string
	cover   *image.Image
	asset   *audio.Asset

	// gen identifies the current pipeline run. Restart bumps it so that a
	// run finishing afterwards discards its results.
	gen uint64
}

// New creates a Shell over the given backends, playback engine and voice
// catalog.
func New(p Providers, player *playback.Engine, voices *voice.Catalog, opts ...Option) (*Shell, error) {
	var missing []error
	if p.LLM == nil {
		missing = append(missing, errors.New("llm provider is required"))
	}
	if p.TTS == nil {
		missing = append(missing, errors.New("tts provider is required"))
	}
	if p.Image == nil {
		missing = append(missing, errors.New("image provider is required"))
	}
	if player == nil {
		missing = append(missing, errors.New("playback engine is required"))
	}
	if voices == nil {
		missing = append(missing, errors.New("voice catalog is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, fmt.Errorf("studio: %w", err)
	}

	s := &Shell{
		providers:  p,
		player:     player,
		voices:     voices,
		sampleRate: defaultSampleRate,
		models:     []string{"gemini-2.5-flash", "gemini-3-pro-preview"},
		language:   English,
		voiceID:    voice.DefaultVoiceID,
		admin:      Credentials{ID: "admin", Secret: "gemini-studio-2025"},
	}
	for _, o := range opts {
		o(s)
	}
	if s.model == "" {
		s.model = s.models[0]
	}
	if !slices.Contains(s.models, s.model) {
		return nil, fmt.Errorf("studio: model %q is not in %v", s.model, s.models)
	}
	if _, err := ParseLanguage(string(s.language)); err != nil {
		return nil, err
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "studio")

	preset, ok := voices.Get(s.voiceID)
	if !ok {
		return nil, fmt.Errorf("studio: default voice: %w: %q", voice.ErrUnknownVoice, s.voiceID)
	}
	s.settings = presetSettings(preset)
	player.UpdateSettings(s.settings)
	return s, nil
}

// ─── View ────────────────────────────────────────────────────────────────────

// View is a point-in-time copy of the shell state.
type View struct {
	State      State             `json:"state"`
	Error      string            `json:"error,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Cover      string            `json:"cover,omitempty"`
	HasAudio   bool              `json:"has_audio"`
	Articles   []Article         `json:"articles"`
	Language   Language          `json:"language"`
	Languages  []Language        `json:"languages"`
	Model      string            `json:"model"`
	Models     []string          `json:"models"`
	DirectRead bool              `json:"direct_read"`
	Voice      voice.Preset      `json:"voice"`
	Settings   playback.Settings `json:"settings"`
}

// View returns the current state.
func (s *Shell) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, _ := s.voices.Get(s.voiceID)
	return View{
		State:      s.state,
		Error:      s.errMsg,
		Summary:    s.summary,
		Cover:      s.cover.DataURI(),
		HasAudio:   s.asset != nil,
		Articles:   slices.Clone(s.articles),
		Language:   s.language,
		Languages:  Languages(),
		Model:      s.model,
		Models:     slices.Clone(s.models),
		DirectRead: s.directRead,
		Voice:      preset,
		Settings:   s.settings,
	}
}

// State returns the current session state.
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ─── Articles ────────────────────────────────────────────────────────────────

// AddArticle queues a new article. Blank content is rejected. A blank title
// is replaced by "News Segment N".
func (s *Shell) AddArticle(title, content string) (Article, error) {
	if strings.TrimSpace(content) == "" {
		return Article{}, ErrEmptyArticle
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a := newArticle(title, content, len(s.articles)+1)
	s.articles = append(s.articles, a)
	return a, nil
}

// RemoveArticle drops the article with id from the queue.
func (s *Shell) RemoveArticle(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.articles, func(a Article) bool { return a.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: article %q", ErrNotFound, id)
	}
	s.articles = slices.Delete(s.articles, i, i+1)
	return nil
}

// Articles returns the queued articles in order.
func (s *Shell) Articles() []Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.articles)
}

// ─── Options ─────────────────────────────────────────────────────────────────

// SetLanguage selects the broadcast language.
func (s *Shell) SetLanguage(name string) error {
	l, err := ParseLanguage(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.language = l
	s.mu.Unlock()
	return nil
}

// SetModel selects the text model used for summarization.
func (s *Shell) SetModel(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.models, model) {
		return fmt.Errorf("studio: unsupported model %q", model)
	}
	s.model = model
	return nil
}

// SetDirectRead toggles direct-read mode.
func (s *Shell) SetDirectRead(on bool) {
	s.mu.Lock()
	s.directRead = on
	s.mu.Unlock()
}

// ─── Voice and settings ──────────────────────────────────────────────────────

// Select picks the broadcast voice and resets the playback settings to its
// default speed and pitch. Hidden voices cannot be selected.
func (s *Shell) Select(voiceID string) (voice.Preset, error) {
	preset, ok := s.voices.Get(voiceID)
	if !ok || preset.IsHidden {
		return voice.Preset{}, fmt.Errorf("studio: select: %w: %q", voice.ErrUnknownVoice, voiceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceID = preset.ID
	s.settings = s.player.UpdateSettings(presetSettings(preset))
	return preset, nil
}

// Voice returns the selected voice.
func (s *Shell) Voice() voice.Preset {
	s.mu.Lock()
	id := s.voiceID
	s.mu.Unlock()
	p, _ := s.voices.Get(id)
	return p
}

// UpdateSettings clamps and applies new playback settings. Live playback
// picks them up without restarting.
func (s *Shell) UpdateSettings(settings playback.Settings) playback.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.player.UpdateSettings(settings)
	return s.settings
}

// NudgeSpeed moves the speed by delta, clamped to [0.5, 3.0].
func (s *Shell) NudgeSpeed(delta float64) playback.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.player.UpdateSettings(s.settings.Nudge(delta))
	return s.settings
}

// Settings returns the current playback settings.
func (s *Shell) Settings() playback.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ─── Restart ─────────────────────────────────────────────────────────────────

// Restart returns to Idle from any state. It stops playback and discards the
// summary, cover and audio. A generation still in flight finishes in the
// background and its results are dropped.
func (s *Shell) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.clearResultsLocked()
	s.errMsg = ""
	s.state = Idle
}

func (s *Shell) clearResultsLocked() {
	s.summary = ""
	s.cover = nil
	s.asset = nil
	s.player.Eject()
}

// ─── Admin ───────────────────────────────────────────────────────────────────

// OpenAdmin moves from Idle to the admin login prompt.
func (s *Shell) OpenAdmin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case AdminLogin, AdminDashboard:
		return nil
	case Idle, Playing:
		s.state = AdminLogin
		return nil
	default:
		return fmt.Errorf("%w: cannot open admin while %s", ErrBusy, s.state)
	}
}

// Login checks the static credentials and enters the admin dashboard. A
// failed attempt leaves the shell at the login prompt.
func (s *Shell) Login(id, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.generating() {
		return fmt.Errorf("%w: cannot log in while %s", ErrBusy, s.state)
	}
	idOK := subtle.ConstantTimeCompare([]byte(id), []byte(s.admin.ID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(s.admin.Secret)) == 1
	if !idOK || !secretOK {
		s.state = AdminLogin
		s.log.Warn("admin login rejected", "id", id)
		return ErrInvalidCredentials
	}
	s.state = AdminDashboard
	s.log.Info("admin logged in", "id", id)
	return nil
}

// Logout leaves the admin path and returns to Idle.
func (s *Shell) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == AdminLogin || s.state == AdminDashboard {
		s.state = Idle
	}
}

// IsAdmin reports whether the shell is in the admin dashboard.
func (s *Shell) IsAdmin() bool {
	return s.State() == AdminDashboard
}

// SetAdmin replaces the admin credentials, e.g. after a config reload.
func (s *Shell) SetAdmin(c Credentials) {
	s.mu.Lock()
	s.admin = c
	s.mu.Unlock()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func presetSettings(p voice.Preset) playback.Settings {
	return playback.Settings{Speed: p.DefaultSpeed, Pitch: p.DefaultPitch}.Clamp()
}
