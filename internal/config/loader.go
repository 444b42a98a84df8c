package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"slices"

	"github.com/MrWong99/newscast/internal/studio"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":   {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":   {"gemini", "openai", "elevenlabs"},
	"image": {"gemini", "openai"},
	"stt":   {"openai", "deepgram", "whisper"},
	"vad":   {"energy"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("image", cfg.Providers.Image.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" && !cfg.Studio.DirectRead {
		slog.Warn("no LLM provider configured; only direct-read broadcasts can be generated")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; generation and voice previews will fail")
	}
	if cfg.Providers.Image.Name == "" {
		slog.Warn("no image provider configured; broadcasts will have no cover art")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; dictation is disabled")
	}

	// Studio
	if cfg.Studio.Language != "" {
		if _, err := studio.ParseLanguage(cfg.Studio.Language); err != nil {
			errs = append(errs, fmt.Errorf("studio.language: %w", err))
		}
	}
	if cfg.Studio.Model != "" && len(cfg.Studio.Models) > 0 && !slices.Contains(cfg.Studio.Models, cfg.Studio.Model) {
		errs = append(errs, fmt.Errorf("studio.model %q is not listed in studio.models %v", cfg.Studio.Model, cfg.Studio.Models))
	}
	if cfg.Studio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("studio.sample_rate %d must be positive", cfg.Studio.SampleRate))
	}

	// Playback
	if cfg.Playback.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("playback.tick_interval %s must be positive", cfg.Playback.TickInterval))
	}
	if n := cfg.Playback.FFTSize; n != 0 && (n < 32 || n > 32768 || bits.OnesCount(uint(n)) != 1) {
		errs = append(errs, fmt.Errorf("playback.fft_size %d must be a power of two in [32, 32768]", n))
	}
	if q := cfg.Playback.ResampleQuality; q < 0 || q > 64 {
		errs = append(errs, fmt.Errorf("playback.resample_quality %d must be in [1, 64]", q))
	}
	if cfg.Playback.StreamSampleRate < 0 {
		errs = append(errs, fmt.Errorf("playback.stream_sample_rate %d must be positive", cfg.Playback.StreamSampleRate))
	}

	// Voice lab
	if cfg.VoiceLab.MaxRecording < 0 {
		errs = append(errs, fmt.Errorf("voicelab.max_recording %s must be positive", cfg.VoiceLab.MaxRecording))
	}
	if cfg.VoiceLab.ProcessingDelay < 0 {
		errs = append(errs, fmt.Errorf("voicelab.processing_delay %s must not be negative", cfg.VoiceLab.ProcessingDelay))
	}
	if cfg.VoiceLab.Trainer != "" && !cfg.VoiceLab.Trainer.IsValid() {
		errs = append(errs, fmt.Errorf("voicelab.trainer %q is invalid; valid values: simulated, provider", cfg.VoiceLab.Trainer))
	}
	if cfg.VoiceLab.Trainer == TrainerProvider && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("voicelab.trainer \"provider\" requires providers.tts to be configured"))
	}

	// Voices
	seen := make(map[string]int, len(cfg.Voices.Hidden))
	for i, id := range cfg.Voices.Hidden {
		if id == "" {
			errs = append(errs, fmt.Errorf("voices.hidden[%d] is empty", i))
			continue
		}
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("voices.hidden[%d] %q is a duplicate of voices.hidden[%d]", i, id, prev))
		}
		seen[id] = i
	}

	// Admin
	if cfg.Admin.Secret == DefaultAdminSecret {
		slog.Warn("admin.secret is the built-in default; set a custom secret for shared deployments")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name: may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
