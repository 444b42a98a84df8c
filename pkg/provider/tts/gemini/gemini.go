// Package gemini provides a TTS provider backed by the Gemini speech
// generation models through google.golang.org/genai.
//
// The models answer with raw 16-bit mono PCM, by default at 24 kHz; the rate
// is read from the inline MIME type when present.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/newscast/pkg/audio"
	"github.com/MrWong99/newscast/pkg/provider/tts"
)

const (
	// DefaultModel is the speech model used when New receives an empty model.
	DefaultModel = "gemini-2.5-flash-preview-tts"

	// DefaultSampleRate is the rate the speech models emit unless the
	// response says otherwise.
	DefaultSampleRate = 24000
)

// PrebuiltVoices lists the voice names the speech models accept.
var PrebuiltVoices = []string{
	"Zephyr", "Puck", "Charon", "Kore", "Fenrir", "Leda", "Orus", "Aoede",
	"Callirrhoe", "Autonoe", "Enceladus", "Iapetus", "Umbriel", "Algieba",
	"Despina", "Erinome", "Algenib", "Rasalgethi", "Laomedeia", "Achernar",
	"Alnilam", "Schedar", "Gacrux", "Pulcherrima", "Achird", "Zubenelgenubi",
	"Vindemiatrix", "Sadachbia", "Sadaltager", "Sulafat",
}

var _ tts.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*config)

type config struct {
	baseURL string
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// Provider implements tts.Provider using Gemini speech generation.
type Provider struct {
	client *genai.Client
	model  string
}

// New creates a Provider authenticated with apiKey.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini tts: api key must not be empty")
	}
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if model == "" {
		model = DefaultModel
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini tts: create client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("gemini tts: text must not be empty")
	}
	if voice.ID == "" {
		return nil, errors.New("gemini tts: voice.ID must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice.ID},
			},
		},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini tts: generate: %w", err)
	}
	return extractSpeech(resp)
}

// ListVoices implements tts.Provider. The prebuilt catalogue is fixed.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, 0, len(PrebuiltVoices))
	for _, name := range PrebuiltVoices {
		out = append(out, tts.VoiceProfile{ID: name, Name: name, Provider: "gemini"})
	}
	return out, nil
}

// CloneVoice implements tts.Provider.
func (p *Provider) CloneVoice(_ context.Context, _ string, _ [][]byte) (*tts.VoiceProfile, error) {
	return nil, tts.ErrCloneUnsupported
}

// extractSpeech concatenates every inline audio part of the first candidate.
func extractSpeech(resp *genai.GenerateContentResponse) (*tts.Speech, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, tts.ErrEmptyAudio
	}
	var (
		buf  bytes.Buffer
		rate = DefaultSampleRate
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		if r := rateFromMIME(part.InlineData.MIMEType); r > 0 {
			rate = r
		}
		buf.Write(part.InlineData.Data)
	}
	if buf.Len() == 0 {
		return nil, tts.ErrEmptyAudio
	}
	return &tts.Speech{
		PCM:    buf.Bytes(),
		Format: audio.Format{SampleRate: rate, Channels: 1},
	}, nil
}

// rateFromMIME reads the rate parameter of e.g. "audio/L16;codec=pcm;rate=24000".
func rateFromMIME(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if r, err := strconv.Atoi(v); err == nil {
			return r
		}
	}
	return 0
}
