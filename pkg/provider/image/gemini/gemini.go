// Package gemini provides an image provider backed by the Gemini image
// models through google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/MrWong99/newscast/pkg/provider/image"
)

// DefaultModel is the image model used when New receives an empty model.
const DefaultModel = "gemini-2.5-flash-image"

var _ image.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*config)

type config struct {
	baseURL     string
	aspectRatio string
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithAspectRatio overrides the default 1:1 aspect ratio.
func WithAspectRatio(ratio string) Option {
	return func(c *config) { c.aspectRatio = ratio }
}

// Provider implements image.Provider using Gemini.
type Provider struct {
	client      *genai.Client
	model       string
	aspectRatio string
}

// New creates a Provider authenticated with apiKey.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini image: api key must not be empty")
	}
	cfg := config{aspectRatio: "1:1"}
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
		return nil, fmt.Errorf("gemini image: create client: %w", err)
	}
	return &Provider{client: client, model: model, aspectRatio: cfg.aspectRatio}, nil
}

// Generate implements image.Provider. The first inline image part of the
// first candidate is returned.
func (p *Provider) Generate(ctx context.Context, prompt string) (*image.Image, error) {
	if prompt == "" {
		return nil, errors.New("gemini image: prompt must not be empty")
	}
	cfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: p.aspectRatio},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini image: generate: %w", err)
	}
	return firstImage(resp)
}

func firstImage(resp *genai.GenerateContentResponse) (*image.Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, image.ErrNoImage
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return &image.Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, nil
	}
	return nil, image.ErrNoImage
}
