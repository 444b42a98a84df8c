package llm_test

import (
	"testing"

	"github.com/MrWong99/newscast/pkg/provider/llm"
)

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		model   string
		context int
		output  int
	}{
		{model: "gemini-2.5-flash", context: 1_048_576, output: 65_536},
		{model: "gemini-3-pro-preview", context: 1_048_576, output: 65_536},
		{model: "Gemini-2.0-Flash", context: 1_048_576, output: 8_192},
		{model: "gemini-1.0-pro", context: 128_000, output: 8_192},
		{model: "gpt-4.1-mini", context: 1_047_576, output: 32_768},
		{model: "gpt-4o-mini", context: 128_000, output: 16_384},
		{model: "gpt-4", context: 8_192, output: 4_096},
		{model: "claude-3-5-haiku", context: 200_000, output: 8_192},
		{model: "llama3", context: 128_000, output: 4_096},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got := llm.CapabilitiesFor(tt.model)
			if got.ContextWindow != tt.context || got.MaxOutputTokens != tt.output {
				t.Errorf("got %+v, want context %d output %d", got, tt.context, tt.output)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := llm.EstimateTokens(nil); got != 0 {
		t.Errorf("empty = %d, want 0", got)
	}
	one := llm.EstimateTokens([]llm.Message{{Content: "Hello"}})
	two := llm.EstimateTokens([]llm.Message{{Content: "Hello"}, {Content: "Hi there, how can I help?"}})
	if two <= one {
		t.Errorf("two messages (%d) should cost more than one (%d)", two, one)
	}
}
