package anyllm

import (
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/newscast/pkg/provider/llm"
)

func TestParams(t *testing.T) {
	p := &Provider{model: "gemini-2.5-flash"}

	t.Run("defaults", func(t *testing.T) {
		params := p.params(llm.CompletionRequest{
			SystemPrompt: "You are a news anchor.",
			Messages: []llm.Message{
				{Role: llm.RoleUser, Content: "Summarize."},
				{Role: llm.RoleAssistant, Content: "Good evening."},
			},
		})
		roles := make([]string, len(params.Messages))
		for i, m := range params.Messages {
			roles[i] = m.Role
		}
		if want := []string{anyllmlib.RoleSystem, llm.RoleUser, llm.RoleAssistant}; !slices.Equal(roles, want) {
			t.Errorf("roles = %v, want %v", roles, want)
		}
		if got := params.Messages[2].ContentString(); got != "Good evening." {
			t.Errorf("content = %q", got)
		}
		if params.Model != "gemini-2.5-flash" {
			t.Errorf("model = %q, want provider default", params.Model)
		}
		if params.Temperature != nil || params.MaxTokens != nil {
			t.Error("zero temperature and max tokens should stay unset")
		}
	})

	t.Run("overrides", func(t *testing.T) {
		params := p.params(llm.CompletionRequest{
			Model:       "gemini-3-pro-preview",
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: "x"}},
			Temperature: 0.4,
			MaxTokens:   2048,
		})
		if len(params.Messages) != 1 {
			t.Errorf("messages = %d, want no system message", len(params.Messages))
		}
		if params.Model != "gemini-3-pro-preview" {
			t.Errorf("model = %q, want request override", params.Model)
		}
		if params.Temperature == nil || *params.Temperature != 0.4 {
			t.Errorf("temperature = %v, want 0.4", params.Temperature)
		}
		if params.MaxTokens == nil || *params.MaxTokens != 2048 {
			t.Errorf("max tokens = %v, want 2048", params.MaxTokens)
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		model   string
		opts    []anyllmlib.Option
		ok      bool
	}{
		{"empty backend", "", "gpt-4o", nil, false},
		{"empty model", "openai", "", nil, false},
		{"unknown backend", "fakecloud", "m", []anyllmlib.Option{anyllmlib.WithAPIKey("dummy")}, false},
		{"openai with key", "openai", "gpt-4o", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}, true},
		{"case and space insensitive", " OpenAI ", "gpt-4o", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}, true},
		{"ollama", "ollama", "llama3", nil, true},
		{"llamacpp", "llamacpp", "llama3", nil, true},
		{"llamafile", "llamafile", "llama3", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.backend, tt.model, tt.opts...)
			if (err == nil) != tt.ok {
				t.Fatalf("New(%q, %q) error = %v, want ok=%v", tt.backend, tt.model, err, tt.ok)
			}
			if tt.ok && p.model != tt.model {
				t.Errorf("model = %q, want %q", p.model, tt.model)
			}
		})
	}
}

// Relies on OPENAI_API_KEY being unset.
func TestNew_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestBackends(t *testing.T) {
	got := Backends()
	if !slices.IsSorted(got) || len(got) != len(backends) {
		t.Fatalf("Backends() = %v", got)
	}
	for _, name := range []string{"openai", "anthropic", "gemini", "ollama"} {
		if !slices.Contains(got, name) {
			t.Errorf("Backends() missing %q", name)
		}
	}
}

func TestCountTokensAndCapabilities(t *testing.T) {
	p := &Provider{model: "claude-sonnet-4"}
	n, err := p.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "Hello world"}})
	if err != nil || n != 7 {
		t.Errorf("CountTokens = %d, %v; want 7", n, err)
	}
	if got := p.Capabilities(""); got != llm.CapabilitiesFor("claude-sonnet-4") {
		t.Errorf("Capabilities(\"\") = %+v, want provider model caps", got)
	}
	if got := p.Capabilities("gemini-2.5-flash"); got.ContextWindow != 1_048_576 {
		t.Errorf("gemini-2.5-flash context = %d, want 1048576", got.ContextWindow)
	}
}
