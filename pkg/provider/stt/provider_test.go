package stt_test

import (
	"testing"

	"github.com/MrWong99/newscast/pkg/provider/stt"
)

func TestBaseLanguage(t *testing.T) {
	tests := map[string]string{
		"en-US": "en",
		"hi_IN": "hi",
		"de":    "de",
		"":      "",
	}
	for in, want := range tests {
		if got := stt.BaseLanguage(in); got != want {
			t.Errorf("BaseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
