package studio

import (
	"fmt"
	"strings"
)

// Language is a broadcast language.
type Language string

const (
	English  Language = "English"
	Hindi    Language = "Hindi"
	Spanish  Language = "Spanish"
	French   Language = "French"
	German   Language = "German"
	Hinglish Language = "Hinglish"
)

// Languages returns every supported language in display order.
func Languages() []Language {
	return []Language{English, Hindi, Spanish, French, German, Hinglish}
}

// ParseLanguage resolves a language name case-insensitively.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	for _, l := range Languages() {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("studio: unsupported language %q", s)
}

// DictationTag is the BCP-47 tag used when transcribing speech in l.
// Hinglish is dictated as Hindi.
func (l Language) DictationTag() string {
	switch l {
	case Hindi, Hinglish:
		return "hi-IN"
	case Spanish:
		return "es-ES"
	case French:
		return "fr-FR"
	case German:
		return "de-DE"
	default:
		return "en-US"
	}
}
