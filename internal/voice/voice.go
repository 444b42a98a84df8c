// Package voice holds the broadcast voice catalog: the built-in presets, the
// clones produced by the voice lab, and the admin visibility flags.
//
// A [Catalog] is the single in-process view of all voices. Custom voices and
// hidden flags are persisted through a [Store] so that they survive restarts;
// the built-in presets are compiled in and never stored.
package voice

import (
	"errors"
	"strings"
)

// Gender is the presented gender of a voice.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// ErrUnknownVoice is returned when an operation names a voice id that is not
// in the catalog.
var ErrUnknownVoice = errors.New("voice: unknown voice")

// Preset is one selectable broadcast voice.
type Preset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender Gender `json:"gender"`
	Style  string `json:"style"`

	// BaseVoice is the backend voice the preset renders with. For the
	// built-ins this is a Gemini prebuilt voice name; for provider-trained
	// clones it is the id the backend assigned.
	BaseVoice string `json:"base_voice"`

	Flag        string `json:"flag"`
	Description string `json:"description"`

	// DefaultPitch is in cents, DefaultSpeed a playback rate multiplier.
	// Selecting the voice resets the playback settings to these values.
	DefaultPitch int     `json:"default_pitch"`
	DefaultSpeed float64 `json:"default_speed"`

	IsCustom bool `json:"is_custom,omitempty"`
	IsHidden bool `json:"is_hidden,omitempty"`
}

// IsIndian reports whether the preset is one of the Indian-English personas.
// The summarize prompt and the preview line both depend on it.
func (p Preset) IsIndian() bool {
	return strings.Contains(p.Style, "Indian")
}
