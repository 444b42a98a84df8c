package playback

import (
	"fmt"
	"math"
)

// Bounds for live playback parameters.
const (
	MinSpeed = 0.5
	MaxSpeed = 3.0
	MinPitch = -600
	MaxPitch = 600

	// SpeedStep is the increment used by speed nudge controls.
	SpeedStep = 0.1
)

// Settings are the live rate and pitch applied to the active source node.
// Pitch is a detune offset in cents.
type Settings struct {
	Speed float64 `json:"speed"`
	Pitch int     `json:"pitch"`
}

// DefaultSettings is normal speed with no detune.
func DefaultSettings() Settings {
	return Settings{Speed: 1.0, Pitch: 0}
}

// Clamp returns s with speed and pitch forced into their valid ranges.
// A non-positive or NaN speed becomes 1.
func (s Settings) Clamp() Settings {
	if math.IsNaN(s.Speed) || s.Speed <= 0 {
		s.Speed = 1.0
	}
	s.Speed = max(MinSpeed, min(MaxSpeed, s.Speed))
	s.Pitch = max(MinPitch, min(MaxPitch, s.Pitch))
	return s
}

// Nudge returns s with speed moved by delta and clamped. The result is
// rounded to two decimals so repeated steps do not accumulate float error.
func (s Settings) Nudge(delta float64) Settings {
	s.Speed = math.Round((s.Speed+delta)*100) / 100
	return s.Clamp()
}

// Rate is the effective resampling ratio of the source node: the linear
// speed multiplied by the detune factor 2^(cents/1200).
func (s Settings) Rate() float64 {
	return s.Speed * math.Pow(2, float64(s.Pitch)/1200)
}

func (s Settings) String() string {
	return fmt.Sprintf("%.2fx %+dc", s.Speed, s.Pitch)
}
