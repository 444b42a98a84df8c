package vad

import (
	"errors"
	"fmt"
)

// ErrNoSpeech is returned by SpeechBounds when no frame was classified as speech.
var ErrNoSpeech = errors.New("vad: no speech detected")

// SpeechBounds runs pcm (16-bit mono at cfg.SampleRate) through a fresh
// session and returns the byte range [start, end) that spans the first to the
// last speech frame. Hangover frames quieter than cfg.SilenceThreshold do not
// extend the range. A trailing partial frame is ignored.
func SpeechBounds(e Engine, cfg Config, pcm []byte) (start, end int, err error) {
	size := cfg.FrameBytes()
	if size <= 0 {
		return 0, 0, fmt.Errorf("vad: invalid frame size for %d Hz / %d ms", cfg.SampleRate, cfg.FrameSizeMs)
	}
	sess, err := e.NewSession(cfg)
	if err != nil {
		return 0, 0, fmt.Errorf("vad: new session: %w", err)
	}
	defer sess.Close()

	start, end = -1, -1
	for off := 0; off+size <= len(pcm); off += size {
		ev, err := sess.ProcessFrame(pcm[off : off+size])
		if err != nil {
			return 0, 0, fmt.Errorf("vad: frame at %d: %w", off, err)
		}
		switch {
		case ev.Kind == SpeechStart:
			if start < 0 {
				start = off
			}
			end = off + size
		case ev.Kind == Speech && ev.Probability >= cfg.SilenceThreshold:
			end = off + size
		}
	}
	if start < 0 {
		return 0, 0, ErrNoSpeech
	}
	return start, end, nil
}

// DefaultTrimConfig is the session configuration used by [Trim]: 20 ms frames
// at rate with the thresholds suggested for the energy detector.
func DefaultTrimConfig(rate int) Config {
	return Config{
		SampleRate:       rate,
		FrameSizeMs:      20,
		SpeechThreshold:  0.5,
		SilenceThreshold: 0.35,
	}
}

// Trim returns the slice of pcm between the first and the last speech frame.
// It returns ErrNoSpeech when the clip holds only silence.
func Trim(e Engine, cfg Config, pcm []byte) ([]byte, error) {
	start, end, err := SpeechBounds(e, cfg, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[start:end], nil
}
