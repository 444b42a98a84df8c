// Package audio holds the in-memory audio representation shared by the studio:
// decoded assets, raw PCM frames and the codecs that move between them.
//
// All PCM handled here is little-endian signed 16-bit. Floating-point samples
// live in [-1, 1] and are stored interleaved by channel.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form such as "24000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// BytesPerSecond is the PCM16 data rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Valid reports whether both rate and channel count are positive.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// Frame is one chunk of PCM16 audio moving between a capture device, the
// playback engine and stream listeners.
type Frame struct {
	// Data is interleaved little-endian int16 PCM.
	Data []byte

	// Format of Data.
	Format Format

	// Timestamp marks the chunk start relative to the beginning of the stream.
	Timestamp time.Duration
}

// Duration returns the playing time covered by the frame.
func (f Frame) Duration() time.Duration {
	bps := f.Format.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(len(f.Data)) * int64(time.Second) / int64(bps))
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
