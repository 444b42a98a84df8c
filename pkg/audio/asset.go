package audio

import (
	"errors"
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/gopxl/beep/v2"
)

// ErrDecode is returned when an audio payload is empty, malformed, or declares
// an impossible format.
var ErrDecode = errors.New("audio: decode failed")

// Asset is an immutable decoded waveform with a known channel count, sample
// rate, and sample-accurate duration. Samples are stored interleaved as
// float32 in [-1, 1].
//
// An Asset is safe for concurrent reads. Streamer hands out independent
// cursors so several consumers may play the same asset.
type Asset struct {
	buf    *goaudio.Float32Buffer
	frames int
}

// NewAsset copies interleaved samples into a new Asset of format f.
// len(samples) must be a non-zero multiple of f.Channels.
func NewAsset(samples []float32, f Format) (*Asset, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: invalid format %s", ErrDecode, f)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if len(samples)%f.Channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels", ErrDecode, len(samples), f.Channels)
	}
	data := make([]float32, len(samples))
	copy(data, samples)
	return &Asset{
		buf: &goaudio.Float32Buffer{
			Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
			Data:           data,
			SourceBitDepth: 16,
		},
		frames: len(samples) / f.Channels,
	}, nil
}

// Format returns the asset's sample rate and channel count.
func (a *Asset) Format() Format {
	return Format{SampleRate: a.buf.Format.SampleRate, Channels: a.buf.Format.NumChannels}
}

// Channels returns the number of interleaved channels.
func (a *Asset) Channels() int { return a.buf.Format.NumChannels }

// SampleRate returns the sample rate in Hz.
func (a *Asset) SampleRate() int { return a.buf.Format.SampleRate }

// Frames returns the number of sample frames (samples per channel).
func (a *Asset) Frames() int { return a.frames }

// Seconds returns the duration in seconds.
func (a *Asset) Seconds() float64 {
	return float64(a.frames) / float64(a.SampleRate())
}

// Duration returns the duration as a time.Duration.
func (a *Asset) Duration() time.Duration {
	return time.Duration(int64(a.frames) * int64(time.Second) / int64(a.SampleRate()))
}

// Sample returns the sample at frame for channel ch.
func (a *Asset) Sample(frame, ch int) float32 {
	return a.buf.Data[frame*a.Channels()+ch]
}

// Streamer returns a new cursor over the asset positioned at frame 0.
func (a *Asset) Streamer() *Stream {
	return &Stream{asset: a}
}

// Stream is a [beep.StreamSeeker] over an Asset. Mono assets are duplicated
// onto both output channels; assets with more than two channels play their
// first two.
type Stream struct {
	asset *Asset
	pos   int
}

var _ beep.StreamSeeker = (*Stream)(nil)

// Stream fills samples from the current position.
func (s *Stream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= s.asset.frames {
		return 0, false
	}
	ch := s.asset.Channels()
	data := s.asset.buf.Data
	for i := range samples {
		if s.pos >= s.asset.frames {
			return i, true
		}
		base := s.pos * ch
		l := float64(data[base])
		r := l
		if ch > 1 {
			r = float64(data[base+1])
		}
		samples[i][0] = l
		samples[i][1] = r
		s.pos++
	}
	return len(samples), true
}

// Err always returns nil; in-memory assets cannot fail mid-stream.
func (s *Stream) Err() error { return nil }

// Len returns the total number of frames.
func (s *Stream) Len() int { return s.asset.frames }

// Position returns the current frame.
func (s *Stream) Position() int { return s.pos }

// Seek moves the cursor to frame p, clamped to [0, Len].
func (s *Stream) Seek(p int) error {
	s.pos = min(max(p, 0), s.asset.frames)
	return nil
}
