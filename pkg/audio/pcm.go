package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodePCM16 converts a headerless little-endian int16 PCM payload into an
// Asset. The payload is trusted to be PCM; only its length is checked.
//
// The resulting duration is len(data) / (2 * channels * sampleRate) seconds.
func DecodePCM16(data []byte, sampleRate, channels int) (*Asset, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrDecode, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrDecode, channels)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if len(data)%(2*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrDecode, len(data), channels)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return NewAsset(samples, Format{SampleRate: sampleRate, Channels: channels})
}

// EncodePCM16 serialises the asset as interleaved little-endian int16 PCM.
// Samples outside [-1, 1] are clipped.
func EncodePCM16(a *Asset) []byte {
	out := make([]byte, len(a.buf.Data)*2)
	for i, s := range a.buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(FloatToInt16(float64(s))))
	}
	return out
}

// FloatToInt16 clips s to [-1, 1] and scales it asymmetrically so that -1 maps
// to -32768 and 1 maps to 32767.
func FloatToInt16(s float64) int16 {
	s = max(-1, min(1, s))
	if s < 0 {
		return int16(math.Round(s * 32768))
	}
	return int16(math.Round(s * 32767))
}
