package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-audio/wav"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header written by
// EncodeWAV.
const WAVHeaderSize = 44

// EncodeWAV serialises the asset as a self-contained 16-bit PCM WAV file: a
// fixed 44-byte header followed by interleaved samples clipped to [-1, 1].
// The header's data-size field is Frames() * Channels() * 2.
func EncodeWAV(a *Asset) []byte {
	pcm := EncodePCM16(a)
	channels := uint16(a.Channels())
	bitsPerSample := uint16(16)
	byteRate := uint32(a.SampleRate()) * uint32(channels) * uint32(bitsPerSample/8)
	blockAlign := channels * (bitsPerSample / 8)
	dataSize := uint32(len(pcm))

	out := make([]byte, WAVHeaderSize+len(pcm))
	header := out[:WAVHeaderSize]

	// RIFF header (12 bytes)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")

	// fmt chunk (24 bytes)
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(a.SampleRate()))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	// data chunk header (8 bytes)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	copy(out[WAVHeaderSize:], pcm)
	return out
}

// DecodeWAV parses a PCM WAV file of any integer bit depth into an Asset.
func DecodeWAV(data []byte) (*Asset, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM wav file", ErrDecode)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: read wav samples: %w", ErrDecode, err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("%w: wav file has no format chunk", ErrDecode)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, depth)
	}

	samples := make([]float32, len(buf.Data))
	if depth == 8 {
		// 8-bit WAV is unsigned.
		for i, v := range buf.Data {
			samples[i] = float32(v-128) / 128
		}
	} else {
		scale := float32(int64(1) << (depth - 1))
		for i, v := range buf.Data {
			samples[i] = float32(v) / scale
		}
	}
	return NewAsset(samples, Format{SampleRate: buf.Format.SampleRate, Channels: buf.Format.NumChannels})
}
