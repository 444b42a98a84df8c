package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// ErrUnsupportedContainer is returned by DecodeFile when neither the file
// name nor the payload identify a known container.
var ErrUnsupportedContainer = errors.New("audio: unsupported container")

// DecodeMP3 decodes an MP3 file. go-mp3 always produces 16-bit stereo.
func DecodeMP3(data []byte) (*Asset, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %w", ErrDecode, err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: mp3: %w", ErrDecode, err)
	}
	// Drop a trailing partial frame rather than reject the whole clip.
	pcm = pcm[:len(pcm)-len(pcm)%4]
	return DecodePCM16(pcm, dec.SampleRate(), 2)
}

// DecodeOgg decodes an Ogg Vorbis file.
func DecodeOgg(data []byte) (*Asset, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: ogg: %w", ErrDecode, err)
	}
	return NewAsset(samples, Format{SampleRate: format.SampleRate, Channels: format.Channels})
}

// DecodeFile picks a decoder from the file extension, falling back to
// sniffing the payload's magic bytes.
func DecodeFile(name string, data []byte) (*Asset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return DecodeWAV(data)
	case ".mp3":
		return DecodeMP3(data)
	case ".ogg", ".oga":
		return DecodeOgg(data)
	}

	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return DecodeWAV(data)
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return DecodeOgg(data)
	case len(data) >= 3 && string(data[0:3]) == "ID3",
		len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return DecodeMP3(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedContainer, name)
}
