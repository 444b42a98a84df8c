package audio_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/newscast/pkg/audio"
)

func TestNewAsset_Validation(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		format  audio.Format
	}{
		{name: "empty", samples: nil, format: audio.Format{SampleRate: 8000, Channels: 1}},
		{name: "partial frame", samples: []float32{0, 0, 0}, format: audio.Format{SampleRate: 8000, Channels: 2}},
		{name: "bad format", samples: []float32{0}, format: audio.Format{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audio.NewAsset(tt.samples, tt.format); !errors.Is(err, audio.ErrDecode) {
				t.Errorf("err = %v, want ErrDecode", err)
			}
		})
	}
}

func TestNewAsset_CopiesInput(t *testing.T) {
	in := []float32{0.25, 0.5}
	a, err := audio.NewAsset(in, audio.Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}
	in[0] = 1
	if a.Sample(0, 0) != 0.25 {
		t.Error("asset shares the caller's slice")
	}
}

func TestStream_MonoDuplicatesChannels(t *testing.T) {
	a, err := audio.NewAsset([]float32{0.1, 0.2, 0.3}, audio.Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}
	s := a.Streamer()
	buf := make([][2]float64, 2)
	n, ok := s.Stream(buf)
	if n != 2 || !ok {
		t.Fatalf("Stream = (%d, %v), want (2, true)", n, ok)
	}
	if buf[1][0] != buf[1][1] {
		t.Errorf("mono sample not duplicated: %v", buf[1])
	}
	n, ok = s.Stream(buf)
	if n != 1 || !ok {
		t.Fatalf("second Stream = (%d, %v), want (1, true)", n, ok)
	}
	if _, ok := s.Stream(buf); ok {
		t.Error("Stream after end returned ok")
	}
}

func TestStream_Seek(t *testing.T) {
	a, err := audio.NewAsset([]float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}, audio.Format{SampleRate: 8000, Channels: 2})
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}
	s := a.Streamer()
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if err := s.Seek(2); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([][2]float64, 4)
	n, _ := s.Stream(buf)
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
	if float32(buf[0][0]) != 0.3 || float32(buf[0][1]) != -0.3 {
		t.Errorf("frame = %v, want [0.3 -0.3]", buf[0])
	}
	_ = s.Seek(-5)
	if s.Position() != 0 {
		t.Errorf("Position after negative seek = %d, want 0", s.Position())
	}
	_ = s.Seek(99)
	if s.Position() != 3 {
		t.Errorf("Position after overshoot = %d, want 3", s.Position())
	}
}
