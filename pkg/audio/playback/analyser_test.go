package playback_test

import (
	"math"
	"testing"

	"github.com/MrWong99/newscast/pkg/audio/playback"
)

func TestDownsample_StrideAndFallback(t *testing.T) {
	data := make([]uint8, 32)
	for i := range data {
		data[i] = uint8(100 + i)
	}
	data[4] = 0

	got := playback.Downsample(data)
	for i := range playback.VisualizationBins {
		idx := i * 2
		want := uint8(playback.BaselineLevel)
		if idx < len(data) && data[idx] != 0 {
			want = data[idx]
		}
		if got[i] != want {
			t.Errorf("bin %d = %d, want %d", i, got[i], want)
		}
	}
	if got[2] != playback.BaselineLevel {
		t.Errorf("zero bin = %d, want baseline", got[2])
	}
}

func TestDownsample_Empty(t *testing.T) {
	if got := playback.Downsample(nil); got != playback.Baseline() {
		t.Errorf("Downsample(nil) = %v, want baseline", got)
	}
}

func TestAnalyser_SilenceIsZero(t *testing.T) {
	a := playback.NewAnalyser(64)
	a.Observe(make([][2]float64, 64))
	data := make([]uint8, a.FrequencyBinCount())
	a.ByteFrequencyData(data)
	for i, v := range data {
		if v != 0 {
			t.Errorf("bin %d = %d for silence, want 0", i, v)
		}
	}
}

func TestAnalyser_InvalidSizeFallsBack(t *testing.T) {
	for _, n := range []int{0, 48, 16, 1 << 20} {
		if got := playback.NewAnalyser(n).FrequencyBinCount(); got != playback.DefaultFFTSize/2 {
			t.Errorf("NewAnalyser(%d) bins = %d, want %d", n, got, playback.DefaultFFTSize/2)
		}
	}
}

func TestAnalyser_ToneLandsInItsBin(t *testing.T) {
	const n = 64
	a := playback.NewAnalyser(n)
	// Eight cycles per window, quiet enough to stay below the dB ceiling.
	frames := make([][2]float64, n)
	for i := range frames {
		v := 0.01 * math.Sin(2*math.Pi*8*float64(i)/n)
		frames[i] = [2]float64{v, v}
	}
	a.Observe(frames)

	data := make([]uint8, a.FrequencyBinCount())
	for range 10 {
		a.ByteFrequencyData(data)
	}
	peak := 0
	for k := range data {
		if data[k] > data[peak] {
			peak = k
		}
	}
	if peak != 8 {
		t.Errorf("peak bin = %d, want 8 (data %v)", peak, data)
	}
}

func TestAnalyser_StreamPassesThrough(t *testing.T) {
	a := playback.NewAnalyser(64)
	buf := make([][2]float64, 10)
	for i := range buf {
		buf[i] = [2]float64{1, 1}
	}
	n, ok := a.Stream(buf)
	if n != 10 || !ok {
		t.Fatalf("Stream = (%d, %v), want (10, true)", n, ok)
	}
	if buf[0][0] != 0 {
		t.Errorf("analyser without upstream should emit silence, got %v", buf[0])
	}
}
