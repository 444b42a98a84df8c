package playback

import (
	"math"
	"math/cmplx"

	"github.com/gopxl/beep/v2"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Visualization constants.
const (
	// VisualizationBins is the number of magnitudes returned by
	// SampleVisualization.
	VisualizationBins = 30

	// BaselineLevel fills bins that are silent or out of range, and every bin
	// while nothing is playing.
	BaselineLevel = 10

	DefaultFFTSize     = 64
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0

	minFFTSize    = 32
	maxFFTSize    = 32768
	blackmanAlpha = 0.16
	blackmanA0    = (1 - blackmanAlpha) / 2
	blackmanA1    = 0.5
	blackmanA2    = blackmanAlpha / 2
)

// Analyser is a pass-through streamer that keeps the most recent fftSize
// mono samples and turns them into byte-scaled frequency magnitudes on
// demand. It follows the conventional real-time analyser model: Blackman
// window, magnitude normalised by the FFT size, exponential smoothing
// between snapshots, and a linear map from [minDB, maxDB] onto 0..255.
//
// Analyser is not safe for concurrent use; the Engine serialises access.
type Analyser struct {
	Streamer beep.Streamer

	size      int
	smoothing float64
	minDB     float64
	maxDB     float64

	ring   []float64
	next   int
	window []float64
	fft    *fourier.FFT
	frame  []float64
	smooth []float64
}

// NewAnalyser returns an analyser over an FFT of size n. n must be a power of
// two in [32, 32768]; other values fall back to DefaultFFTSize.
func NewAnalyser(n int) *Analyser {
	if n < minFFTSize || n > maxFFTSize || n&(n-1) != 0 {
		n = DefaultFFTSize
	}
	a := &Analyser{
		size:      n,
		smoothing: DefaultSmoothing,
		minDB:     DefaultMinDecibels,
		maxDB:     DefaultMaxDecibels,
		ring:      make([]float64, n),
		window:    make([]float64, n),
		fft:       fourier.NewFFT(n),
		frame:     make([]float64, n),
		smooth:    make([]float64, n/2),
	}
	for i := range n {
		x := float64(i) / float64(n)
		a.window[i] = blackmanA0 - blackmanA1*math.Cos(2*math.Pi*x) + blackmanA2*math.Cos(4*math.Pi*x)
	}
	return a
}

// FrequencyBinCount is half the FFT size.
func (a *Analyser) FrequencyBinCount() int { return a.size / 2 }

// Stream pulls from the upstream streamer and records what passes through.
// Without an upstream it produces silence.
func (a *Analyser) Stream(samples [][2]float64) (n int, ok bool) {
	if a.Streamer == nil {
		clear(samples)
		n, ok = len(samples), true
	} else {
		n, ok = a.Streamer.Stream(samples)
	}
	a.Observe(samples[:n])
	return n, ok
}

// Err forwards the upstream error.
func (a *Analyser) Err() error {
	if a.Streamer == nil {
		return nil
	}
	return a.Streamer.Err()
}

// Observe feeds samples into the time-domain ring without streaming.
func (a *Analyser) Observe(samples [][2]float64) {
	for _, s := range samples {
		a.ring[a.next] = (s[0] + s[1]) / 2
		a.next = (a.next + 1) % a.size
	}
}

// Reset clears the sample history and the smoothing state.
func (a *Analyser) Reset() {
	clear(a.ring)
	clear(a.smooth)
	a.next = 0
}

// ByteFrequencyData computes the current spectrum into dst, which should hold
// FrequencyBinCount values. Each call advances the smoothing state.
func (a *Analyser) ByteFrequencyData(dst []uint8) {
	for i := range a.size {
		a.frame[i] = a.ring[(a.next+i)%a.size] * a.window[i]
	}
	coeffs := a.fft.Coefficients(nil, a.frame)

	scale := 255 / (a.maxDB - a.minDB)
	for k := 0; k < len(a.smooth) && k < len(dst); k++ {
		mag := cmplx.Abs(coeffs[k]) / float64(a.size)
		a.smooth[k] = a.smoothing*a.smooth[k] + (1-a.smoothing)*mag
		db := 20 * math.Log10(a.smooth[k])
		if math.IsInf(db, -1) || math.IsNaN(db) {
			dst[k] = 0
			continue
		}
		v := math.Floor(scale * (db - a.minDB))
		dst[k] = uint8(max(0, min(255, v)))
	}
}

// Downsample picks VisualizationBins values from data using a stride of
// ceil(len(data)/VisualizationBins). Out-of-range and zero entries become
// BaselineLevel.
func Downsample(data []uint8) [VisualizationBins]uint8 {
	var out [VisualizationBins]uint8
	step := (len(data) + VisualizationBins - 1) / VisualizationBins
	for i := range out {
		idx := i * step
		if idx < len(data) && data[idx] != 0 {
			out[i] = data[idx]
		} else {
			out[i] = BaselineLevel
		}
	}
	return out
}

// Baseline returns the flat visualization shown while not playing.
func Baseline() [VisualizationBins]uint8 {
	var out [VisualizationBins]uint8
	for i := range out {
		out[i] = BaselineLevel
	}
	return out
}
