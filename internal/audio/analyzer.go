package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the analysis window length in sample frames.
	FFTSize = 2048
	// SpectrumBins is how many of the lowest FFT bins a frame carries.
	SpectrumBins = 64
)

// SpectrumCallback receives SpectrumBins magnitudes each poll tick. It runs
// on the worker goroutine and must not block.
type SpectrumCallback func(bins []float64)

// Analyzer computes low-frequency magnitude spectra of PCM windows. The
// only state it keeps is the precomputed window, so one Analyzer may be
// shared by callers that do not overlap.
type Analyzer struct {
	fft    *fourier.FFT
	window []float64
	seq    []float64
	coeffs []complex128
}

// NewAnalyzer creates an analyzer with a Hann window of FFTSize.
func NewAnalyzer() *Analyzer {
	window := make([]float64, FFTSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(FFTSize-1)))
	}

	return &Analyzer{
		fft:    fourier.NewFFT(FFTSize),
		window: window,
		seq:    make([]float64, FFTSize),
	}
}

// Analyze transforms the first channel of an interleaved window. It needs
// FFTSize frames and reports false when pcm is shorter.
func (a *Analyzer) Analyze(pcm []int16, channels int) ([]float64, bool) {
	if channels <= 0 || len(pcm) < FFTSize*channels {
		return nil, false
	}

	for i := 0; i < FFTSize; i++ {
		a.seq[i] = float64(pcm[i*channels]) / 32768.0 * a.window[i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	bins := make([]float64, SpectrumBins)
	for i := range bins {
		bins[i] = cmplx.Abs(a.coeffs[i])
	}
	return bins, true
}

// WindowAt copies the FFTSize-frame window starting at frame from an
// interleaved buffer. Near the end of the buffer the tail is zero-padded so
// the last partial window still renders; ok is false when fewer than one
// frame remains.
func WindowAt(samples []int16, channels, frame int) (window []int16, ok bool) {
	if channels <= 0 {
		return nil, false
	}
	if frame < 0 {
		frame = 0
	}

	start := frame * channels
	if start+channels > len(samples) {
		return nil, false
	}

	window = make([]int16, FFTSize*channels)
	copy(window, samples[start:])
	return window, true
}

// RMS is the root mean square of a spectrum frame, used to scale
// visualizers.
func RMS(bins []float64) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, v := range bins {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(bins)))
}
