package audio

import (
	"math"
	"testing"
)

func sine(frames, channels int, cycles float64) []int16 {
	pcm := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(16000 * math.Sin(2*math.Pi*cycles*float64(i)/float64(frames)))
		for c := 0; c < channels; c++ {
			pcm[i*channels+c] = v
		}
	}
	return pcm
}

func TestAnalyzeSine(t *testing.T) {
	a := NewAnalyzer()

	// 10 cycles per window lands on bin 10.
	bins, ok := a.Analyze(sine(FFTSize, 2, 10), 2)
	if !ok {
		t.Fatal("Expected a full window to analyze")
	}
	if len(bins) != SpectrumBins {
		t.Fatalf("Expected %d bins, got %d", SpectrumBins, len(bins))
	}

	peak := 0
	for i, v := range bins {
		if v < 0 {
			t.Errorf("Bin %d is negative: %f", i, v)
		}
		if v > bins[peak] {
			peak = i
		}
	}
	if peak != 10 {
		t.Errorf("Expected peak at bin 10, got %d", peak)
	}
}

func TestAnalyzeSilence(t *testing.T) {
	a := NewAnalyzer()

	bins, ok := a.Analyze(make([]int16, FFTSize*2), 2)
	if !ok {
		t.Fatal("Expected a full window to analyze")
	}
	if rms := RMS(bins); rms > 1e-12 {
		t.Errorf("Expected silent spectrum, got RMS %g", rms)
	}
}

func TestAnalyzeShortWindow(t *testing.T) {
	a := NewAnalyzer()

	if _, ok := a.Analyze(make([]int16, FFTSize), 2); ok {
		t.Error("Expected short window to be rejected")
	}
	if _, ok := a.Analyze(make([]int16, FFTSize), 0); ok {
		t.Error("Expected zero channels to be rejected")
	}
}

func TestWindowAt(t *testing.T) {
	samples := make([]int16, 100*2)
	for i := range samples {
		samples[i] = 1
	}

	window, ok := WindowAt(samples, 2, 90)
	if !ok {
		t.Fatal("Expected a window near the end")
	}
	if len(window) != FFTSize*2 {
		t.Fatalf("Expected %d samples, got %d", FFTSize*2, len(window))
	}
	if window[19] != 1 || window[20] != 0 {
		t.Errorf("Expected 10 frames of data then zero padding, got %d %d", window[19], window[20])
	}

	if _, ok := WindowAt(samples, 2, 100); ok {
		t.Error("Expected no window past the end")
	}
	if w, ok := WindowAt(samples, 2, -5); !ok || w[0] != 1 {
		t.Error("Expected negative frame to start at 0")
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("Expected RMS of nothing to be 0")
	}
	if got := RMS([]float64{3, 4, 3, 4}); math.Abs(got-math.Sqrt(12.5)) > 1e-9 {
		t.Errorf("Expected %f, got %f", math.Sqrt(12.5), got)
	}
}
