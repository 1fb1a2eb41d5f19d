package fir

import (
	"math"
	"testing"
)

func TestLowPassUnityDCGain(t *testing.T) {
	for _, wt := range []WindowType{Hamming, Hann, Blackman} {
		taps := MakeLowPass(1.0, 96000, 6000, 3000, wt)
		var sum float64
		for _, tap := range taps {
			sum += float64(tap)
		}
		if math.Abs(sum-1.0) > 1e-4 {
			t.Errorf("window %d: DC gain %g, want 1", wt, sum)
		}
	}
}

func TestLowPassSymmetric(t *testing.T) {
	taps := MakeLowPass(1.0, 96000, 6000, 3000, Hamming)
	if len(taps)%2 != 1 {
		t.Fatalf("tap count %d, want odd", len(taps))
	}
	for i := 0; i < len(taps)/2; i++ {
		if taps[i] != taps[len(taps)-1-i] {
			t.Fatalf("tap %d = %g, mirror = %g", i, taps[i], taps[len(taps)-1-i])
		}
	}
}

func TestLowPassAttenuatesStopband(t *testing.T) {
	sampleRate := 96000.0
	taps := MakeLowPass(1.0, sampleRate, 6000, 3000, Hamming)

	// Evaluate the response at a frequency well past cutoff plus the
	// transition band.
	response := func(freq float64) float64 {
		var re, im float64
		for i, tap := range taps {
			phase := -2 * math.Pi * freq * float64(i) / sampleRate
			re += float64(tap) * math.Cos(phase)
			im += float64(tap) * math.Sin(phase)
		}
		return math.Sqrt(re*re + im*im)
	}

	if passband := response(1000); passband < 0.99 || passband > 1.01 {
		t.Errorf("passband response %g, want ~1", passband)
	}
	if stopband := response(15000); stopband > 0.01 {
		t.Errorf("stopband response %g, want < -40 dB", stopband)
	}
}

func TestNumTapsScalesWithTransitionWidth(t *testing.T) {
	wide := NumTaps(96000, 8000, Hamming)
	narrow := NumTaps(96000, 2000, Hamming)
	if narrow <= wide {
		t.Fatalf("narrow transition %d taps, wide %d; narrow must cost more", narrow, wide)
	}
	if wide%2 != 1 || narrow%2 != 1 {
		t.Fatalf("tap counts must be odd, got %d and %d", wide, narrow)
	}
}
