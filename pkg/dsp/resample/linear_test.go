package resample

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestUpsampleDoublesSampleCount(t *testing.T) {
	l := NewLinear(24000, 48000)
	out := l.Process([]float32{0, 1, 2, 3})
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5}
	if len(out) != len(want) {
		t.Fatalf("got %d samples, want %d", len(out), len(want))
	}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d = %g, want %g", i, out[i], want[i])
		}
	}
}

func TestDownsampleHalvesSampleCount(t *testing.T) {
	l := NewLinear(48000, 24000)
	out := l.Process([]float32{0, 1, 2, 3, 4, 5, 6, 7})
	want := []float32{0, 2, 4, 6}
	if len(out) != len(want) {
		t.Fatalf("got %d samples, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d = %g, want %g", i, out[i], want[i])
		}
	}
}

func TestBatchSplitMatchesSinglePass(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		inRate := rapid.SampledFrom([]int{11025, 12000, 24000, 32000, 44100}).Draw(t, "inRate")
		total := rapid.IntRange(16, 512).Draw(t, "total")
		split := rapid.IntRange(1, total-1).Draw(t, "split")

		input := make([]float32, total)
		for i := range input {
			input[i] = float32(math.Sin(float64(i) / 7))
		}

		whole := NewLinear(inRate, 48000).Process(input)

		l := NewLinear(inRate, 48000)
		got := append(l.Process(input[:split]), l.Process(input[split:])...)

		if len(got) != len(whole) {
			t.Fatalf("split produced %d samples, single pass %d", len(got), len(whole))
		}
		for i := range got {
			if math.Abs(float64(got[i]-whole[i])) > 1e-5 {
				t.Fatalf("sample %d: %g split vs %g whole", i, got[i], whole[i])
			}
		}
	})
}

func TestOutputRateConvergesOverManyBatches(t *testing.T) {
	l := NewLinear(11025, 48000)
	input := make([]float32, 1103) // ~100ms
	var produced int
	for i := 0; i < 100; i++ {
		produced += len(l.Process(input))
	}
	want := 1103 * 100 * 48000 / 11025
	if diff := produced - want; diff < -8 || diff > 8 {
		t.Fatalf("produced %d samples over 10s, want ~%d", produced, want)
	}
}

func TestResetDropsCarriedState(t *testing.T) {
	l := NewLinear(24000, 48000)
	l.Process([]float32{5, 5, 5, 5})
	l.Reset()

	out := l.Process([]float32{0, 1})
	for _, s := range out {
		if s > 1 {
			t.Fatalf("sample %g leaked state across Reset", s)
		}
	}
}
