package audiomix

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestMixAveragesContributors(t *testing.T) {
	out := Mix([][]float32{
		{1, 1, 1},
		{0, 1, 0},
	})
	want := []float32{0.5, 1, 0.5}
	if len(out) != len(want) {
		t.Fatalf("got %d samples, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d = %g, want %g", i, out[i], want[i])
		}
	}
}

func TestMixZeroPadsShortBuffers(t *testing.T) {
	out := Mix([][]float32{
		{1, 1, 1, 1},
		{1, 1},
	})
	want := []float32{1, 1, 0.5, 0.5}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d = %g, want %g", i, out[i], want[i])
		}
	}
}

func TestMixSingleBufferPassesThrough(t *testing.T) {
	in := []float32{0.25, -0.5, 1}
	out := Mix([][]float32{in})
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %g, want %g", i, out[i], in[i])
		}
	}
}

func TestMixOfNothingIsNil(t *testing.T) {
	if out := Mix(nil); out != nil {
		t.Fatalf("Mix(nil) = %v, want nil", out)
	}
	if out := Mix([][]float32{{}, nil}); out != nil {
		t.Fatalf("Mix of empty buffers = %v, want nil", out)
	}
}

func TestMixPeakNeverExceedsLoudestContributor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "buffers")
		buffers := make([][]float32, n)
		var peak float64
		for i := range buffers {
			length := rapid.IntRange(1, 64).Draw(t, "len")
			buffers[i] = make([]float32, length)
			for j := range buffers[i] {
				s := rapid.Float64Range(-1, 1).Draw(t, "s")
				buffers[i][j] = float32(s)
				if a := math.Abs(s); a > peak {
					peak = a
				}
			}
		}
		for _, s := range Mix(buffers) {
			if math.Abs(float64(s)) > peak+1e-6 {
				t.Fatalf("mixed sample %g exceeds loudest contributor %g", s, peak)
			}
		}
	})
}
