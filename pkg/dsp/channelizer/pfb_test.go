package channelizer

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestFilterBankChannelCount(t *testing.T) {
	tests := []struct {
		rate, maxBW, want int
	}{
		{1000000, 12500, 40},
		{2000000, 12500, 80},
		{96000, 12000, 4},
		{96000, 48000, 2}, // clamped minimum
	}
	for _, tt := range tests {
		fb := NewFilterBank(tt.rate, tt.maxBW)
		if fb.NumChannels() != tt.want {
			t.Errorf("NewFilterBank(%d, %d): %d channels, want %d",
				tt.rate, tt.maxBW, fb.NumChannels(), tt.want)
		}
		if fb.ChannelRate() != tt.rate/tt.want {
			t.Errorf("ChannelRate() = %d, want %d", fb.ChannelRate(), tt.rate/tt.want)
		}
	}
}

func TestChannelForWrapsNegativeOffsets(t *testing.T) {
	fb := NewFilterBank(1000000, 12500) // 40 channels, 25 kHz spacing
	tests := []struct {
		offset, want int
	}{
		{0, 0},
		{25000, 1},
		{50000, 2},
		{-25000, 39},
		{-50000, 38},
		{26000, 1}, // rounds to nearest bin
		{487500, 20},
	}
	for _, tt := range tests {
		if got := fb.ChannelFor(tt.offset); got != tt.want {
			t.Errorf("ChannelFor(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestFilterBankDCLandsInChannelZero(t *testing.T) {
	fb := NewFilterBank(400000, 25000) // 8 channels
	input := make([]complex64, 4096)
	for i := range input {
		input[i] = 1
	}
	outputs := fb.Process(input)

	settled := outputs[0][tapsPerBranch:]
	for i, s := range settled {
		if mag := cmplx.Abs(complex128(s)); math.Abs(mag-1.0) > 0.05 {
			t.Fatalf("channel 0 sample %d magnitude %.4f, want ~1", i, mag)
		}
	}
	for c := 1; c < fb.NumChannels(); c++ {
		for i, s := range outputs[c][tapsPerBranch:] {
			if mag := cmplx.Abs(complex128(s)); mag > 0.05 {
				t.Fatalf("channel %d sample %d magnitude %.4f, want ~0", c, i, mag)
			}
		}
	}
}

func TestFilterBankToneLandsInItsBin(t *testing.T) {
	fb := NewFilterBank(400000, 25000) // 8 channels, 50 kHz spacing
	m := fb.NumChannels()
	bin := 3
	input := make([]complex64, 4096)
	for i := range input {
		phase := 2 * math.Pi * float64(bin) * float64(i) / float64(m)
		input[i] = complex64(cmplx.Exp(complex(0, phase)))
	}
	outputs := fb.Process(input)

	for i, s := range outputs[bin][tapsPerBranch:] {
		if mag := cmplx.Abs(complex128(s)); math.Abs(mag-1.0) > 0.1 {
			t.Fatalf("bin %d sample %d magnitude %.4f, want ~1", bin, i, mag)
		}
	}
	for i, s := range outputs[0][tapsPerBranch:] {
		if mag := cmplx.Abs(complex128(s)); mag > 0.1 {
			t.Fatalf("channel 0 sample %d magnitude %.4f, want ~0", i, mag)
		}
	}
}

func TestFilterBankSplitBatchesMatchSinglePass(t *testing.T) {
	input := make([]complex64, 2048)
	for i := range input {
		phase := 2 * math.Pi * float64(i) / 64.0
		input[i] = complex64(cmplx.Exp(complex(0, phase)))
	}

	whole := NewFilterBank(400000, 25000)
	split := NewFilterBank(400000, 25000)

	want := whole.Process(input)
	first := split.Process(input[:900])
	second := split.Process(input[900:])

	for c := range want {
		got := append(append([]complex64{}, first[c]...), second[c]...)
		if len(got) != len(want[c]) {
			t.Fatalf("channel %d: %d samples split, %d whole", c, len(got), len(want[c]))
		}
		for i := range got {
			if d := cmplx.Abs(complex128(got[i] - want[c][i])); d > 1e-5 {
				t.Fatalf("channel %d sample %d differs by %g across batch split", c, i, d)
			}
		}
	}
}
