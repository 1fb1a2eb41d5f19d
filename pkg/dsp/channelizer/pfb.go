package channelizer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/window"
)

const tapsPerBranch = 12

// FilterBank is a critically sampled polyphase channelizer: one pass over
// the wideband batch produces every channel at once. All channels share one
// bandwidth (sized to the widest active VFO) and sit on a fixed grid of
// sampleRate/numChannels spacing, so per-VFO placement is quantized to the
// nearest bin. When VFO bandwidths differ a lot the widest channel's skirts
// admit adjacent-channel energy into the narrow ones; that trade-off is
// accepted here rather than hidden.
type FilterBank struct {
	numChannels int
	sampleRate  int
	proto       []float64
	hist        []complex64
}

// NewFilterBank sizes the bank so each channel's width is at least twice
// maxBandwidth, matching the mixing path's decimation rule.
func NewFilterBank(sampleRate, maxBandwidth int) *FilterBank {
	m := sampleRate / (2 * maxBandwidth)
	if m < 2 {
		m = 2
	}
	fb := &FilterBank{
		numChannels: m,
		sampleRate:  sampleRate,
		proto:       prototypeTaps(m),
	}
	return fb
}

// prototypeTaps designs the shared low-pass: a windowed sinc with cutoff at
// half the channel spacing, length numChannels*tapsPerBranch.
func prototypeTaps(numChannels int) []float64 {
	n := numChannels * tapsPerBranch
	taps := make([]float64, n)
	cutoff := 1.0 / (2.0 * float64(numChannels)) // normalized to sample rate
	center := float64(n-1) / 2.0
	for i := 0; i < n; i++ {
		x := 2 * math.Pi * cutoff * (float64(i) - center)
		if x == 0 {
			taps[i] = 2 * cutoff
		} else {
			taps[i] = math.Sin(x) / x * 2 * cutoff
		}
	}
	window.Hamming(taps)

	var sum float64
	for _, t := range taps {
		sum += t
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

func (fb *FilterBank) NumChannels() int { return fb.numChannels }

// ChannelRate is every channel's output sample rate.
func (fb *FilterBank) ChannelRate() int { return fb.sampleRate / fb.numChannels }

// ChannelFor maps a frequency offset from wideband center to its bin.
func (fb *FilterBank) ChannelFor(offsetHz int) int {
	spacing := float64(fb.sampleRate) / float64(fb.numChannels)
	c := int(math.Round(float64(offsetHz) / spacing))
	c %= fb.numChannels
	if c < 0 {
		c += fb.numChannels
	}
	return c
}

// Process appends the batch to the delay line and emits one sample per
// channel for every full commutator stride. outputs[c][t] is channel c's
// t-th baseband sample at ChannelRate.
func (fb *FilterBank) Process(input []complex64) [][]complex64 {
	m := fb.numChannels
	winLen := len(fb.proto)
	fb.hist = append(fb.hist, input...)

	outputs := make([][]complex64, m)
	if len(fb.hist) < winLen {
		return outputs
	}
	steps := (len(fb.hist)-winLen)/m + 1
	for c := range outputs {
		outputs[c] = make([]complex64, 0, steps)
	}

	branch := make([]complex128, m)
	for len(fb.hist) >= winLen {
		// Newest sample of this stride is hist[winLen-1]. Branch p filters
		// the stream delayed by p, decimated by m.
		for p := 0; p < m; p++ {
			var acc complex128
			for q := 0; q*m+p < winLen; q++ {
				s := fb.hist[winLen-1-p-q*m]
				acc += complex(float64(real(s)), float64(imag(s))) * complex(fb.proto[q*m+p], 0)
			}
			branch[p] = acc
		}

		// Channel c is the sum over branches of branch[p]*e^{j2pi cp/m},
		// i.e. an unscaled inverse DFT across the branch outputs.
		spectrum := fft.IFFT(branch)
		for c := 0; c < m; c++ {
			v := spectrum[c] * complex(float64(m), 0)
			outputs[c] = append(outputs[c], complex64(v))
		}

		fb.hist = fb.hist[m:]
	}

	// Reclaim the consumed prefix so the delay line doesn't alias the ever
	// growing backing array.
	if cap(fb.hist) > 4*winLen {
		kept := make([]complex64, len(fb.hist))
		copy(kept, fb.hist)
		fb.hist = kept
	}
	return outputs
}
