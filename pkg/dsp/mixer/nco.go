package mixer

import "math"

const tau float64 = math.Pi * 2

// NCO is a numerically controlled oscillator used to shift a channel sitting
// at frequency offset down to DC. Phase persists across WorkBuffer calls and
// stays wrapped to (-2pi, 2pi]; a discontinuity at a batch boundary is
// audible as a click and smears energy across the channel.
type NCO struct {
	phase          float64
	phaseIncrement float64
}

// NewNCO mixes a component at offsetHz down to baseband when applied to a
// stream at sampleRate.
func NewNCO(sampleRate, offsetHz int) *NCO {
	return &NCO{
		phaseIncrement: -float64(offsetHz) * tau / float64(sampleRate),
	}
}

func (n *NCO) incrementPhase() {
	n.phase += n.phaseIncrement
	if n.phase > tau {
		n.phase -= tau
	} else if n.phase <= -tau {
		n.phase += tau
	}
}

// Phase returns the current phase for carrying across batches.
func (n *NCO) Phase() float64 { return n.phase }

// SetPhase resumes from a previous batch's ending phase.
func (n *NCO) SetPhase(p float64) { n.phase = p }

func (n *NCO) WorkBuffer(input, output []complex64) int {
	for i := 0; i < len(input); i++ {
		sin, cos := math.Sincos(n.phase)
		output[i] = input[i] * complex(float32(cos), float32(sin))
		n.incrementPhase()
	}
	return len(input)
}

func (n *NCO) Work(input []complex64) []complex64 {
	out := make([]complex64, len(input))
	n.WorkBuffer(input, out)
	return out
}

func (n *NCO) PredictOutputSize(inputSize int) int { return inputSize }
