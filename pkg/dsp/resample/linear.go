// Package resample converts per-VFO audio from its native demodulator rate
// to the common output rate.
package resample

// Linear is a streaming linear-interpolation resampler. It carries the
// fractional read position and the last input sample across calls so batch
// boundaries interpolate correctly instead of clicking.
type Linear struct {
	inRate  int
	outRate int
	step    float64

	pos    float64 // read position relative to the current batch, -1 <= pos
	last   float32 // final sample of the previous batch, valid once primed
	primed bool
}

func NewLinear(inRate, outRate int) *Linear {
	return &Linear{
		inRate:  inRate,
		outRate: outRate,
		step:    float64(inRate) / float64(outRate),
	}
}

func (l *Linear) InputRate() int  { return l.inRate }
func (l *Linear) OutputRate() int { return l.outRate }

// Process resamples one batch. Position index -1 refers to the carried last
// sample of the previous batch, so the first output of a batch can
// interpolate across the boundary.
func (l *Linear) Process(input []float32) []float32 {
	if len(input) == 0 {
		return nil
	}
	if l.inRate == l.outRate {
		out := make([]float32, len(input))
		copy(out, input)
		l.last = input[len(input)-1]
		l.primed = true
		return out
	}

	out := make([]float32, 0, int(float64(len(input))/l.step)+2)
	for {
		idx := int(l.pos)
		if l.pos < 0 {
			idx = -1
		}
		if idx >= len(input)-1 {
			break
		}
		frac := l.pos - float64(idx)

		var a float32
		if idx < 0 {
			if !l.primed {
				// Nothing before the very first sample to interpolate from.
				l.pos = 0
				continue
			}
			a = l.last
		} else {
			a = input[idx]
		}
		b := input[idx+1]
		out = append(out, a+float32(frac)*(b-a))
		l.pos += l.step
	}

	l.pos -= float64(len(input))
	l.last = input[len(input)-1]
	l.primed = true
	return out
}

// Reset drops carried state. Used on re-tune, where continuity with the
// previous stream is meaningless.
func (l *Linear) Reset() {
	l.pos = 0
	l.last = 0
	l.primed = false
}
