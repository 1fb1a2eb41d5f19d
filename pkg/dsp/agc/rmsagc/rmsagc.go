// Package rmsagc levels audio ahead of encoding so quiet and loud channels
// come out comparable.
package rmsagc

import (
	"math"
)

// AGC divides each sample by a running RMS estimate and scales to the target
// level k. The average is seeded at 1.0 so the first samples are passed
// close to unity instead of being slammed by a near-zero estimate.
type AGC struct {
	alpha   float64
	beta    float64
	gain    float64
	average float64
}

func New(alpha float64, k float64) *AGC {
	return &AGC{
		alpha:   alpha,
		beta:    1 - alpha,
		average: 1.0,
		gain:    k,
	}
}

func (r *AGC) PredictOutputSize(inputSize int) int {
	return inputSize
}

func (r *AGC) WorkBuffer(input, output []float32) int {
	for i := 0; i < len(input); i++ {
		cur := float64(input[i])
		r.average = r.beta*r.average + r.alpha*cur*cur
		if r.average > 0 {
			output[i] = float32(r.gain * cur / math.Sqrt(r.average))
		} else {
			output[i] = float32(r.gain * cur)
		}
	}
	return len(input)
}

func (r *AGC) Work(data []float32) []float32 {
	ret := make([]float32, len(data))
	r.WorkBuffer(data, ret)
	return ret
}

// Reset reseeds the level estimate, used when the stream it levels re-tunes.
func (r *AGC) Reset() {
	r.average = 1.0
}
