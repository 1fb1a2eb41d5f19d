package demod

import (
	"fmt"
	"math"

	"github.com/manta-sdr/manta/pkg/types"
)

const (
	// Broadcast de-emphasis time constant: 75us in the Americas, 50us in
	// most other regions. Override via Params for the local standard.
	DefaultDeemphasisRC = 75e-6

	defaultDCBlockCutoff = 0.5
)

// FM is a phase discriminator: the unwrapped phase difference between
// consecutive samples is proportional to instantaneous frequency deviation.
type FM struct {
	sampleRate int
	params     Params
	active     bool

	lastPhase float64

	deemphAlpha float64
	deemphState float64

	dcR       float64
	dcPrevIn  float64
	dcPrevOut float64
}

func NewFM() *FM {
	return &FM{
		params: Params{
			DeemphasisRC:  DefaultDeemphasisRC,
			DCBlockCutoff: defaultDCBlockCutoff,
		},
	}
}

func (f *FM) Initialize(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("fm: invalid sample rate %d", sampleRate)
	}
	f.sampleRate = sampleRate
	f.recompute()
	return nil
}

func (f *FM) recompute() {
	fs := float64(f.sampleRate)
	f.deemphAlpha = 1.0 / (1.0 + f.params.DeemphasisRC*fs)
	f.dcR = 1.0 - 2.0*math.Pi*f.params.DCBlockCutoff/fs
}

func (f *FM) Activate() error   { f.active = true; return nil }
func (f *FM) Deactivate() error { f.active = false; return nil }
func (f *FM) Dispose() error    { f.active = false; return nil }

func (f *FM) SupportedModes() []types.Mode { return []types.Mode{types.ModeFM} }

func (f *FM) SetMode(m types.Mode) error {
	if m != types.ModeFM {
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, m)
	}
	return nil
}

func (f *FM) Params() Params { return f.params }

func (f *FM) SetParams(p Params) {
	if p.DeemphasisRC > 0 {
		f.params.DeemphasisRC = p.DeemphasisRC
	}
	if p.DCBlockCutoff > 0 {
		f.params.DCBlockCutoff = p.DCBlockCutoff
	}
	if f.sampleRate > 0 {
		f.recompute()
	}
}

// Reset clears filter state. Only called on re-tune; clearing it mid-stream
// causes an audible pop.
func (f *FM) Reset() {
	f.lastPhase = 0
	f.deemphState = 0
	f.dcPrevIn = 0
	f.dcPrevOut = 0
}

func (f *FM) Demodulate(iq []complex64) []float32 {
	out := make([]float32, len(iq))
	for i, s := range iq {
		phase := math.Atan2(float64(imag(s)), float64(real(s)))
		diff := phase - f.lastPhase
		f.lastPhase = phase
		if diff > math.Pi {
			diff -= 2 * math.Pi
		} else if diff <= -math.Pi {
			diff += 2 * math.Pi
		}
		raw := diff / math.Pi

		// One-pole de-emphasis reversing the transmitter's pre-emphasis.
		f.deemphState += f.deemphAlpha * (raw - f.deemphState)

		// DC block removes discriminator drift from carrier offset.
		y := f.deemphState - f.dcPrevIn + f.dcR*f.dcPrevOut
		f.dcPrevIn = f.deemphState
		f.dcPrevOut = y

		out[i] = float32(y)
	}
	return out
}
