package demod

import (
	"fmt"
	"math"

	"github.com/manta-sdr/manta/pkg/types"
)

const (
	defaultAGCTarget  = 0.5
	defaultAGCMaxGain = 4.0

	// Direct averaging window that seeds the carrier tracker, avoiding the
	// slow IIR's cold-start transient.
	dcSeedSamples = 100

	dcTrackAlpha = 1e-3
)

// AM is an envelope detector: carrier level is tracked with a slow IIR and
// subtracted from the instantaneous magnitude, then a soft AGC pulls the
// audio toward a target RMS.
type AM struct {
	sampleRate int
	params     Params
	active     bool

	dcLevel   float64
	seedSum   float64
	seedCount int
}

func NewAM() *AM {
	return &AM{
		params: Params{
			AGCTarget:  defaultAGCTarget,
			AGCMaxGain: defaultAGCMaxGain,
		},
	}
}

func (a *AM) Initialize(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("am: invalid sample rate %d", sampleRate)
	}
	a.sampleRate = sampleRate
	return nil
}

func (a *AM) Activate() error   { a.active = true; return nil }
func (a *AM) Deactivate() error { a.active = false; return nil }
func (a *AM) Dispose() error    { a.active = false; return nil }

func (a *AM) SupportedModes() []types.Mode { return []types.Mode{types.ModeAM} }

func (a *AM) SetMode(m types.Mode) error {
	if m != types.ModeAM {
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, m)
	}
	return nil
}

func (a *AM) Params() Params { return a.params }

func (a *AM) SetParams(p Params) {
	if p.AGCTarget > 0 {
		a.params.AGCTarget = p.AGCTarget
	}
	if p.AGCMaxGain > 0 {
		a.params.AGCMaxGain = p.AGCMaxGain
	}
}

func (a *AM) Reset() {
	a.dcLevel = 0
	a.seedSum = 0
	a.seedCount = 0
}

func (a *AM) Demodulate(iq []complex64) []float32 {
	out := make([]float32, len(iq))
	if len(iq) == 0 {
		return out
	}
	for i, s := range iq {
		ii := float64(real(s))
		qq := float64(imag(s))
		mag := math.Sqrt(ii*ii + qq*qq)

		if a.seedCount < dcSeedSamples {
			a.seedSum += mag
			a.seedCount++
			a.dcLevel = a.seedSum / float64(a.seedCount)
		} else {
			a.dcLevel += dcTrackAlpha * (mag - a.dcLevel)
		}

		out[i] = float32(mag - a.dcLevel)
	}

	// Soft AGC toward target RMS, gain capped so noise-only channels don't
	// get blown up.
	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(out)))
	if rms > 1e-9 {
		gain := a.params.AGCTarget / rms
		if gain > a.params.AGCMaxGain {
			gain = a.params.AGCMaxGain
		}
		for i := range out {
			out[i] *= float32(gain)
		}
	}
	return out
}
