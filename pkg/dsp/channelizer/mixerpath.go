package channelizer

import (
	"fmt"

	"github.com/racerxdl/segdsp/dsp"

	"github.com/manta-sdr/manta/pkg/dsp/filters/fir"
	"github.com/manta-sdr/manta/pkg/dsp/mixer"
	"github.com/manta-sdr/manta/pkg/dsp/processor"
	"github.com/manta-sdr/manta/pkg/types"
)

// mixerPath is the per-VFO extraction chain used below the strategy
// threshold: oscillator shift to DC, decimating low-pass sized to the VFO's
// bandwidth, optional power squelch. Each VFO owns its own chain so
// bandwidths are independent, at the cost of one full pass over the wideband
// batch per VFO.
type mixerPath struct {
	nco        *mixer.NCO
	proc       *processor.Processor
	outputRate int
}

func newMixerPath(sampleRate int, v types.VFO) (*mixerPath, error) {
	decimation := sampleRate / (2 * v.Bandwidth)
	if decimation < 1 {
		decimation = 1
	}
	outputRate := sampleRate / decimation

	p := &mixerPath{
		nco:        mixer.NewNCO(sampleRate, v.Offset),
		proc:       processor.NewProcessor(fmt.Sprintf("vfo_%d", v.ID)),
		outputRate: outputRate,
	}

	p.proc.AddBlock(processor.NewCC(
		"oscillator",
		sampleRate,
		sampleRate,
		p.nco,
	))

	cutoff := float64(v.Bandwidth) / 2
	transition := float64(v.Bandwidth) / 4
	lpfCoeffs := fir.MakeLowPass(1.0, float64(sampleRate), cutoff, transition, fir.Hamming)
	p.proc.AddBlock(processor.NewCC(
		"lowpass_decimator",
		sampleRate,
		outputRate,
		dsp.MakeDecimationFirFilter(decimation, lpfCoeffs),
	))

	if v.SquelchLevel != 0 {
		p.proc.AddBlock(processor.NewCC(
			"squelch",
			outputRate,
			outputRate,
			dsp.MakeSquelch(float32(v.SquelchLevel), 0.1),
		))
	}

	if err := p.proc.Initialize(); err != nil {
		return nil, err
	}
	return p, nil
}

// extract runs one wideband batch through the chain and returns the VFO's
// baseband samples at outputRate.
func (p *mixerPath) extract(input []complex64, metrics map[string]interface{}) ([]complex64, error) {
	return p.proc.ProcessComplex(input, metrics)
}
