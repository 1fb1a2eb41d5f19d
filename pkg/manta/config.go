package manta

import (
	"github.com/manta-sdr/manta/pkg/types"
)

// Options is the receiver's runtime configuration, assembled in main from
// the YAML config.
type Options struct {
	CenterFreq      int
	SampleRate      int
	AudioOutputRate int
	Gain            int
	AmpEnabled      bool
	AntennaPower    bool

	// StrategyThreshold is the VFO count at which channel extraction
	// switches to the shared filter bank. Zero means the default.
	StrategyThreshold int

	VFOs         []types.VFO
	AudioOutputs []AudioOutput
}
