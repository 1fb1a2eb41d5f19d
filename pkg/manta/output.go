package manta

import (
	"context"

	"github.com/manta-sdr/manta/pkg/types"
)

// MixedStreamID tags the combined monitor stream on AudioFrame.VFOID.
// Real VFO ids start at 1.
const MixedStreamID = 0

// AudioOutput handles demodulated audio frames.
type AudioOutput interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives audio frame input.
	Receive() chan<- *types.AudioFrame
}
