// Package demod converts per-VFO baseband IQ into audio. Algorithms are a
// closed capability set keyed by types.Mode; binding an unimplemented mode
// substitutes the designated fallback instead of leaving the channel silent.
package demod

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/manta-sdr/manta/pkg/types"
)

// ErrUnsupportedMode is returned for a mode a demodulator does not declare,
// or a mode with no working implementation.
var ErrUnsupportedMode = errors.New("unsupported mode")

// Params holds tunable demodulator settings. SetParams treats zero fields as
// "leave unchanged" so callers can update a single knob.
type Params struct {
	DeemphasisRC  float64 // seconds; FM de-emphasis time constant
	DCBlockCutoff float64 // Hz; FM drift-removal high-pass
	AGCTarget     float64 // AM target RMS
	AGCMaxGain    float64 // AM gain ceiling
}

// Demodulator is one bound algorithm instance. Initialize may allocate and
// may block; Demodulate is the hot path and must not. Filter state persists
// across Demodulate calls; Reset is explicit and used only on re-tune.
type Demodulator interface {
	Initialize(sampleRate int) error
	Activate() error
	Deactivate() error
	Dispose() error

	Demodulate(iq []complex64) []float32

	SupportedModes() []types.Mode
	SetMode(m types.Mode) error
	Params() Params
	SetParams(p Params)
	Reset()
}

// Factory builds an uninitialized demodulator.
type Factory func() (Demodulator, error)

// FallbackMode is substituted when a requested mode has no working
// implementation.
const FallbackMode = types.ModeFM

// Registry maps modes to factories.
type Registry struct {
	mu        sync.Mutex
	factories map[types.Mode]Factory
	log       zerolog.Logger
}

// NewRegistry returns a registry with the built-in mode set declared: FM and
// AM implemented, SSB and CW stubbed.
func NewRegistry(logger zerolog.Logger) *Registry {
	r := &Registry{
		factories: make(map[types.Mode]Factory),
		log:       logger.With().Str("component", "demod").Logger(),
	}
	r.Register(types.ModeFM, func() (Demodulator, error) { return NewFM(), nil })
	r.Register(types.ModeAM, func() (Demodulator, error) { return NewAM(), nil })
	r.Register(types.ModeSSB, stub("ssb"))
	r.Register(types.ModeCW, stub("cw"))
	return r
}

func (r *Registry) Register(mode types.Mode, f Factory) {
	r.mu.Lock()
	r.factories[mode] = f
	r.mu.Unlock()
}

// New constructs a demodulator for mode without fallback substitution.
func (r *Registry) New(mode types.Mode) (Demodulator, error) {
	r.mu.Lock()
	f, ok := r.factories[mode]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	return f()
}

// Bind constructs a demodulator for mode, substituting the fallback with a
// visible warning when the mode is declared but unimplemented. An unknown
// mode outside the closed set is still an error.
func (r *Registry) Bind(mode types.Mode) (Demodulator, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	d, err := r.New(mode)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrUnsupportedMode) {
		return nil, err
	}
	r.log.Warn().
		Str("mode", string(mode)).
		Str("fallback", string(FallbackMode)).
		Msg("mode not implemented, substituting fallback demodulator")
	return r.New(FallbackMode)
}
