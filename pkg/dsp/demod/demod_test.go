package demod

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/manta-sdr/manta/pkg/types"
)

func carrier(n int) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func tone(n, offsetHz, sampleRate int) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		phase := 2 * math.Pi * float64(offsetHz) * float64(i) / float64(sampleRate)
		out[i] = complex64(cmplx.Exp(complex(0, phase)))
	}
	return out
}

func TestFMUnmodulatedCarrierIsSilent(t *testing.T) {
	fm := NewFM()
	require.NoError(t, fm.Initialize(24000))

	out := fm.Demodulate(carrier(2048))
	for i, s := range out {
		require.InDeltaf(t, 0, s, 1e-9, "sample %d", i)
	}
}

func TestFMFrequencyOffsetPolarity(t *testing.T) {
	fm := NewFM()
	require.NoError(t, fm.Initialize(24000))

	// A tone above center is a positive constant deviation; the DC block
	// bleeds it away only slowly, so mid-buffer samples still carry it.
	out := fm.Demodulate(tone(512, 1000, 24000))
	require.Greater(t, float64(out[100]), 0.04)
	require.Less(t, float64(out[100]), 0.09)

	fm.Reset()
	out = fm.Demodulate(tone(512, -1000, 24000))
	require.Less(t, float64(out[100]), -0.04)
}

func TestFMPhaseWrapDoesNotSpike(t *testing.T) {
	fm := NewFM()
	require.NoError(t, fm.Initialize(24000))

	// 10 kHz at 24 kHz steps the phase by 150 degrees per sample, crossing
	// the atan2 branch cut constantly. Deviation must stay bounded by the
	// normalized maximum, with no 2pi-sized glitches.
	out := fm.Demodulate(tone(1024, 10000, 24000))
	for i, s := range out {
		require.LessOrEqualf(t, math.Abs(float64(s)), 1.0, "sample %d", i)
	}
}

func TestFMResetClearsFilterState(t *testing.T) {
	fm := NewFM()
	require.NoError(t, fm.Initialize(24000))
	fm.Demodulate(tone(512, 1000, 24000))
	fm.Reset()

	out := fm.Demodulate(carrier(512))
	for i, s := range out {
		require.InDeltaf(t, 0, s, 1e-9, "sample %d leaked state across Reset", i)
	}
}

func TestFMParamsPartialUpdate(t *testing.T) {
	fm := NewFM()
	require.NoError(t, fm.Initialize(24000))

	fm.SetParams(Params{DeemphasisRC: 50e-6})
	p := fm.Params()
	require.Equal(t, 50e-6, p.DeemphasisRC)
	require.Equal(t, defaultDCBlockCutoff, p.DCBlockCutoff, "zero field must leave the old value")
}

func TestAMConstantEnvelopeSettlesToSilence(t *testing.T) {
	am := NewAM()
	require.NoError(t, am.Initialize(24000))

	in := make([]complex64, 2048)
	for i := range in {
		in[i] = complex(0.8, 0)
	}
	out := am.Demodulate(in)
	for i := 200; i < len(out); i++ {
		require.InDeltaf(t, 0, out[i], 1e-3, "sample %d", i)
	}
}

func TestAMRecoversModulation(t *testing.T) {
	am := NewAM()
	require.NoError(t, am.Initialize(24000))

	// 400 Hz, 50% depth. After the carrier tracker seeds, output must swing
	// with the same sign as the modulating tone.
	in := make([]complex64, 4096)
	for i := range in {
		mod := 0.5 * math.Sin(2*math.Pi*400*float64(i)/24000)
		in[i] = complex(float32(0.6*(1+mod)), 0)
	}
	out := am.Demodulate(in)

	agree := 0
	total := 0
	for i := 500; i < len(out); i++ {
		mod := math.Sin(2 * math.Pi * 400 * float64(i) / 24000)
		if math.Abs(mod) < 0.3 {
			continue
		}
		total++
		if (mod > 0) == (out[i] > 0) {
			agree++
		}
	}
	require.Greater(t, total, 0)
	require.Greater(t, float64(agree)/float64(total), 0.9)
}

func TestAMGainCappedOnQuietChannel(t *testing.T) {
	am := NewAM()
	require.NoError(t, am.Initialize(24000))

	in := make([]complex64, 1024)
	for i := range in {
		in[i] = complex(float32(1+1e-4*math.Sin(float64(i))), 0)
	}
	out := am.Demodulate(in)
	for i, s := range out {
		require.LessOrEqualf(t, math.Abs(float64(s)), 0.01, "sample %d blown up past the gain cap", i)
	}
}

func TestRegistrySubstitutesFallbackForStubModes(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	d, err := r.Bind(types.ModeSSB)
	require.NoError(t, err)
	require.Equal(t, []types.Mode{FallbackMode}, d.SupportedModes())

	d, err = r.Bind(types.ModeCW)
	require.NoError(t, err)
	require.Equal(t, []types.Mode{FallbackMode}, d.SupportedModes())
}

func TestRegistryRejectsUnknownMode(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	_, err := r.Bind(types.Mode("chirp"))
	require.ErrorIs(t, err, ErrUnsupportedMode)

	_, err = r.New(types.Mode("chirp"))
	require.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestSetModeOutsideDeclaredSetFails(t *testing.T) {
	fm := NewFM()
	require.ErrorIs(t, fm.SetMode(types.ModeAM), ErrUnsupportedMode)
	require.NoError(t, fm.SetMode(types.ModeFM))

	am := NewAM()
	require.ErrorIs(t, am.SetMode(types.ModeCW), ErrUnsupportedMode)
}
