package channelizer

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/manta-sdr/manta/pkg/dsp/demod"
	"github.com/manta-sdr/manta/pkg/types"
)

// recordingDemod counts lifecycle calls so reconciliation behavior is
// observable from tests.
type recordingDemod struct {
	initialized int
	activated   int
	deactivated int
	disposed    int
	resets      int
	batches     int
	mode        types.Mode
}

func (d *recordingDemod) Initialize(sampleRate int) error { d.initialized++; return nil }
func (d *recordingDemod) Activate() error                 { d.activated++; return nil }
func (d *recordingDemod) Deactivate() error               { d.deactivated++; return nil }
func (d *recordingDemod) Dispose() error                  { d.disposed++; return nil }

func (d *recordingDemod) Demodulate(iq []complex64) []float32 {
	d.batches++
	return make([]float32, len(iq))
}

func (d *recordingDemod) SupportedModes() []types.Mode { return []types.Mode{d.mode} }
func (d *recordingDemod) SetMode(m types.Mode) error   { d.mode = m; return nil }
func (d *recordingDemod) Params() demod.Params         { return demod.Params{} }
func (d *recordingDemod) SetParams(p demod.Params)     {}
func (d *recordingDemod) Reset()                       { d.resets++ }

// testRegistry returns a registry whose AM factory hands out recording
// demodulators, collected in the returned slice.
func testRegistry(t *testing.T) (*demod.Registry, *[]*recordingDemod) {
	t.Helper()
	var created []*recordingDemod
	r := demod.NewRegistry(zerolog.Nop())
	r.Register(types.ModeAM, func() (demod.Demodulator, error) {
		d := &recordingDemod{mode: types.ModeAM}
		created = append(created, d)
		return d, nil
	})
	return r, &created
}

func testBatch(n int) *types.IQBatch {
	return &types.IQBatch{
		Data:       make([]complex64, n),
		SampleRate: 96000,
		Timestamp:  time.Now().UTC(),
	}
}

func amVFO(id, offset int) types.VFO {
	return types.VFO{ID: id, Offset: offset, Mode: types.ModeAM, Bandwidth: 12000, AudioEnabled: true}
}

func TestProcessProducesMetricsPerVFO(t *testing.T) {
	reg, _ := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())

	res, err := c.Process(testBatch(4096), []types.VFO{amVFO(1, 5000), amVFO(2, -10000)})
	require.NoError(t, err)
	require.Len(t, res.Metrics, 2)
	require.Len(t, res.Frames, 2)
	for _, f := range res.Frames {
		require.Equal(t, 24000, f.SampleRate) // 96k decimated by 4
		require.NotEmpty(t, f.Data)
	}
}

func TestAudioDisabledVFOStillReportsMetrics(t *testing.T) {
	reg, _ := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())

	v := amVFO(1, 0)
	v.AudioEnabled = false
	res, err := c.Process(testBatch(4096), []types.VFO{v})
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	require.Empty(t, res.Frames)
}

func TestRemovedVFOIsDisposed(t *testing.T) {
	reg, created := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())

	_, err := c.Process(testBatch(1024), []types.VFO{amVFO(1, 0)})
	require.NoError(t, err)
	require.Len(t, *created, 1)

	_, err = c.Process(testBatch(1024), nil)
	require.NoError(t, err)
	require.Equal(t, 1, (*created)[0].deactivated)
	require.Equal(t, 1, (*created)[0].disposed)
	require.Empty(t, c.states)
}

func TestReaddedVFOStartsFromFreshState(t *testing.T) {
	reg, created := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())

	v := amVFO(1, 5000)
	_, err := c.Process(testBatch(1024), []types.VFO{v})
	require.NoError(t, err)
	first := c.states[1]

	_, err = c.Process(testBatch(1024), nil)
	require.NoError(t, err)
	_, err = c.Process(testBatch(1024), []types.VFO{v})
	require.NoError(t, err)

	st := c.states[1]
	require.NotSame(t, first, st)
	require.Len(t, *created, 2, "re-add must bind a fresh demodulator")
}

func TestModeChangeRecreatesDemodulator(t *testing.T) {
	reg, created := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())

	v := amVFO(1, 0)
	_, err := c.Process(testBatch(1024), []types.VFO{v})
	require.NoError(t, err)
	require.Len(t, *created, 1)

	v.Mode = types.ModeFM
	_, err = c.Process(testBatch(1024), []types.VFO{v})
	require.NoError(t, err)
	require.Equal(t, 1, (*created)[0].disposed, "old demodulator not disposed on mode change")

	v.Mode = types.ModeAM
	_, err = c.Process(testBatch(1024), []types.VFO{v})
	require.NoError(t, err)
	require.Len(t, *created, 2, "mode change back did not create a fresh demodulator")
}

func TestOffsetChangeResetsDemodFilters(t *testing.T) {
	reg, created := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())

	v := amVFO(1, 5000)
	_, err := c.Process(testBatch(1024), []types.VFO{v})
	require.NoError(t, err)

	v.Offset = 7000
	_, err = c.Process(testBatch(1024), []types.VFO{v})
	require.NoError(t, err)
	require.Equal(t, 1, (*created)[0].resets, "re-tune must reset demodulator filter state")
	require.Equal(t, 0, (*created)[0].disposed, "re-tune must not recreate the demodulator")
}

func TestUnimplementedModeFallsBackInsteadOfSilence(t *testing.T) {
	reg, _ := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())

	v := amVFO(1, 0)
	v.Mode = types.ModeSSB // stubbed, substitutes the fallback
	res, err := c.Process(testBatch(4096), []types.VFO{v})
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	require.Len(t, res.Frames, 1)
}

func TestFailedVFODoesNotAffectOthers(t *testing.T) {
	reg, created := testRegistry(t)
	reg.Register(types.ModeCW, func() (demod.Demodulator, error) {
		return nil, errors.New("hardware decoder offline")
	})
	c := New(96000, reg, zerolog.Nop())

	bad := amVFO(1, 0)
	bad.Mode = types.ModeCW
	good := amVFO(2, 5000)

	res, err := c.Process(testBatch(4096), []types.VFO{bad, good})
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	require.Equal(t, 2, res.Metrics[0].VFOID)
	require.Len(t, *created, 1)

	// Failed VFO stays skipped on subsequent batches, not retried per batch.
	res, err = c.Process(testBatch(4096), []types.VFO{bad, good})
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
}

func TestStrategySwitchesToFilterBankAtThreshold(t *testing.T) {
	reg, _ := testRegistry(t)
	c := New(96000, reg, zerolog.Nop(), WithStrategyThreshold(2))

	_, err := c.Process(testBatch(4096), []types.VFO{amVFO(1, 0)})
	require.NoError(t, err)
	require.Nil(t, c.bank, "single VFO below threshold must use per-VFO mixing")

	_, err = c.Process(testBatch(4096), []types.VFO{amVFO(1, 0), amVFO(2, 24000)})
	require.NoError(t, err)
	require.NotNil(t, c.bank, "threshold count must select the filter bank")
	require.Equal(t, 4, c.bank.NumChannels())
}

func TestFilterBankRebuiltWhenWidestBandwidthChanges(t *testing.T) {
	reg, _ := testRegistry(t)
	c := New(96000, reg, zerolog.Nop(), WithStrategyThreshold(2))

	a, b := amVFO(1, 0), amVFO(2, 24000)
	_, err := c.Process(testBatch(4096), []types.VFO{a, b})
	require.NoError(t, err)
	first := c.bank

	b.Bandwidth = 24000
	_, err = c.Process(testBatch(4096), []types.VFO{a, b})
	require.NoError(t, err)
	require.NotSame(t, first, c.bank)
	require.Equal(t, 2, c.bank.NumChannels())
}

func TestRSSIOfUnitCarrierIsNearZeroDB(t *testing.T) {
	reg, _ := testRegistry(t)
	c := New(96000, reg, zerolog.Nop())
	st := &vfoState{desc: amVFO(1, 0)}

	iq := make([]complex64, 1000)
	for i := range iq {
		iq[i] = 1
	}
	got := c.rssi(st, iq)
	require.InDelta(t, 0.0, got, 1e-6)

	for i := range iq {
		iq[i] = complex(0.1, 0)
	}
	require.InDelta(t, -20.0, c.rssi(st, iq), 1e-6)
}
