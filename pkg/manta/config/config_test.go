package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/manta-sdr/manta/pkg/types"
)

const sampleConfig = `
center_freq: 146000000
sample_rate: 2000000
output_rate: 48000
gain: 32
amp_enabled: true
strategy_threshold: 4
device: hackrf
vfos:
  - id: 1
    offset: 25000
    mode: fm
    bandwidth: 12500
    audio: true
    squelch_level: -50
  - id: 2
    offset: -150000
    mode: am
    bandwidth: 10000
output_destinations:
  - host: localhost
    port: 9999
diag_server:
  port: 8089
`

func TestParseSampleConfig(t *testing.T) {
	var c Config
	require.NoError(t, yaml.Unmarshal([]byte(sampleConfig), &c))
	require.NoError(t, c.Validate())

	require.Equal(t, 146000000, c.CenterFreq)
	require.Equal(t, 2000000, c.SampleRate)
	require.Equal(t, 4, c.StrategyThreshold)
	require.Equal(t, 8089, c.DiagServer.Port)
	require.Len(t, c.VFOs, 2)

	d := c.VFOs[0].Descriptor()
	require.Equal(t, types.ModeFM, d.Mode)
	require.Equal(t, 25000, d.Offset)
	require.True(t, d.AudioEnabled)
	require.Equal(t, -50, d.SquelchLevel)

	d = c.VFOs[1].Descriptor()
	require.Equal(t, types.ModeAM, d.Mode)
	require.False(t, d.AudioEnabled)
}

func TestValidateCatchesMistakes(t *testing.T) {
	base := func() Config {
		var c Config
		require.NoError(t, yaml.Unmarshal([]byte(sampleConfig), &c))
		return c
	}

	c := base()
	c.SampleRate = 0
	require.Error(t, c.Validate())

	c = base()
	c.VFOs[1].ID = c.VFOs[0].ID
	require.Error(t, c.Validate())

	c = base()
	c.VFOs[0].Mode = "chirp"
	require.Error(t, c.Validate())

	c = base()
	c.VFOs[0].Offset = c.SampleRate
	require.Error(t, c.Validate(), "offset beyond captured bandwidth")
}
