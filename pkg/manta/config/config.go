package config

import (
	"fmt"

	"github.com/manta-sdr/manta/pkg/types"
)

type Config struct {
	CenterFreq         int                 `yaml:"center_freq"`
	SampleRate         int                 `yaml:"sample_rate"`
	OutputRate         int                 `yaml:"output_rate"`
	Gain               int                 `yaml:"gain"`
	AmpEnabled         bool                `yaml:"amp_enabled"`
	AntennaPower       bool                `yaml:"antenna_power"`
	StrategyThreshold  int                 `yaml:"strategy_threshold"`
	VFOs               []VFO               `yaml:"vfos"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	PlaybackLocation   string              `yaml:"playback_location"`
	Device             string              `yaml:"device"`
	RTLSDRDeviceIndex  int                 `yaml:"rtlsdr_device_index"`
	DiagServer         struct {
		Port int `yaml:"port"`
	} `yaml:"diag_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	}
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type VFO struct {
	ID           int    `yaml:"id"`
	Offset       int    `yaml:"offset"`
	Mode         string `yaml:"mode"`
	Bandwidth    int    `yaml:"bandwidth"`
	Audio        bool   `yaml:"audio"`
	SquelchLevel int    `yaml:"squelch_level"`
}

// Descriptor converts the YAML form to the runtime descriptor.
func (v VFO) Descriptor() types.VFO {
	return types.VFO{
		ID:           v.ID,
		Offset:       v.Offset,
		Mode:         types.Mode(v.Mode),
		Bandwidth:    v.Bandwidth,
		AudioEnabled: v.Audio,
		SquelchLevel: v.SquelchLevel,
	}
}

// Validate catches config mistakes before any hardware is touched.
func (c Config) Validate() error {
	if c.CenterFreq <= 0 || c.SampleRate <= 0 {
		return fmt.Errorf("center_freq and sample_rate are required")
	}
	seen := make(map[int]bool)
	for _, v := range c.VFOs {
		if seen[v.ID] {
			return fmt.Errorf("duplicate vfo id %d", v.ID)
		}
		seen[v.ID] = true
		if !types.Mode(v.Mode).Valid() {
			return fmt.Errorf("vfo %d: unknown mode %q", v.ID, v.Mode)
		}
		if half := c.SampleRate / 2; v.Offset < -half || v.Offset > half {
			return fmt.Errorf("vfo %d: offset %d outside captured bandwidth", v.ID, v.Offset)
		}
	}
	return nil
}
