package device

// Capabilities declares the tunable surface of one receiver family. Setters
// clamp against it before any transport write.
type Capabilities struct {
	FreqMin uint64 `json:"freq_min"`
	FreqMax uint64 `json:"freq_max"`

	SampleRates []int `json:"sample_rates"`
	Bandwidths  []int `json:"bandwidths"`

	LNAGainMin  int `json:"lna_gain_min"`
	LNAGainMax  int `json:"lna_gain_max"`
	LNAGainStep int `json:"lna_gain_step"`

	HasAmp        bool `json:"has_amp"`
	MaxSampleRate int  `json:"max_sample_rate"`
}

func (c Capabilities) ClampFrequency(hz uint64) uint64 {
	if hz < c.FreqMin {
		return c.FreqMin
	}
	if hz > c.FreqMax {
		return c.FreqMax
	}
	return hz
}

// ClampLNAGain rounds db to the nearest valid gain step within range.
func (c Capabilities) ClampLNAGain(db int) int {
	if db < c.LNAGainMin {
		return c.LNAGainMin
	}
	if db > c.LNAGainMax {
		return c.LNAGainMax
	}
	if c.LNAGainStep <= 1 {
		return db
	}
	step := c.LNAGainStep
	rounded := ((db + step/2) / step) * step
	if rounded > c.LNAGainMax {
		rounded = c.LNAGainMax
	}
	return rounded
}

// NearestBandwidth picks the declared bandwidth closest to hz, preferring the
// lower one on ties. Returns hz unchanged if none are declared.
func (c Capabilities) NearestBandwidth(hz int) int {
	if len(c.Bandwidths) == 0 {
		return hz
	}
	best := c.Bandwidths[0]
	for _, bw := range c.Bandwidths[1:] {
		if abs(bw-hz) < abs(best-hz) {
			best = bw
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
