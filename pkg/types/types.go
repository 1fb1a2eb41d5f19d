package types

import (
	"time"
)

// Mode identifies a demodulation algorithm. The set is closed; dispatch on it
// should be exhaustive.
type Mode string

const (
	ModeFM  Mode = "fm"
	ModeAM  Mode = "am"
	ModeSSB Mode = "ssb"
	ModeCW  Mode = "cw"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeFM, ModeAM, ModeSSB, ModeCW:
		return true
	}
	return false
}

// VFO describes one virtual receiver within the wideband capture. The VFO
// registry owns these; DSP components hold only transient per-batch copies.
type VFO struct {
	ID           int
	Offset       int // Hz relative to wideband center
	Mode         Mode
	Bandwidth    int // Hz
	AudioEnabled bool
	SquelchLevel int // dB, 0 disables
}

// VfoMetrics is written once per VFO per processed batch.
type VfoMetrics struct {
	VFOID            int           `json:"vfo_id"`
	RSSI             float64       `json:"rssi_db"`
	SamplesProcessed int           `json:"samples_processed"`
	ProcessingTime   time.Duration `json:"processing_time"`
	Timestamp        time.Time     `json:"timestamp"`
}

// AudioFrame is one VFO's demodulated mono audio for one batch.
type AudioFrame struct {
	VFOID      int
	Data       []float32
	SampleRate int
	Timestamp  time.Time
}

// IQBatch is one contiguous run of complex baseband samples normalized to
// [-1, 1], in arrival order.
type IQBatch struct {
	Data       []complex64
	SampleRate int
	CenterFreq int
	SeqNum     int
	Timestamp  time.Time
}

// RawCS8 is raw interleaved signed 8-bit I/Q as it arrives from a bulk
// endpoint or capture file.
type RawCS8 struct {
	Data       []byte
	SampleRate int
	CenterFreq int
}

// ToBatch converts interleaved CS8 bytes to normalized complex samples. A
// trailing odd byte is dropped.
func (r RawCS8) ToBatch() *IQBatch {
	n := len(r.Data) / 2
	out := make([]complex64, n)
	for i := 0; i < n; i++ {
		in := float32(int8(r.Data[2*i])) / 128.0
		qu := float32(int8(r.Data[2*i+1])) / 128.0
		out[i] = complex(in, qu)
	}
	return &IQBatch{
		Data:       out,
		SampleRate: r.SampleRate,
		CenterFreq: r.CenterFreq,
		Timestamp:  time.Now().UTC(),
	}
}
