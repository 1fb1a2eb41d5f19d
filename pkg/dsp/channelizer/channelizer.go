// Package channelizer splits one wideband IQ stream into per-VFO baseband
// channels and drives each channel's demodulator. Two extraction strategies
// are used depending on how many VFOs are active: dedicated mixing chains at
// low counts, a shared polyphase filter bank at high counts.
package channelizer

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/manta-sdr/manta/pkg/dsp/demod"
	"github.com/manta-sdr/manta/pkg/types"
)

// DefaultStrategyThreshold is the VFO count at which extraction switches
// from per-VFO mixing to the shared filter bank. The bank is used at the
// threshold, not only above it.
const DefaultStrategyThreshold = 3

const rssiEpsilon = 1e-10

// vfoState is the per-VFO processing state owned by the Channelizer. The
// registry's descriptor is the source of truth; desc here is the last
// reconciled copy, used to detect changes.
type vfoState struct {
	desc   types.VFO
	path   *mixerPath
	dm     demod.Demodulator
	dmRate int
	failed bool

	magScratch []float64
}

// Result is everything one batch produced.
type Result struct {
	Frames  []*types.AudioFrame
	Metrics []types.VfoMetrics
}

type Channelizer struct {
	sampleRate int
	threshold  int
	registry   *demod.Registry
	log        zerolog.Logger

	states map[int]*vfoState

	bank      *FilterBank
	bankMaxBW int
}

// Option configures a Channelizer.
type Option func(*Channelizer)

// WithStrategyThreshold overrides the mixing-to-filter-bank switch point.
func WithStrategyThreshold(n int) Option {
	return func(c *Channelizer) {
		if n > 0 {
			c.threshold = n
		}
	}
}

func New(sampleRate int, registry *demod.Registry, logger zerolog.Logger, opts ...Option) *Channelizer {
	c := &Channelizer{
		sampleRate: sampleRate,
		threshold:  DefaultStrategyThreshold,
		registry:   registry,
		log:        logger.With().Str("component", "channelizer").Logger(),
		states:     make(map[int]*vfoState),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Process reconciles internal state against the current descriptor set, runs
// one wideband batch through the selected strategy, and returns audio and
// metrics for every VFO that produced output. One VFO failing never blocks
// the others.
func (c *Channelizer) Process(batch *types.IQBatch, vfos []types.VFO) (*Result, error) {
	c.reconcile(vfos)

	active := make([]*vfoState, 0, len(vfos))
	for _, v := range vfos {
		st := c.states[v.ID]
		if st == nil || st.failed || st.dm == nil {
			continue
		}
		active = append(active, st)
	}
	res := &Result{}
	if len(active) == 0 || len(batch.Data) == 0 {
		return res, nil
	}

	if len(vfos) >= c.threshold {
		c.processFilterBank(batch, active, res)
	} else {
		c.processMixing(batch, active, res)
	}
	return res, nil
}

// processMixing runs every active VFO's private chain over the batch in
// parallel. Each chain owns its own state so no locking is needed inside.
func (c *Channelizer) processMixing(batch *types.IQBatch, active []*vfoState, res *Result) {
	var mu sync.Mutex
	var g errgroup.Group
	for _, st := range active {
		st := st
		g.Go(func() error {
			start := time.Now()
			iq, err := st.path.extract(batch.Data, nil)
			if err != nil {
				c.log.Error().Err(err).Int("vfo", st.desc.ID).Msg("extraction chain failed")
				return nil
			}
			frame, m := c.demodulate(st, iq, st.path.outputRate, start, batch.Timestamp)
			mu.Lock()
			if frame != nil {
				res.Frames = append(res.Frames, frame)
			}
			res.Metrics = append(res.Metrics, m)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// processFilterBank runs the shared bank once, then fans the channel outputs
// out to the VFOs in parallel.
func (c *Channelizer) processFilterBank(batch *types.IQBatch, active []*vfoState, res *Result) {
	maxBW := 0
	for _, st := range active {
		if st.desc.Bandwidth > maxBW {
			maxBW = st.desc.Bandwidth
		}
	}
	if c.bank == nil || c.bankMaxBW != maxBW {
		c.bank = NewFilterBank(c.sampleRate, maxBW)
		c.bankMaxBW = maxBW
	}

	bankStart := time.Now()
	outputs := c.bank.Process(batch.Data)
	bankCost := time.Since(bankStart) / time.Duration(len(active))
	rate := c.bank.ChannelRate()

	var mu sync.Mutex
	var g errgroup.Group
	for _, st := range active {
		st := st
		g.Go(func() error {
			start := time.Now()
			iq := outputs[c.bank.ChannelFor(st.desc.Offset)]
			if len(iq) == 0 {
				return nil
			}
			frame, m := c.demodulate(st, iq, rate, start, batch.Timestamp)
			m.ProcessingTime += bankCost
			mu.Lock()
			if frame != nil {
				res.Frames = append(res.Frames, frame)
			}
			res.Metrics = append(res.Metrics, m)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// demodulate computes RSSI over the channel samples, runs the bound
// demodulator, and assembles the VFO's metrics for this batch. The returned
// frame is nil when audio is disabled for the VFO.
func (c *Channelizer) demodulate(st *vfoState, iq []complex64, rate int, start, ts time.Time) (*types.AudioFrame, types.VfoMetrics) {
	if st.dmRate != rate {
		if err := st.dm.Initialize(rate); err != nil {
			c.log.Error().Err(err).Int("vfo", st.desc.ID).Msg("demodulator re-initialize failed")
			st.failed = true
			return nil, types.VfoMetrics{VFOID: st.desc.ID, Timestamp: ts}
		}
		st.dmRate = rate
	}

	rssi := c.rssi(st, iq)
	audio := st.dm.Demodulate(iq)

	m := types.VfoMetrics{
		VFOID:            st.desc.ID,
		RSSI:             rssi,
		SamplesProcessed: len(iq),
		ProcessingTime:   time.Since(start),
		Timestamp:        ts,
	}
	if !st.desc.AudioEnabled || len(audio) == 0 {
		return nil, m
	}
	out := make([]float32, len(audio))
	copy(out, audio)
	return &types.AudioFrame{
		VFOID:      st.desc.ID,
		Data:       out,
		SampleRate: rate,
		Timestamp:  ts,
	}, m
}

func (c *Channelizer) rssi(st *vfoState, iq []complex64) float64 {
	if len(iq) == 0 {
		return 10 * math.Log10(rssiEpsilon)
	}
	if cap(st.magScratch) < len(iq) {
		st.magScratch = make([]float64, len(iq))
	}
	mag := st.magScratch[:len(iq)]
	for i, s := range iq {
		re := float64(real(s))
		im := float64(imag(s))
		mag[i] = re*re + im*im
	}
	mean := floats.Sum(mag) / float64(len(mag))
	return 10 * math.Log10(mean+rssiEpsilon)
}

// reconcile brings the internal state map in line with the registry's
// descriptor set before a batch is processed.
func (c *Channelizer) reconcile(vfos []types.VFO) {
	seen := make(map[int]bool, len(vfos))
	for _, v := range vfos {
		seen[v.ID] = true
		st, ok := c.states[v.ID]
		if !ok {
			c.states[v.ID] = c.newState(v)
			continue
		}
		c.updateState(st, v)
	}
	for id, st := range c.states {
		if seen[id] {
			continue
		}
		c.disposeState(st)
		delete(c.states, id)
	}
}

func (c *Channelizer) newState(v types.VFO) *vfoState {
	st := &vfoState{desc: v}
	path, err := newMixerPath(c.sampleRate, v)
	if err != nil {
		c.log.Error().Err(err).Int("vfo", v.ID).Msg("mixer path assembly failed, marking vfo failed")
		st.failed = true
		return st
	}
	st.path = path
	if err := c.bindDemod(st, v.Mode); err != nil {
		st.failed = true
	}
	return st
}

// updateState applies descriptor changes in place. A mode change swaps the
// demodulator but keeps the oscillator phase since the RF channel itself did
// not move; an offset, bandwidth, or squelch change rebuilds the extraction
// chain from phase zero and resets demodulator filter state.
func (c *Channelizer) updateState(st *vfoState, v types.VFO) {
	prev := st.desc
	st.desc = v
	if v == prev {
		return
	}

	if v.Offset != prev.Offset || v.Bandwidth != prev.Bandwidth || v.SquelchLevel != prev.SquelchLevel {
		path, err := newMixerPath(c.sampleRate, v)
		if err != nil {
			c.log.Error().Err(err).Int("vfo", v.ID).Msg("mixer path rebuild failed, marking vfo failed")
			st.failed = true
			return
		}
		st.path = path
		if st.dm != nil {
			st.dm.Reset()
		}
		st.failed = false
	}

	if v.Mode != prev.Mode {
		if st.dm != nil {
			st.dm.Deactivate()
			st.dm.Dispose()
			st.dm = nil
			st.dmRate = 0
		}
		if err := c.bindDemod(st, v.Mode); err != nil {
			st.failed = true
			return
		}
		st.failed = false
	}
}

func (c *Channelizer) bindDemod(st *vfoState, mode types.Mode) error {
	dm, err := c.registry.Bind(mode)
	if err != nil {
		c.log.Error().Err(err).Int("vfo", st.desc.ID).Str("mode", string(mode)).
			Msg("demodulator bind failed, marking vfo failed")
		return err
	}
	if err := dm.Activate(); err != nil {
		c.log.Error().Err(err).Int("vfo", st.desc.ID).Msg("demodulator activate failed")
		return err
	}
	st.dm = dm
	st.dmRate = 0
	return nil
}

func (c *Channelizer) disposeState(st *vfoState) {
	if st.dm != nil {
		st.dm.Deactivate()
		st.dm.Dispose()
		st.dm = nil
	}
	st.path = nil
}

// Close disposes all per-VFO state.
func (c *Channelizer) Close() {
	for id, st := range c.states {
		c.disposeState(st)
		delete(c.states, id)
	}
}
