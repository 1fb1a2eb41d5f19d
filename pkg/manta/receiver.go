package manta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/manta-sdr/manta/pkg/dsp/audiomix"
	"github.com/manta-sdr/manta/pkg/dsp/channelizer"
	"github.com/manta-sdr/manta/pkg/dsp/demod"
	"github.com/manta-sdr/manta/pkg/dsp/resample"
	"github.com/manta-sdr/manta/pkg/manta/device"
	"github.com/manta-sdr/manta/pkg/manta/diag"
	"github.com/manta-sdr/manta/pkg/types"
	"github.com/manta-sdr/manta/pkg/util"
)

// Receiver owns one wideband capture: it configures the device, pulls raw
// buffers off its stream, channelizes them across the active VFOs, resamples
// each VFO's audio to the common output rate, and fans the result out to the
// configured outputs.
type Receiver struct {
	device   device.Device
	opts     Options
	writeAPI api.WriteAPI
	registry *VFORegistry
	demods   *demod.Registry
	chain    *channelizer.Channelizer
	diag     *diag.Server
	logger   zerolog.Logger

	resamplers map[int]*resample.Linear

	metricsMu   sync.RWMutex
	lastMetrics map[int]types.VfoMetrics

	cancel context.CancelFunc
	ctx    context.Context
}

type ReceiverOption func(r *Receiver) error

func WithInfluxDB(influxClient api.WriteAPI) ReceiverOption {
	return func(r *Receiver) error {
		r.writeAPI = influxClient
		return nil
	}
}

func WithDiagServer(srv *diag.Server) ReceiverOption {
	return func(r *Receiver) error {
		r.diag = srv
		return nil
	}
}

func WithLogger(logger zerolog.Logger) ReceiverOption {
	return func(r *Receiver) error {
		r.logger = logger
		return nil
	}
}

func NewReceiver(dev device.Device, options Options, opts ...ReceiverOption) (*Receiver, error) {
	r := &Receiver{
		device:      dev,
		opts:        options,
		writeAPI:    &util.MockWriteAPI{}, // overwritten with option
		registry:    NewVFORegistry(),
		resamplers:  make(map[int]*resample.Linear),
		lastMetrics: make(map[int]types.VfoMetrics),
		logger:      log.Logger,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.opts.CenterFreq == 0 || r.opts.SampleRate == 0 {
		return nil, fmt.Errorf("must specify center freq and sample rate")
	}
	if r.opts.AudioOutputRate == 0 {
		r.opts.AudioOutputRate = 48000
	}

	for _, v := range options.VFOs {
		if err := r.registry.Add(v); err != nil {
			return nil, err
		}
	}

	r.demods = demod.NewRegistry(r.logger)
	var chainOpts []channelizer.Option
	if r.opts.StrategyThreshold > 0 {
		chainOpts = append(chainOpts, channelizer.WithStrategyThreshold(r.opts.StrategyThreshold))
	}
	r.chain = channelizer.New(r.opts.SampleRate, r.demods, r.logger, chainOpts...)

	if r.diag != nil {
		r.diag.SetSource(r)
	}

	return r, nil
}

// VFOs exposes the registry for runtime tuning and for the diag server.
func (r *Receiver) VFOs() *VFORegistry { return r.registry }

// ActiveVFOs implements diag.Source.
func (r *Receiver) ActiveVFOs() []types.VFO { return r.registry.Snapshot() }

// LastMetrics implements diag.Source: the most recent per-VFO batch metrics.
func (r *Receiver) LastMetrics() []types.VfoMetrics {
	r.metricsMu.RLock()
	defer r.metricsMu.RUnlock()
	out := make([]types.VfoMetrics, 0, len(r.lastMetrics))
	for _, m := range r.lastMetrics {
		out = append(out, m)
	}
	return out
}

// DeviceInfo implements diag.Source.
func (r *Receiver) DeviceInfo() diag.DeviceInfo {
	return diag.DeviceInfo{
		Capabilities: r.device.Capabilities(),
		BufferStats:  r.device.BufferStats(),
		CenterFreq:   r.opts.CenterFreq,
		SampleRate:   r.opts.SampleRate,
	}
}

func (r *Receiver) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.diag != nil {
		r.diag.Stop(context.TODO())
	}
	if err := r.device.StopReceive(); err != nil {
		return err
	}
	return r.device.Close()
}

func (r *Receiver) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	r.ctx, r.cancel = context.WithCancel(ctx)

	caps := r.device.Capabilities()
	if r.opts.SampleRate > caps.MaxSampleRate {
		return fmt.Errorf("error: sample rate %d > device max sample rate %d", r.opts.SampleRate, caps.MaxSampleRate)
	}

	if err := r.configureDevice(); err != nil {
		return err
	}

	stream, err := r.device.StartReceive(r.ctx)
	if err != nil {
		return fmt.Errorf("starting receive: %w", err)
	}

	eg.Go(func() error {
		return r.processStream(stream)
	})

	if r.diag != nil {
		eg.Go(func() error {
			return r.diag.Run(r.ctx)
		})
	}

	for _, output := range r.opts.AudioOutputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(r.ctx)
		})
	}

	log.Info().
		Str("center_freq", util.MHzToString(r.opts.CenterFreq)).
		Str("sample_rate", util.MHzToString(r.opts.SampleRate)).
		Int("vfos", r.registry.Len()).
		Msg("Starting")

	return eg.Wait()
}

func (r *Receiver) configureDevice() error {
	if err := r.device.Open(); err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	if err := r.device.SetSampleRate(r.opts.SampleRate); err != nil {
		return err
	}
	if err := r.device.SetBandwidth(r.opts.SampleRate * 3 / 4); err != nil {
		return err
	}
	if err := r.device.SetFrequency(uint64(r.opts.CenterFreq)); err != nil {
		return err
	}
	if err := r.device.SetLNAGain(r.opts.Gain); err != nil {
		return err
	}
	if err := r.device.SetAmpEnable(r.opts.AmpEnabled); err != nil {
		return err
	}
	return r.device.SetAntennaEnable(r.opts.AntennaPower)
}

// processStream is the batch loop: one raw buffer in, one set of audio
// frames and metrics out.
func (r *Receiver) processStream(stream device.BufferStream) error {
	seqNum := 0
	for {
		raw, err := stream.Next(r.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("device stream: %w", err)
		}

		batch := types.RawCS8{
			Data:       raw,
			SampleRate: r.opts.SampleRate,
			CenterFreq: r.opts.CenterFreq,
		}.ToBatch()
		seqNum++
		batch.SeqNum = seqNum

		res, err := r.chain.Process(batch, r.registry.Snapshot())
		if err != nil {
			return err
		}

		r.recordMetrics(res.Metrics)
		r.dispatchAudio(res.Frames)
	}
}

// dispatchAudio resamples every frame to the common output rate, mixes the
// audio-enabled streams into the monitor frame, and hands everything to the
// outputs. Slow outputs are skipped rather than allowed to stall the batch
// loop.
func (r *Receiver) dispatchAudio(frames []*types.AudioFrame) {
	if len(frames) == 0 {
		return
	}

	contributors := make([][]float32, 0, len(frames))
	ts := frames[0].Timestamp
	for _, f := range frames {
		f.Data = r.resampleFor(f).Process(f.Data)
		f.SampleRate = r.opts.AudioOutputRate
		if len(f.Data) > 0 {
			contributors = append(contributors, f.Data)
			r.send(f)
		}
	}

	if mixed := audiomix.Mix(contributors); mixed != nil {
		r.send(&types.AudioFrame{
			VFOID:      MixedStreamID,
			Data:       mixed,
			SampleRate: r.opts.AudioOutputRate,
			Timestamp:  ts,
		})
	}
}

func (r *Receiver) send(f *types.AudioFrame) {
	skipped := 0
	for _, output := range r.opts.AudioOutputs {
		select {
		case output.Receive() <- f:
			// We will not wait on blocked channels.
		default:
			skipped++
		}
	}
	go r.writeAPI.WritePoint(influxdb2.NewPoint("audio.output",
		map[string]string{
			"vfo": strconv.Itoa(f.VFOID),
		},
		map[string]interface{}{
			"samples_written": len(f.Data),
			"bytes_written":   len(f.Data) * 4,
			"skipped_outputs": skipped,
		}, time.Now()))
}

// resampleFor returns the VFO's resampler, rebuilding it when the native
// rate changed (a bandwidth edit changes the decimation, and a strategy
// switch changes the channel rate).
func (r *Receiver) resampleFor(f *types.AudioFrame) *resample.Linear {
	rs, ok := r.resamplers[f.VFOID]
	if !ok || rs.InputRate() != f.SampleRate {
		rs = resample.NewLinear(f.SampleRate, r.opts.AudioOutputRate)
		r.resamplers[f.VFOID] = rs
	}
	return rs
}

func (r *Receiver) recordMetrics(metrics []types.VfoMetrics) {
	r.metricsMu.Lock()
	for _, m := range metrics {
		r.lastMetrics[m.VFOID] = m
	}
	r.metricsMu.Unlock()

	for _, m := range metrics {
		m := m
		go r.writeAPI.WritePoint(influxdb2.NewPoint("vfo.batch",
			map[string]string{
				"vfo": strconv.Itoa(m.VFOID),
			},
			map[string]interface{}{
				"rssi_db":           m.RSSI,
				"samples_processed": m.SamplesProcessed,
				"processing_us":     m.ProcessingTime.Microseconds(),
			}, m.Timestamp))
	}
}
