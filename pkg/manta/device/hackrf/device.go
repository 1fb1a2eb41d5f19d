package hackrf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/manta-sdr/manta/pkg/manta/device"
)

// Transport is the host USB surface the protocol adapter drives: vendor
// control writes plus the bulk IQ endpoint. Implementations must fail a
// pending BulkIn promptly when CancelBulk or Release is called.
type Transport interface {
	Claim() error
	Release() error
	Close() error
	ControlOut(request uint8, value, index uint16, data []byte) error
	BulkIn(buf []byte) (int, error)
	CancelBulk()
}

const (
	maxSampleRate = 20e6
	bulkReadSize  = 262144

	writeAttempts      = 3
	defaultRetryDelay  = 100 * time.Millisecond
	defaultSettleDelay = 50 * time.Millisecond
)

var caps = device.Capabilities{
	FreqMin:     1e6,
	FreqMax:     6e9,
	SampleRates: []int{2e6, 4e6, 8e6, 10e6, 12.5e6, 16e6, 20e6},
	Bandwidths: []int{
		1750000, 2500000, 3500000, 5000000, 5500000, 6000000, 7000000,
		8000000, 9000000, 10000000, 12000000, 14000000, 15000000,
		20000000, 24000000, 28000000,
	},
	LNAGainMin:    0,
	LNAGainMax:    40,
	LNAGainStep:   8,
	HasAmp:        true,
	MaxSampleRate: maxSampleRate,
}

type devState int

const (
	stateClosed devState = iota
	stateIdle
	stateReceiving
	stateClosing
)

// Device drives one board through the vendor command protocol. Control writes
// are strictly serialized: this family's firmware corrupts register state if
// writes from concurrent callers interleave.
type Device struct {
	transport Transport
	log       zerolog.Logger
	pool      *device.SampleBufferPool

	retryDelay  time.Duration
	settleDelay time.Duration

	cmdMu sync.Mutex // one control write at a time

	mu      sync.Mutex
	state   devState
	closing chan struct{}
	rx      *rxSession

	freq       uint64
	sampleRate int
	bandwidth  int
	lnaGain    int
	amp        bool
	antenna    bool
}

type Option func(*Device)

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Device) { d.log = logger }
}

func WithBufferBudget(bytes int) Option {
	return func(d *Device) { d.pool = device.NewSampleBufferPool(bytes) }
}

func New(t Transport, opts ...Option) *Device {
	d := &Device{
		transport:   t,
		log:         zlog.Logger,
		pool:        device.NewSampleBufferPool(device.DefaultPoolBudget),
		retryDelay:  defaultRetryDelay,
		settleDelay: defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With().Str("device", "hackrf").Logger()
	return d
}

func (d *Device) Capabilities() device.Capabilities { return caps }
func (d *Device) BufferStats() device.PoolStats     { return d.pool.Stats() }

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateClosed {
		return nil
	}
	if err := d.transport.Claim(); err != nil {
		return fmt.Errorf("%w: %v", device.ErrDeviceUnavailable, err)
	}
	d.closing = make(chan struct{})
	d.state = stateIdle
	d.log.Info().Msg("device opened")
	return nil
}

// Close is idempotent. Once it begins, in-flight retry sequences abort with
// ErrDeviceClosing instead of completing their remaining attempts.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.state == stateClosed {
		d.mu.Unlock()
		return nil
	}
	if d.state != stateClosing {
		d.state = stateClosing
		close(d.closing)
	}
	rx := d.rx
	d.mu.Unlock()

	if rx != nil {
		rx.stop(d.transport)
		<-rx.stream.Done()
	}

	err := d.transport.Release()
	cerr := d.transport.Close()
	if err == nil {
		err = cerr
	}

	d.mu.Lock()
	d.state = stateClosed
	d.rx = nil
	d.mu.Unlock()
	d.log.Info().Msg("device closed")
	return err
}

// write performs one serialized control write with retry on the transient
// busy class: up to 3 attempts, fixed inter-attempt delay, and a settling
// delay after success so the firmware can apply the register.
func (d *Device) write(request uint8, value, index uint16, data []byte) error {
	d.mu.Lock()
	switch d.state {
	case stateClosed:
		d.mu.Unlock()
		return fmt.Errorf("device not open")
	case stateClosing:
		d.mu.Unlock()
		return device.ErrDeviceClosing
	}
	closing := d.closing
	d.mu.Unlock()

	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		select {
		case <-closing:
			return device.ErrDeviceClosing
		default:
		}
		if attempt > 0 {
			select {
			case <-time.After(d.retryDelay):
			case <-closing:
				return device.ErrDeviceClosing
			}
		}
		err := d.transport.ControlOut(request, value, index, data)
		if err == nil {
			select {
			case <-time.After(d.settleDelay):
			case <-closing:
			}
			return nil
		}
		lastErr = err
		if !device.IsTransient(err) {
			return fmt.Errorf("control request %d: %w", request, err)
		}
		d.log.Debug().Uint8("request", request).Int("attempt", attempt+1).Msg("transient busy, retrying")
	}
	return fmt.Errorf("control request %d exhausted retries: %w", request, lastErr)
}

func (d *Device) SetFrequency(hz uint64) error {
	hz = caps.ClampFrequency(hz)
	if err := d.write(reqSetFreq, 0, 0, encodeFreq(hz)); err != nil {
		return err
	}
	d.mu.Lock()
	d.freq = hz
	d.mu.Unlock()
	return nil
}

func (d *Device) SetSampleRate(hz int) error {
	if hz <= 0 || hz > caps.MaxSampleRate {
		return fmt.Errorf("sample rate %d outside (0, %d]", hz, caps.MaxSampleRate)
	}
	if err := d.write(reqSetSampleRate, 0, 0, encodeSampleRate(hz)); err != nil {
		return err
	}
	d.mu.Lock()
	d.sampleRate = hz
	d.mu.Unlock()
	return nil
}

func (d *Device) SetBandwidth(hz int) error {
	bw := caps.NearestBandwidth(hz)
	value, index := splitBandwidth(bw)
	if err := d.write(reqSetBasebandFilterBandwidth, value, index, nil); err != nil {
		return err
	}
	d.mu.Lock()
	d.bandwidth = bw
	d.mu.Unlock()
	return nil
}

func (d *Device) SetLNAGain(db int) error {
	db = caps.ClampLNAGain(db)
	if err := d.write(reqSetLNAGain, 0, uint16(db), nil); err != nil {
		return err
	}
	d.mu.Lock()
	d.lnaGain = db
	d.mu.Unlock()
	return nil
}

func (d *Device) SetAmpEnable(on bool) error {
	if err := d.write(reqAmpEnable, 0, 0, boolByte(on)); err != nil {
		return err
	}
	d.mu.Lock()
	d.amp = on
	d.mu.Unlock()
	return nil
}

func (d *Device) SetAntennaEnable(on bool) error {
	if err := d.write(reqAntennaEnable, 0, 0, boolByte(on)); err != nil {
		return err
	}
	d.mu.Lock()
	d.antenna = on
	d.mu.Unlock()
	return nil
}

// StartReceive switches the transceiver into RECEIVE and returns the buffer
// stream. The stream is lazy and runs until StopReceive, Close, or a fatal
// bulk error; stopping and starting again yields a fresh stream.
func (d *Device) StartReceive(ctx context.Context) (device.BufferStream, error) {
	d.mu.Lock()
	switch d.state {
	case stateClosed:
		d.mu.Unlock()
		return nil, fmt.Errorf("device not open")
	case stateClosing:
		d.mu.Unlock()
		return nil, device.ErrDeviceClosing
	case stateReceiving:
		d.mu.Unlock()
		return nil, fmt.Errorf("already receiving")
	}
	d.mu.Unlock()

	if err := d.write(reqSetTransceiverMode, transceiverModeReceive, 0, nil); err != nil {
		return nil, err
	}

	rx := &rxSession{
		stream: device.NewStream(d.pool),
		stopCh: make(chan struct{}),
	}

	d.mu.Lock()
	d.state = stateReceiving
	d.rx = rx
	d.mu.Unlock()

	go d.receiveLoop(ctx, rx)
	return rx.stream, nil
}

func (d *Device) StopReceive() error {
	d.mu.Lock()
	rx := d.rx
	d.mu.Unlock()
	if rx == nil {
		return nil
	}
	rx.stop(d.transport)
	<-rx.stream.Done()
	d.mu.Lock()
	if d.state == stateReceiving {
		d.state = stateIdle
	}
	d.rx = nil
	d.mu.Unlock()
	return nil
}

func (d *Device) receiveLoop(ctx context.Context, rx *rxSession) {
	var fatal error

loop:
	for {
		select {
		case <-rx.stopCh:
			break loop
		case <-ctx.Done():
			break loop
		default:
		}

		buf := make([]byte, bulkReadSize)
		n, err := d.transport.BulkIn(buf)
		if err != nil {
			select {
			case <-rx.stopCh:
				// intentional abort, not an error
			case <-ctx.Done():
			default:
				d.log.Error().Err(err).Msg("bulk transfer failed, halting receive")
				fatal = err
			}
			break loop
		}
		if n > 0 {
			rx.stream.Push(buf[:n])
		}
	}

	rx.stream.Finish(fatal)

	// Return the transceiver to OFF and re-assert the UI enable register.
	// During Close these fail with ErrDeviceClosing, which is fine.
	if err := d.write(reqSetTransceiverMode, transceiverModeOff, 0, nil); err != nil {
		d.log.Debug().Err(err).Msg("transceiver off on stop")
	}
	if err := d.write(reqSetUIEnable, 1, 0, nil); err != nil {
		d.log.Debug().Err(err).Msg("ui enable on stop")
	}

	d.mu.Lock()
	if d.state == stateReceiving {
		d.state = stateIdle
	}
	d.mu.Unlock()
}

// rxSession is one run of the receive loop plus its consumer-facing stream.
type rxSession struct {
	stream   *device.Stream
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (rx *rxSession) stop(t Transport) {
	rx.stopOnce.Do(func() {
		close(rx.stopCh)
		t.CancelBulk()
	})
}
