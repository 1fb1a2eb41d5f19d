// Package rtlsdr exposes RTL2832U dongles behind the Device interface as a
// second receiver family. The librtlsdr wrapper already speaks the dongle's
// command protocol, so this adapter only maps the capability surface and
// bridges the async read callback into a buffer stream.
package rtlsdr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gsdr "github.com/jpoirier/gortlsdr"

	"github.com/manta-sdr/manta/pkg/manta/device"
)

const maxSampleRate = 2.4e6

var caps = device.Capabilities{
	FreqMin:       24e6,
	FreqMax:       1766e6,
	SampleRates:   []int{250000, 1024000, 1800000, 1920000, 2048000, 2400000},
	LNAGainMin:    0,
	LNAGainMax:    49,
	LNAGainStep:   1,
	HasAmp:        false,
	MaxSampleRate: maxSampleRate,
}

type Device struct {
	index int
	pool  *device.SampleBufferPool

	mu        sync.Mutex
	dev       *gsdr.Context
	receiving bool
	done      chan struct{}
}

func New(index int) *Device {
	return &Device{
		index: index,
		pool:  device.NewSampleBufferPool(device.DefaultPoolBudget),
	}
}

func (d *Device) Capabilities() device.Capabilities { return caps }
func (d *Device) BufferStats() device.PoolStats     { return d.pool.Stats() }

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		return nil
	}
	dev, err := gsdr.Open(d.index)
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrDeviceUnavailable, err)
	}
	d.dev = dev
	return nil
}

func (d *Device) Close() error {
	d.StopReceive()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	return err
}

func (d *Device) withDev(fn func(*gsdr.Context) error) error {
	d.mu.Lock()
	dev := d.dev
	d.mu.Unlock()
	if dev == nil {
		return errors.New("device not open")
	}
	return fn(dev)
}

func (d *Device) SetFrequency(hz uint64) error {
	hz = caps.ClampFrequency(hz)
	return d.withDev(func(dev *gsdr.Context) error { return dev.SetCenterFreq(int(hz)) })
}

func (d *Device) SetSampleRate(hz int) error {
	if hz <= 0 || hz > caps.MaxSampleRate {
		return fmt.Errorf("sample rate %d outside (0, %d]", hz, caps.MaxSampleRate)
	}
	return d.withDev(func(dev *gsdr.Context) error { return dev.SetSampleRate(hz) })
}

func (d *Device) SetBandwidth(hz int) error {
	return d.withDev(func(dev *gsdr.Context) error { return dev.SetTunerBw(hz) })
}

func (d *Device) SetLNAGain(db int) error {
	db = caps.ClampLNAGain(db)
	return d.withDev(func(dev *gsdr.Context) error {
		if err := dev.SetTunerGainMode(true); err != nil {
			return err
		}
		return dev.SetTunerGain(db * 10) // librtlsdr takes tenths of dB
	})
}

// The dongle has no switchable amp or antenna port power.
func (d *Device) SetAmpEnable(bool) error     { return nil }
func (d *Device) SetAntennaEnable(bool) error { return nil }

func (d *Device) StartReceive(ctx context.Context) (device.BufferStream, error) {
	d.mu.Lock()
	dev := d.dev
	if dev == nil {
		d.mu.Unlock()
		return nil, errors.New("device not open")
	}
	if d.receiving {
		d.mu.Unlock()
		return nil, errors.New("already receiving")
	}
	d.receiving = true
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	if err := dev.ResetBuffer(); err != nil {
		d.mu.Lock()
		d.receiving = false
		d.mu.Unlock()
		return nil, err
	}

	s := device.NewStream(d.pool)
	go func() {
		defer close(done)
		err := dev.ReadAsync(func(buf []byte) {
			data := make([]byte, len(buf))
			copy(data, buf)
			s.Push(data)
		}, nil, 0, 0)

		d.mu.Lock()
		stopped := !d.receiving
		d.mu.Unlock()
		if stopped {
			err = nil
		}
		s.Finish(err)
	}()
	return s, nil
}

func (d *Device) StopReceive() error {
	d.mu.Lock()
	if !d.receiving {
		d.mu.Unlock()
		return nil
	}
	d.receiving = false
	dev, done := d.dev, d.done
	d.mu.Unlock()

	if err := dev.CancelAsync(); err != nil {
		return err
	}
	<-done
	return nil
}
