// Package file replays a raw CS8 capture as a Device, for offline work
// against recorded spectrum.
package file

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/manta-sdr/manta/pkg/manta/device"
)

const defaultReadSize = 262144

type Device struct {
	path        string
	readSize    int
	timeBetween time.Duration
	pool        *device.SampleBufferPool

	mu         sync.Mutex
	f          *os.File
	sampleRate int
	freq       uint64
	receiving  bool
	stopCh     chan struct{}
	done       chan struct{}
}

func New(path string, sampleRate int, timeBetween time.Duration) *Device {
	return &Device{
		path:        path,
		readSize:    defaultReadSize,
		timeBetween: timeBetween,
		sampleRate:  sampleRate,
		pool:        device.NewSampleBufferPool(device.DefaultPoolBudget),
	}
}

func (d *Device) Capabilities() device.Capabilities {
	return device.Capabilities{
		FreqMin:       0,
		FreqMax:       1<<64 - 1,
		LNAGainStep:   1,
		MaxSampleRate: 20e6,
	}
}

func (d *Device) BufferStats() device.PoolStats { return d.pool.Stats() }

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f != nil {
		return nil
	}
	f, err := os.Open(d.path)
	if err != nil {
		return errors.Join(device.ErrDeviceUnavailable, err)
	}
	d.f = f
	return nil
}

func (d *Device) Close() error {
	d.StopReceive()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// Playback has no hardware registers; setters record state only.
func (d *Device) SetFrequency(hz uint64) error {
	d.mu.Lock()
	d.freq = hz
	d.mu.Unlock()
	return nil
}

func (d *Device) SetSampleRate(hz int) error {
	d.mu.Lock()
	d.sampleRate = hz
	d.mu.Unlock()
	return nil
}

func (d *Device) SetBandwidth(int) error      { return nil }
func (d *Device) SetLNAGain(int) error        { return nil }
func (d *Device) SetAmpEnable(bool) error     { return nil }
func (d *Device) SetAntennaEnable(bool) error { return nil }

// StartReceive restarts playback from the top of the capture.
func (d *Device) StartReceive(ctx context.Context) (device.BufferStream, error) {
	d.mu.Lock()
	if d.f == nil {
		d.mu.Unlock()
		return nil, errors.New("device not open")
	}
	if d.receiving {
		d.mu.Unlock()
		return nil, errors.New("already receiving")
	}
	if _, err := d.f.Seek(0, io.SeekStart); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.receiving = true
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	stopCh, done := d.stopCh, d.done
	d.mu.Unlock()

	s := device.NewStream(d.pool)
	go d.playLoop(ctx, s, stopCh, done)
	return s, nil
}

func (d *Device) StopReceive() error {
	d.mu.Lock()
	if !d.receiving {
		d.mu.Unlock()
		return nil
	}
	stopCh, done := d.stopCh, d.done
	d.receiving = false
	d.mu.Unlock()
	close(stopCh)
	<-done
	return nil
}

func (d *Device) playLoop(ctx context.Context, s *device.Stream, stopCh, done chan struct{}) {
	defer close(done)
	var fatal error
	defer func() { s.Finish(fatal) }()
	tick := time.NewTicker(d.timeBetween)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-tick.C:
			buf := make([]byte, d.readSize)
			n, err := d.f.Read(buf)
			if n > 0 {
				s.Push(buf[:n])
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					fatal = err
				}
				return
			}
		}
	}
}
