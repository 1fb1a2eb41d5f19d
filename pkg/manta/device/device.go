package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// BufferStream is a lazy sequence of raw interleaved IQ buffers from a
// receiving device. Next blocks until a buffer is available. It returns io.EOF
// after an intentional stop and the underlying transport error if the stream
// died for any other reason.
type BufferStream interface {
	Next(ctx context.Context) ([]byte, error)
}

// Device is one attached (or simulated) receiver. Setters validate against
// Capabilities before touching hardware. StartReceive puts the device into
// receive mode and returns the buffer stream; StopReceive is cooperative and
// idempotent.
type Device interface {
	Open() error
	Close() error

	SetFrequency(hz uint64) error
	SetSampleRate(hz int) error
	SetBandwidth(hz int) error
	SetLNAGain(db int) error
	SetAmpEnable(on bool) error
	SetAntennaEnable(on bool) error

	StartReceive(ctx context.Context) (BufferStream, error)
	StopReceive() error

	Capabilities() Capabilities
	BufferStats() PoolStats
}

// Factory constructs an unopened Device.
type Factory func() (Device, error)

// Registry maps device family names to factories. It is constructed in main
// and passed to whatever needs to open hardware; there is no ambient default
// device.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// New constructs the named device without opening it.
func (r *Registry) New(name string) (Device, error) {
	r.mu.Lock()
	f, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown device %q (have %v)", name, r.Names())
	}
	return f()
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}
