package hackrf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/gousb"

	"github.com/manta-sdr/manta/pkg/manta/device"
)

const (
	usbVendorID    = 0x1d50
	usbProductID   = 0x6089
	bulkInEndpoint = 1
)

// usbTransport is the libusb-backed Transport for real hardware.
type usbTransport struct {
	ctx      *gousb.Context
	dev      *gousb.Device
	intf     *gousb.Interface
	intfDone func()
	ep       *gousb.InEndpoint

	mu         sync.Mutex
	readCtx    context.Context
	readCancel context.CancelFunc
}

// NewUSBTransport finds the first matching board on the bus. The interface is
// not claimed until the Device opens.
func NewUSBTransport() (Transport, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(usbVendorID, usbProductID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usb open: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: no board on bus", device.ErrDeviceUnavailable)
	}
	dev.SetAutoDetach(true)
	return &usbTransport{ctx: ctx, dev: dev}, nil
}

func (t *usbTransport) Claim() error {
	intf, done, err := t.dev.DefaultInterface()
	if err != nil {
		return err
	}
	ep, err := intf.InEndpoint(bulkInEndpoint)
	if err != nil {
		done()
		return err
	}
	t.intf, t.intfDone, t.ep = intf, done, ep
	t.mu.Lock()
	t.readCtx, t.readCancel = context.WithCancel(context.Background())
	t.mu.Unlock()
	return nil
}

func (t *usbTransport) Release() error {
	t.CancelBulk()
	if t.intfDone != nil {
		t.intfDone()
		t.intf, t.intfDone, t.ep = nil, nil, nil
	}
	return nil
}

func (t *usbTransport) Close() error {
	var err error
	if t.dev != nil {
		err = t.dev.Close()
	}
	if t.ctx != nil {
		if cerr := t.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (t *usbTransport) ControlOut(request uint8, value, index uint16, data []byte) error {
	rType := uint8(gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice)
	_, err := t.dev.Control(rType, request, value, index, data)
	if err == nil {
		return nil
	}
	// A stalled or busy control pipe is how this firmware signals that it is
	// still applying the previous register write.
	if errors.Is(err, gousb.ErrorBusy) || errors.Is(err, gousb.ErrorPipe) {
		return fmt.Errorf("%w: %v", device.ErrTransientBusy, err)
	}
	return err
}

func (t *usbTransport) BulkIn(buf []byte) (int, error) {
	t.mu.Lock()
	ep, ctx := t.ep, t.readCtx
	t.mu.Unlock()
	if ep == nil {
		return 0, fmt.Errorf("interface not claimed")
	}
	return ep.ReadContext(ctx, buf)
}

// CancelBulk aborts any pending bulk read and arms a fresh context so a later
// StartReceive can stream again.
func (t *usbTransport) CancelBulk() {
	t.mu.Lock()
	cancel := t.readCancel
	t.readCtx, t.readCancel = context.WithCancel(context.Background())
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
