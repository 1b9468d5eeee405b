// Package usbtransport implements a USB-kind transport.Transport over
// bulk endpoints, grounded on internal/driver/device/usb_device.go's
// open chain (context → OpenDeviceWithVIDPID → Config → Interface →
// {In,Out}Endpoint, with the same claim/release-on-defer discipline).
// Where that device was a single fixed Bitmain ASIC, Open here takes
// the vendor/product IDs and endpoint addresses as parameters so any
// dive computer's USB descriptor can be targeted.
package usbtransport

import (
	"context"
	"time"

	"github.com/google/gousb"

	"divecomputer/pkg/dc/ioctlcodec"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

// Endpoints identifies the bulk IN/OUT endpoint addresses and the
// interface/alt-setting to claim: unlike a single fixed-model device,
// these vary per dive-computer USB descriptor.
type Endpoints struct {
	ConfigNum  int
	Interface  int
	AltSetting int
	In         int
	Out        int
}

// Transport is a USB bulk-endpoint transport.Transport.
type Transport struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epIn   *gousb.InEndpoint
	epOut  *gousb.OutEndpoint

	timeout time.Duration
}

// Open claims the USB device identified by vid/pid and the given
// endpoints, with unwind-on-error at each claim step.
func Open(vid, pid gousb.ID, ep Endpoints) (*Transport, error) {
	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, status.Wrap(status.IO, "usb: open device", err)
	}
	if device == nil {
		ctx.Close()
		return nil, status.New(status.NoDevice, "usb: device not found")
	}

	config, err := device.Config(ep.ConfigNum)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, status.Wrap(status.IO, "usb: select config", err)
	}

	intf, err := config.Interface(ep.Interface, ep.AltSetting)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, status.Wrap(status.NoAccess, "usb: claim interface", err)
	}

	epIn, err := intf.InEndpoint(ep.In)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, status.Wrap(status.IO, "usb: open in endpoint", err)
	}

	epOut, err := intf.OutEndpoint(ep.Out)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, status.Wrap(status.IO, "usb: open out endpoint", err)
	}

	return &Transport{
		ctx: ctx, device: device, config: config, intf: intf,
		epIn: epIn, epOut: epOut,
		timeout: -1,
	}, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindUSB }

// SetTimeout stores the read deadline; -1 is mapped to a generous
// fixed ceiling since gousb requires a concrete context deadline.
func (t *Transport) SetTimeout(ms int) error {
	if ms < 0 {
		t.timeout = 24 * time.Hour
		return nil
	}
	t.timeout = time.Duration(ms) * time.Millisecond
	return nil
}

func (t *Transport) Configure(transport.Config) error {
	return status.New(status.Unsupported, "usb: configure is serial-only")
}

func (t *Transport) SetBreak(bool) error { return status.New(status.Unsupported, "usb: set_break") }
func (t *Transport) SetDTR(bool) error   { return status.New(status.Unsupported, "usb: set_dtr") }
func (t *Transport) SetRTS(bool) error   { return status.New(status.Unsupported, "usb: set_rts") }

func (t *Transport) GetLines() (transport.Line, error) {
	return 0, status.New(status.Unsupported, "usb: get_lines")
}

func (t *Transport) GetAvailable() (int, error) {
	return 0, status.New(status.Unsupported, "usb: get_available has no USB equivalent")
}

func (t *Transport) Poll(ms int) (bool, error) {
	// No non-blocking peek on a USB bulk endpoint; approximate by a
	// zero-length read attempt is unsafe, so report readiness
	// optimistically and let Read enforce the real timeout.
	return true, nil
}

func (t *Transport) Read(ctx context.Context, buf []byte) (int, error) {
	rctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	n, err := t.epIn.ReadContext(rctx, buf)
	if err != nil {
		return n, status.Wrap(status.IO, "usb: read", err)
	}
	return n, nil
}

func (t *Transport) Write(ctx context.Context, buf []byte) (int, error) {
	wctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	n, err := t.epOut.WriteContext(wctx, buf)
	if err != nil {
		return n, status.Wrap(status.IO, "usb: write", err)
	}
	if n != len(buf) {
		return n, status.New(status.IO, "usb: short write")
	}
	return n, nil
}

// IOCtl serves the ('u', 0, variable) USB control-transfer request
// from ioctlcodec: a raw control transfer on endpoint 0.
func (t *Transport) IOCtl(request uint32, buf []byte) (int, error) {
	req := ioctlcodec.Decode(request)
	if req.Type != ioctlcodec.NamespaceUSB {
		return 0, status.New(status.InvalidArgs, "usb: ioctl namespace mismatch")
	}
	if len(buf) < 8 {
		return 0, status.New(status.InvalidArgs, "usb: control transfer header truncated")
	}
	bmRequestType := buf[0]
	bRequest := buf[1]
	wValue := uint16(buf[2]) | uint16(buf[3])<<8
	wIndex := uint16(buf[4]) | uint16(buf[5])<<8
	data := buf[8:]

	n, err := t.device.Control(bmRequestType, bRequest, wValue, wIndex, data)
	if err != nil {
		return 0, status.Wrap(status.IO, "usb: control transfer", err)
	}
	return n, nil
}

func (t *Transport) Flush() error { return nil }

func (t *Transport) Purge(transport.Direction) error {
	// gousb exposes no explicit buffer-discard primitive; bulk
	// endpoints have no host-side queue to purge.
	return nil
}

func (t *Transport) Sleep(ctx context.Context, ms int) error {
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return status.New(status.Cancelled, "usb: sleep cancelled")
	}
}

// Close unwinds the claim chain in reverse: interface, then config,
// then device, then context.
func (t *Transport) Close() error {
	var firstErr error
	if t.intf != nil {
		t.intf.Close()
	}
	if t.config != nil {
		if err := t.config.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.device != nil {
		if err := t.device.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.ctx != nil {
		if err := t.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return status.Wrap(status.IO, "usb: close", firstErr)
	}
	return nil
}
