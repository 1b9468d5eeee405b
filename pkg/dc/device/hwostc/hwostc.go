// Package hwostc implements the HW OSTC single-command raw dump:
// one 'a' command byte gets back the device's entire
// memory image with no framing, checksum, or handshake at all — the
// simplest state machine in the family. Grounded on libdivecomputer's
// hw_ostc device_dump function.
package hwostc

import (
	"context"

	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

const (
	cmdDump byte = 'a'

	memorySize      = 0x10000
	fingerprintSize = 5
)

// Device drives an HW OSTC dive computer over a serial link.
type Device struct {
	*device.Base
}

var _ device.Device = (*Device)(nil)

// Open configures the fixed 115200-baud link; HW OSTC has no
// handshake to validate.
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (*Device, error) {
	if err := t.Configure(transport.Config{Baud: 115200, DataBits: 8}); err != nil {
		return nil, err
	}
	return &Device{Base: device.NewBase(d, t, fingerprintSize)}, nil
}

func (d *Device) Read(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "hwostc: no addressed memory window")
}

func (d *Device) Write(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "hwostc: no addressed memory window")
}

// Dump sends the single 'a' command and reads back the whole memory
// image with no framing.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	if err := d.Cancelled(); err != nil {
		return nil, err
	}
	tp := d.Transport()
	if _, err := tp.Write(ctx, []byte{cmdDump}); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}

	buf := make([]byte, memorySize)
	n, err := readFull(ctx, tp, buf)
	if err != nil {
		d.RecordIO(n, err)
		return nil, err
	}
	d.RecordIO(n, nil)
	d.EmitProgress(uint32(n), uint32(len(buf)))
	return buf[:n], nil
}

func readFull(ctx context.Context, tp transport.Transport, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := tp.Read(ctx, buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, status.New(status.Timeout, "hwostc: short read")
		}
		total += n
	}
	return total, nil
}

// Foreach exposes the single raw dump as one blob; HW OSTC has no
// ring-buffer marker scheme, so per-dive slicing happens in the
// parser layer.
func (d *Device) Foreach(ctx context.Context, cb device.DiveCallback) error {
	data, err := d.Dump(ctx)
	if err != nil {
		return err
	}
	fp := d.Fingerprint()
	if len(fp) > 0 && len(data) >= fingerprintSize {
		match := true
		for i := 0; i < fingerprintSize; i++ {
			if data[i] != fp[i] {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	n := fingerprintSize
	if n > len(data) {
		n = len(data)
	}
	cb(data, data[:n])
	return nil
}

func (d *Device) Timesync(ctx context.Context, ticks int64) error {
	return status.New(status.Unsupported, "hwostc: timesync not implemented")
}

func (d *Device) Version() (string, error) {
	return "HW OSTC", nil
}

func (d *Device) Close() error {
	d.MarkClosed()
	return nil
}
