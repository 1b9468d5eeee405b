// Package maresnemo implements the Mares Nemo/Puck dual-redundant-
// packet dump: after a run of 0xEE preamble bytes, the
// logger sends every packet twice, each half carrying its own
// mod-256 checksum; a mismatch between the two halves (with both
// individually valid) is a protocol error, and either half alone
// (with the other invalid) is accepted with a Warning-class log.
// Grounded on libdivecomputer's mares_nemo device_open/device_dump
// functions.
package maresnemo

import (
	"bytes"
	"context"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/dclog"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

const (
	preambleByte      byte = 0xEE
	preambleRunLength      = 20

	packetSize = 32
	memorySize = 16384

	fingerprintSize = 5
)

// Device drives a Mares Nemo/Puck logger over a serial link.
type Device struct {
	*device.Base
}

var _ device.Device = (*Device)(nil)

// Open configures the fixed 9600-baud link and raises DTR/RTS, per
// "both handshake lines driven high before the dump."
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (*Device, error) {
	if err := t.Configure(transport.Config{Baud: 9600, DataBits: 8}); err != nil {
		return nil, err
	}
	if err := t.SetDTR(true); err != nil {
		return nil, err
	}
	if err := t.SetRTS(true); err != nil {
		return nil, err
	}
	return &Device{Base: device.NewBase(d, t, fingerprintSize)}, nil
}

func (d *Device) Read(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "maresnemo: no addressed memory window")
}

func (d *Device) Write(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "maresnemo: no addressed memory window")
}

func readByte(ctx context.Context, tp transport.Transport) (byte, error) {
	var b [1]byte
	if _, err := readFull(ctx, tp, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readFull(ctx context.Context, tp transport.Transport, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := tp.Read(ctx, buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, status.New(status.Timeout, "maresnemo: short read")
		}
		total += n
	}
	return total, nil
}

// waitPreamble discards bytes until preambleRunLength consecutive
// 0xEE bytes have been seen, "wake" sequence.
func (d *Device) waitPreamble(ctx context.Context) error {
	run := 0
	for run < preambleRunLength {
		if err := d.Cancelled(); err != nil {
			return err
		}
		b, err := readByte(ctx, d.Transport())
		if err != nil {
			return err
		}
		if b == preambleByte {
			run++
		} else {
			run = 0
		}
	}
	return nil
}

// readHalf reads one (packetSize+1)-byte packet half and validates
// its trailing mod-256 checksum, returning the payload and whether it
// validated.
func readHalf(ctx context.Context, tp transport.Transport) (payload []byte, valid bool, err error) {
	buf := make([]byte, packetSize+1)
	if _, err := readFull(ctx, tp, buf); err != nil {
		return nil, false, err
	}
	body, trailer := buf[:packetSize], buf[packetSize]
	return body, checksum.AddUint8(body, 0) == trailer, nil
}

// Dump waits for the wake preamble, then reads memorySize/packetSize
// dual-redundant packets, "both-valid-but-differ
// is Protocol; exactly one valid is accepted with a Warning."
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	if err := d.waitPreamble(ctx); err != nil {
		return nil, err
	}

	tp := d.Transport()
	out := make([]byte, 0, memorySize)
	for len(out) < memorySize {
		if err := d.Cancelled(); err != nil {
			return nil, err
		}

		a, aok, err := readHalf(ctx, tp)
		if err != nil {
			return nil, err
		}
		b, bok, err := readHalf(ctx, tp)
		if err != nil {
			return nil, err
		}

		switch {
		case aok && bok:
			if !bytes.Equal(a, b) {
				return nil, status.New(status.Protocol, "maresnemo: redundant packet halves disagree")
			}
			out = append(out, a...)
		case aok:
			dclog.Warnf("maresnemo: second packet half failed checksum, using first")
			out = append(out, a...)
		case bok:
			dclog.Warnf("maresnemo: first packet half failed checksum, using second")
			out = append(out, b...)
		default:
			return nil, status.New(status.Protocol, "maresnemo: both packet halves failed checksum")
		}

		d.RecordIO(2*(packetSize+1), nil)
		d.EmitProgress(uint32(len(out)), uint32(memorySize))
	}
	return out, nil
}

func (d *Device) Foreach(ctx context.Context, cb device.DiveCallback) error {
	data, err := d.Dump(ctx)
	if err != nil {
		return err
	}
	// Mares Nemo logs a flat packed-sample table rather than a ring
	// buffer with per-dive markers; the whole dump is exposed as one
	// blob and per-dive slicing happens in the parser layer.
	fp := d.Fingerprint()
	if len(fp) > 0 && len(data) >= fingerprintSize && bytes.Equal(data[:fingerprintSize], fp) {
		return nil
	}
	cb(data, data[:min(fingerprintSize, len(data))])
	return nil
}

func (d *Device) Timesync(ctx context.Context, ticks int64) error {
	return status.New(status.Unsupported, "maresnemo: clock is read-only")
}

func (d *Device) Version() (string, error) {
	return "Mares Nemo", nil
}

func (d *Device) Close() error {
	d.MarkClosed()
	return nil
}
