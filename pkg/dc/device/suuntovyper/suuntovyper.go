// Package suuntovyper implements the Suunto Vyper/Spyder single-wire
// TTL state machine: RTS-switched echo suppression around every
// packet, an unlock packet before memory writes, and XOR-checksummed
// envelopes chunked to packetSize bytes. Grounded on libdivecomputer's
// suunto_vyper send/receive pairing (the vyper talks over one
// half-duplex wire and echoes its own TX) and on
// pkg/dc/transport/usbtransport's claim/release-around-transfer
// discipline, adapted to RTS-toggle/drain-around-transfer here.
package suuntovyper

import (
	"context"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/ringbuffer"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

const (
	cmdRead  = 0x05
	cmdWrite = 0x06
	cmdInit  = 0x08

	packetSize      = 32
	fingerprintSize = 5

	ringBegin = 0x01F0
	ringEnd   = 0x7FE0
	eopOffset = 0x0017
	startByte = 0x80
	peek      = 1
)

// unlockPacket must be sent once before the first write: the Vyper
// protocol precedes any write with this unlock sequence.
var unlockPacket = []byte{0x07, 0xA5, 0xA2}

// Device drives a Suunto Vyper/Spyder dive computer over a serial
// (or serial-over-USB) transport.
type Device struct {
	*device.Base
	unlocked bool
}

var _ device.Device = (*Device)(nil)

// Open configures the transport for the Vyper's fixed 1200 baud link.
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (*Device, error) {
	if err := t.Configure(transport.Config{Baud: 1200, DataBits: 8}); err != nil {
		return nil, err
	}
	return &Device{Base: device.NewBase(d, t, fingerprintSize)}, nil
}

// packet sends one command byte plus params with echo suppression:
// RTS high to transmit, drain, RTS low to receive, then either read
// back the echo and compare or purge RX, "switches
// RTS before send... drains TX, switches RTS after... reads-and-
// compares the echo or purges RX."
func (d *Device) packet(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	if err := d.Cancelled(); err != nil {
		return nil, err
	}

	req := make([]byte, 1+len(params)+1)
	req[0] = cmd
	copy(req[1:], params)
	req[len(req)-1] = checksum.XOR8(req[:len(req)-1], 0x00)

	tp := d.Transport()
	if err := tp.SetRTS(true); err != nil {
		return nil, err
	}
	if _, err := tp.Write(ctx, req); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}
	if err := tp.Flush(); err != nil {
		return nil, err
	}
	if err := tp.SetRTS(false); err != nil {
		return nil, err
	}

	echo := make([]byte, len(req))
	if _, err := readFull(ctx, tp, echo); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}
	if string(echo) != string(req) {
		return nil, status.New(status.Protocol, "suuntovyper: echo mismatch")
	}

	header := make([]byte, 2)
	if _, err := readFull(ctx, tp, header); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}
	size := int(header[1])
	rest := make([]byte, size+1)
	if _, err := readFull(ctx, tp, rest); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}

	full := append(header, rest...)
	trailer := full[len(full)-1]
	if checksum.XOR8(full[:len(full)-1], 0x00) != trailer {
		return nil, status.New(status.Protocol, "suuntovyper: xor checksum mismatch")
	}

	d.RecordIO(len(req)+len(full), nil)
	return full[2 : len(full)-1], nil
}

func readFull(ctx context.Context, tp transport.Transport, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := tp.Read(ctx, buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, status.New(status.Timeout, "suuntovyper: short read")
		}
		total += n
	}
	return total, nil
}

func (d *Device) unlock(ctx context.Context) error {
	if d.unlocked {
		return nil
	}
	if _, err := d.packet(ctx, cmdInit, unlockPacket); err != nil {
		return err
	}
	d.unlocked = true
	return nil
}

func (d *Device) Read(ctx context.Context, address uint32, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n := len(buf) - total
		if n > packetSize {
			n = packetSize
		}
		params := []byte{byte((address + uint32(total)) >> 8), byte(address + uint32(total)), byte(n)}
		payload, err := d.packet(ctx, cmdRead, params)
		if err != nil {
			return total, err
		}
		total += copy(buf[total:], payload)
	}
	return total, nil
}

func (d *Device) Write(ctx context.Context, address uint32, buf []byte) (int, error) {
	if err := d.unlock(ctx); err != nil {
		return 0, err
	}
	total := 0
	for total < len(buf) {
		n := len(buf) - total
		if n > packetSize {
			n = packetSize
		}
		params := make([]byte, 3+n)
		params[0] = byte((address + uint32(total)) >> 8)
		params[1] = byte(address + uint32(total))
		params[2] = byte(n)
		copy(params[3:], buf[total:total+n])
		if _, err := d.packet(ctx, cmdWrite, params); err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	buf := make([]byte, ringEnd)
	n, err := d.Read(ctx, 0, buf)
	if err != nil {
		return nil, err
	}
	d.EmitProgress(uint32(n), uint32(len(buf)))
	return buf[:n], nil
}

func (d *Device) Foreach(ctx context.Context, cb device.DiveCallback) error {
	data, err := d.Dump(ctx)
	if err != nil {
		return err
	}
	var cbErr error
	ringbuffer.ScanEOP(data, ringbuffer.EOPParams{
		Begin: 0, End: len(data), EOP: eopOffset, Peek: peek,
		EOPByte: 0x82, StartByte: startByte,
		FPOffset: 0, FPSize: fingerprintSize,
		Fingerprint: d.Fingerprint(),
	}, func(dive, fp []byte) bool {
		if err := d.Cancelled(); err != nil {
			cbErr = err
			return false
		}
		return cb(dive, fp)
	})
	return cbErr
}

func (d *Device) Timesync(ctx context.Context, ticks int64) error {
	return status.New(status.Unsupported, "suuntovyper: timesync not implemented")
}

func (d *Device) Version() (string, error) {
	payload, err := d.packet(context.Background(), cmdInit, nil)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (d *Device) Close() error {
	d.MarkClosed()
	return nil
}
