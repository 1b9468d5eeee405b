// Package reefnetsensuspro implements the Reefnet Sensus Pro
// break-triggered handshake: a serial break line wakes
// the logger, it replies with a fixed handshake block, and the full
// ring image then streams out under a CRC-CCITT trailer, extracted
// locally via pkg/dc/ringbuffer.ScanSensusPro. Grounded on
// libdivecomputer's reefnet_sensuspro break/handshake/dump shape
// and on pkg/dc/device/reefnetsensus for the sibling family's device
// layout.
package reefnetsensuspro

import (
	"context"
	"encoding/binary"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/ringbuffer"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

const (
	handshakeSize   = 10
	fingerprintSize = 4
	memorySize      = 65536
)

// Handshake is the decoded post-break response block.
type Handshake struct {
	Model       byte
	Firmware    byte
	DeviceTicks int64
}

// Device drives a Reefnet Sensus Pro logger over a serial link.
type Device struct {
	*device.Base
	handshake Handshake
}

var _ device.Device = (*Device)(nil)

// Open configures the fixed 19200-baud link, asserts a break to wake
// the logger, and validates the handshake block's CRC-CCITT trailer.
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (*Device, error) {
	if err := t.Configure(transport.Config{Baud: 19200, DataBits: 8}); err != nil {
		return nil, err
	}

	dev := &Device{Base: device.NewBase(d, t, fingerprintSize)}

	if err := t.SetBreak(true); err != nil {
		return nil, err
	}

	buf := make([]byte, handshakeSize+2)
	if _, err := readFull(ctx, t, buf); err != nil {
		return nil, err
	}

	if err := t.SetBreak(false); err != nil {
		return nil, err
	}

	body, trailer := buf[:handshakeSize], buf[handshakeSize:]
	if checksum.CRCCCITT(body, 0) != binary.BigEndian.Uint16(trailer) {
		return nil, status.New(status.Protocol, "reefnetsensuspro: handshake CRC mismatch")
	}

	dev.handshake = Handshake{
		Model:       body[0],
		Firmware:    body[1],
		DeviceTicks: int64(binary.LittleEndian.Uint32(body[6:10])),
	}
	dev.EmitDevInfo(device.DevInfo{Model: string(rune(body[0])), Firmware: string(rune(body[1]))})
	dev.EmitClock(device.Clock{DeviceTicks: dev.handshake.DeviceTicks})

	return dev, nil
}

func readFull(ctx context.Context, tp transport.Transport, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := tp.Read(ctx, buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, status.New(status.Timeout, "reefnetsensuspro: short read")
		}
		total += n
	}
	return total, nil
}

func (d *Device) Read(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "reefnetsensuspro: no addressed memory window")
}

func (d *Device) Write(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "reefnetsensuspro: no addressed memory window")
}

// Dump streams the full ring image followed by a trailing CRC-CCITT
// checksum of the whole transfer.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	buf := make([]byte, memorySize+2)
	n, err := readFull(ctx, d.Transport(), buf)
	if err != nil {
		return nil, err
	}
	body, trailer := buf[:n-2], buf[n-2:n]
	if checksum.CRCCCITT(body, 0) != binary.BigEndian.Uint16(trailer) {
		return nil, status.New(status.Protocol, "reefnetsensuspro: dump CRC mismatch")
	}
	d.EmitProgress(uint32(len(body)), uint32(len(body)))
	return body, nil
}

func (d *Device) Foreach(ctx context.Context, cb device.DiveCallback) error {
	data, err := d.Dump(ctx)
	if err != nil {
		return err
	}
	var cbErr error
	ringbuffer.ScanSensusPro(data, ringbuffer.SensusProParams{
		FPOffset: 4, FPSize: fingerprintSize,
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
	return status.New(status.Unsupported, "reefnetsensuspro: clock is read-only")
}

func (d *Device) Version() (string, error) {
	return string(rune(d.handshake.Model)), nil
}

func (d *Device) Close() error {
	d.MarkClosed()
	return nil
}
