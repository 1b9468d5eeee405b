// Package reefnetsensus implements the Reefnet Sensus (classic)
// OK-framed handshake: a 1-byte command gets back
// "OK" + handshake + trailing bytes, after which the device streams
// its full ring image for local extraction via
// pkg/dc/ringbuffer.ScanSensusClassic. Grounded on libdivecomputer's
// reefnet_sensus handshake-then-stream shape.
package reefnetsensus

import (
	"bytes"
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
	cmdHandshake byte = 0x0A
	cmdData      byte = 0x40

	fingerprintSize  = 4 // Sensus-family timestamp at marker+2
	handshakeSize    = 10
	memorySize       = 32768
	depthAdjust      = 13
	shallowMargin    = 3
	shallowRunLength = 17
	sampleInterval   = 6
)

// Handshake is the decoded "OK"-framed response: model/firmware bytes
// plus the device's own clock tick count at handshake time.
type Handshake struct {
	Model       byte
	Firmware    byte
	DeviceTicks int64
}

// Device drives a Reefnet Sensus classic logger over a serial link.
type Device struct {
	*device.Base
	handshake Handshake
}

var _ device.Device = (*Device)(nil)

// Open configures the fixed 19200-baud link, sends the handshake
// command, and validates the "OK" prefix.
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (*Device, error) {
	if err := t.Configure(transport.Config{Baud: 19200, DataBits: 8}); err != nil {
		return nil, err
	}

	dev := &Device{Base: device.NewBase(d, t, fingerprintSize)}

	if _, err := t.Write(ctx, []byte{cmdHandshake}); err != nil {
		return nil, err
	}

	buf := make([]byte, 2+handshakeSize)
	if _, err := readFull(ctx, t, buf); err != nil {
		return nil, err
	}
	if buf[0] != 'O' || buf[1] != 'K' {
		return nil, status.New(status.Protocol, "reefnetsensus: missing OK prefix")
	}

	hs := buf[2:]
	dev.handshake = Handshake{
		Model:       hs[0],
		Firmware:    hs[1],
		DeviceTicks: int64(binary.LittleEndian.Uint32(hs[2:6])),
	}
	dev.EmitDevInfo(device.DevInfo{Model: string(rune(hs[0])), Firmware: string(rune(hs[1]))})
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
			return total, status.New(status.Timeout, "reefnetsensus: short read")
		}
		total += n
	}
	return total, nil
}

func (d *Device) Read(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "reefnetsensus: no addressed memory window")
}

func (d *Device) Write(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "reefnetsensus: no addressed memory window")
}

// Dump requests the ring image with the 0x40 command and validates the
// "DATA"+image+crc-LE+"END" wrapper the device replies with, per the
// additive-u16 checksum over the image bytes alone.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	if _, err := d.Transport().Write(ctx, []byte{cmdData}); err != nil {
		return nil, err
	}

	answer := make([]byte, 4+memorySize+2+3)
	n, err := readFull(ctx, d.Transport(), answer)
	if err != nil {
		return nil, err
	}
	d.EmitProgress(uint32(n), uint32(len(answer)))

	if !bytes.Equal(answer[:4], []byte("DATA")) || !bytes.Equal(answer[len(answer)-3:], []byte("END")) {
		return nil, status.New(status.Protocol, "reefnetsensus: unexpected answer start or end bytes")
	}

	image := answer[4 : 4+memorySize]
	crc := binary.LittleEndian.Uint16(answer[4+memorySize : 4+memorySize+2])
	ccrc := checksum.AddUint16(image, 0)
	if crc != ccrc {
		return nil, status.New(status.Protocol, "reefnetsensus: unexpected answer CRC")
	}

	return image, nil
}

func (d *Device) Foreach(ctx context.Context, cb device.DiveCallback) error {
	data, err := d.Dump(ctx)
	if err != nil {
		return err
	}
	var cbErr error
	ringbuffer.ScanSensusClassic(data, ringbuffer.SensusClassicParams{
		FPOffset: 2, FPSize: fingerprintSize,
		DepthAdjust: depthAdjust, ShallowMargin: shallowMargin,
		ShallowRunLen: shallowRunLength, SampleInterval: sampleInterval,
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
	return status.New(status.Unsupported, "reefnetsensus: clock is read-only")
}

func (d *Device) Version() (string, error) {
	return string(rune(d.handshake.Model)), nil
}

func (d *Device) Close() error {
	d.MarkClosed()
	return nil
}
