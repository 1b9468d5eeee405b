// Package reefnetsensusultra implements the Reefnet Sensus Ultra
// PROMPT/ACCEPT/REJECT cadence: the host drives a
// page-at-a-time dump by sending PROMPT, validating each page's
// CRC-CCITT trailer, and replying ACCEPT (retry on REJECT, bounded),
// with pages prepended so the newest data lands at the start of the
// accumulated image for pkg/dc/ringbuffer.ScanSensusUltra's coalesced
// header/footer scan. Grounded on libdivecomputer's
// reefnet_sensusultra send_uchar/packet/device_dump functions.
package reefnetsensusultra

import (
	"context"
	"encoding/binary"

	"divecomputer/pkg/dc/buffer"
	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/ringbuffer"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

const (
	prompt byte = 0xA5
	accept      = prompt
	reject byte = 0x00

	pageSize       = 512
	handshakeSz    = 10
	maxRetries     = 2
	memoryDataSize = 2080768 // 4064 pages of pageSize bytes

	fingerprintSize = 4
)

// Handshake is the decoded response to the initial prompt.
type Handshake struct {
	Model       byte
	Firmware    byte
	DeviceTicks int64
}

// Device drives a Reefnet Sensus Ultra logger over a serial link.
type Device struct {
	*device.Base
	handshake Handshake
}

var _ device.Device = (*Device)(nil)

// Open configures the fixed 115200-baud link and reads the initial
// handshake block sent in response to a PROMPT byte.
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (*Device, error) {
	if err := t.Configure(transport.Config{Baud: 115200, DataBits: 8}); err != nil {
		return nil, err
	}

	dev := &Device{Base: device.NewBase(d, t, fingerprintSize)}

	buf, err := dev.page(ctx, handshakeSz)
	if err != nil {
		return nil, err
	}
	dev.handshake = Handshake{
		Model:       buf[0],
		Firmware:    buf[1],
		DeviceTicks: int64(binary.LittleEndian.Uint32(buf[2:6])),
	}
	dev.EmitDevInfo(device.DevInfo{Model: string(rune(buf[0])), Firmware: string(rune(buf[1]))})
	dev.EmitClock(device.Clock{DeviceTicks: dev.handshake.DeviceTicks})

	return dev, nil
}

// page sends PROMPT, reads size bytes of payload plus a 2-byte
// CRC-CCITT trailer, and retries up to maxRetries times by replying
// REJECT on a checksum mismatch, replying ACCEPT once it validates,
// "PROMPT/ACCEPT/REJECT... per-page CRC with bounded
// retry."
func (d *Device) page(ctx context.Context, size int) ([]byte, error) {
	tp := d.Transport()
	for attempt := 0; ; attempt++ {
		if err := d.Cancelled(); err != nil {
			return nil, err
		}
		if _, err := tp.Write(ctx, []byte{prompt}); err != nil {
			d.RecordIO(0, err)
			return nil, err
		}

		buf := make([]byte, size+2)
		if _, err := readFull(ctx, tp, buf); err != nil {
			d.RecordIO(0, err)
			return nil, err
		}

		body, trailer := buf[:size], buf[size:]
		if checksum.CRCCCITT(body, 0) == binary.BigEndian.Uint16(trailer) {
			if _, err := tp.Write(ctx, []byte{accept}); err != nil {
				return nil, err
			}
			d.RecordIO(len(buf), nil)
			return body, nil
		}

		if attempt >= maxRetries {
			return nil, status.New(status.Protocol, "reefnetsensusultra: page CRC mismatch, retries exhausted")
		}
		if _, err := tp.Write(ctx, []byte{reject}); err != nil {
			return nil, err
		}
	}
}

func readFull(ctx context.Context, tp transport.Transport, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := tp.Read(ctx, buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, status.New(status.Timeout, "reefnetsensusultra: short read")
		}
		total += n
	}
	return total, nil
}

func (d *Device) Read(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "reefnetsensusultra: no addressed memory window")
}

func (d *Device) Write(ctx context.Context, address uint32, buf []byte) (int, error) {
	return 0, status.New(status.Unsupported, "reefnetsensusultra: no addressed memory window")
}

// Dump reads pages until either the fixed memoryDataSize total is
// reached or a page whose data is entirely 0xFF is seen (after at
// least one real page), prepending each page so the accumulated image
// keeps the logger's newest-first page order, incremental-
// parsing note for this family.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	var buf buffer.Buffer
	total := 0
	for total < memoryDataSize {
		page, err := d.page(ctx, pageSize)
		if err != nil {
			return nil, err
		}
		if total != 0 && allFF(page) {
			break
		}
		buf.Prepend(page)
		total += len(page)
		d.EmitProgress(uint32(total), uint32(memoryDataSize))
	}
	return buf.Bytes(), nil
}

func allFF(page []byte) bool {
	for _, b := range page {
		if b != 0xFF {
			return false
		}
	}
	return true
}

func (d *Device) Foreach(ctx context.Context, cb device.DiveCallback) error {
	data, err := d.Dump(ctx)
	if err != nil {
		return err
	}
	var cbErr error
	ringbuffer.ScanSensusUltra(data, ringbuffer.SensusUltraParams{
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
	return status.New(status.Unsupported, "reefnetsensusultra: clock is read-only")
}

func (d *Device) Version() (string, error) {
	return string(rune(d.handshake.Model)), nil
}

func (d *Device) Close() error {
	d.MarkClosed()
	return nil
}
