// Package suuntocommon2 implements the Suunto D9/Vyper2 "Common2"
// packet-envelope state machine: request
// [cmd][len-be-u16][params…][xor-checksum], reply
// [cmd][len-be-u16][params…][payload…][xor-checksum], with baud
// autodetection for D9. Grounded on libdivecomputer's suunto_common2
// packet validation (echoed command, declared length, echoed params,
// trailing XOR) and on pkg/dc/transport/usbtransport's claim/release
// discipline for the analogous USB path.
package suuntocommon2

import (
	"context"
	"encoding/binary"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/dclog"
	"divecomputer/pkg/dc/ringbuffer"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

const (
	cmdVersion  = 0x0F
	cmdReadMem  = 0x05
	cmdWriteMem = 0x06
	cmdInitDump = 0x08

	fingerprintSize = 5 // EON/Common2 family
	packetSize      = 120

	ringBegin = 0x019A
	ringEnd   = 0x7FBE
	eopOffset = 0x0017
	startByte = 0x80
	peek      = 1
)

// Device drives a Suunto D9/Vyper2-family dive computer over a
// Serial or USB transport.
type Device struct {
	*device.Base
}

var _ device.Device = (*Device)(nil)

// Open binds d to an already-configured transport and attempts baud
// autodetection when the underlying transport is serial: the D9
// autodetects baud by trying {9600, 115200}, with a model-number hint
// to pick the first attempt.
func Open(ctx context.Context, d descriptor.Descriptor, t transport.Transport) (*Device, error) {
	base := device.NewBase(d, t, fingerprintSize)
	dev := &Device{Base: base}

	if t.Kind() == transport.KindSerial {
		bauds := []int{9600, 115200}
		if d.Model == 0x0E { // D9 hint: try the faster rate first
			bauds = []int{115200, 9600}
		}
		var lastErr error
		for _, baud := range bauds {
			if err := t.Configure(transport.Config{Baud: baud, DataBits: 8}); err != nil {
				lastErr = err
				continue
			}
			if _, err := dev.transfer(ctx, cmdVersion, nil); err == nil {
				lastErr = nil
				break
			} else {
				lastErr = err
			}
		}
		if lastErr != nil {
			return nil, lastErr
		}
	}

	return dev, nil
}

// transfer sends one request envelope and validates + returns the
// reply payload, implementing the request/reply packet contract.
func (d *Device) transfer(ctx context.Context, cmd byte, params []byte) ([]byte, error) {
	if err := d.Cancelled(); err != nil {
		return nil, err
	}

	// Request: [cmd][len-be-u16 = len(params)][params…][xor-checksum].
	req := make([]byte, 1+2+len(params)+1)
	req[0] = cmd
	binary.BigEndian.PutUint16(req[1:3], uint16(len(params)))
	copy(req[3:], params)
	req[len(req)-1] = checksum.XOR8(req[:len(req)-1], 0x00)

	tp := d.Transport()
	if _, err := tp.Write(ctx, req); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}

	// Reply: [cmd][len-be-u16 = len(payload)][echoed params…][payload…][xor-checksum].
	header := make([]byte, 3)
	if _, err := readFull(ctx, tp, header); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}
	if header[0] != cmd {
		return nil, status.New(status.Protocol, "suuntocommon2: echoed command mismatch")
	}
	payloadLen := int(binary.BigEndian.Uint16(header[1:3]))

	rest := make([]byte, len(params)+payloadLen+1)
	if _, err := readFull(ctx, tp, rest); err != nil {
		d.RecordIO(0, err)
		return nil, err
	}

	full := append(header, rest...)
	trailer := full[len(full)-1]
	if checksum.XOR8(full[:len(full)-1], 0x00) != trailer {
		return nil, status.New(status.Protocol, "suuntocommon2: xor checksum mismatch")
	}

	body := full[3 : len(full)-1]
	if len(params) > 0 {
		if len(body) < len(params) || string(body[:len(params)]) != string(params) {
			return nil, status.New(status.Protocol, "suuntocommon2: echoed params mismatch")
		}
	}
	payload := body[len(params):]

	d.RecordIO(len(full), nil)
	return payload, nil
}

func readFull(ctx context.Context, tp transport.Transport, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := tp.Read(ctx, buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, status.New(status.Timeout, "suuntocommon2: short read")
		}
		total += n
	}
	return total, nil
}

func (d *Device) Read(ctx context.Context, address uint32, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		params := make([]byte, 2)
		binary.BigEndian.PutUint16(params, uint16(address)+uint16(total))
		payload, err := d.transfer(ctx, cmdReadMem, params)
		if err != nil {
			return total, err
		}
		if len(payload) == 0 {
			return total, status.New(status.Protocol, "suuntocommon2: empty read payload")
		}
		total += copy(buf[total:], payload)
	}
	return total, nil
}

func (d *Device) Write(ctx context.Context, address uint32, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n := len(buf) - total
		if n > packetSize {
			n = packetSize
		}
		params := make([]byte, 2+n)
		binary.BigEndian.PutUint16(params[0:2], uint16(address)+uint16(total))
		copy(params[2:], buf[total:total+n])
		if _, err := d.transfer(ctx, cmdWriteMem, params); err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Dump reads the whole ring image into a single buffer.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	if _, err := d.transfer(ctx, cmdInitDump, nil); err != nil {
		return nil, err
	}
	buf := make([]byte, ringEnd)
	n, err := d.Read(ctx, 0, buf)
	if err != nil {
		return nil, err
	}
	d.EmitProgress(uint32(n), uint32(len(buf)))
	return buf[:n], nil
}

// Foreach dumps the device and walks the ring image for dives newest
// first via pkg/dc/ringbuffer.ScanEOP, halting at the installed
// fingerprint.
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
	return status.New(status.Unsupported, "suuntocommon2: timesync not implemented")
}

func (d *Device) Version() (string, error) {
	payload, err := d.transfer(context.Background(), cmdVersion, nil)
	if err != nil {
		return "", err
	}
	if len(payload) < 3 {
		return "", status.New(status.Protocol, "suuntocommon2: version payload truncated")
	}
	dclog.Debugf("suuntocommon2: version %X", payload)
	return string(payload), nil
}

func (d *Device) Close() error {
	d.MarkClosed()
	return nil
}
