// Package bletransport implements a BLE-kind transport.Transport over
// github.com/go-ble/ble, the GATT client this pack's manifest for
// srgg-blecli depends on. A dive computer's BLE profile is exposed as
// one or two characteristics (write-without-response for commands,
// notify for replies); Read/Write here proxy that characteristic pair,
// and IOCtl serves the ('b', BLECharacteristic, ...) request from
// ioctlcodec for callers that need to address an arbitrary UUID
// directly (pairing metadata, device name) rather than the default
// command/notify pair set up at Open.
package bletransport

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/go-ble/ble"

	"divecomputer/pkg/dc/ioctlcodec"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

// Transport drives one BLE connection's command/notify characteristic
// pair as a byte stream.
type Transport struct {
	client ble.Client
	cmd    *ble.Characteristic
	notify *ble.Characteristic

	mu      sync.Mutex
	inbox   bytes.Buffer
	timeout time.Duration
}

// Open connects to addr and subscribes to notifyUUID, buffering
// incoming notifications for Read; writes go to cmdUUID.
func Open(ctx context.Context, addr ble.Addr, cmdUUID, notifyUUID ble.UUID) (*Transport, error) {
	client, err := ble.Dial(ctx, addr)
	if err != nil {
		return nil, status.Wrap(status.NoDevice, "ble: dial", err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return nil, status.Wrap(status.IO, "ble: discover profile", err)
	}

	cmdChar := profile.Find(ble.NewCharacteristic(cmdUUID))
	notifyChar := profile.Find(ble.NewCharacteristic(notifyUUID))
	if cmdChar == nil || notifyChar == nil {
		client.CancelConnection()
		return nil, status.New(status.NoDevice, "ble: command/notify characteristic not found")
	}
	cc, _ := cmdChar.(*ble.Characteristic)
	nc, _ := notifyChar.(*ble.Characteristic)

	t := &Transport{client: client, cmd: cc, notify: nc, timeout: -1}
	if err := client.Subscribe(nc, false, t.onNotify); err != nil {
		client.CancelConnection()
		return nil, status.Wrap(status.IO, "ble: subscribe", err)
	}
	return t, nil
}

func (t *Transport) onNotify(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox.Write(data)
}

func (t *Transport) Kind() transport.Kind { return transport.KindBLE }

func (t *Transport) SetTimeout(ms int) error {
	if ms < 0 {
		t.timeout = 24 * time.Hour
		return nil
	}
	t.timeout = time.Duration(ms) * time.Millisecond
	return nil
}

func (t *Transport) Configure(transport.Config) error {
	return status.New(status.Unsupported, "ble: configure is serial-only")
}

func (t *Transport) SetBreak(bool) error { return status.New(status.Unsupported, "ble: set_break") }
func (t *Transport) SetDTR(bool) error   { return status.New(status.Unsupported, "ble: set_dtr") }
func (t *Transport) SetRTS(bool) error   { return status.New(status.Unsupported, "ble: set_rts") }

func (t *Transport) GetLines() (transport.Line, error) {
	return 0, status.New(status.Unsupported, "ble: get_lines")
}

func (t *Transport) GetAvailable() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inbox.Len(), nil
}

func (t *Transport) Poll(ms int) (bool, error) {
	deadline := time.Now().Add(time.Duration(ms) * time.Millisecond)
	for {
		if n, _ := t.GetAvailable(); n > 0 {
			return true, nil
		}
		if ms >= 0 && time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (t *Transport) Read(ctx context.Context, buf []byte) (int, error) {
	deadline := time.Now().Add(t.timeout)
	for {
		t.mu.Lock()
		n, _ := t.inbox.Read(buf)
		t.mu.Unlock()
		if n > 0 {
			return n, nil
		}
		if t.timeout == 0 {
			return 0, nil
		}
		if time.Now().After(deadline) {
			return 0, status.New(status.Timeout, "ble: read timed out")
		}
		select {
		case <-ctx.Done():
			return 0, status.New(status.Cancelled, "ble: read cancelled")
		case <-time.After(time.Millisecond):
		}
	}
}

func (t *Transport) Write(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, status.New(status.Cancelled, "ble: write cancelled")
	}
	if err := t.client.WriteCharacteristic(t.cmd, buf, true); err != nil {
		return 0, status.Wrap(status.IO, "ble: write characteristic", err)
	}
	return len(buf), nil
}

// IOCtl serves the ('b', BLECharacteristic, variable) request: a
// direct read or write against an arbitrary characteristic UUID,
// bypassing the command/notify pair set up at Open.
func (t *Transport) IOCtl(request uint32, buf []byte) (int, error) {
	req := ioctlcodec.Decode(request)
	if req.Type != ioctlcodec.NamespaceBLE {
		return 0, status.New(status.InvalidArgs, "ble: ioctl namespace mismatch")
	}
	switch req.Nr {
	case ioctlcodec.BLECharacteristic:
		return t.ioctlCharacteristic(req, buf)
	case ioctlcodec.BLEGetName:
		return 0, status.New(status.Unsupported, "ble: get_name not wired to this profile")
	default:
		return 0, status.New(status.Unsupported, "ble: unknown sub-request")
	}
}

func (t *Transport) ioctlCharacteristic(req ioctlcodec.Request, buf []byte) (int, error) {
	if len(buf) < 16 {
		return 0, status.New(status.InvalidArgs, "ble: characteristic io header truncated")
	}
	uuid, err := ble.Parse(uuidString(buf[:16]))
	if err != nil {
		return 0, status.Wrap(status.InvalidArgs, "ble: parse uuid", err)
	}
	profile, err := t.client.DiscoverProfile(false)
	if err != nil {
		return 0, status.Wrap(status.IO, "ble: discover profile", err)
	}
	found := profile.Find(ble.NewCharacteristic(uuid))
	ch, _ := found.(*ble.Characteristic)
	if ch == nil {
		return 0, status.New(status.NoDevice, "ble: characteristic not found")
	}
	data := buf[16:]
	if req.Dir == ioctlcodec.DirWrite || req.Dir == ioctlcodec.DirReadWrite {
		if err := t.client.WriteCharacteristic(ch, data, req.Dir == ioctlcodec.DirWrite); err != nil {
			return 0, status.Wrap(status.IO, "ble: write characteristic", err)
		}
		return len(data), nil
	}
	got, err := t.client.ReadCharacteristic(ch)
	if err != nil {
		return 0, status.Wrap(status.IO, "ble: read characteristic", err)
	}
	n := copy(data, got)
	return n, nil
}

func uuidString(raw []byte) string {
	const hex = "0123456789abcdef"
	out := make([]byte, 0, 36)
	for i, b := range raw {
		out = append(out, hex[b>>4], hex[b&0xF])
		if i == 3 || i == 5 || i == 7 || i == 9 {
			out = append(out, '-')
		}
	}
	return string(out)
}

func (t *Transport) Flush() error { return nil }

func (t *Transport) Purge(transport.Direction) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox.Reset()
	return nil
}

func (t *Transport) Sleep(ctx context.Context, ms int) error {
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return status.New(status.Cancelled, "ble: sleep cancelled")
	}
}

func (t *Transport) Close() error {
	if err := t.client.CancelConnection(); err != nil {
		return status.Wrap(status.IO, "ble: close", err)
	}
	return nil
}
