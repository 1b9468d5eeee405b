// Package transport implements the byte-stream abstraction every device
// family drives: a full-duplex stream with timeouts, line signals, an ioctl
// escape hatch, and the purge/flush/sleep housekeeping every device
// state machine suspends on. Concrete backends (usbtransport,
// serialtransport, bletransport) and the mock test double all satisfy
// the same Transport interface so a device implementation never knows
// which kind it is talking to.
package transport

import (
	"context"

	"divecomputer/pkg/dc/status"
)

// Kind identifies the physical transport family.
type Kind int

const (
	KindSerial Kind = iota
	KindIrDA
	KindUSB
	KindUSBHID
	KindBluetooth
	KindBLE
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindIrDA:
		return "irda"
	case KindUSB:
		return "usb"
	case KindUSBHID:
		return "usbhid"
	case KindBluetooth:
		return "bluetooth"
	case KindBLE:
		return "ble"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Parity selects the serial parity bit.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

// StopBits selects the number of serial stop bits.
type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits1_5
	StopBits2
)

// FlowControl selects serial flow control.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowSoftware
)

// Config bundles the serial-only configure() parameters.
type Config struct {
	Baud        int
	DataBits    int
	Parity      Parity
	StopBits    StopBits
	FlowControl FlowControl
}

// Direction selects which buffer purge() discards.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
	DirectionBoth
)

// Line is a bitmask of modem status lines returned by GetLines.
type Line uint32

const (
	LineDCD Line = 1 << iota
	LineCTS
	LineDSR
	LineRNG
)

// Transport is the full-duplex byte stream every device family drives.
// All operations return a status.Error (or nil); a read/write of fewer
// bytes than requested under a positive timeout is not itself an
// error.
type Transport interface {
	Kind() Kind

	// SetTimeout sets the read timeout: -1 blocks until all requested
	// bytes arrive, 0 returns immediately with whatever is buffered,
	// and a positive value blocks up to that many milliseconds.
	SetTimeout(ms int) error

	// Configure sets serial line parameters. Non-serial transports
	// return status.Unsupported.
	Configure(cfg Config) error

	SetBreak(on bool) error
	SetDTR(on bool) error
	SetRTS(on bool) error

	GetLines() (Line, error)
	GetAvailable() (int, error)

	// Poll blocks up to ms milliseconds for the stream to become
	// readable, returning true if data is available.
	Poll(ms int) (bool, error)

	Read(ctx context.Context, buf []byte) (n int, err error)
	Write(ctx context.Context, buf []byte) (n int, err error)

	// IOCtl issues an out-of-band request encoded per
	// pkg/dc/ioctlcodec: BLE characteristic R/W, USB
	// control transfers, serial-latency hints.
	IOCtl(request uint32, buf []byte) (n int, err error)

	Flush() error
	Purge(dir Direction) error
	Sleep(ctx context.Context, ms int) error

	Close() error
}

// VTable is the set of function pointers a custom transport is
// built from. A nil entry causes that operation to report
// status.Unsupported.
type VTable struct {
	SetTimeout   func(ms int) error
	Configure    func(cfg Config) error
	SetBreak     func(on bool) error
	SetDTR       func(on bool) error
	SetRTS       func(on bool) error
	GetLines     func() (Line, error)
	GetAvailable func() (int, error)
	Poll         func(ms int) (bool, error)
	Read         func(ctx context.Context, buf []byte) (int, error)
	Write        func(ctx context.Context, buf []byte) (int, error)
	IOCtl        func(request uint32, buf []byte) (int, error)
	Flush        func() error
	Purge        func(dir Direction) error
	Sleep        func(ctx context.Context, ms int) error
	Close        func() error
}

// custom adapts a VTable to the Transport interface.
type custom struct {
	vt VTable
}

// NewCustom wraps a VTable as a Kind-Custom Transport, letting a
// device implementation be driven against a test double that supplies
// only the operations it exercises.
func NewCustom(vt VTable) Transport {
	return &custom{vt: vt}
}

func (c *custom) Kind() Kind { return KindCustom }

func unsupported(op string) error {
	return status.New(status.Unsupported, "custom transport: "+op+" not implemented")
}

func (c *custom) SetTimeout(ms int) error {
	if c.vt.SetTimeout == nil {
		return unsupported("set_timeout")
	}
	return c.vt.SetTimeout(ms)
}

func (c *custom) Configure(cfg Config) error {
	if c.vt.Configure == nil {
		return unsupported("configure")
	}
	return c.vt.Configure(cfg)
}

func (c *custom) SetBreak(on bool) error {
	if c.vt.SetBreak == nil {
		return unsupported("set_break")
	}
	return c.vt.SetBreak(on)
}

func (c *custom) SetDTR(on bool) error {
	if c.vt.SetDTR == nil {
		return unsupported("set_dtr")
	}
	return c.vt.SetDTR(on)
}

func (c *custom) SetRTS(on bool) error {
	if c.vt.SetRTS == nil {
		return unsupported("set_rts")
	}
	return c.vt.SetRTS(on)
}

func (c *custom) GetLines() (Line, error) {
	if c.vt.GetLines == nil {
		return 0, unsupported("get_lines")
	}
	return c.vt.GetLines()
}

func (c *custom) GetAvailable() (int, error) {
	if c.vt.GetAvailable == nil {
		return 0, unsupported("get_available")
	}
	return c.vt.GetAvailable()
}

func (c *custom) Poll(ms int) (bool, error) {
	if c.vt.Poll == nil {
		return false, unsupported("poll")
	}
	return c.vt.Poll(ms)
}

func (c *custom) Read(ctx context.Context, buf []byte) (int, error) {
	if c.vt.Read == nil {
		return 0, unsupported("read")
	}
	return c.vt.Read(ctx, buf)
}

func (c *custom) Write(ctx context.Context, buf []byte) (int, error) {
	if c.vt.Write == nil {
		return 0, unsupported("write")
	}
	return c.vt.Write(ctx, buf)
}

func (c *custom) IOCtl(request uint32, buf []byte) (int, error) {
	if c.vt.IOCtl == nil {
		return 0, unsupported("ioctl")
	}
	return c.vt.IOCtl(request, buf)
}

func (c *custom) Flush() error {
	if c.vt.Flush == nil {
		return unsupported("flush")
	}
	return c.vt.Flush()
}

func (c *custom) Purge(dir Direction) error {
	if c.vt.Purge == nil {
		return unsupported("purge")
	}
	return c.vt.Purge(dir)
}

func (c *custom) Sleep(ctx context.Context, ms int) error {
	if c.vt.Sleep == nil {
		return unsupported("sleep")
	}
	return c.vt.Sleep(ctx, ms)
}

func (c *custom) Close() error {
	if c.vt.Close == nil {
		return nil // close is idempotent-on-null
	}
	return c.vt.Close()
}
