// Package device implements the common device framework: the Device
// interface every family implements, the Base struct carrying the
// state every family shares, and the event/progress types emitted
// during long operations. Base's bookkeeping (an operational flag, a
// mutex-guarded stats block, and a snapshot type for returning that
// state without exposing the mutex) is adapted from ASIC-session
// bookkeeping to dive-computer session bookkeeping (fingerprint, event
// mask/callback, cancel predicate).
package device

import (
	"context"
	"sync"

	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

// EventMask is a bitmask over the event kinds a caller can subscribe
// to via SetEvents.
type EventMask uint32

const (
	EventWaiting EventMask = 1 << iota
	EventProgress
	EventDevInfo
	EventClock
	EventVendor
)

// Progress reports current/maximum for a long operation; current is
// monotonically non-decreasing and current <= maximum, with the last
// event of a successful operation satisfying current == maximum.
type Progress struct {
	Current, Maximum uint32
}

// DevInfo carries the model/firmware/serial decoded from a device's
// handshake or header.
type DevInfo struct {
	Model    string
	Firmware string
	Serial   string
}

// Clock pairs a device clock reading with the host clock reading taken
// as close together as possible, for timesync accuracy checks.
type Clock struct {
	DeviceTicks int64
	HostTicks   int64
}

// Vendor carries a family-specific raw handshake blob for callers that
// want to inspect it.
type Vendor struct {
	Data []byte
}

// EventCallback receives one event of the kind named by mask.
type EventCallback func(mask EventMask, progress *Progress, devInfo *DevInfo, clock *Clock, vendor *Vendor)

// CancelFunc is consulted at well-defined suspension points (start of
// each packet, start of each dive in Foreach); when it returns true the
// in-flight operation aborts with status.Cancelled.
type CancelFunc func() bool

// DiveCallback receives one dive blob (a view, valid only for the
// duration of the call) and its fingerprint view, newest dive first.
// Returning false stops enumeration without it being an error.
type DiveCallback func(data, fingerprint []byte) bool

// Device is the common capability surface every family implements. A
// family need not support every operation: unsupported ones return
// status.Unsupported, never a type error.
type Device interface {
	Descriptor() descriptor.Descriptor

	SetFingerprint(fp []byte) error
	SetEvents(mask EventMask, cb EventCallback) error
	SetCancel(cancel CancelFunc) error

	Read(ctx context.Context, address uint32, buf []byte) (int, error)
	Write(ctx context.Context, address uint32, buf []byte) (int, error)

	Dump(ctx context.Context) ([]byte, error)
	Foreach(ctx context.Context, cb DiveCallback) error
	Timesync(ctx context.Context, ticks int64) error

	Version() (string, error)

	Close() error
}

// Base carries the state every family's Device shares: an operational
// flag, mutex-guarded IO stats, and the fingerprint/event/cancel
// bookkeeping. Family implementations embed Base and add their own
// private state.
type Base struct {
	mu sync.RWMutex

	descriptor descriptor.Descriptor
	transport  transport.Transport

	fingerprintSize int // family's exact legal non-zero size; 0 disables the check
	fingerprint     []byte

	eventMask EventMask
	eventCb   EventCallback
	cancel    CancelFunc

	operational bool

	stats stats
}

type stats struct {
	TotalRequests uint64
	TotalBytes    uint64
	ErrorCount    uint64
}

// Snapshot is an unsynchronized copy of a device's bookkeeping
// counters, taken while holding the mutex.
type Snapshot struct {
	TotalRequests uint64
	TotalBytes    uint64
	ErrorCount    uint64
}

// NewBase constructs a Base bound to the given descriptor and
// already-open transport; the family's open routine calls this first.
func NewBase(d descriptor.Descriptor, t transport.Transport, fingerprintSize int) *Base {
	return &Base{descriptor: d, transport: t, fingerprintSize: fingerprintSize, operational: true}
}

func (b *Base) Descriptor() descriptor.Descriptor { return b.descriptor }

func (b *Base) Transport() transport.Transport { return b.transport }

// SetFingerprint validates and stores fp. Only a zero-length slice
// (clear) or the family's exact fingerprint size are legal.
func (b *Base) SetFingerprint(fp []byte) error {
	if len(fp) != 0 && len(fp) != b.fingerprintSize {
		return status.New(status.InvalidArgs, "device: fingerprint must be 0 or the family's exact size")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fingerprint = append([]byte(nil), fp...)
	return nil
}

// Fingerprint returns the currently installed fingerprint bytes.
func (b *Base) Fingerprint() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fingerprint
}

func (b *Base) SetEvents(mask EventMask, cb EventCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventMask = mask
	b.eventCb = cb
	return nil
}

func (b *Base) SetCancel(cancel CancelFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel = cancel
	return nil
}

// Cancelled consults the installed cancel predicate at a suspension
// point, returning status.Cancelled if it fires.
func (b *Base) Cancelled() error {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil && cancel() {
		return status.New(status.Cancelled, "device: operation cancelled")
	}
	return nil
}

// EmitProgress delivers a Progress event if the caller subscribed to it.
func (b *Base) EmitProgress(current, maximum uint32) {
	b.emit(EventProgress, &Progress{Current: current, Maximum: maximum}, nil, nil, nil)
}

// EmitDevInfo delivers a DevInfo event if the caller subscribed to it.
func (b *Base) EmitDevInfo(info DevInfo) {
	b.emit(EventDevInfo, nil, &info, nil, nil)
}

// EmitClock delivers a Clock event if the caller subscribed to it.
func (b *Base) EmitClock(c Clock) {
	b.emit(EventClock, nil, nil, &c, nil)
}

// EmitVendor delivers a Vendor event if the caller subscribed to it.
func (b *Base) EmitVendor(data []byte) {
	b.emit(EventVendor, nil, nil, nil, &Vendor{Data: data})
}

// EmitWaiting delivers a Waiting event if the caller subscribed to it.
func (b *Base) EmitWaiting() {
	b.emit(EventWaiting, nil, nil, nil, nil)
}

func (b *Base) emit(kind EventMask, p *Progress, di *DevInfo, c *Clock, v *Vendor) {
	b.mu.RLock()
	mask, cb := b.eventMask, b.eventCb
	b.mu.RUnlock()
	if cb != nil && mask&kind != 0 {
		cb(kind, p, di, c, v)
	}
}

// RecordIO updates the request/byte/error counters.
func (b *Base) RecordIO(bytes int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.TotalRequests++
	b.stats.TotalBytes += uint64(bytes)
	if err != nil {
		b.stats.ErrorCount++
	}
}

// Stats returns an unsynchronized snapshot of the bookkeeping counters.
func (b *Base) Stats() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot(b.stats)
}

// MarkClosed flips the operational flag; Close implementations call
// this once the transport-level teardown is done.
func (b *Base) MarkClosed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operational = false
}

// Operational reports whether Close has not yet been called.
func (b *Base) Operational() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.operational
}
