// Package mock is a scripted Transport test double used by the
// per-family device suites to exercise request/response state machines
// and replay scenarios without any real hardware. It plays back a
// fixed script of expected writes and canned reads, and separately
// supports an Image mode that serves reads from a single flat byte
// buffer (used to replay a dumped memory image against ring-buffer
// extraction).
package mock

import (
	"bytes"
	"context"
	"fmt"

	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

// Step is one entry in a Transport script: either an expected write or
// a canned read. Exactly one of Write or Read should be set.
type Step struct {
	Write []byte // if set, the next Write() call must supply these exact bytes
	Read  []byte // if set, the next Read() call is served from these bytes
}

// Scripted is a Transport driven by a fixed sequence of Steps, playing
// the role of a simulated transport in handshake/dump tests.
type Scripted struct {
	kind     transport.Kind
	steps    []Step
	pos      int
	readBuf  []byte
	timeout  int
	lines    transport.Line
	closed   bool
	Warnings int // bumped by the caller when it logs a Warning, for S3-style assertions
}

// NewScripted returns a Scripted transport of the given kind that will
// play steps in order; calls beyond the script end return IO.
func NewScripted(kind transport.Kind, steps []Step) *Scripted {
	return &Scripted{kind: kind, steps: steps}
}

func (s *Scripted) Kind() transport.Kind { return s.kind }

func (s *Scripted) SetTimeout(ms int) error { s.timeout = ms; return nil }

func (s *Scripted) Configure(transport.Config) error { return nil }

func (s *Scripted) SetBreak(bool) error { return nil }
func (s *Scripted) SetDTR(bool) error   { return nil }
func (s *Scripted) SetRTS(bool) error   { return nil }

func (s *Scripted) GetLines() (transport.Line, error) { return s.lines, nil }

func (s *Scripted) GetAvailable() (int, error) {
	if len(s.readBuf) > 0 {
		return len(s.readBuf), nil
	}
	if s.pos < len(s.steps) && s.steps[s.pos].Read != nil {
		return len(s.steps[s.pos].Read), nil
	}
	return 0, nil
}

func (s *Scripted) Poll(int) (bool, error) {
	avail, err := s.GetAvailable()
	return avail > 0, err
}

func (s *Scripted) Read(_ context.Context, buf []byte) (int, error) {
	if len(s.readBuf) == 0 {
		if s.pos >= len(s.steps) || s.steps[s.pos].Read == nil {
			return 0, status.New(status.IO, "mock: unexpected read, script exhausted")
		}
		s.readBuf = append([]byte(nil), s.steps[s.pos].Read...)
		s.pos++
	}
	n := copy(buf, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

func (s *Scripted) Write(_ context.Context, buf []byte) (int, error) {
	if s.pos >= len(s.steps) || s.steps[s.pos].Write == nil {
		return 0, status.New(status.IO, "mock: unexpected write, script exhausted")
	}
	want := s.steps[s.pos].Write
	if !bytes.Equal(buf, want) {
		return 0, status.New(status.Protocol, fmt.Sprintf("mock: write mismatch: got % X want % X", buf, want))
	}
	s.pos++
	return len(buf), nil
}

func (s *Scripted) IOCtl(uint32, []byte) (int, error) {
	return 0, status.New(status.Unsupported, "mock: ioctl not scripted")
}

func (s *Scripted) Flush() error                     { return nil }
func (s *Scripted) Purge(transport.Direction) error  { return nil }
func (s *Scripted) Sleep(context.Context, int) error { return nil }

func (s *Scripted) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called, for tests that assert
// a device's close() reached the transport.
func (s *Scripted) Closed() bool { return s.closed }

// Exhausted reports whether every scripted step was consumed.
func (s *Scripted) Exhausted() bool { return s.pos == len(s.steps) }

// Image is a flat-memory-image Transport: every Read serves the next
// bytes of a fixed buffer, Writes are recorded but not validated. It
// models "dump → extract_dives produces the same list as foreach
// against a replay transport": a device
// family's dump() can be pointed at an Image built from the same bytes
// foreach() would walk live.
type Image struct {
	kind    transport.Kind
	data    []byte
	pos     int
	Written []byte
}

// NewImage returns an Image transport that serves data byte-for-byte
// on successive reads.
func NewImage(kind transport.Kind, data []byte) *Image {
	return &Image{kind: kind, data: data}
}

func (m *Image) Kind() transport.Kind { return m.kind }

func (m *Image) SetTimeout(int) error            { return nil }
func (m *Image) Configure(transport.Config) error { return nil }
func (m *Image) SetBreak(bool) error              { return nil }
func (m *Image) SetDTR(bool) error                { return nil }
func (m *Image) SetRTS(bool) error                { return nil }

func (m *Image) GetLines() (transport.Line, error) { return 0, nil }

func (m *Image) GetAvailable() (int, error) { return len(m.data) - m.pos, nil }

func (m *Image) Poll(int) (bool, error) { return m.pos < len(m.data), nil }

func (m *Image) Read(_ context.Context, buf []byte) (int, error) {
	if m.pos >= len(m.data) {
		return 0, status.New(status.Timeout, "mock: image exhausted")
	}
	n := copy(buf, m.data[m.pos:])
	m.pos += n
	return n, nil
}

func (m *Image) Write(_ context.Context, buf []byte) (int, error) {
	m.Written = append(m.Written, buf...)
	return len(buf), nil
}

func (m *Image) IOCtl(uint32, []byte) (int, error) {
	return 0, status.New(status.Unsupported, "mock: ioctl not supported on image")
}

func (m *Image) Flush() error                     { return nil }
func (m *Image) Purge(transport.Direction) error  { m.pos = 0; return nil }
func (m *Image) Sleep(context.Context, int) error { return nil }
func (m *Image) Close() error                     { return nil }
