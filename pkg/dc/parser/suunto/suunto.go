// Package suunto implements a dive parser for the Suunto Vyper/
// Vyper2/D9 "Common2" family. No representative Suunto parser exists
// upstream, so this package supplements the set: every ring-extracted
// family needs a parser to be end-to-end usable. Grounded on the dive
// layout implied by
// pkg/dc/ringbuffer's start/EOP markers (0x80 start, 0x82
// end-of-profile) and on libdivecomputer's suunto_common ring framing,
// extended here with a fixed small header (timestamp, interval, max
// depth) and a signed depth-delta sample stream
// terminated by the EOP byte, with a sentinel byte flagging an event
// record — the same shape family as the Mares/Reefnet byte-stream
// parsers, since no upstream parser exists for this family to
// translate literally.
package suunto

import (
	"divecomputer/pkg/dc/dctime"
	"divecomputer/pkg/dc/parser"
	"divecomputer/pkg/dc/status"
)

const (
	startByte = 0x80
	eopByte   = 0x82
	markByte  = 0x7E // flags the following byte as an event code, not a depth delta

	headerSize = 9 // start(1) + timestamp-be-u32(4) + interval-be-u16(2) + maxdepth-be-u16(2)
)

// Parser decodes one Suunto Common2/Vyper dive blob as extracted by
// pkg/dc/ringbuffer.ScanEOP.
type Parser struct {
	data []byte
}

var _ parser.Parser = (*Parser)(nil)

// New constructs a Parser over one ring-extracted dive slice.
func New(data []byte) *Parser {
	return &Parser{data: data}
}

func (p *Parser) GetDateTime() (dctime.DateTime, error) {
	if len(p.data) < headerSize {
		return dctime.DateTime{}, status.New(status.DataFormat, "suunto: blob shorter than header")
	}
	ticks := int64(be32(p.data[1:5]))
	return dctime.FromTicks(dctime.Ticks(ticks), dctime.TZNone), nil
}

func (p *Parser) GetField(typ parser.FieldType, flags int) (any, error) {
	if len(p.data) < headerSize {
		return nil, status.New(status.DataFormat, "suunto: blob shorter than header")
	}
	switch typ {
	case parser.FieldDiveTime:
		maxTime := 0
		p.SamplesForeach(func(s parser.Sample) {
			if s.Type == parser.SampleTime && s.Time > maxTime {
				maxTime = s.Time
			}
		})
		return maxTime, nil
	case parser.FieldMaxDepth:
		return float64(be16(p.data[7:9])) / 100.0, nil
	case parser.FieldGasMixCount:
		return 1, nil
	case parser.FieldGasMix:
		return parser.GasMix{Oxygen: 0.21, Nitrogen: 0.79}, nil
	case parser.FieldDiveMode:
		return parser.DiveModeOC, nil
	default:
		return nil, status.New(status.Unsupported, "suunto: field not supported")
	}
}

// SamplesForeach walks the signed depth-delta stream following the
// header, emitting Time/Depth pairs at the header's interval and
// Bookmark events for mark-flagged bytes, until the EOP byte or the
// end of the blob.
func (p *Parser) SamplesForeach(cb parser.SampleCallback) error {
	if len(p.data) < headerSize {
		return status.New(status.DataFormat, "suunto: blob shorter than header")
	}
	d := p.data
	interval := int(be16(d[5:7]))
	if interval == 0 {
		interval = 1
	}

	time := 0
	depthDm := 0
	pos := headerSize
	for pos < len(d) {
		b := d[pos]
		if b == eopByte {
			break
		}
		if b == markByte {
			pos++
			if pos >= len(d) {
				break
			}
			if cb != nil {
				cb(parser.Sample{Type: parser.SampleEvent, Time: time, EventType: parser.EventBookmark, EventValue: int(d[pos])})
			}
			pos++
			continue
		}

		depthDm += int(int8(b))
		if depthDm < 0 {
			depthDm = 0
		}
		time += interval
		if cb != nil {
			cb(parser.Sample{Type: parser.SampleTime, Time: time})
			cb(parser.Sample{Type: parser.SampleDepth, Time: time, Depth: float64(depthDm) / 10.0})
		}
		pos++
	}
	return nil
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
