// Package maresdarwin implements the Mares Darwin/Darwin Air parser:
// a 52- or 60-byte header, packed 2-byte depth/deco
// samples, and (Darwin Air only) a third byte per third sample that is
// a tank-pressure delta rather than a new reading. Grounded on
// libdivecomputer's mares_darwin_parser.
package maresdarwin

import (
	"divecomputer/pkg/dc/dctime"
	"divecomputer/pkg/dc/parser"
	"divecomputer/pkg/dc/status"
)

// Model selects between the two header/sample-size variants.
type Model int

const (
	Darwin Model = iota
	DarwinAir
)

const (
	modeAir    = 0
	modeGauge  = 1
	modeNitrox = 2
)

// Parser decodes one Mares Darwin or Darwin Air dive blob.
type Parser struct {
	data       []byte
	model      Model
	headerSize int
	sampleSize int
}

var _ parser.Parser = (*Parser)(nil)

// New constructs a Parser for the given model's header/sample geometry
// (52/2 for Darwin, 60/3 for Darwin Air).
func New(data []byte, model Model) *Parser {
	p := &Parser{data: data, model: model}
	if model == DarwinAir {
		p.headerSize, p.sampleSize = 60, 3
	} else {
		p.headerSize, p.sampleSize = 52, 2
	}
	return p
}

func (p *Parser) mode() int {
	return int(p.data[0x0C]) & 0x03
}

func (p *Parser) GetDateTime() (dctime.DateTime, error) {
	if len(p.data) < p.headerSize {
		return dctime.DateTime{}, status.New(status.DataFormat, "maresdarwin: blob shorter than header")
	}
	d := p.data
	return dctime.DateTime{
		Year:      int(be16(d[0:2])),
		Month:     int(d[2]),
		Day:       int(d[3]),
		Hour:      int(d[4]),
		Minute:    int(d[5]),
		Second:    0,
		TZMinutes: dctime.TZNone,
	}, nil
}

func (p *Parser) GetField(typ parser.FieldType, flags int) (any, error) {
	if len(p.data) < p.headerSize {
		return nil, status.New(status.DataFormat, "maresdarwin: blob shorter than header")
	}
	d := p.data
	mode := p.mode()

	switch typ {
	case parser.FieldDiveTime:
		return int(be16(d[0x06:0x08])) * 20, nil
	case parser.FieldMaxDepth:
		return float64(be16(d[0x08:0x0A])) / 10.0, nil
	case parser.FieldGasMixCount:
		if mode == modeGauge {
			return 0, nil
		}
		return 1, nil
	case parser.FieldGasMix:
		gm := parser.GasMix{Usage: parser.UsageNone}
		if mode == modeNitrox {
			gm.Oxygen = float64(d[0x0E]) / 100.0
		} else {
			gm.Oxygen = 0.21
		}
		gm.Nitrogen = 1.0 - gm.Oxygen - gm.Helium
		return gm, nil
	case parser.FieldTemperatureMinimum:
		return float64(int8(d[0x0A])), nil
	case parser.FieldTankCount:
		if p.model == DarwinAir {
			return 1, nil
		}
		return 0, nil
	case parser.FieldTank:
		if p.model != DarwinAir {
			return nil, status.New(status.Unsupported, "maresdarwin: no tank table on Darwin")
		}
		return parser.Tank{
			Volume:        float64(d[0x13]) / 10.0,
			BeginPressure: float64(be16(d[0x17:0x19])),
			EndPressure:   float64(be16(d[0x19:0x1B])),
			GasMixIndex:   0,
			Usage:         parser.UsageNone,
		}, nil
	case parser.FieldDiveMode:
		switch mode {
		case modeAir, modeNitrox:
			return parser.DiveModeOC, nil
		case modeGauge:
			return parser.DiveModeGauge, nil
		default:
			return nil, status.New(status.DataFormat, "maresdarwin: unrecognized mode byte")
		}
	default:
		return nil, status.New(status.Unsupported, "maresdarwin: field not supported")
	}
}

// SamplesForeach decodes the packed 2-byte samples (11-bit depth in
// decimetres, deco flag, violation flag, 3-bit ascent rate), applying
// the Darwin Air pressure-delta third byte every third sample.
func (p *Parser) SamplesForeach(cb parser.SampleCallback) error {
	if len(p.data) < p.headerSize {
		return status.New(status.DataFormat, "maresdarwin: blob shorter than header")
	}
	d := p.data
	mode := p.mode()

	time := 0
	pressure := int(be16(d[0x17:0x19]))

	var gasmixPrev, gasmix int = -1, -1
	if mode != modeGauge {
		gasmix = 0
	}

	offset := p.headerSize
	for offset+p.sampleSize <= len(d) {
		value := le16(d[offset : offset+2])
		depth := value & 0x07FF
		ascent := (value & 0xE000) >> 13
		violation := (value & 0x1000) >> 12
		deco := (value & 0x0800) >> 11

		time += 20
		if cb != nil {
			cb(parser.Sample{Type: parser.SampleTime, Time: time * 1000})
			cb(parser.Sample{Type: parser.SampleDepth, Time: time * 1000, Depth: float64(depth) / 10.0})
		}

		if gasmix != gasmixPrev {
			if cb != nil {
				cb(parser.Sample{Type: parser.SampleGasMix, Time: time * 1000, GasMixIndex: gasmix})
			}
			gasmixPrev = gasmix
		}

		if ascent != 0 && cb != nil {
			cb(parser.Sample{Type: parser.SampleEvent, Time: time * 1000, EventType: parser.EventAscent, EventValue: int(ascent)})
		}
		if violation != 0 && cb != nil {
			cb(parser.Sample{Type: parser.SampleEvent, Time: time * 1000, EventType: parser.EventCeiling})
		}

		decoSample := parser.Sample{Type: parser.SampleDeco, Time: time * 1000}
		if deco != 0 {
			decoSample.DecoType = parser.DecoDecostop
		} else {
			decoSample.DecoType = parser.DecoNDL
		}
		if cb != nil {
			cb(decoSample)
		}

		if p.sampleSize == 3 {
			if (time/20+2)%3 == 0 {
				pressure -= int(d[offset+2])
				if cb != nil {
					cb(parser.Sample{Type: parser.SamplePressure, Time: time * 1000, TankIndex: 0, Pressure: float64(pressure)})
				}
			}
		}

		offset += p.sampleSize
	}
	return nil
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
