// Package reefnetsensus implements the Reefnet Sensus (classic) dive
// parser: a linear byte stream where depth samples are
// one byte of "adjusted FSW" and every 6th sample is followed by a
// Fahrenheit temperature byte. Grounded on libdivecomputer's
// reefnet_sensus_parser.
package reefnetsensus

import (
	"divecomputer/pkg/dc/dctime"
	"divecomputer/pkg/dc/parser"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/units"
)

const sampleDepthAdjust = units.SampleDepthAdjust

// Parser decodes one Reefnet Sensus classic dive blob: a 7-byte start
// marker (0xFF, interval byte, 4-byte LE timestamp, 0xFE) followed by
// interleaved depth/temperature samples.
type Parser struct {
	data []byte

	atmospheric float64 // bar
	density     float64 // kg/m^3

	// devTime/sysTime calibrate the dive's device-relative timestamp to
	// a wall-clock tick, exactly as reefnet_sensus_parser_create's
	// devtime/systime pair does.
	devTime int64
	sysTime int64
}

var _ parser.Parser = (*Parser)(nil)

// New constructs a Parser over data, calibrated by the device/host tick
// pair captured at handshake time.
func New(data []byte, devTime, sysTime int64) *Parser {
	return &Parser{
		data:        data,
		atmospheric: units.ATM,
		density:     1025.0, // salt water, kg/m^3
		devTime:     devTime,
		sysTime:     sysTime,
	}
}

// SetCalibration overrides the default salt-water atmospheric/density
// constants.
func (p *Parser) SetCalibration(atmosphericBar, densityKgM3 float64) {
	p.atmospheric = atmosphericBar
	p.density = densityKgM3
}

func (p *Parser) GetDateTime() (dctime.DateTime, error) {
	if len(p.data) < 2+4 {
		return dctime.DateTime{}, status.New(status.DataFormat, "reefnetsensus: blob shorter than header")
	}
	ts := int64(le32(p.data[2:6]))
	ticks := p.sysTime - (p.devTime - ts)
	return dctime.FromTicks(dctime.Ticks(ticks), dctime.TZNone), nil
}

func (p *Parser) GetField(typ parser.FieldType, flags int) (any, error) {
	switch typ {
	case parser.FieldDiveTime:
		maxTime := 0
		p.SamplesForeach(func(s parser.Sample) {
			if s.Type == parser.SampleTime && s.Time > maxTime {
				maxTime = s.Time
			}
		})
		return maxTime, nil
	case parser.FieldGasMixCount:
		return 1, nil
	case parser.FieldGasMix:
		return parser.GasMix{Oxygen: 0.21, Nitrogen: 0.79}, nil
	case parser.FieldDiveMode:
		return parser.DiveModeOC, nil
	default:
		return nil, status.New(status.Unsupported, "reefnetsensus: field not supported")
	}
}

// SamplesForeach walks the dive's start marker and emits the
// interleaved depth/temperature stream, stopping // end-of-dive rule (17 consecutive shallow samples).
func (p *Parser) SamplesForeach(cb parser.SampleCallback) error {
	data := p.data
	for offset := 0; offset+7 <= len(data); offset++ {
		if data[offset] != 0xFF || data[offset+6] != 0xFE {
			continue
		}

		interval := int(data[offset+1])
		time := 0
		nsamples := 0
		run := 0

		pos := offset + 7
		for pos < len(data) {
			if cb != nil {
				cb(parser.Sample{Type: parser.SampleTime, Time: time})
			}

			depth := int(data[pos])
			pos++
			depthM := units.FSWToMetres(float64(depth+33-sampleDepthAdjust), p.atmospheric, p.density)
			if cb != nil {
				cb(parser.Sample{Type: parser.SampleDepth, Time: time, Depth: depthM})
			}

			if nsamples%6 == 0 && pos < len(data) {
				tempF := float64(data[pos])
				pos++
				if cb != nil {
					cb(parser.Sample{Type: parser.SampleTemperature, Time: time, Temperature: units.FahrenheitToCelsius(tempF)})
				}
			}

			nsamples++
			time += interval

			if depth < sampleDepthAdjust+3 {
				run++
				if run == 17 {
					break
				}
			} else {
				run = 0
			}
		}
		break
	}
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
