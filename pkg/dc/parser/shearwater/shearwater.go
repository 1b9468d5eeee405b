// Package shearwater implements the Shearwater Predator/Petrel parser,
// the hardest parser in this module: record-type
// dispatch over 16-byte (Predator) or 32-byte (Petrel Native Format)
// records, a caching pass that deduplicates gas mixes and locates
// opening/closing/final records, sensor-calibration-driven PPO2
// enrichment, and the negative-temperature byte remap. Grounded on
// libdivecomputer's shearwater_predator_parser.
package shearwater

import (
	"divecomputer/pkg/dc/dctime"
	"divecomputer/pkg/dc/parser"
	"divecomputer/pkg/dc/status"
)

// Record type tags.
const (
	recDiveSample    = 0x01
	recFreediveSmpl  = 0x02
	recOpening0      = 0x10
	recOpening7      = 0x17
	recClosing0      = 0x20
	recClosing7      = 0x27
	recInfoEvent     = 0x30
	recDiveSampleExt = 0xE1
	recFinal         = 0xFF

	infoEventTagLog = 38
)

// Status byte flags within a dive-sample record.
const (
	flagGasSwitch    = 0x01
	flagPPO2External = 0x02
	flagSetpointHigh = 0x04
	flagSC           = 0x08
	flagOC           = 0x10
)

const (
	nFixedGasmixes = 10
	nGasmixes      = 20
	nTanks         = 6
	nRecords       = 8
	undefined      = -1

	// Model is Predator (2) or Petrel/Petrel-2/Teric (3/8, treated alike).
	modelPredator = 2

	sampleSizePredator = 16
	sampleSizePetrel   = 32
	blockSize          = 128
)

type gasmixSlot struct {
	o2, he  int
	diluent bool
	enabled bool
	active  bool
}

type tankSlot struct {
	active               bool
	beginPressure        float64
	endPressure          float64
	usage                parser.Usage
}

// Parser decodes one Shearwater Predator/Petrel dive blob.
type Parser struct {
	data   []byte
	petrel bool
	model  int

	sampleSize int

	cached     bool
	pnf        bool
	logVersion int
	headerSize int
	footerSize int
	opening    [nRecords]int
	closing    [nRecords]int
	final      int

	gasmixes []gasmixSlot
	tanks    [nTanks]tankSlot
	tankIdx  [nTanks]int
	nTanksUp int

	calibration [3]float64
	calibrated  byte

	diveMode        int // M_* constant
	unitsImperial   bool
	atmosphericMbar float64
	densityKgM3     float64
}

var _ parser.Parser = (*Parser)(nil)

// Shearwater dive-mode constants.
const (
	mCC       = 0
	mOCTec    = 1
	mGauge    = 2
	mPPO2     = 3
	mSC       = 4
	mCC2      = 5
	mOCRec    = 6
	mFreedive = 7
)

func isCCR(mode int) bool { return mode == mCC || mode == mCC2 || mode == mSC }

// New constructs a Parser. petrel selects the 32-byte PNF record size
// (false selects the legacy 16-byte Predator format); model is the
// numeric device model read from the handshake, used to scale PPO2
// calibration for the original Predator.
func New(data []byte, petrel bool, model int) *Parser {
	sz := sampleSizePredator
	if petrel {
		sz = sampleSizePetrel
	}
	p := &Parser{data: data, petrel: petrel, model: model, sampleSize: sz, final: undefined}
	for i := range p.opening {
		p.opening[i] = undefined
		p.closing[i] = undefined
	}
	return p
}

func be16(b []byte) int  { return int(b[0])<<8 | int(b[1]) }
func be32(b []byte) int64 {
	return int64(b[0])<<24 | int64(b[1])<<16 | int64(b[2])<<8 | int64(b[3])
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// cache performs the parser's one-time caching pass: locates the
// opening/closing/final records, deduplicates gas mixes, builds the
// tank table, and resolves calibration/units/mode fields. Idempotent:
// subsequent calls are no-ops once p.cached is set.
func (p *Parser) cache() error {
	if p.cached {
		return nil
	}
	data := p.data
	size := len(data)
	if size < 2 {
		return status.New(status.DataFormat, "shearwater: blob too short")
	}

	pnf := p.petrel && be16(data[0:2]) != 0xFFFF

	headerSize, footerSize := 0, 0
	logVersion := 0
	final := undefined
	var opening, closing [nRecords]int
	for i := range opening {
		opening[i], closing[i] = undefined, undefined
	}

	gasmix := make([]gasmixSlot, nGasmixes)
	ngasmixes := nFixedGasmixes
	var tanks [nTanks]tankSlot
	aimode := 0
	diveMode := mOCTec

	if !pnf {
		headerSize, footerSize = blockSize, blockSize
		if size < headerSize+footerSize {
			return status.New(status.DataFormat, "shearwater: blob too short for header/footer blocks")
		}
		if p.petrel || be16(data[size-footerSize:size-footerSize+2]) == 0xFFFD {
			footerSize += blockSize
			if size < headerSize+footerSize {
				return status.New(status.DataFormat, "shearwater: blob too short for final block")
			}
			final = size - blockSize
		}
		for i := 0; i <= 4; i++ {
			opening[i] = 0
			closing[i] = size - footerSize
		}
		logVersion = int(data[127])
		for i := 0; i < nFixedGasmixes; i++ {
			gasmix[i] = gasmixSlot{o2: int(data[20+i]), he: int(data[30+i]), diluent: i >= 5, enabled: true}
		}
	}

	o2Prev, hePrev, dilPrev := undefined, undefined, undefined

	offset := headerSize
	length := size - footerSize
	for offset+p.sampleSize <= length {
		rec := data[offset : offset+p.sampleSize]
		if allZero(rec) {
			offset += p.sampleSize
			continue
		}

		typ := recDiveSample
		if pnf {
			typ = int(data[offset])
		}
		pnfOff := 0
		if pnf {
			pnfOff = 1
		}

		switch {
		case typ == recDiveSample:
			st := int(data[offset+11+pnfOff])
			ccr := st&flagOC == 0
			if ccr {
				if st&flagSC != 0 {
					diveMode = mSC
				} else {
					diveMode = mCC
				}
			}
			o2 := int(data[offset+7+pnfOff])
			he := int(data[offset+8+pnfOff])
			dil := 0
			if ccr {
				dil = 1
			}
			if (o2 != o2Prev || he != hePrev || dil != dilPrev) && (o2 != 0 || he != 0) {
				idx := findGasmix(gasmix, ngasmixes, o2, he, ccr)
				if idx >= ngasmixes {
					if idx >= nGasmixes {
						return status.New(status.NoMemory, "shearwater: maximum number of gas mixes reached")
					}
					gasmix[idx] = gasmixSlot{o2: o2, he: he, diluent: ccr}
					ngasmixes = idx + 1
				}
				gasmix[idx].active = true
				o2Prev, hePrev, dilPrev = o2, he, dil
			}
			if logVersion >= 7 {
				idxs := [2]int{27, 19}
				for i, off := range idxs {
					pressure := be16(data[offset+pnfOff+off : offset+pnfOff+off+2])
					id := i
					if aimode == 4 { // AI_HPCCR
						id += 4
					}
					if pressure < 0xFFF0 {
						pressure &= 0x0FFF
						updateTank(&tanks[id], float64(pressure))
					}
				}
			}
		case typ == recDiveSampleExt:
			if logVersion >= 13 {
				for i := 0; i < 2; i++ {
					pressure := be16(data[offset+pnfOff+i*2 : offset+pnfOff+i*2+2])
					if pressure < 0xFFF0 {
						updateTank(&tanks[2+i], float64(pressure&0x0FFF))
					}
				}
			}
			if logVersion >= 14 {
				for i := 0; i < 2; i++ {
					pressure := be16(data[offset+pnfOff+4+i*2 : offset+pnfOff+4+i*2+2])
					if pressure != 0 {
						id := 4 + i
						if !tanks[id].active {
							usage := parser.UsageDiluent
							if i != 0 {
								usage = parser.UsageOxygen
							}
							tanks[id].usage = usage
						}
						updateTank(&tanks[id], float64(pressure))
					}
				}
			}
		case typ == recFreediveSmpl:
			diveMode = mFreedive
		case typ >= recOpening0 && typ <= recOpening7:
			idx := typ - recOpening0
			opening[idx] = offset
			switch typ {
			case recOpening0:
				for i := 0; i < nFixedGasmixes; i++ {
					gasmix[i].o2 = int(data[offset+20+i])
					gasmix[i].diluent = i >= 5
				}
				for i := 0; i < 2; i++ {
					gasmix[i].he = int(data[offset+30+i])
				}
			case 0x11: // opening 1
				for i := 2; i < nFixedGasmixes; i++ {
					gasmix[i].he = int(data[offset+1+i-2])
				}
			case 0x14: // opening 4
				logVersion = int(data[offset+16])
				if logVersion >= 7 {
					aimode = int(data[offset+28])
				}
				if logVersion >= 8 {
					pnfDivemode := 1
					if !pnf {
						pnfDivemode = 112
					} else {
						pnfDivemode = 1
					}
					diveMode = int(data[offset+pnfDivemode])
				}
			}
		case typ >= recClosing0 && typ <= recClosing7:
			closing[typ-recClosing0] = offset
		case typ == recFinal:
			final = offset
		}

		offset += p.sampleSize
	}

	for i := 0; i <= 4; i++ {
		if opening[i] == undefined || closing[i] == undefined {
			return status.New(status.DataFormat, "shearwater: required opening/closing record missing")
		}
	}

	// Sensor calibration.
	base := opening[3] + 86
	if pnf {
		base = opening[3] + 6
	}
	var calibration [3]float64
	nsensors, ndefaults := 0, 0
	for i := 0; i < 3; i++ {
		raw := be16(data[base+1+i*2 : base+3+i*2])
		cal := float64(raw) / 100000.0
		if p.model == modelPredator {
			cal *= 2.2
		}
		calibration[i] = cal
		if data[base]&(1<<uint(i)) != 0 {
			if raw == 2100 {
				ndefaults++
			}
			nsensors++
		}
	}
	calibrated := data[base]
	if nsensors > 0 && nsensors == ndefaults {
		calibrated = 0
	}

	model := p.model
	if final != undefined {
		model = int(data[final+13])
	}

	// Final gas mix filter: drop unused/diluent-on-OC entries.
	var finalMixes []gasmixSlot
	if diveMode != mFreedive {
		for i := 0; i < ngasmixes; i++ {
			g := gasmix[i]
			if g.o2 == 0 && g.he == 0 {
				continue
			}
			if !g.enabled && !g.active {
				continue
			}
			if g.diluent && !isCCR(diveMode) {
				continue
			}
			finalMixes = append(finalMixes, g)
		}
	}

	var tankIdx [nTanks]int
	ntanks := 0
	for i := 0; i < nTanks; i++ {
		if tanks[i].active {
			tankIdx[i] = ntanks
			ntanks++
		} else {
			tankIdx[i] = undefined
		}
	}

	p.pnf = pnf
	p.logVersion = logVersion
	p.headerSize, p.footerSize = headerSize, footerSize
	p.opening, p.closing, p.final = opening, closing, final
	p.gasmixes = finalMixes
	p.tanks = tanks
	p.tankIdx = tankIdx
	p.nTanksUp = ntanks
	p.calibration = calibration
	p.calibrated = calibrated
	p.diveMode = diveMode
	p.model = model
	p.unitsImperial = data[opening[0]+8] != 0
	p.atmosphericMbar = float64(be16(data[opening[1]+ite(pnf, 16, 47) : opening[1]+ite(pnf, 16, 47)+2]))
	p.densityKgM3 = float64(be16(data[opening[3]+ite(pnf, 3, 83) : opening[3]+ite(pnf, 3, 83)+2]))
	p.cached = true
	return nil
}

func ite(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

func findGasmix(gasmix []gasmixSlot, n, o2, he int, diluent bool) int {
	for i := 0; i < n; i++ {
		if gasmix[i].o2 == o2 && gasmix[i].he == he && gasmix[i].diluent == diluent {
			return i
		}
	}
	return n
}

func updateTank(t *tankSlot, pressure float64) {
	if pressure == 0 {
		return
	}
	if !t.active {
		t.active = true
		t.beginPressure = pressure
	}
	t.endPressure = pressure
}

func (p *Parser) GetDateTime() (dctime.DateTime, error) {
	if err := p.cache(); err != nil {
		return dctime.DateTime{}, err
	}
	ticks := be32(p.data[p.opening[0]+12 : p.opening[0]+16])
	return dctime.FromTicks(dctime.Ticks(ticks), dctime.TZNone), nil
}

func (p *Parser) GetField(typ parser.FieldType, flags int) (any, error) {
	if err := p.cache(); err != nil {
		return nil, err
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
	case parser.FieldGasMixCount:
		return len(p.gasmixes), nil
	case parser.FieldGasMix:
		if flags < 0 || flags >= len(p.gasmixes) {
			return nil, status.New(status.InvalidArgs, "shearwater: gasmix index out of range")
		}
		g := p.gasmixes[flags]
		gm := parser.GasMix{Oxygen: float64(g.o2) / 100.0, Helium: float64(g.he) / 100.0}
		gm.Nitrogen = 1.0 - gm.Oxygen - gm.Helium
		if g.diluent {
			gm.Usage = parser.UsageDiluent
		}
		return gm, nil
	case parser.FieldTankCount:
		return p.nTanksUp, nil
	case parser.FieldTank:
		for i := 0; i < nTanks; i++ {
			if p.tankIdx[i] == flags && p.tanks[i].active {
				t := p.tanks[i]
				return parser.Tank{BeginPressure: t.beginPressure, EndPressure: t.endPressure, Usage: t.usage}, nil
			}
		}
		return nil, status.New(status.InvalidArgs, "shearwater: tank index out of range")
	case parser.FieldDiveMode:
		switch p.diveMode {
		case mCC, mCC2:
			return parser.DiveModeCCR, nil
		case mSC:
			return parser.DiveModeSCR, nil
		case mGauge:
			return parser.DiveModeGauge, nil
		case mFreedive:
			return parser.DiveModeFreedive, nil
		default:
			return parser.DiveModeOC, nil
		}
	case parser.FieldSalinity:
		kind := parser.SalinitySalt
		if p.densityKgM3 == 1000 {
			kind = parser.SalinityFresh
		}
		return parser.Salinity{Kind: kind, Density: p.densityKgM3}, nil
	case parser.FieldAtmospheric:
		return p.atmosphericMbar / 1000.0, nil
	default:
		return nil, status.New(status.Unsupported, "shearwater: field not supported")
	}
}

// SamplesForeach decodes the dive/freedive/info-event record stream,
// "Sample stream" subsection.
func (p *Parser) SamplesForeach(cb parser.SampleCallback) error {
	if err := p.cache(); err != nil {
		return err
	}
	data := p.data
	size := len(data)

	o2Prev, hePrev, dilPrev := undefined, undefined, undefined

	interval := 10000
	if p.pnf && p.logVersion >= 9 && p.opening[5] != undefined {
		interval = be16(data[p.opening[5]+23 : p.opening[5]+25])
	}

	pnfOff := 0
	if p.pnf {
		pnfOff = 1
	}

	time := 0
	offset := p.headerSize
	length := size - p.footerSize
	for offset+p.sampleSize <= length {
		rec := data[offset : offset+p.sampleSize]
		if allZero(rec) {
			offset += p.sampleSize
			continue
		}

		typ := recDiveSample
		if p.pnf {
			typ = int(data[offset])
		}

		switch {
		case typ == recDiveSample:
			time += interval
			emit(cb, parser.Sample{Type: parser.SampleTime, Time: time})

			depthRaw := be16(data[offset+pnfOff : offset+pnfOff+2])
			depth := float64(depthRaw) / 10.0
			if p.unitsImperial {
				depth *= 0.3048
			}
			emit(cb, parser.Sample{Type: parser.SampleDepth, Time: time, Depth: depth})

			temp := int(int8(data[offset+pnfOff+13]))
			if temp < 0 {
				temp += 102
				if temp > 0 {
					temp = 0
				}
			}
			tempC := float64(temp)
			if p.unitsImperial {
				tempC = (float64(temp) - 32.0) * 5.0 / 9.0
			}
			emit(cb, parser.Sample{Type: parser.SampleTemperature, Time: time, Temperature: tempC})

			st := int(data[offset+pnfOff+11])
			ccr := st&flagOC == 0
			if ccr {
				if st&flagPPO2External == 0 {
					emit(cb, parser.Sample{Type: parser.SamplePPO2, Time: time, PPO2Sensor: parser.PPO2Computed, PPO2: float64(data[offset+pnfOff+6]) / 100.0})
					if p.calibrated&0x01 != 0 {
						emit(cb, parser.Sample{Type: parser.SamplePPO2, Time: time, PPO2Sensor: parser.PPO2Cell0, PPO2: float64(data[offset+pnfOff+12]) * p.calibration[0]})
					}
					if p.calibrated&0x02 != 0 {
						emit(cb, parser.Sample{Type: parser.SamplePPO2, Time: time, PPO2Sensor: parser.PPO2Cell1, PPO2: float64(data[offset+pnfOff+14]) * p.calibration[1]})
					}
					if p.calibrated&0x04 != 0 {
						emit(cb, parser.Sample{Type: parser.SamplePPO2, Time: time, PPO2Sensor: parser.PPO2Cell2, PPO2: float64(data[offset+pnfOff+15]) * p.calibration[2]})
					}
				}
				var setpoint float64
				if p.petrel {
					setpoint = float64(data[offset+pnfOff+18]) / 100.0
				} else if st&flagSetpointHigh != 0 {
					setpoint = float64(data[18]) / 100.0
				} else {
					setpoint = float64(data[17]) / 100.0
				}
				emit(cb, parser.Sample{Type: parser.SampleSetpoint, Time: time, Setpoint: setpoint})
			}
			if p.petrel {
				emit(cb, parser.Sample{Type: parser.SampleCNS, Time: time, CNS: float64(data[offset+pnfOff+22]) / 100.0})
			}

			o2 := int(data[offset+pnfOff+7])
			he := int(data[offset+pnfOff+8])
			dil := 0
			if ccr {
				dil = 1
			}
			if (o2 != o2Prev || he != hePrev || dil != dilPrev) && (o2 != 0 || he != 0) {
				idx := findGasmix(gasmixSlotsFrom(p.gasmixes), len(p.gasmixes), o2, he, ccr)
				if idx < len(p.gasmixes) {
					emit(cb, parser.Sample{Type: parser.SampleGasMix, Time: time, GasMixIndex: idx})
				}
				o2Prev, hePrev, dilPrev = o2, he, dil
			}

			decostop := be16(data[offset+pnfOff+2 : offset+pnfOff+4])
			deco := parser.Sample{Type: parser.SampleDeco, Time: time}
			if decostop != 0 {
				deco.DecoType = parser.DecoDecostop
				deco.DecoDepth = float64(decostop)
				if p.unitsImperial {
					deco.DecoDepth *= 0.3048
				}
			} else {
				deco.DecoType = parser.DecoNDL
			}
			deco.DecoTime = int(data[offset+pnfOff+9]) * 60
			deco.DecoTTS = be16(data[offset+pnfOff+4:offset+pnfOff+6]) * 60
			emit(cb, deco)

			if p.logVersion >= 7 {
				idxs := [2]int{27, 19}
				for i, off := range idxs {
					pressure := be16(data[offset+pnfOff+off : offset+pnfOff+off+2])
					if pressure < 0xFFF0 {
						pressure &= 0x0FFF
						if pressure != 0 {
							id := i
							if p.tankIdx[id] == undefined && p.tankIdx[id+4] != undefined {
								id += 4
							}
							if p.tankIdx[id] != undefined {
								emit(cb, parser.Sample{Type: parser.SamplePressure, Time: time, TankIndex: p.tankIdx[id], Pressure: float64(pressure) * 2 * 0.0689476})
							}
						}
					}
				}
				if data[offset+pnfOff+21] < 0xF0 {
					emit(cb, parser.Sample{Type: parser.SampleRBT, Time: time, RBT: int(data[offset+pnfOff+21])})
				}
			}
		case typ == recDiveSampleExt:
			// Pressure-only record; no time/depth of its own.
		case typ == recFreediveSmpl:
			for i := 0; i < 4; i++ {
				idx := offset + i*8
				if idx+8 > offset+p.sampleSize {
					break
				}
				if allZero(data[idx : idx+8]) {
					break
				}
				time += interval
				emit(cb, parser.Sample{Type: parser.SampleTime, Time: time})

				depthMbar := be16(data[idx+1 : idx+3])
				depth := (float64(depthMbar) - p.atmosphericMbar) / 1000.0 / (p.densityKgM3 * 9.81 / 100000.0)
				emit(cb, parser.Sample{Type: parser.SampleDepth, Time: time, Depth: depth})

				temp := int16(be16(data[idx+3 : idx+5]))
				emit(cb, parser.Sample{Type: parser.SampleTemperature, Time: time, Temperature: float64(temp) / 10.0})
			}
		case typ == recInfoEvent:
			event := int(data[offset+1])
			if event == infoEventTagLog {
				w1 := uint32(be32Bytes(data[offset+8 : offset+12]))
				w2 := be32(data[offset+12 : offset+16])
				if w1 != 0xFFFFFFFF {
					emit(cb, parser.Sample{Type: parser.SampleBearing, Time: time, Bearing: int(w1)})
				}
				emit(cb, parser.Sample{Type: parser.SampleEvent, Time: time, EventType: parser.EventBookmark, EventValue: int(w2)})
			}
		}

		offset += p.sampleSize
	}
	return nil
}

func emit(cb parser.SampleCallback, s parser.Sample) {
	if cb != nil {
		cb(s)
	}
}

func gasmixSlotsFrom(mixes []gasmixSlot) []gasmixSlot { return mixes }

func be32Bytes(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
