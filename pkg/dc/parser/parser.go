// Package parser implements the dive-blob decoder framework: the Parser
// interface every family implements, and the tagged
// Sample/Field value types the interface's methods traffic in.
// Grounded on libdivecomputer's
// dc_sample_type_t/dc_field_type_t/dc_sample_value_t union, reshaped
// into Go tagged structs (one struct per kind, selected by a Type
// field) instead of a C union, the same "tagged struct instead of
// union" adaptation pkg/dc/status uses for dc_status_t.
package parser

import "divecomputer/pkg/dc/dctime"

// SampleType tags the payload carried by a Sample.
type SampleType int

const (
	SampleTime SampleType = iota
	SampleDepth
	SamplePressure
	SampleTemperature
	SampleEvent
	SampleGasMix
	SampleDeco
	SamplePPO2
	SampleSetpoint
	SampleCNS
	SampleRBT
	SampleHeartbeat
	SampleBearing
	SampleVendor
)

// EventType tags a Sample of type SampleEvent.
type EventType int

const (
	EventNone EventType = iota
	EventDecostop
	EventAscent
	EventCeiling
	EventViolation
	EventBookmark
	EventSurface
	EventSafetyStop
	EventGasChange
	EventDeepStop
)

// DecoType distinguishes the three decompression sample kinds.
type DecoType int

const (
	DecoNDL DecoType = iota
	DecoDecostop
	DecoDeepstop
)

// PPO2Sensor identifies which O2 cell (or the computed/averaged value)
// a PPO2 sample came from.
type PPO2Sensor int

const (
	PPO2Computed PPO2Sensor = -1
	PPO2Cell0    PPO2Sensor = 0
	PPO2Cell1    PPO2Sensor = 1
	PPO2Cell2    PPO2Sensor = 2
)

// Sample is one entry in the totally-ordered stream SamplesForeach
// emits; only the field matching Type is meaningful.
type Sample struct {
	Type SampleType

	Time int // ms or s, per the parser's own convention

	Depth       float64 // metres
	Temperature float64 // °C

	TankIndex int
	Pressure  float64 // bar

	EventType  EventType
	EventValue int
	EventFlags int
	EventTime  int

	GasMixIndex int

	DecoType  DecoType
	DecoTime  int // seconds remaining
	DecoDepth float64
	DecoTTS   int // seconds

	PPO2Sensor PPO2Sensor
	PPO2       float64 // bar

	Setpoint float64 // bar
	CNS      float64 // fraction
	RBT      int      // minutes

	Heartbeat int
	Bearing   int

	VendorData []byte
}

// SampleCallback receives one Sample at a time, in the order
// SamplesForeach walks the blob.
type SampleCallback func(Sample)

// FieldType tags the scalar/table fields a Parser can report via
// GetField.
type FieldType int

const (
	FieldDiveTime FieldType = iota
	FieldMaxDepth
	FieldAvgDepth
	FieldGasMixCount
	FieldGasMix
	FieldTankCount
	FieldTank
	FieldDiveMode
	FieldSalinity
	FieldAtmospheric
	FieldDecoModel
	FieldTemperatureSurface
	FieldTemperatureMinimum
)

// Usage tags what a gas mix or tank is used for.
type Usage int

const (
	UsageNone Usage = iota
	UsageDiluent
	UsageOxygen
	UsageSidemount
)

// GasMix is one entry of a dive's gas-mix table: fractions
// satisfy 0<=O2,He<=1, O2+He<=1, N2 = 1-O2-He.
type GasMix struct {
	Oxygen   float64
	Helium   float64
	Nitrogen float64
	Usage    Usage
}

// Tank is one entry of a dive's tank table.
type Tank struct {
	Volume        float64 // litres
	WorkPressure  float64 // bar
	BeginPressure float64 // bar; 0 if never reported
	EndPressure   float64 // bar
	GasMixIndex   int
	Usage         Usage
}

// DiveMode tags the propulsion/gas-delivery mode of a dive.
type DiveMode int

const (
	DiveModeOC DiveMode = iota
	DiveModeCCR
	DiveModeSCR
	DiveModeGauge
	DiveModeFreedive
)

// SalinityKind distinguishes fresh from salt water for hydrostatic math.
type SalinityKind int

const (
	SalinityFresh SalinityKind = iota
	SalinitySalt
)

// Salinity pairs a kind with its density.
type Salinity struct {
	Kind    SalinityKind
	Density float64 // kg/m^3
}

// DecoModelKind tags the decompression algorithm a dive computer ran.
type DecoModelKind int

const (
	DecoModelBuhlmann DecoModelKind = iota
	DecoModelVPM
	DecoModelDCIEM
)

// DecoModel carries a dive's decompression-model parameters.
type DecoModel struct {
	Kind           DecoModelKind
	GFLow, GFHigh  int // percent, Bühlmann gradient factors
	Conservatism   int // VPM conservatism level
}

// Parser is the per-family dive-blob decoder. A Parser
// is constructed over one immutable dive blob and is re-entrant
// read-only after construction.
type Parser interface {
	// GetDateTime decodes the dive's start timestamp. Returns
	// status.DataFormat if the blob is shorter than its header.
	GetDateTime() (dctime.DateTime, error)

	// GetField decodes one scalar/table field. flags indexes into a
	// gasmix or tank table for the FieldGasMix/FieldTank types.
	// Unsupported fields return status.Unsupported.
	GetField(typ FieldType, flags int) (any, error)

	// SamplesForeach emits a totally-ordered (SampleType, value)
	// stream; every SampleTime precedes the samples sharing its time.
	SamplesForeach(cb SampleCallback) error
}
