// Package units holds the FSW/CUFT/PSI/BAR/ATM conversion constants and
// the depth/pressure/temperature helpers; the Reefnet Sensus parser is
// the parser that uses them.
package units

const (
	// FSW is feet of seawater per bar, the Reefnet Sensus family's
	// native depth unit.
	FSW = 33.0

	// CUFT is litres per cubic foot, used by imperial tank volumes.
	CUFT = 28.317

	// PSI is bar per PSI.
	PSI = 0.0689476

	// BAR is the reference pressure unit; present for symmetry with the
	// other constants.
	BAR = 1.0

	// ATM is bar per atmosphere.
	ATM = 1.01325

	// SampleDepthAdjust is the Reefnet Sensus raw-byte correction:
	// stored bytes are "adjusted FSW", recoverable FSW by subtracting
	// this constant.
	SampleDepthAdjust = 13

	// StandardGravity in m/s^2, used by FSWToMetres and
	// PressureFromAbsoluteMbar to turn a pressure delta into metres.
	StandardGravity = 9.81
)

// FSWToMetres converts a depth expressed in feet of seawater (already
// corrected for the Sensus adjustment) to metres, net of atmospheric
// pressure, using the classic hydrostatic relation.
func FSWToMetres(fsw, atmosphericBar, densityKgM3 float64) float64 {
	hydrostatic := densityKgM3 * StandardGravity / 100000.0 // bar per metre
	return (fsw/FSW - atmosphericBar) / hydrostatic
}

// FahrenheitToCelsius converts a Reefnet Sensus temperature byte (raw
// degrees Fahrenheit) to Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// PressureFromAbsoluteMbar converts an absolute pressure in millibar to
// metres of seawater given atmospheric pressure (bar) and water density
// (kg/m^3).
func PressureFromAbsoluteMbar(mbar, atmosphericBar, densityKgM3 float64) float64 {
	absoluteBar := mbar / 1000.0
	hydrostatic := densityKgM3 * StandardGravity / 100000.0
	return (absoluteBar - atmosphericBar) / hydrostatic
}
