package units_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/units"
)

func TestFahrenheitToCelsius(t *testing.T) {
	require.InDelta(t, 0.0, units.FahrenheitToCelsius(32), 1e-9)
	require.InDelta(t, 100.0, units.FahrenheitToCelsius(212), 1e-9)
}

func TestFSWToMetresAtSurface(t *testing.T) {
	// Raw adjusted value representing atmospheric pressure at the
	// surface should convert to ~0m depth.
	depth := units.FSWToMetres(units.FSW*units.ATM, units.ATM, 1025)
	require.InDelta(t, 0.0, depth, 0.05)
}
