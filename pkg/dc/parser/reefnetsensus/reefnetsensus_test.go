package reefnetsensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/parser"
	"divecomputer/pkg/dc/parser/reefnetsensus"
)

func dive(interval byte, ts uint32, samples []byte) []byte {
	header := []byte{0xFF, interval, byte(ts), byte(ts >> 8), byte(ts >> 16), byte(ts >> 24), 0xFE}
	return append(header, samples...)
}

func TestGetDateTimeAppliesDeviceHostCalibration(t *testing.T) {
	data := dive(1, 1000, []byte{20})
	p := reefnetsensus.New(data, 5000, 5010) // devTime=5000, sysTime=5010 -> +10s offset
	dt, err := p.GetDateTime()
	require.NoError(t, err)
	require.Equal(t, int64(1010), int64(dt.ToTicks()))
}

func TestSamplesForeachEmitsDepthAndPeriodicTemperature(t *testing.T) {
	// A handful of non-shallow depth/temperature bytes followed by a run
	// of shallow samples long enough to trigger end-of-dive detection.
	samples := []byte{50, 60, 70, 80, 90, 100, 70}
	for i := 0; i < 40; i++ {
		samples = append(samples, 0) // depth 0 -> well under the shallow threshold
	}
	data := dive(1, 0, samples)

	p := reefnetsensus.New(data, 0, 0)

	var depths []float64
	var temps []float64
	err := p.SamplesForeach(func(s parser.Sample) {
		switch s.Type {
		case parser.SampleDepth:
			depths = append(depths, s.Depth)
		case parser.SampleTemperature:
			temps = append(temps, s.Temperature)
		}
	})
	require.NoError(t, err)
	require.NotEmpty(t, temps)
	require.NotEmpty(t, depths)
	require.Greater(t, depths[0], depths[len(depths)-1]) // dive shoals toward the shallow tail
}

func TestGetFieldReturnsDefaultAirMix(t *testing.T) {
	p := reefnetsensus.New(dive(1, 0, []byte{0}), 0, 0)
	v, err := p.GetField(parser.FieldGasMix, 0)
	require.NoError(t, err)
	gm := v.(parser.GasMix)
	require.InDelta(t, 0.21, gm.Oxygen, 0.001)
}
