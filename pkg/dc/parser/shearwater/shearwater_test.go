package shearwater_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/parser"
	"divecomputer/pkg/dc/parser/shearwater"
)

const (
	blockSize  = 128
	sampleSize = 16 // legacy Predator format, non-PNF
)

// legacyBlob builds a minimal legacy-format (non-PNF) blob: one
// 128-byte header block, the given dive-sample records, and a
// 128-byte footer block, matching shearwater's !pnf branch where
// opening/closing markers are implicit rather than record-tagged.
func legacyBlob(logVersion byte, o2, he byte, records [][sampleSize]byte) []byte {
	header := make([]byte, blockSize)
	header[20] = o2
	header[30] = he
	header[127] = logVersion

	var body []byte
	for _, r := range records {
		body = append(body, r[:]...)
	}

	footer := make([]byte, blockSize)
	return append(append(header, body...), footer...)
}

func ocSample(depthDm uint16, o2, he byte, temp byte) [sampleSize]byte {
	var r [sampleSize]byte
	r[0], r[1] = byte(depthDm>>8), byte(depthDm)
	r[7] = o2
	r[8] = he
	r[11] = 0x10 // flagOC: open circuit
	r[13] = temp
	return r
}

func TestGasMixCountAndCompositionFromHeaderDefaults(t *testing.T) {
	data := legacyBlob(6, 21, 0, [][sampleSize]byte{
		ocSample(500, 21, 0, 20),
	})
	p := shearwater.New(data, false, 2)

	n, err := p.GetField(parser.FieldGasMixCount, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n.(int))

	gm, err := p.GetField(parser.FieldGasMix, 0)
	require.NoError(t, err)
	require.InDelta(t, 0.21, gm.(parser.GasMix).Oxygen, 0.001)
}

func TestSamplesForeachEmitsTimeAndDepthPerRecord(t *testing.T) {
	data := legacyBlob(6, 21, 0, [][sampleSize]byte{
		ocSample(500, 21, 0, 20),
		ocSample(520, 21, 0, 20),
	})
	p := shearwater.New(data, false, 2)

	var depths []float64
	var times []int
	err := p.SamplesForeach(func(s parser.Sample) {
		switch s.Type {
		case parser.SampleDepth:
			depths = append(depths, s.Depth)
		case parser.SampleTime:
			times = append(times, s.Time)
		}
	})
	require.NoError(t, err)
	require.Equal(t, []float64{50.0, 52.0}, depths)
	require.Equal(t, []int{10000, 20000}, times)
}

func TestNegativeTemperatureByteRemapsUpward(t *testing.T) {
	data := legacyBlob(6, 21, 0, [][sampleSize]byte{
		ocSample(500, 21, 0, 0xA0), // -96 -> +102 -> 6
		ocSample(500, 21, 0, 0x5A), // 90, unaffected
		ocSample(500, 21, 0, 0xFE), // -2 -> +102 -> 100, clamped to 0
	})
	p := shearwater.New(data, false, 2)

	var temps []float64
	err := p.SamplesForeach(func(s parser.Sample) {
		if s.Type == parser.SampleTemperature {
			temps = append(temps, s.Temperature)
		}
	})
	require.NoError(t, err)
	require.Equal(t, []float64{6, 90, 0}, temps)
}

func TestDiveModeDefaultsToOpenCircuit(t *testing.T) {
	data := legacyBlob(6, 21, 0, [][sampleSize]byte{
		ocSample(500, 21, 0, 20),
	})
	p := shearwater.New(data, false, 2)

	mode, err := p.GetField(parser.FieldDiveMode, 0)
	require.NoError(t, err)
	require.Equal(t, parser.DiveModeOC, mode.(parser.DiveMode))
}
