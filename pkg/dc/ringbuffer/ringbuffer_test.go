package ringbuffer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/ringbuffer"
)

func TestDecrementIncrementInverse(t *testing.T) {
	begin, end := 10, 30
	for x := begin; x < end; x++ {
		for n := 0; n < end-begin; n++ {
			require.Equal(t, x, ringbuffer.Decrement(ringbuffer.Increment(x, n, begin, end), n, begin, end))
		}
	}
}

func TestDistanceMatchesIncrement(t *testing.T) {
	begin, end := 5, 17
	a := 9
	for n := 0; n < end-begin; n++ {
		b := ringbuffer.Increment(a, n, begin, end)
		require.Equal(t, n, ringbuffer.Distance(a, b, begin, end))
	}
}

// S7: a Vyper-layout image where the most recent dive straddles the ring
// boundary. First 40 bytes are "FF ... 80 ..." at end-40, continuing at
// begin for another 20 bytes; delivered dive blob must be the 60-byte
// concatenation of the wrap half and the head half.
func TestScanEOPWraparound(t *testing.T) {
	const begin, end = 0, 100
	data := make([]byte, end)
	for i := range data {
		data[i] = 0x01
	}

	diveStart := end - 40 // straddles the boundary: 40 bytes to end, 20 more from begin
	diveLen := 60
	eop := 20 // just after the 20 bytes continuing from begin

	data[eop] = 0x82
	data[diveStart] = 0xFF

	// StartByte (0x80) must appear at Increment(diveStart, peek, begin, end)
	// so the scanner recognizes diveStart as a dive start. Use peek=1 and
	// place 0x80 one byte after diveStart (with wraparound).
	peek := 1
	markerPos := ringbuffer.Increment(diveStart, peek, begin, end)
	data[markerPos] = 0x80

	var got []byte
	var fp []byte
	ringbuffer.ScanEOP(data, ringbuffer.EOPParams{
		Begin:     begin,
		End:       end,
		EOP:       eop,
		Peek:      peek,
		EOPByte:   0x82,
		StartByte: 0x80,
		FPOffset:  0,
		FPSize:    0,
	}, func(dive, fingerprint []byte) bool {
		got = dive
		fp = fingerprint
		return false
	})

	require.Len(t, got, diveLen)
	require.Nil(t, fp)
}

func TestScanEOPFingerprintHalts(t *testing.T) {
	const begin, end = 0, 50
	data := make([]byte, end)
	eop := 40
	data[eop] = 0x82

	// Two dives: each 10 bytes, starting at 30 and 20 (peek=1 means
	// StartByte sits one byte after the dive start).
	data[30] = 0xAA
	data[31] = 0x80
	data[20] = 0xBB
	data[21] = 0x80

	params := ringbuffer.EOPParams{
		Begin: begin, End: end, EOP: eop, Peek: 1,
		EOPByte: 0x82, StartByte: 0x80,
		FPOffset: 0, FPSize: 1,
	}

	var dives [][]byte
	ringbuffer.ScanEOP(data, params, func(dive, fp []byte) bool {
		dives = append(dives, dive)
		return true
	})
	require.Len(t, dives, 2)

	// Install the newest dive's fingerprint and re-scan: zero dives.
	params.Fingerprint = dives[0][0:1]
	var rescan [][]byte
	ringbuffer.ScanEOP(data, params, func(dive, fp []byte) bool {
		rescan = append(rescan, dive)
		return true
	})
	require.Empty(t, rescan)
}

// S1: Reefnet Sensus end-of-dive scan. Literal bytes :
// 0x100..0x107 = FF 3C 78 56 34 12 FE 55, then 20 depth samples, then
// 0x82 (the next dive's EOP marker, irrelevant to this local scan). The
// run of 17 consecutive shallow samples is what ends the dive; the
// interleaved-temperature-byte skip is disabled here (large
// SampleInterval) to isolate the run-length behavior under test.
func TestScanSensusClassic(t *testing.T) {
	data := make([]byte, 0x100+40)
	data[0x100] = 0xFF
	data[0x100+1] = 0x3C
	// timestamp LE at marker+2: 0x12345678
	data[0x100+2] = 0x78
	data[0x100+3] = 0x56
	data[0x100+4] = 0x34
	data[0x100+5] = 0x12
	data[0x100+6] = 0xFE
	data[0x100+7] = 0x55

	samples := []byte{16, 16, 15, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14}
	copy(data[0x100+8:], samples)
	data[0x100+27] = 0x82

	var dive, fp []byte
	ringbuffer.ScanSensusClassic(data, ringbuffer.SensusClassicParams{
		FPOffset:       2,
		FPSize:         4,
		DepthAdjust:    13,
		ShallowMargin:  3,
		ShallowRunLen:  17,
		SampleInterval: 1000,
	}, func(d, f []byte) bool {
		dive = d
		fp = f
		return true
	})

	require.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, fp)
	require.Len(t, dive, 27)
}

func TestScanSensusPro(t *testing.T) {
	data := []byte{0xEE, 0xEE, 0, 0, 0, 0, 1, 2, 3, 0xFF, 0xFF, 0xDD}
	var dives [][]byte
	ringbuffer.ScanSensusPro(data, ringbuffer.SensusProParams{}, func(d, f []byte) bool {
		dives = append(dives, d)
		return true
	})
	require.Len(t, dives, 1)
	require.Equal(t, data[2:11], dives[0])
}

func TestScanSensusUltraCoalescesZeroRuns(t *testing.T) {
	data := []byte{
		0, 0, 0, 0, 0, 1, 2, 3, 0xFF, 0xFF, 0xFF, 0xFF, 9,
	}
	var dives [][]byte
	ringbuffer.ScanSensusUltra(data, ringbuffer.SensusUltraParams{}, func(d, f []byte) bool {
		dives = append(dives, d)
		return true
	})
	require.Len(t, dives, 1)
	require.Equal(t, data[0:12], dives[0])
}
