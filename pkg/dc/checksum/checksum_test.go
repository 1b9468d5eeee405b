package checksum_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/checksum"
)

func TestXOR8MatchesS2Scenario(t *testing.T) {
	// S2: request [05 00 02 00 04], XOR = 03.
	req := []byte{0x05, 0x00, 0x02, 0x00, 0x04}
	require.Equal(t, byte(0x03), checksum.XOR8(req, 0x00))
}

func TestAddUint8SumsBytesFromZeroSeed(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30}
	require.Equal(t, checksum.AddUint8(data, 0), byte(0x10+0x20+0x30))
}

func TestCRCCCITTDeterministic(t *testing.T) {
	data := []byte("123456789")
	a := checksum.CRCCCITT(data, 0)
	b := checksum.CRCCCITT(data, 0)
	require.Equal(t, a, b)
	require.NotEqual(t, a, checksum.CRCCCITT([]byte("123456780"), 0))
}

func TestBCDRoundTrip(t *testing.T) {
	for v := 0; v < 100; v++ {
		require.Equal(t, v, checksum.BCDToBinary(checksum.BinaryToBCD(v)))
	}
}
