package reefnetsensus_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device/reefnetsensus"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
	"divecomputer/pkg/dc/transport/mock"
)

func sensusDescriptor(t *testing.T) descriptor.Descriptor {
	t.Helper()
	reg := descriptor.All()
	for {
		d, ok := reg.Next()
		if !ok {
			t.Fatal("no reefnet_sensus descriptor in the static table")
		}
		if d.Family == descriptor.FamilyReefnetSensus {
			return d
		}
	}
}

func handshakeReply() []byte {
	// "OK" + {model, firmware, 4-byte LE device ticks, 4 trailing bytes}
	return []byte{'O', 'K', 0x01, 0x02, 0x78, 0x56, 0x34, 0x12, 0, 0, 0, 0}
}

// withDataFrame wraps an image in the "DATA"+image+crc-LE+"END" envelope
// the 0x40 command elicits, additive-u16 checksum over the image alone.
func withDataFrame(image []byte) []byte {
	crc := checksum.AddUint16(image, 0)
	trailer := make([]byte, 2)
	binary.LittleEndian.PutUint16(trailer, crc)

	buf := append([]byte(nil), []byte("DATA")...)
	buf = append(buf, image...)
	buf = append(buf, trailer...)
	buf = append(buf, []byte("END")...)
	return buf
}

func TestOpenValidatesOKPrefix(t *testing.T) {
	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{0x0A}},
		{Read: handshakeReply()},
	})

	d, err := reefnetsensus.Open(context.Background(), sensusDescriptor(t), tp)
	require.NoError(t, err)
	v, err := d.Version()
	require.NoError(t, err)
	require.Equal(t, string(rune(0x01)), v)
}

func TestOpenRejectsMissingOKPrefix(t *testing.T) {
	bad := append([]byte(nil), handshakeReply()...)
	bad[0] = 'X'
	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{0x0A}},
		{Read: bad},
	})

	_, err := reefnetsensus.Open(context.Background(), sensusDescriptor(t), tp)
	require.Equal(t, status.Protocol, status.Code(err))
}

// S1: a ring image where bytes 0x100..0x107 are the 7-byte start marker
// (0xFF, don't-cares 3C 78 56 34 12, 0xFE) followed by a 20-sample run of
// shallow depths that crosses the 17-consecutive-shallow-sample
// end-of-dive threshold, with a following byte (0x82, another family's
// EOP marker, here just ordinary filler) irrelevant to this scan.
// Expected: exactly one dive, fingerprint = 78 56 34 12, length 27.
func TestForeachExtractsOneDiveViaSensusClassicScan(t *testing.T) {
	const memorySize = 32768
	data := make([]byte, memorySize)
	for i := range data {
		data[i] = 0xAA
	}
	copy(data[0x100:], []byte{0xFF, 0x3C, 0x78, 0x56, 0x34, 0x12, 0xFE})
	shallow := []byte{16, 16, 15, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14}
	copy(data[0x107:], shallow)
	data[0x100+27] = 0x82

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{0x0A}},
		{Read: handshakeReply()},
		{Write: []byte{0x40}},
		{Read: withDataFrame(data)},
	})

	d, err := reefnetsensus.Open(context.Background(), sensusDescriptor(t), tp)
	require.NoError(t, err)

	var dives [][]byte
	var fps [][]byte
	err = d.Foreach(context.Background(), func(dive, fp []byte) bool {
		dives = append(dives, append([]byte(nil), dive...))
		fps = append(fps, append([]byte(nil), fp...))
		return true
	})
	require.NoError(t, err)
	require.Len(t, dives, 1)
	require.Len(t, dives[0], 27)
	require.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, fps[0])
}

func TestFingerprintHaltsEnumeration(t *testing.T) {
	const memorySize = 32768
	data := make([]byte, memorySize)
	for i := range data {
		data[i] = 0xAA
	}
	copy(data[0x100:], []byte{0xFF, 0x3C, 0x78, 0x56, 0x34, 0x12, 0xFE})
	shallow := []byte{16, 16, 15, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14}
	copy(data[0x107:], shallow)

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{0x0A}},
		{Read: handshakeReply()},
		{Write: []byte{0x40}},
		{Read: withDataFrame(data)},
	})

	d, err := reefnetsensus.Open(context.Background(), sensusDescriptor(t), tp)
	require.NoError(t, err)
	require.NoError(t, d.SetFingerprint([]byte{0x78, 0x56, 0x34, 0x12}))

	var dives [][]byte
	err = d.Foreach(context.Background(), func(dive, fp []byte) bool {
		dives = append(dives, append([]byte(nil), dive...))
		return true
	})
	require.NoError(t, err)
	require.Len(t, dives, 0)
}

func TestDumpRejectsBadChecksum(t *testing.T) {
	data := make([]byte, 32768)
	frame := withDataFrame(data)
	frame[4] ^= 0xFF // corrupt one byte of the image without touching DATA/END

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{0x0A}},
		{Read: handshakeReply()},
		{Write: []byte{0x40}},
		{Read: frame},
	})

	d, err := reefnetsensus.Open(context.Background(), sensusDescriptor(t), tp)
	require.NoError(t, err)

	_, err = d.Dump(context.Background())
	require.Equal(t, status.Protocol, status.Code(err))
}

func TestDumpRejectsBadFraming(t *testing.T) {
	data := make([]byte, 32768)
	frame := withDataFrame(data)
	frame[0] = 'X' // corrupt the "DATA" prefix

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{0x0A}},
		{Read: handshakeReply()},
		{Write: []byte{0x40}},
		{Read: frame},
	})

	d, err := reefnetsensus.Open(context.Background(), sensusDescriptor(t), tp)
	require.NoError(t, err)

	_, err = d.Dump(context.Background())
	require.Equal(t, status.Protocol, status.Code(err))
}
