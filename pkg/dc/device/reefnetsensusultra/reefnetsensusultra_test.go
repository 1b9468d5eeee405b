package reefnetsensusultra_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device/reefnetsensusultra"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
	"divecomputer/pkg/dc/transport/mock"
)

const prompt = 0xA5

func sensusUltraDescriptor(t *testing.T) descriptor.Descriptor {
	t.Helper()
	reg := descriptor.All()
	for {
		d, ok := reg.Next()
		if !ok {
			t.Fatal("no reefnet_sensusultra descriptor in the static table")
		}
		if d.Family == descriptor.FamilyReefnetSensusUltra {
			return d
		}
	}
}

func page(body []byte) []byte {
	crc := checksum.CRCCCITT(body, 0)
	trailer := make([]byte, 2)
	binary.BigEndian.PutUint16(trailer, crc)
	return append(append([]byte(nil), body...), trailer...)
}

func TestOpenSendsPromptAndReadsHandshake(t *testing.T) {
	body := make([]byte, 10)
	body[0], body[1] = 0x03, 0x05

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{prompt}},
		{Read: page(body)},
		{Write: []byte{prompt}}, // ACCEPT == PROMPT
	})

	d, err := reefnetsensusultra.Open(context.Background(), sensusUltraDescriptor(t), tp)
	require.NoError(t, err)
	v, err := d.Version()
	require.NoError(t, err)
	require.Equal(t, string(rune(0x03)), v)
	require.True(t, tp.Exhausted())
}

func TestPageRetriesOnBadCRCThenAccepts(t *testing.T) {
	body := make([]byte, 10)
	good := page(body)
	bad := page(body)
	bad[len(bad)-1] ^= 0xFF

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: []byte{prompt}},
		{Read: bad},
		{Write: []byte{0x00}}, // REJECT
		{Write: []byte{prompt}},
		{Read: good},
		{Write: []byte{prompt}}, // ACCEPT
	})

	_, err := reefnetsensusultra.Open(context.Background(), sensusUltraDescriptor(t), tp)
	require.NoError(t, err)
	require.True(t, tp.Exhausted())
}

// S3: a simulated transport delivers a page with a deliberately wrong
// CRC-CCITT trailer, then on REJECT delivers the same page with a
// correct trailer; Dump succeeds and terminates once it sees an
// all-0xFF page (the incremental-parsing end-of-data signal), never
// spinning to the fixed memoryDataSize bound.
func TestDumpRetriesBadPageThenTerminatesOnAllFFPage(t *testing.T) {
	handshakeBody := make([]byte, 10)
	handshakeBody[0], handshakeBody[1] = 0x03, 0x05

	dataBody := make([]byte, 512)
	for i := range dataBody {
		dataBody[i] = byte(i)
	}
	goodData := page(dataBody)
	badData := page(dataBody)
	badData[len(badData)-1] ^= 0xFF

	terminator := make([]byte, 512)
	for i := range terminator {
		terminator[i] = 0xFF
	}
	goodTerminator := page(terminator)

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		// handshake
		{Write: []byte{prompt}},
		{Read: page(handshakeBody)},
		{Write: []byte{prompt}}, // ACCEPT

		// first data page: bad CRC, retried, then accepted
		{Write: []byte{prompt}},
		{Read: badData},
		{Write: []byte{0x00}}, // REJECT
		{Write: []byte{prompt}},
		{Read: goodData},
		{Write: []byte{prompt}}, // ACCEPT

		// terminator page: all-0xFF payload ends the dump
		{Write: []byte{prompt}},
		{Read: goodTerminator},
		{Write: []byte{prompt}}, // ACCEPT
	})

	d, err := reefnetsensusultra.Open(context.Background(), sensusUltraDescriptor(t), tp)
	require.NoError(t, err)

	dump, err := d.Dump(context.Background())
	require.NoError(t, err)
	require.Equal(t, dataBody, dump)
	require.True(t, tp.Exhausted())
}

func TestPageExhaustsRetriesAsProtocolError(t *testing.T) {
	body := make([]byte, 10)
	bad := page(body)
	bad[len(bad)-1] ^= 0xFF

	var steps []mock.Step
	for i := 0; i < 3; i++ { // maxRetries=2 -> 3 attempts total
		steps = append(steps, mock.Step{Write: []byte{prompt}}, mock.Step{Read: bad})
		if i < 2 {
			steps = append(steps, mock.Step{Write: []byte{0x00}})
		}
	}

	tp := mock.NewScripted(transport.KindSerial, steps)
	_, err := reefnetsensusultra.Open(context.Background(), sensusUltraDescriptor(t), tp)
	require.Equal(t, status.Protocol, status.Code(err))
}
