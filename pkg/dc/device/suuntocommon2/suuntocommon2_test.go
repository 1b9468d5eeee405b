package suuntocommon2_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/device/suuntocommon2"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
	"divecomputer/pkg/dc/transport/mock"
)

func usbDescriptor(t *testing.T) descriptor.Descriptor {
	t.Helper()
	reg := descriptor.Filter(transport.KindUSB)
	for {
		d, ok := reg.Next()
		if !ok {
			t.Fatal("no USB-capable descriptor in the static table")
		}
		if d.Family == descriptor.FamilySuuntoCommon2 {
			return d
		}
	}
}

// S2: Suunto-Common2 XOR framing — request [05 00 02 00 04] (XOR=03),
// reply echoes params 00 04 then payload AA BB CC DD EE FF.
func TestXORFramingScenario(t *testing.T) {
	req := []byte{0x05, 0x00, 0x02, 0x00, 0x04}
	req = append(req, checksum.XOR8(req, 0x00))

	reply := []byte{0x05, 0x00, 0x06, 0x00, 0x04, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	reply = append(reply, checksum.XOR8(reply, 0x00))

	tp := mock.NewScripted(transport.KindUSB, []mock.Step{
		{Write: req},
		{Read: reply},
	})

	d, err := suuntocommon2.Open(context.Background(), usbDescriptor(t), tp)
	require.NoError(t, err)

	buf := make([]byte, 6)
	n, err := d.Read(context.Background(), 0x0004, buf)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, buf)
	require.True(t, tp.Exhausted())
}

func TestEchoedCommandMismatchIsProtocolError(t *testing.T) {
	req := []byte{0x05, 0x00, 0x02, 0x00, 0x04}
	req = append(req, checksum.XOR8(req, 0x00))

	badReply := []byte{0x06, 0x00, 0x00, 0x00}
	badReply = append(badReply, checksum.XOR8(badReply, 0x00))

	tp := mock.NewScripted(transport.KindUSB, []mock.Step{
		{Write: req},
		{Read: badReply},
	})

	d, err := suuntocommon2.Open(context.Background(), usbDescriptor(t), tp)
	require.NoError(t, err)

	_, err = d.Read(context.Background(), 0x0004, make([]byte, 6))
	require.Equal(t, status.Protocol, status.Code(err))
}
