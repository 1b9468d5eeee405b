package suuntovyper_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/checksum"
	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device/suuntovyper"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
	"divecomputer/pkg/dc/transport/mock"
)

func vyperDescriptor(t *testing.T) descriptor.Descriptor {
	t.Helper()
	reg := descriptor.All()
	for {
		d, ok := reg.Next()
		if !ok {
			t.Fatal("no suunto_vyper descriptor in the static table")
		}
		if d.Family == descriptor.FamilySuuntoVyper {
			return d
		}
	}
}

func TestReadEchoesRequestThenReturnsPayload(t *testing.T) {
	req := []byte{0x05, 0x00, 0x00, 0x04}
	req = append(req, checksum.XOR8(req, 0x00))

	reply := []byte{0x00, 0x04, 0x11, 0x22, 0x33, 0x44}
	reply = append(reply, checksum.XOR8(reply, 0x00))

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: req},
		{Read: req},   // echo
		{Read: reply}, // header + payload + checksum
	})

	d, err := suuntovyper.Open(context.Background(), vyperDescriptor(t), tp)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := d.Read(context.Background(), 0, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, buf)
	require.True(t, tp.Exhausted())
}

func TestEchoMismatchIsProtocolError(t *testing.T) {
	req := []byte{0x05, 0x00, 0x00, 0x04}
	req = append(req, checksum.XOR8(req, 0x00))

	wrongEcho := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	tp := mock.NewScripted(transport.KindSerial, []mock.Step{
		{Write: req},
		{Read: wrongEcho},
	})

	d, err := suuntovyper.Open(context.Background(), vyperDescriptor(t), tp)
	require.NoError(t, err)

	_, err = d.Read(context.Background(), 0, make([]byte, 4))
	require.Equal(t, status.Protocol, status.Code(err))
}
