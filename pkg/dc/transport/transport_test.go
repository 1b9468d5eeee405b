package transport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
)

func TestCustomTransportNilEntryIsUnsupported(t *testing.T) {
	tp := transport.NewCustom(transport.VTable{})
	require.Equal(t, transport.KindCustom, tp.Kind())

	_, err := tp.Read(context.Background(), make([]byte, 4))
	require.Equal(t, status.Unsupported, status.Code(err))

	require.NoError(t, tp.Close()) // close is idempotent-on-null
}

func TestCustomTransportDispatchesToProvidedEntry(t *testing.T) {
	var gotBaud int
	tp := transport.NewCustom(transport.VTable{
		Configure: func(cfg transport.Config) error {
			gotBaud = cfg.Baud
			return nil
		},
	})

	require.NoError(t, tp.Configure(transport.Config{Baud: 9600}))
	require.Equal(t, 9600, gotBaud)

	err := tp.SetBreak(true)
	require.Equal(t, status.Unsupported, status.Code(err))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "ble", transport.KindBLE.String())
	require.Equal(t, "serial", transport.KindSerial.String())
}
