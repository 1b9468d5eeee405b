package bletransport_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/ioctlcodec"
	"divecomputer/pkg/dc/status"
	"divecomputer/pkg/dc/transport"
	"divecomputer/pkg/dc/transport/bletransport"
)

// Open dials a real BLE peripheral via go-ble/ble, so these tests
// cover only the pure validation paths reachable without a connection.

func TestKindIsBLE(t *testing.T) {
	tp := &bletransport.Transport{}
	require.Equal(t, transport.KindBLE, tp.Kind())
}

func TestConfigureIsSerialOnly(t *testing.T) {
	tp := &bletransport.Transport{}
	err := tp.Configure(transport.Config{})
	require.Equal(t, status.Unsupported, status.Code(err))
}

func TestIOCtlRejectsWrongNamespace(t *testing.T) {
	tp := &bletransport.Transport{}
	req := ioctlcodec.Encode(ioctlcodec.Request{Type: ioctlcodec.NamespaceUSB, Size: 4})
	_, err := tp.IOCtl(req, make([]byte, 4))
	require.Equal(t, status.InvalidArgs, status.Code(err))
}

func TestIOCtlCharacteristicRejectsShortHeader(t *testing.T) {
	tp := &bletransport.Transport{}
	req := ioctlcodec.Encode(ioctlcodec.Request{Type: ioctlcodec.NamespaceBLE, Nr: ioctlcodec.BLECharacteristic, Size: 8})
	_, err := tp.IOCtl(req, make([]byte, 8))
	require.Equal(t, status.InvalidArgs, status.Code(err))
}
