package descriptor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/transport"
)

func TestAllIsRestartable(t *testing.T) {
	reg := descriptor.All()
	var first []descriptor.Descriptor
	for {
		d, ok := reg.Next()
		if !ok {
			break
		}
		first = append(first, d)
	}
	require.NotEmpty(t, first)
	_, ok := reg.Next()
	require.False(t, ok)

	reg.Reset()
	d, ok := reg.Next()
	require.True(t, ok)
	require.Equal(t, first[0], d)
}

func TestFilterByTransportOnlyReturnsSupporting(t *testing.T) {
	reg := descriptor.Filter(transport.KindBLE)
	require.Greater(t, reg.Len(), 0)
	for {
		d, ok := reg.Next()
		if !ok {
			break
		}
		require.True(t, d.Transports.Supports(transport.KindBLE))
	}
}

func TestFilterExcludesNonMatchingTransport(t *testing.T) {
	reg := descriptor.Filter(transport.KindIrDA)
	_, ok := reg.Next()
	require.False(t, ok, "no descriptor in the static table claims IrDA support")
}
