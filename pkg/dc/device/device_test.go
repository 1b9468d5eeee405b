package device_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/descriptor"
	"divecomputer/pkg/dc/device"
	"divecomputer/pkg/dc/status"
)

func newTestBase(t *testing.T) *device.Base {
	t.Helper()
	reg := descriptor.All()
	d, ok := reg.Next()
	require.True(t, ok)
	return device.NewBase(d, nil, 4)
}

func TestSetFingerprintValidatesSize(t *testing.T) {
	b := newTestBase(t)
	require.NoError(t, b.SetFingerprint(nil))
	require.NoError(t, b.SetFingerprint([]byte{1, 2, 3, 4}))
	err := b.SetFingerprint([]byte{1, 2, 3})
	require.Equal(t, status.InvalidArgs, status.Code(err))
}

func TestCancelledConsultsPredicate(t *testing.T) {
	b := newTestBase(t)
	require.NoError(t, b.Cancelled())

	fired := false
	require.NoError(t, b.SetCancel(func() bool { return fired }))
	require.NoError(t, b.Cancelled())

	fired = true
	require.Equal(t, status.Cancelled, status.Code(b.Cancelled()))
}

func TestEventsOnlyFireForSubscribedMask(t *testing.T) {
	b := newTestBase(t)
	var gotProgress, gotDevInfo bool
	require.NoError(t, b.SetEvents(device.EventProgress, func(mask device.EventMask, p *device.Progress, di *device.DevInfo, c *device.Clock, v *device.Vendor) {
		if mask == device.EventProgress {
			gotProgress = true
		}
		if mask == device.EventDevInfo {
			gotDevInfo = true
		}
	}))

	b.EmitProgress(1, 10)
	b.EmitDevInfo(device.DevInfo{Model: "x"})

	require.True(t, gotProgress)
	require.False(t, gotDevInfo, "DevInfo was not in the subscribed mask")
}

func TestRecordIOAccumulatesStats(t *testing.T) {
	b := newTestBase(t)
	b.RecordIO(10, nil)
	b.RecordIO(5, status.New(status.IO, "boom"))

	snap := b.Stats()
	require.Equal(t, uint64(2), snap.TotalRequests)
	require.Equal(t, uint64(15), snap.TotalBytes)
	require.Equal(t, uint64(1), snap.ErrorCount)
}

func TestMarkClosedFlipsOperational(t *testing.T) {
	b := newTestBase(t)
	require.True(t, b.Operational())
	b.MarkClosed()
	require.False(t, b.Operational())
}
