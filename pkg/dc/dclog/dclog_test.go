package dclog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/dclog"
)

func TestSinkReceivesAboveThreshold(t *testing.T) {
	var got []dclog.Record
	dclog.SetSink(func(r dclog.Record) { got = append(got, r) })
	defer dclog.SetSink(nil)
	dclog.SetLevel(dclog.LevelWarning)
	defer dclog.SetLevel(dclog.LevelWarning)

	dclog.Warnf("retrying packet %d", 3)
	dclog.Debugf("should be dropped")

	require.Len(t, got, 1)
	require.Equal(t, dclog.LevelWarning, got[0].Level)
	require.Contains(t, got[0].Message, "retrying packet 3")
}

func TestLevelGatesRecords(t *testing.T) {
	var got []dclog.Record
	dclog.SetSink(func(r dclog.Record) { got = append(got, r) })
	defer dclog.SetSink(nil)
	dclog.SetLevel(dclog.LevelAll)
	defer dclog.SetLevel(dclog.LevelWarning)

	dclog.Debugf("packet dump")

	require.Len(t, got, 1)
	require.Equal(t, dclog.LevelDebug, got[0].Level)
}
