package status_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/status"
)

func TestCodeUnwrapsChain(t *testing.T) {
	base := status.New(status.Protocol, "bad crc")
	wrapped := status.Wrap(status.IO, "read failed", base)

	require.Equal(t, status.IO, status.Code(wrapped))
	require.True(t, errors.Is(wrapped, status.New(status.IO, "")))
}

func TestCodeOfNilIsSuccess(t *testing.T) {
	require.Equal(t, status.Success, status.Code(nil))
}

func TestCodeOfForeignErrorIsIO(t *testing.T) {
	require.Equal(t, status.IO, status.Code(errors.New("boom")))
}
