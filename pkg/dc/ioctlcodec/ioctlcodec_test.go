package ioctlcodec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/pkg/dc/ioctlcodec"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := ioctlcodec.Request{
		Dir:  ioctlcodec.DirReadWrite,
		Type: ioctlcodec.NamespaceBLE,
		Nr:   ioctlcodec.BLECharacteristic,
		Size: 1024,
	}
	word := ioctlcodec.Encode(req)
	require.Equal(t, req, ioctlcodec.Decode(word))
}

func TestSizeExceedsMaxIsTruncatedOnEncode(t *testing.T) {
	req := ioctlcodec.Request{Size: ioctlcodec.MaxSize + 1}
	got := ioctlcodec.Decode(ioctlcodec.Encode(req))
	require.LessOrEqual(t, got.Size, uint32(ioctlcodec.MaxSize))
}
