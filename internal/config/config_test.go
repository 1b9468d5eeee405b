package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer/internal/config"
)

func TestEnvVarsOverrideDefaults(t *testing.T) {
	t.Setenv("DC_TRANSPORT", "serial")
	t.Setenv("DC_PATH", "/dev/ttyUSB0")
	t.Setenv("DC_BAUD", "19200")

	os.Unsetenv("DC_VENDOR_ID")
	os.Unsetenv("DC_PRODUCT_ID")

	cfg := config.MustGetDeviceConfig()
	require.Equal(t, "serial", cfg.Transport)
	require.Equal(t, "/dev/ttyUSB0", cfg.Path)
	require.Equal(t, 19200, cfg.Baud)
}
