package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DeviceConfig holds the connection parameters dctool needs to reach a
// dive computer: which transport to open, at what path/address, and
// under what baud rate (serial only). Fields are populated from a
// .env file in the project root, then overridden by environment
// variables of the same name.
type DeviceConfig struct {
	Transport string // "serial", "usb", "ble"
	Path      string // serial device node, or BLE address
	Baud      int    // serial baud rate; ignored for usb/ble
	VendorID  int    // USB vendor ID (hex accepted, e.g. "0x1234")
	ProductID int    // USB product ID
}

var (
	deviceConfig *DeviceConfig
	configLoaded bool
)

// LoadDeviceConfig loads and caches the device connection config. The
// first call reads .env (if present) and applies env-var overrides;
// later calls return the cached result.
func LoadDeviceConfig() (*DeviceConfig, error) {
	if deviceConfig != nil && configLoaded {
		return deviceConfig, nil
	}

	cfg := &DeviceConfig{Baud: 9600}

	projectRoot := findProjectRoot()
	envPath := filepath.Join(projectRoot, ".env")

	data, err := os.ReadFile(envPath)
	if err == nil {
		parseEnvFile(string(data), cfg)
	}

	if v := os.Getenv("DC_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("DC_PATH"); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv("DC_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Baud = n
		}
	}
	if v := os.Getenv("DC_VENDOR_ID"); v != "" {
		if n, err := parseIntAuto(v); err == nil {
			cfg.VendorID = n
		}
	}
	if v := os.Getenv("DC_PRODUCT_ID"); v != "" {
		if n, err := parseIntAuto(v); err == nil {
			cfg.ProductID = n
		}
	}

	deviceConfig = cfg
	configLoaded = true
	return cfg, nil
}

func parseEnvFile(content string, cfg *DeviceConfig) {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "DC_TRANSPORT":
			cfg.Transport = value
		case "DC_PATH":
			cfg.Path = value
		case "DC_BAUD":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.Baud = n
			}
		case "DC_VENDOR_ID":
			if n, err := parseIntAuto(value); err == nil {
				cfg.VendorID = n
			}
		case "DC_PRODUCT_ID":
			if n, err := parseIntAuto(value); err == nil {
				cfg.ProductID = n
			}
		}
	}
}

func parseIntAuto(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseInt(s[2:], 16, 32)
		return int(n), err
	}
	return strconv.Atoi(s)
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}

// MustGetDeviceConfig loads the device config and panics if no
// transport path was configured, for use by a CLI's main where a
// missing config is a fatal startup error rather than a recoverable one.
func MustGetDeviceConfig() DeviceConfig {
	cfg, err := LoadDeviceConfig()
	if err != nil {
		panic("dctool: failed to load device config: " + err.Error())
	}
	if cfg.Transport == "" || cfg.Path == "" {
		panic("dctool: DC_TRANSPORT and DC_PATH must be set (.env or environment)")
	}
	return *cfg
}
