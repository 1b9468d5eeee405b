//go:build !linux && !darwin

package serialtransport

import "divecomputer/pkg/dc/status"

func setBreakLevel(path string, on bool) error {
	return status.New(status.Unsupported, "serial: set_break not implemented on this platform")
}
