//go:build linux || darwin

package serialtransport

import (
	"os"

	"golang.org/x/sys/unix"

	"divecomputer/pkg/dc/status"
)

// setBreakLevel drives TIOCSBRK/TIOCCBRK directly via x/sys/unix,
// since go.bug.st/serial exposes no break-condition primitive. It
// opens the device path independently of the serial.Port (which keeps
// its fd private) purely to issue the ioctl.
func setBreakLevel(path string, on bool) error {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return status.Wrap(status.IO, "serial: open for break ioctl", err)
	}
	defer f.Close()

	req := uintptr(unix.TIOCCBRK)
	if on {
		req = uintptr(unix.TIOCSBRK)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), uint(req), 0); err != nil {
		return status.Wrap(status.IO, "serial: break ioctl", err)
	}
	return nil
}
