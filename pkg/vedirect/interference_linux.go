//go:build linux

package vedirect

import (
	"os"

	"golang.org/x/sys/unix"
)

// checkLineSettings reports whether another process changed the serial
// line away from 19200 8N1. The device is opened with a second descriptor
// because termios state belongs to the device, not to the descriptor.
func checkLineSettings(device string) (bool, error) {
	f, err := os.OpenFile(device, os.O_RDONLY|unix.O_NONBLOCK|unix.O_NOCTTY, 0)
	if err != nil {
		return false, err
	}
	defer f.Close()

	tio, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return false, err
	}
	if tio.Ispeed != unix.B19200 || tio.Ospeed != unix.B19200 {
		return true, nil
	}
	if tio.Cflag&unix.CSIZE != unix.CS8 {
		return true, nil
	}
	return false, nil
}
