//go:build !linux

package vedirect

// checkLineSettings is a no-op where termios is not available.
func checkLineSettings(device string) (bool, error) {
	return false, nil
}
