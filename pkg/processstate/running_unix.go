//go:build !windows

package processstate

import (
	"golang.org/x/sys/unix"
)

func isProcessRunning(pid int) (bool, error) {
	// Signal 0 performs the permission and existence checks without
	// delivering anything.
	err := unix.Kill(pid, 0)
	switch err {
	case nil, unix.EPERM:
		return !isZombie(pid), nil
	case unix.ESRCH:
		return false, nil
	default:
		return false, err
	}
}
