// Package processstate answers whether a PID currently names a live process.
package processstate

import (
	"github.com/core-tools/hsu-webllm/pkg/errors"
)

// IsProcessRunning reports whether pid refers to a live, non-zombie process.
// A process owned by another user counts as running.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}
	return isProcessRunning(pid)
}
