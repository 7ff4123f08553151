//go:build !windows

package process

import (
	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/processstate"
)

// SystemSignaler sends SIGTERM and SIGKILL to the target PID only; the
// process group is left alone because matched processes belong to the user's
// session, not to us.
type SystemSignaler struct{}

func NewSystemSignaler() Signaler {
	return SystemSignaler{}
}

func (SystemSignaler) Alive(pid int) (bool, error) {
	return processstate.IsProcessRunning(pid)
}

func (SystemSignaler) Terminate(pid int) error {
	return sendSignal(pid, unix.SIGTERM)
}

func (SystemSignaler) Kill(pid int) error {
	return sendSignal(pid, unix.SIGKILL)
}

func sendSignal(pid int, sig unix.Signal) error {
	err := unix.Kill(pid, sig)
	switch err {
	case nil:
		return nil
	case unix.ESRCH:
		return errors.NewNotFoundError("no such process", err).WithContext("pid", pid)
	case unix.EPERM:
		return errors.NewPermissionError("not permitted to signal process", err).WithContext("pid", pid).WithContext("signal", unix.SignalName(sig))
	default:
		return errors.NewProcessError("failed to send signal", err).WithContext("pid", pid).WithContext("signal", unix.SignalName(sig))
	}
}
