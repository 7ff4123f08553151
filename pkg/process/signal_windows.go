//go:build windows

package process

import (
	"os/exec"
	"strconv"

	"golang.org/x/sys/windows"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/processstate"
)

// SystemSignaler asks Windows to close politely through taskkill, which posts
// WM_CLOSE, and falls back to TerminateProcess.
type SystemSignaler struct{}

func NewSystemSignaler() Signaler {
	return SystemSignaler{}
}

func (SystemSignaler) Alive(pid int) (bool, error) {
	return processstate.IsProcessRunning(pid)
}

func (s SystemSignaler) Terminate(pid int) error {
	err := exec.Command("taskkill", "/PID", strconv.Itoa(pid)).Run()
	if err == nil {
		return nil
	}
	alive, aliveErr := s.Alive(pid)
	if aliveErr != nil {
		return errors.NewProcessError("taskkill failed", err).WithContext("pid", pid)
	}
	if !alive {
		return errors.NewNotFoundError("no such process", err).WithContext("pid", pid)
	}
	// Console processes refuse a polite close; leave them for Kill after the
	// grace period.
	return nil
}

func (SystemSignaler) Kill(pid int) error {
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		switch err {
		case windows.ERROR_INVALID_PARAMETER:
			return errors.NewNotFoundError("no such process", err).WithContext("pid", pid)
		case windows.ERROR_ACCESS_DENIED:
			return errors.NewPermissionError("not permitted to terminate process", err).WithContext("pid", pid)
		}
		return errors.NewProcessError("failed to open process", err).WithContext("pid", pid)
	}
	defer windows.CloseHandle(handle)

	if err := windows.TerminateProcess(handle, 1); err != nil {
		if err == windows.ERROR_ACCESS_DENIED {
			return errors.NewPermissionError("not permitted to terminate process", err).WithContext("pid", pid)
		}
		return errors.NewProcessError("failed to terminate process", err).WithContext("pid", pid)
	}
	return nil
}
