//go:build windows

package processstate

import (
	"golang.org/x/sys/windows"
)

const stillActive = 259

func isProcessRunning(pid int) (bool, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		switch err {
		case windows.ERROR_INVALID_PARAMETER:
			return false, nil
		case windows.ERROR_ACCESS_DENIED:
			return true, nil
		}
		return false, err
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false, err
	}
	return exitCode == stillActive, nil
}
