package processstate

import (
	"bytes"
	"fmt"
	"os"
)

// isZombie reports whether the process has exited but not yet been reaped.
// Zombies still answer signal 0, so they would otherwise look alive forever
// when their parent is slow to wait on them.
func isZombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// The state field follows the parenthesised comm, which may itself
	// contain spaces or parentheses.
	idx := bytes.LastIndexByte(data, ')')
	if idx < 0 || idx+2 >= len(data) {
		return false
	}
	return data[idx+2] == 'Z'
}
