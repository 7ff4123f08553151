package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	psprocess "github.com/shirou/gopsutil/v4/process"

	domainerrors "github.com/core-tools/hsu-webllm/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessInfo struct {
	name, cmdline, cwd          string
	nameErr, cmdlineErr, cwdErr error
}

func (f fakeProcessInfo) NameWithContext(ctx context.Context) (string, error) {
	return f.name, f.nameErr
}

func (f fakeProcessInfo) CmdlineWithContext(ctx context.Context) (string, error) {
	return f.cmdline, f.cmdlineErr
}

func (f fakeProcessInfo) CwdWithContext(ctx context.Context) (string, error) {
	return f.cwd, f.cwdErr
}

func TestReadRecord(t *testing.T) {
	tests := []struct {
		name     string
		pid      int
		info     fakeProcessInfo
		expected Record
		ok       bool
	}{
		{
			name:     "full record",
			pid:      10,
			info:     fakeProcessInfo{name: "python3", cmdline: "python3 -m http.server ", cwd: "/srv/webllm"},
			expected: Record{PID: 10, Name: "python3", CommandLine: "python3 -m http.server", WorkingDirectory: "/srv/webllm"},
			ok:       true,
		},
		{
			name:     "unreadable cwd is left empty",
			pid:      11,
			info:     fakeProcessInfo{name: "chrome", cmdline: "chrome webllm", cwdErr: os.ErrPermission},
			expected: Record{PID: 11, Name: "chrome", CommandLine: "chrome webllm"},
			ok:       true,
		},
		{
			name: "exited during scan",
			pid:  12,
			info: fakeProcessInfo{nameErr: psprocess.ErrorProcessNotRunning},
		},
		{
			name: "command line denied",
			pid:  13,
			info: fakeProcessInfo{name: "sshd", cmdlineErr: os.ErrPermission},
		},
		{
			name: "empty name",
			pid:  14,
			info: fakeProcessInfo{cmdline: "x"},
		},
		{
			name: "invalid pid",
			pid:  0,
			info: fakeProcessInfo{name: "idle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, ok := readRecord(context.Background(), tt.pid, tt.info)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, record)
			}
		})
	}
}

func TestSystemSource_ListFailureIsEnumerationError(t *testing.T) {
	source := &SystemSource{list: func(ctx context.Context) ([]*psprocess.Process, error) {
		return nil, errors.New("proc not mounted")
	}}

	records, err := source.Processes(context.Background())
	assert.Nil(t, records)
	assert.True(t, domainerrors.IsEnumerationError(err))
}

func TestSystemSource_FindsChildWithWorkingDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep(1)")
	}
	dir := t.TempDir()
	cmd := exec.Command("sleep", "37")
	cmd.Dir = dir
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	source := NewSystemSource()
	var found Record
	require.Eventually(t, func() bool {
		records, err := source.Processes(context.Background())
		if err != nil {
			return false
		}
		for _, r := range records {
			if r.PID == cmd.Process.Pid {
				found = r
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "sleep", found.Name)
	assert.Contains(t, found.CommandLine, "37")

	expected, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	actual, err := filepath.EvalSymlinks(found.WorkingDirectory)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}
