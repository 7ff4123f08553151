package process

import (
	"context"
	"strings"

	psprocess "github.com/shirou/gopsutil/v4/process"

	"github.com/core-tools/hsu-webllm/pkg/errors"
)

// processInfo is the part of a gopsutil process handle a Record is built from.
type processInfo interface {
	NameWithContext(ctx context.Context) (string, error)
	CmdlineWithContext(ctx context.Context) (string, error)
	CwdWithContext(ctx context.Context) (string, error)
}

// SystemSource reads the live process table through gopsutil.
type SystemSource struct {
	list func(ctx context.Context) ([]*psprocess.Process, error)
}

// NewSystemSource returns the Source for the running platform.
func NewSystemSource() Source {
	return &SystemSource{list: psprocess.ProcessesWithContext}
}

func (s *SystemSource) Processes(ctx context.Context) ([]Record, error) {
	procs, err := s.list(ctx)
	if err != nil {
		return nil, errors.NewEnumerationError("failed to read process table", err)
	}

	records := make([]Record, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelledError("process enumeration cancelled", err)
		}
		record, ok := readRecord(ctx, int(p.Pid), p)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// readRecord returns false when the process exited during the scan or its
// name or command line cannot be read. An unreadable working directory is
// left empty.
func readRecord(ctx context.Context, pid int, p processInfo) (Record, bool) {
	if pid <= 0 {
		return Record{}, false
	}
	name, err := p.NameWithContext(ctx)
	if err != nil || name == "" {
		return Record{}, false
	}
	cmdline, err := p.CmdlineWithContext(ctx)
	if err != nil {
		return Record{}, false
	}
	cwd, err := p.CwdWithContext(ctx)
	if err != nil {
		cwd = ""
	}
	return Record{
		PID:              pid,
		Name:             name,
		CommandLine:      strings.TrimSpace(cmdline),
		WorkingDirectory: cwd,
	}, true
}
