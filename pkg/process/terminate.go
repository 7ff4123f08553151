package process

import (
	"context"
	"time"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
)

const (
	DefaultGracePeriod  = 5 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Signaler delivers termination signals to arbitrary PIDs.
//
// Terminate and Kill report a vanished process with a not-found DomainError
// and a privilege rejection with a permission DomainError.
type Signaler interface {
	Alive(pid int) (bool, error)
	Terminate(pid int) error
	Kill(pid int) error
}

type OutcomeKind string

const (
	OutcomeStopped      OutcomeKind = "stopped"
	OutcomeAlreadyGone  OutcomeKind = "already_gone"
	OutcomeAccessDenied OutcomeKind = "access_denied"
	OutcomeFailed       OutcomeKind = "failed"
)

// Outcome is the terminal result of one Terminate call.
type Outcome struct {
	PID    int
	Kind   OutcomeKind
	Forced bool
	Err    error
}

// Succeeded reports whether the process is known to be gone.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeStopped || o.Kind == OutcomeAlreadyGone
}

func (o Outcome) String() string {
	if o.Err != nil {
		return string(o.Kind) + ": " + o.Err.Error()
	}
	if o.Forced {
		return string(o.Kind) + " (forced)"
	}
	return string(o.Kind)
}

type TerminatorOptions struct {
	PollInterval time.Duration
}

type Terminator struct {
	signaler     Signaler
	pollInterval time.Duration
	logger       logging.Logger
}

func NewTerminator(signaler Signaler, options TerminatorOptions, logger logging.Logger) *Terminator {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	return &Terminator{
		signaler:     signaler,
		pollInterval: options.PollInterval,
		logger:       logger,
	}
}

// Terminate stops pid: a graceful signal first, then, if the process is still
// alive after grace, a forced kill followed by an unbounded wait for exit.
// At most two signals are sent. The wait only ends early when ctx is done.
func (t *Terminator) Terminate(ctx context.Context, pid int, grace time.Duration) Outcome {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	alive, err := t.signaler.Alive(pid)
	if err != nil {
		return t.failed(pid, false, errors.NewProcessError("failed to resolve process", err).WithContext("pid", pid))
	}
	if !alive {
		t.logger.Infof("Process PID %d already stopped", pid)
		return Outcome{PID: pid, Kind: OutcomeAlreadyGone}
	}

	t.logger.Infof("Sending termination signal to PID %d, grace period: %v", pid, grace)
	if err := t.signaler.Terminate(pid); err != nil {
		return t.classifySignalError(pid, false, err)
	}

	exited, err := t.waitForExit(ctx, pid, grace)
	if err != nil {
		return t.failed(pid, false, err)
	}
	if exited {
		t.logger.Infof("Process PID %d terminated gracefully", pid)
		return Outcome{PID: pid, Kind: OutcomeStopped}
	}

	t.logger.Warnf("Process PID %d did not terminate within %v, forcing termination", pid, grace)
	if err := t.signaler.Kill(pid); err != nil {
		return t.classifySignalError(pid, true, err)
	}

	if _, err := t.waitForExit(ctx, pid, 0); err != nil {
		return t.failed(pid, true, err)
	}
	t.logger.Infof("Process PID %d force terminated", pid)
	return Outcome{PID: pid, Kind: OutcomeStopped, Forced: true}
}

// classifySignalError turns a signal delivery error into a terminal outcome.
func (t *Terminator) classifySignalError(pid int, forced bool, err error) Outcome {
	switch {
	case errors.IsNotFoundError(err):
		// Exited between the liveness check and the signal.
		if forced {
			return Outcome{PID: pid, Kind: OutcomeStopped, Forced: true}
		}
		return Outcome{PID: pid, Kind: OutcomeAlreadyGone}
	case errors.IsPermissionError(err):
		t.logger.Warnf("Access denied signalling PID %d: %v", pid, err)
		return Outcome{PID: pid, Kind: OutcomeAccessDenied, Forced: forced, Err: err}
	default:
		return t.failed(pid, forced, errors.NewProcessError("failed to signal process", err).WithContext("pid", pid))
	}
}

// waitForExit polls until pid is gone. A zero timeout waits until ctx is done.
// It returns false without error when the timeout elapses.
func (t *Terminator) waitForExit(ctx context.Context, pid int, timeout time.Duration) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		alive, err := t.signaler.Alive(pid)
		if err != nil {
			return false, errors.NewProcessError("failed to check process state", err).WithContext("pid", pid)
		}
		if !alive {
			return true, nil
		}
		if err := ctx.Err(); err != nil {
			return false, errors.NewCancelledError("termination cancelled", err).WithContext("pid", pid)
		}

		select {
		case <-ctx.Done():
			return false, errors.NewCancelledError("termination cancelled", ctx.Err()).WithContext("pid", pid)
		case <-deadline:
			return false, nil
		case <-ticker.C:
		}
	}
}

func (t *Terminator) failed(pid int, forced bool, err error) Outcome {
	t.logger.Errorf("Failed to terminate PID %d: %v", pid, err)
	return Outcome{PID: pid, Kind: OutcomeFailed, Forced: forced, Err: err}
}
