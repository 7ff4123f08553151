package lifecycle

import (
	"fmt"
	"io"

	"github.com/core-tools/hsu-webllm/pkg/process"
)

type TargetOutcome struct {
	process.Match
	Outcome process.Outcome
}

// Report aggregates one Run.
type Report struct {
	State            State
	Found            []process.Match
	Outcomes         []TargetOutcome
	ArtifactsRemoved []string
	ArtifactFailures []error
	Residual         []process.Match
	// Interrupted is set when the run was cancelled while terminating.
	Interrupted bool
}

func (r *Report) count(kinds ...process.OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		for _, kind := range kinds {
			if o.Outcome.Kind == kind {
				n++
			}
		}
	}
	return n
}

// Stopped counts processes that are known to be gone, including those that
// exited on their own before being signalled.
func (r *Report) Stopped() int {
	return r.count(process.OutcomeStopped, process.OutcomeAlreadyGone)
}

func (r *Report) AccessDenied() int {
	return r.count(process.OutcomeAccessDenied)
}

func (r *Report) Failed() int {
	return r.count(process.OutcomeFailed)
}

// Success is false only when matched processes survived the shutdown.
func (r *Report) Success() bool {
	switch r.State {
	case StateNoneFound, StateCancelled:
		return true
	case StateReporting:
		return len(r.Residual) == 0
	default:
		return false
	}
}

// WriteSummary prints the end-of-run summary for an operator.
func (r *Report) WriteSummary(w io.Writer) error {
	ew := &errWriter{w: w}

	switch r.State {
	case StateNoneFound:
		ew.printf("No WebLLM processes found running\n")
		return ew.err
	case StateCancelled:
		ew.printf("Operation cancelled, %d process(es) left running\n", len(r.Found))
		return ew.err
	}

	for _, o := range r.Outcomes {
		ew.printf("  %-8s %-20s PID %-7d %s\n", o.Selector, o.Name, o.PID, o.Outcome)
	}
	ew.printf("Stopped: %d, access denied: %d, failed: %d\n", r.Stopped(), r.AccessDenied(), r.Failed())
	if r.Interrupted {
		ew.printf("Interrupted, artifact cleanup skipped\n")
	} else {
		ew.printf("Artifacts removed: %d", len(r.ArtifactsRemoved))
		if len(r.ArtifactFailures) > 0 {
			ew.printf(", not removed: %d", len(r.ArtifactFailures))
		}
		ew.printf("\n")
		for _, err := range r.ArtifactFailures {
			ew.printf("  %v\n", err)
		}
	}

	if len(r.Residual) == 0 {
		ew.printf("WebLLM stopped successfully\n")
	} else {
		ew.printf("%d process(es) still running:\n", len(r.Residual))
		for _, m := range r.Residual {
			ew.printf("  %s (PID %d)\n", m.Name, m.PID)
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
