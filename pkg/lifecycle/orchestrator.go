// Package lifecycle sequences a WebLLM shutdown: find the processes, confirm,
// terminate them one at a time, clean artifacts and verify.
package lifecycle

import (
	"context"
	"time"

	"github.com/core-tools/hsu-webllm/pkg/artifacts"
	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
	"github.com/core-tools/hsu-webllm/pkg/process"
)

type State string

const (
	StateIdle                 State = "idle"
	StateScanning             State = "scanning"
	StateNoneFound            State = "none_found"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateCancelled            State = "cancelled"
	StateTerminating          State = "terminating"
	StateCleaningArtifacts    State = "cleaning_artifacts"
	StateReporting            State = "reporting"
)

// Scanner is the subset of process.Scanner the orchestrator needs.
type Scanner interface {
	Scan(ctx context.Context, selectors []process.Selector) ([]process.Match, error)
}

type Terminator interface {
	Terminate(ctx context.Context, pid int, grace time.Duration) process.Outcome
}

type Cleaner interface {
	Clean(names []string) artifacts.Result
}

type Options struct {
	Force       bool
	GracePeriod time.Duration
	SettleDelay time.Duration
	Selectors   []process.Selector
	Artifacts   []string
}

type Orchestrator struct {
	scanner    Scanner
	terminator Terminator
	cleaner    Cleaner
	confirmer  Confirmer
	options    Options
	logger     logging.Logger

	state State
	// onTransition observes state changes; used by tests.
	onTransition func(State)
}

func NewOrchestrator(scanner Scanner, terminator Terminator, cleaner Cleaner, confirmer Confirmer, options Options, logger logging.Logger) *Orchestrator {
	if confirmer == nil || options.Force {
		confirmer = FixedConfirmer(true)
	}
	return &Orchestrator{
		scanner:    scanner,
		terminator: terminator,
		cleaner:    cleaner,
		confirmer:  confirmer,
		options:    options,
		logger:     logger,
		state:      StateIdle,
	}
}

func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(to State) {
	o.logger.Debugf("State transition: %s -> %s", o.state, to)
	o.state = to
	if o.onTransition != nil {
		o.onTransition(to)
	}
}

// Run performs one shutdown pass. Only an enumeration failure, a failed
// confirmation read or cancellation of ctx before termination starts return
// an error; every per-process and per-artifact failure is recorded in the
// Report instead. Cancellation during termination stops signalling, skips
// artifact cleanup and returns a Report marked Interrupted.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	o.transition(StateScanning)
	found, err := o.scanner.Scan(ctx, o.options.Selectors)
	if err != nil {
		return nil, err
	}
	report.Found = found
	o.logger.Infof("Found %d WebLLM process(es)", len(found))

	if len(found) == 0 {
		o.transition(StateNoneFound)
		report.State = StateNoneFound
		return report, nil
	}

	if !o.options.Force {
		o.transition(StateAwaitingConfirmation)
		confirmed, err := o.confirmer.Confirm(ctx, found)
		if err != nil {
			return nil, errors.NewInternalError("failed to read confirmation", err)
		}
		if !confirmed {
			o.logger.Infof("Operation cancelled by user")
			o.transition(StateCancelled)
			report.State = StateCancelled
			return report, nil
		}
	}

	o.transition(StateTerminating)
	// Rescan so that anything that exited or appeared while waiting for
	// confirmation is accounted for.
	targets, err := o.scanner.Scan(ctx, o.options.Selectors)
	if err != nil {
		return nil, err
	}
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		o.logger.Infof("Stopping %s (PID: %d, selector: %s)", target.Name, target.PID, target.Selector)
		outcome := o.terminator.Terminate(ctx, target.PID, o.options.GracePeriod)
		report.Outcomes = append(report.Outcomes, TargetOutcome{Match: target, Outcome: outcome})
	}

	if ctx.Err() == nil && len(targets) > 0 && o.options.SettleDelay > 0 {
		select {
		case <-time.After(o.options.SettleDelay):
		case <-ctx.Done():
		}
	}

	if ctx.Err() != nil {
		report.Interrupted = true
		o.logger.Warnf("Shutdown interrupted after %d of %d process(es), skipping artifact cleanup", len(report.Outcomes), len(targets))
	} else {
		o.transition(StateCleaningArtifacts)
		cleaned := o.cleaner.Clean(o.options.Artifacts)
		report.ArtifactsRemoved = cleaned.Removed
		if cleaned.Failures != nil {
			report.ArtifactFailures = cleaned.Failures.Errors
		}
	}

	o.transition(StateReporting)
	// The residual check also runs after an interrupt so the report shows
	// what survived.
	residual, err := o.scanner.Scan(context.WithoutCancel(ctx), o.options.Selectors)
	if err != nil {
		return nil, err
	}
	report.Residual = residual
	report.State = StateReporting

	if len(residual) > 0 {
		o.logger.Warnf("%d WebLLM process(es) still running after shutdown", len(residual))
	} else {
		o.logger.Infof("WebLLM stopped, %d process(es) terminated", report.Stopped())
	}
	return report, nil
}
