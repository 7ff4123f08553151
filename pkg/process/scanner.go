package process

import (
	"context"
	"os"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
)

// Source enumerates the live process table.
//
// Implementations omit processes whose details cannot be read (exited during
// the scan, permission denied) and return an enumeration error only when the
// table as a whole is inaccessible.
type Source interface {
	Processes(ctx context.Context) ([]Record, error)
}

// Match is a record together with the selector that claimed it.
type Match struct {
	Record
	Selector string
}

type ScannerOptions struct {
	// WorkingDirectory is compared against records for selectors with
	// SameWorkingDirectory set.
	WorkingDirectory string

	// ExcludePIDs are never matched. The scanning process is always excluded.
	ExcludePIDs []int
}

type Scanner struct {
	source  Source
	options ScannerOptions
	exclude map[int]struct{}
	logger  logging.Logger
}

func NewScanner(source Source, options ScannerOptions, logger logging.Logger) *Scanner {
	exclude := map[int]struct{}{os.Getpid(): {}}
	for _, pid := range options.ExcludePIDs {
		exclude[pid] = struct{}{}
	}
	return &Scanner{
		source:  source,
		options: options,
		exclude: exclude,
		logger:  logger,
	}
}

// Walk enumerates the process table afresh and calls fn for every record
// matched by selectors, in source order. Each record is yielded at most once,
// attributed to the first selector that matches it. Returning false from fn
// stops the walk.
func (s *Scanner) Walk(ctx context.Context, selectors []Selector, fn func(Match) bool) error {
	records, err := s.source.Processes(ctx)
	if err != nil {
		if errors.IsEnumerationError(err) || errors.IsCancelledError(err) {
			return err
		}
		return errors.NewEnumerationError("failed to enumerate processes", err)
	}
	s.logger.Debugf("Enumerated %d processes", len(records))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelledError("scan cancelled", err)
		}
		if record.PID <= 0 {
			continue
		}
		if _, skip := s.exclude[record.PID]; skip {
			continue
		}
		for _, selector := range selectors {
			if !selector.Matches(record, s.options.WorkingDirectory) {
				continue
			}
			s.logger.Debugf("Matched process, pid: %d, name: %s, selector: %s", record.PID, record.Name, selector.Name)
			if !fn(Match{Record: record, Selector: selector.Name}) {
				return nil
			}
			break
		}
	}
	return nil
}

// Scan collects the results of Walk.
func (s *Scanner) Scan(ctx context.Context, selectors []Selector) ([]Match, error) {
	var matches []Match
	err := s.Walk(ctx, selectors, func(m Match) bool {
		matches = append(matches, m)
		return true
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// StaticSource serves a fixed process table.
type StaticSource struct {
	Records []Record
	Err     error
}

func (s *StaticSource) Processes(ctx context.Context) ([]Record, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]Record, len(s.Records))
	copy(out, s.Records)
	return out, nil
}
