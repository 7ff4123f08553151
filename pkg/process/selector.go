package process

import (
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-webllm/pkg/errors"
)

// Record is a point-in-time snapshot of one OS process. Records are never
// cached between scans; a PID only identifies a process within the scan that
// produced it.
type Record struct {
	PID              int
	Name             string
	CommandLine      string
	WorkingDirectory string
}

// SelectorClass decides how a Selector restricts the executable name.
type SelectorClass string

const (
	// SelectorClassBrowser requires an exact executable name match.
	SelectorClassBrowser SelectorClass = "browser"
	// SelectorClassServer only requires the executable to be an interpreter.
	SelectorClassServer SelectorClass = "server"
)

type Selector struct {
	Name  string        `yaml:"name"`
	Class SelectorClass `yaml:"class"`

	// Executables are compared case-insensitively against Record.Name, with a
	// trailing ".exe" ignored on both sides.
	Executables []string `yaml:"executables,omitempty"`

	// Interpreters are case-insensitive substrings of Record.Name that mark an
	// interpreter binary. Server class only.
	Interpreters []string `yaml:"interpreters,omitempty"`

	// Keywords are case-insensitive substrings of Record.CommandLine. At least
	// one must occur when any are given.
	Keywords []string `yaml:"keywords,omitempty"`

	// Arguments are compared case-insensitively against whole
	// whitespace-separated fields of Record.CommandLine. At least one must
	// occur when any are given.
	Arguments []string `yaml:"arguments,omitempty"`

	// SameWorkingDirectory additionally requires the process to run in the
	// directory passed to Matches.
	SameWorkingDirectory bool `yaml:"same_working_directory,omitempty"`
}

// Matches reports whether r is selected. workDir is only consulted when
// SameWorkingDirectory is set.
func (s Selector) Matches(r Record, workDir string) bool {
	if !s.matchesExecutable(r.Name) {
		return false
	}
	if len(s.Keywords) > 0 && !containsAny(strings.ToLower(r.CommandLine), s.Keywords) {
		return false
	}
	if len(s.Arguments) > 0 && !hasArgument(r.CommandLine, s.Arguments) {
		return false
	}
	if s.SameWorkingDirectory {
		if r.WorkingDirectory == "" || workDir == "" {
			return false
		}
		return filepath.Clean(r.WorkingDirectory) == filepath.Clean(workDir)
	}
	return true
}

func (s Selector) matchesExecutable(name string) bool {
	normalized := normalizeExecutable(name)
	if normalized == "" {
		return false
	}
	for _, exe := range s.Executables {
		if normalizeExecutable(exe) == normalized {
			return true
		}
	}
	if s.Class == SelectorClassServer {
		return containsAny(normalized, s.Interpreters)
	}
	return false
}

func normalizeExecutable(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".exe")
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

func hasArgument(cmdline string, arguments []string) bool {
	for _, field := range strings.Fields(cmdline) {
		for _, arg := range arguments {
			if arg != "" && strings.EqualFold(field, arg) {
				return true
			}
		}
	}
	return false
}

// ValidateSelector checks that a selector can match anything at all.
func ValidateSelector(s Selector) error {
	if s.Name == "" {
		return errors.NewValidationError("selector name cannot be empty", nil)
	}
	if len(s.Keywords) == 0 && len(s.Arguments) == 0 {
		return errors.NewValidationError("selector must have at least one keyword or argument", nil).WithContext("selector", s.Name)
	}
	switch s.Class {
	case SelectorClassBrowser:
		if len(s.Executables) == 0 {
			return errors.NewValidationError("browser selector requires executables", nil).WithContext("selector", s.Name)
		}
	case SelectorClassServer:
		if len(s.Executables) == 0 && len(s.Interpreters) == 0 {
			return errors.NewValidationError("server selector requires executables or interpreters", nil).WithContext("selector", s.Name)
		}
	default:
		return errors.NewValidationError("unsupported selector class: "+string(s.Class), nil).WithContext("selector", s.Name)
	}
	return nil
}

// DefaultSelectors returns the browser, interpreter-server and launcher
// selectors for WebLLM.
func DefaultSelectors() []Selector {
	return []Selector{
		{
			Name:  "browser",
			Class: SelectorClassBrowser,
			Executables: []string{
				"chrome", "msedge", "firefox", "opera",
				"brave", "vivaldi", "safari", "iexplore",
			},
			Keywords: []string{"webllm", "qwen"},
		},
		{
			Name:         "python-server",
			Class:        SelectorClassServer,
			Interpreters: []string{"python"},
			Keywords:     []string{"http.server", "socketserver", "webllm", "launch_webllm"},
		},
		{
			Name:        "launcher",
			Class:       SelectorClassServer,
			Executables: []string{"webllm"},
			Arguments:   []string{"serve"},
		},
	}
}
