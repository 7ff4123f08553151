// Package artifacts removes disposable WebLLM files from a working directory.
package artifacts

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
)

// DefaultArtifacts are the result and cache names WebLLM runs leave behind.
func DefaultArtifacts() []string {
	return []string{
		"webllm_results.json",
		".webllm_cache",
		"webllm_cache",
		".webllm",
		"mlc_cache",
	}
}

// Result summarises one Clean pass.
type Result struct {
	Removed  []string
	Failures *errors.ErrorCollection
}

type Cleaner struct {
	fs     afero.Fs
	logger logging.Logger
}

// NewCleaner returns a Cleaner that resolves artifact names against root on
// the OS filesystem.
func NewCleaner(root string, logger logging.Logger) *Cleaner {
	return NewCleanerWithFs(afero.NewBasePathFs(afero.NewOsFs(), root), logger)
}

// NewCleanerWithFs returns a Cleaner operating on fs, whose root is treated
// as the working directory.
func NewCleanerWithFs(fs afero.Fs, logger logging.Logger) *Cleaner {
	return &Cleaner{
		fs:     fs,
		logger: logger,
	}
}

// Clean removes every listed artifact that exists, in order. Missing
// artifacts are skipped; removal failures are collected and do not stop the
// pass.
func (c *Cleaner) Clean(names []string) Result {
	result := Result{Failures: errors.NewErrorCollection()}

	for _, name := range names {
		if err := ValidateArtifactName(name); err != nil {
			result.Failures.Add(err)
			continue
		}

		path := filepath.Clean(name)
		info, err := c.fs.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			c.logger.Warnf("Failed to inspect artifact %s: %v", name, err)
			result.Failures.Add(errors.NewIOError("failed to inspect artifact", err).WithContext("artifact", name))
			continue
		}

		if info.IsDir() {
			err = c.fs.RemoveAll(path)
		} else {
			err = c.fs.Remove(path)
		}
		if err != nil {
			c.logger.Warnf("Failed to remove artifact %s: %v", name, err)
			result.Failures.Add(errors.NewIOError("failed to remove artifact", err).WithContext("artifact", name))
			continue
		}

		c.logger.Infof("Removed artifact %s", name)
		result.Removed = append(result.Removed, name)
	}

	return result
}

// ValidateArtifactName rejects names that could escape the working
// directory.
func ValidateArtifactName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidationError("artifact name cannot be empty", nil)
	}
	if filepath.IsAbs(name) {
		return errors.NewValidationError("artifact name must be relative", nil).WithContext("artifact", name)
	}
	clean := filepath.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errors.NewValidationError("artifact name must stay inside the working directory", nil).WithContext("artifact", name)
	}
	return nil
}
