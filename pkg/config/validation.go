package config

import (
	"github.com/core-tools/hsu-webllm/pkg/artifacts"
	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
	"github.com/core-tools/hsu-webllm/pkg/portlease"
	"github.com/core-tools/hsu-webllm/pkg/process"
)

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return errors.NewValidationError("invalid log configuration", err)
	}
	switch config.Log.Format {
	case "console", "json":
	default:
		return errors.NewValidationError("log format must be 'console' or 'json'", nil).WithContext("format", config.Log.Format)
	}
	switch config.Log.Output {
	case "stderr", "stdout":
	default:
		return errors.NewValidationError("log output must be 'stderr' or 'stdout'", nil).WithContext("output", config.Log.Output)
	}

	if err := validateStopConfig(&config.Stop); err != nil {
		return errors.NewValidationError("invalid stop configuration", err)
	}

	if err := portlease.ValidateRange(config.Serve.Port, config.Serve.Attempts); err != nil {
		return errors.NewValidationError("invalid serve configuration", err)
	}

	return nil
}

func validateStopConfig(stop *StopConfig) error {
	if stop.GracePeriod < 0 {
		return errors.NewValidationError("grace period cannot be negative", nil)
	}
	if stop.SettleDelay != nil && *stop.SettleDelay < 0 {
		return errors.NewValidationError("settle delay cannot be negative", nil)
	}

	names := make(map[string]struct{}, len(stop.Selectors))
	for i, selector := range stop.Selectors {
		if err := process.ValidateSelector(selector); err != nil {
			return errors.NewValidationError("invalid selector", err).WithContext("index", i)
		}
		if _, dup := names[selector.Name]; dup {
			return errors.NewValidationError("duplicate selector name: "+selector.Name, nil)
		}
		names[selector.Name] = struct{}{}
	}

	for _, name := range stop.Artifacts {
		if err := artifacts.ValidateArtifactName(name); err != nil {
			return err
		}
	}
	return nil
}
