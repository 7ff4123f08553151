package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/core-tools/hsu-webllm/pkg/artifacts"
	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
	"github.com/core-tools/hsu-webllm/pkg/portlease"
	"github.com/core-tools/hsu-webllm/pkg/process"
)

const (
	DefaultSettleDelay = 2 * time.Second
	DefaultPage        = "webllm_test.html"
)

// Config is the top-level configuration file structure
type Config struct {
	Log   logging.ZapConfig `yaml:"log"`
	Stop  StopConfig        `yaml:"stop"`
	Serve ServeConfig       `yaml:"serve"`
}

type StopConfig struct {
	GracePeriod time.Duration `yaml:"grace_period,omitempty"`

	// SettleDelay is the pause between terminating processes and cleaning
	// artifacts. Nil means the default; an explicit zero disables it.
	SettleDelay *time.Duration `yaml:"settle_delay,omitempty"`

	// Selectors and Artifacts fall back to the built-in lists only when the
	// key is absent. An explicit empty list disables matching or cleanup.
	Selectors []process.Selector `yaml:"selectors,omitempty"`
	Artifacts []string           `yaml:"artifacts,omitempty"`
}

type ServeConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Attempts int    `yaml:"attempts,omitempty"`
	Dir      string `yaml:"dir,omitempty"`
	Page     string `yaml:"page,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := &Config{}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads configuration from a YAML file and applies defaults.
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	var config Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && err != io.EOF {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err)
	}
	setConfigDefaults(&config)
	return &config, nil
}

func setConfigDefaults(config *Config) {
	defaults := logging.DefaultZapConfig()
	if config.Log.Level == "" {
		config.Log.Level = defaults.Level
	}
	if config.Log.Format == "" {
		config.Log.Format = defaults.Format
	}
	if config.Log.Output == "" {
		config.Log.Output = defaults.Output
	}

	if config.Stop.GracePeriod == 0 {
		config.Stop.GracePeriod = process.DefaultGracePeriod
	}
	if config.Stop.SettleDelay == nil {
		settle := DefaultSettleDelay
		config.Stop.SettleDelay = &settle
	}
	if config.Stop.Selectors == nil {
		config.Stop.Selectors = process.DefaultSelectors()
	}
	if config.Stop.Artifacts == nil {
		config.Stop.Artifacts = artifacts.DefaultArtifacts()
	}

	if config.Serve.Port == 0 {
		config.Serve.Port = portlease.DefaultPort
	}
	if config.Serve.Attempts == 0 {
		config.Serve.Attempts = portlease.DefaultAttempts
	}
	if config.Serve.Dir == "" {
		config.Serve.Dir = "."
	}
	if config.Serve.Page == "" {
		config.Serve.Page = DefaultPage
	}
}
