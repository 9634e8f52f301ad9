/*
PURPOSE:
  Defines the configuration structure and loading logic for olid-runner.
  The model-type table lives here so adding a variant is a config edit.

REQUIREMENTS:
  User-specified:
  - Configure the experiments/data/results/scripts directories.
  - Configure which training template (and optional config file) belongs
    to each model type.

  Implementation-discovered:
  - Needs YAML parsing.
  - Needs a default table covering baseline, features, lstm and plm so the
    harness works without any config file at all.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/experiment
  - Dependencies: gopkg.in/yaml.v3

ERROR HANDLING:
  - Returns explicit error if a specified config file is invalid.
  - Missing default config file falls back to defaults silently.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults mirror the research repo layout (./experiments, ./data, ./src).

USAGE:
  cfg, err := config.Load("olid_runner.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new directories are needed, add to Config struct and update Load()
    defaults.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when the stage argument contracts change.
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML accepts "90m" style values
// (yaml.v3 only decodes bare integers into time.Duration).
type Duration time.Duration

// UnmarshalYAML accepts either integer nanoseconds or a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ModelType describes one entry of the closed model-type table: the
// training template copied into each experiment folder and, optionally,
// the config file handed to it.
type ModelType struct {
	// Template is the training script file name, resolved against ScriptsDir.
	Template string `yaml:"template"`
	// Config is the optional configuration file name, resolved against
	// ConfigsDir. Empty means the template takes no --config argument.
	Config string `yaml:"config"`
}

// Config represents the full configuration for olid-runner.
type Config struct {
	// Interpreter runs every stage script (train/predict/evaluate).
	Interpreter string `yaml:"interpreter"`

	ExperimentsDir string `yaml:"experiments_dir"`
	DataDir        string `yaml:"data_dir"`
	ConfigsDir     string `yaml:"configs_dir"`
	ScriptsDir     string `yaml:"scripts_dir"`
	ResultsDir     string `yaml:"results_dir"`

	// RegistryPath locates the SQLite run registry. Empty disables it.
	RegistryPath string `yaml:"registry_path"`

	// StageTimeout bounds each stage subprocess. Zero means no timeout,
	// matching the original workflow where training ran unbounded.
	StageTimeout Duration `yaml:"stage_timeout"`

	// SupportScripts are copied into every experiment folder alongside the
	// training template.
	SupportScripts []string `yaml:"support_scripts"`

	// ModelTypes is the closed dispatch table.
	ModelTypes map[string]ModelType `yaml:"model_types"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Interpreter:    "python3",
		ExperimentsDir: "./experiments",
		DataDir:        "./data",
		ConfigsDir:     "./data/configs",
		ScriptsDir:     "./src",
		ResultsDir:     "./results",
		RegistryPath:   "./results/runs.db",
		StageTimeout:   0,
		SupportScripts: []string{"predict.py", "evaluate.py", "util.py", "preprocessing.py"},
		ModelTypes: map[string]ModelType{
			"baseline": {Template: "baseline.py"},
			"features": {Template: "features.py", Config: "features.yaml"},
			"lstm":     {Template: "lstm.py", Config: "lstm.yaml"},
			"plm":      {Template: "plm.py", Config: "plm.yaml"},
		},
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"olid_runner.yaml", "runner.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	// A model_types block replaces the default table wholesale; merging the
	// two would reopen the closed enumeration.
	var probe struct {
		ModelTypes map[string]ModelType `yaml:"model_types"`
	}
	if err := yaml.Unmarshal(data, &probe); err == nil && probe.ModelTypes != nil {
		cfg.ModelTypes = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
