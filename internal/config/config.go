// Package config provides unified configuration loading for sweeper.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/swarmlab/sweeper/internal/runner"
	"github.com/swarmlab/sweeper/internal/stats"
)

// SweepConfig describes one batch: the identity fields that name its root,
// the criteria to expand, and the execution and reduction settings.
type SweepConfig struct {
	// SweepRoot is the directory all batch roots are created under.
	SweepRoot string `json:"sweep_root" yaml:"sweep_root"`

	// Project, Controller, and Scenario name the batch. All three feed the
	// deterministic batch root path.
	Project    string `json:"project" yaml:"project"`
	Controller string `json:"controller" yaml:"controller"`
	Scenario   string `json:"scenario" yaml:"scenario"`

	// Template is the path to the experiment template document.
	Template string `json:"template" yaml:"template"`

	// Criteria declares the independent variables, at most two.
	Criteria []CriterionConfig `json:"criteria" yaml:"criteria"`

	// Runs is the number of stochastic repetitions per experiment cell.
	Runs int `json:"runs" yaml:"runs"`

	// Seed names where in the experiment document each run's seed is written.
	Seed SeedConfig `json:"seed" yaml:"seed"`

	// Engine configures the external process that executes one run.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Stats lists the statistic kinds the reducer computes.
	Stats []string `json:"stats" yaml:"stats"`

	// Collations lists the column selectors the collator applies.
	Collations []CollationConfig `json:"collations,omitempty" yaml:"collations,omitempty"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// CriterionConfig declares one batch criterion.
type CriterionConfig struct {
	// Spec is the criterion shorthand, e.g. "population_size.Log8",
	// "noise.Linear100.C4", or "strategy.Enum[greedy,random]".
	Spec string `json:"spec" yaml:"spec"`

	// Path is the slash-separated path of the mapping node the criterion
	// edits inside the experiment document.
	Path string `json:"path" yaml:"path"`

	// Attr is the attribute key under Path that receives each value.
	Attr string `json:"attr" yaml:"attr"`
}

// SeedConfig names the document location each run's seed is written to.
type SeedConfig struct {
	Path string `json:"path" yaml:"path"`
	Key  string `json:"key" yaml:"key"`
}

// EngineConfig configures run execution.
type EngineConfig struct {
	// Command is the shell command template for one run. The {input} token
	// is replaced with the run's materialized input document path.
	Command string `json:"command" yaml:"command"`

	// Parallelism bounds the number of concurrently executing runs.
	Parallelism int `json:"parallelism" yaml:"parallelism"`
}

// CollationConfig declares one collation selector.
type CollationConfig struct {
	// File is the source file name: a raw name like "food.csv" for run
	// scope, or a processed name like "food.mean" for experiment scope.
	File string `json:"file" yaml:"file"`

	// Column is the column to draw from each source.
	Column string `json:"column" yaml:"column"`

	// Scope is "runs" (one column per run, within each experiment) or
	// "experiments" (one column per experiment, across the batch).
	Scope string `json:"scope" yaml:"scope"`
}

// LoggingConfig configures sweeper's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to .sweeper/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Collation scopes.
const (
	ScopeRuns        = "runs"
	ScopeExperiments = "experiments"
)

// Default returns a SweepConfig with sensible defaults. Identity fields have
// no defaults; a config file must provide them.
func Default() *SweepConfig {
	return &SweepConfig{
		SweepRoot: ".",
		Runs:      1,
		Seed: SeedConfig{
			Path: "experiment",
			Key:  "random_seed",
		},
		Engine: EngineConfig{
			Parallelism: 1,
		},
		Stats: []string{"mean", "stddev"},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads a batch configuration from a YAML file, applying
// defaults first and environment variable overrides last.
func LoadFromFile(path string) (*SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand ${VAR} patterns in paths
	config.SweepRoot = expandEnvVars(config.SweepRoot)
	config.Template = expandEnvVars(config.Template)

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *SweepConfig) Validate() error {
	required := []struct{ field, value string }{
		{"sweep_root", c.SweepRoot},
		{"project", c.Project},
		{"controller", c.Controller},
		{"scenario", c.Scenario},
		{"template", c.Template},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s must be set", r.field)
		}
	}

	if len(c.Criteria) == 0 {
		return fmt.Errorf("at least one criterion must be declared")
	}
	for i, crit := range c.Criteria {
		if crit.Spec == "" || crit.Path == "" || crit.Attr == "" {
			return fmt.Errorf("criterion %d: spec, path, and attr must all be set", i)
		}
	}

	if c.Runs < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", c.Runs)
	}
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("engine parallelism must be at least 1, got %d", c.Engine.Parallelism)
	}
	if c.Engine.Command == "" {
		return fmt.Errorf("engine command must be set")
	}
	if !strings.Contains(c.Engine.Command, runner.InputPlaceholder) {
		return fmt.Errorf("engine command must contain the %s placeholder", runner.InputPlaceholder)
	}

	if c.Seed.Path == "" || c.Seed.Key == "" {
		return fmt.Errorf("seed path and key must be set")
	}

	if _, err := stats.ParseKinds(c.Stats); err != nil {
		return fmt.Errorf("invalid stats: %w", err)
	}

	for i, col := range c.Collations {
		if col.File == "" || col.Column == "" {
			return fmt.Errorf("collation %d: file and column must be set", i)
		}
		if col.Scope != ScopeRuns && col.Scope != ScopeExperiments {
			return fmt.Errorf("collation %d: scope must be %q or %q, got %q",
				i, ScopeRuns, ScopeExperiments, col.Scope)
		}
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SweepConfig) {
	if v := os.Getenv("SWEEPER_ROOT"); v != "" {
		config.SweepRoot = v
	}

	if v := os.Getenv("SWEEPER_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Runs = n
		}
	}

	if v := os.Getenv("SWEEPER_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.Parallelism = n
		}
	}

	if v := os.Getenv("SWEEPER_ENGINE_COMMAND"); v != "" {
		config.Engine.Command = v
	}

	if v := os.Getenv("SWEEPER_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
