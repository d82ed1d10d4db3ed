package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *SweepConfig {
	c := Default()
	c.SweepRoot = "/tmp/sweeps"
	c.Project = "swarm"
	c.Controller = "forager"
	c.Scenario = "open-field"
	c.Template = "template.yaml"
	c.Criteria = []CriterionConfig{
		{Spec: "population_size.Log8", Path: "population", Attr: "size"},
	}
	c.Runs = 4
	c.Engine = EngineConfig{Command: "engine -c {input}", Parallelism: 2}
	return c
}

func TestDefault(t *testing.T) {
	c := Default()

	if c.Runs != 1 {
		t.Errorf("Runs = %d, want 1", c.Runs)
	}
	if c.Engine.Parallelism != 1 {
		t.Errorf("Engine.Parallelism = %d, want 1", c.Engine.Parallelism)
	}
	if len(c.Stats) != 2 || c.Stats[0] != "mean" || c.Stats[1] != "stddev" {
		t.Errorf("Stats = %v, want [mean stddev]", c.Stats)
	}
	if c.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", c.Logging.Level)
	}
	if c.Seed.Key != "random_seed" {
		t.Errorf("Seed.Key = %q, want random_seed", c.Seed.Key)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	content := `
sweep_root: /data/sweeps
project: swarm
controller: forager
scenario: open-field
template: templates/forager.yaml
criteria:
  - spec: population_size.Log8
    path: population
    attr: size
  - spec: noise.Linear100.C4
    path: environment
    attr: noise
runs: 16
engine:
  command: "engine -c {input} --headless"
  parallelism: 8
stats: [mean, stddev, median]
collations:
  - file: food.csv
    column: collected
    scope: runs
  - file: food.mean
    column: collected
    scope: experiments
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if c.Project != "swarm" || c.Controller != "forager" || c.Scenario != "open-field" {
		t.Errorf("identity fields = %q/%q/%q", c.Project, c.Controller, c.Scenario)
	}
	if len(c.Criteria) != 2 || c.Criteria[1].Spec != "noise.Linear100.C4" {
		t.Errorf("Criteria = %+v", c.Criteria)
	}
	if c.Runs != 16 || c.Engine.Parallelism != 8 {
		t.Errorf("Runs/Parallelism = %d/%d, want 16/8", c.Runs, c.Engine.Parallelism)
	}
	if len(c.Collations) != 2 || c.Collations[1].Scope != ScopeExperiments {
		t.Errorf("Collations = %+v", c.Collations)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", c.Logging.Level)
	}

	// Defaults survive for fields the file omits
	if c.Seed.Key != "random_seed" {
		t.Errorf("Seed.Key = %q, want default preserved", c.Seed.Key)
	}

	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want valid", err)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromFile() on a missing file should fail")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte("runs: [not an int\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() on invalid YAML should fail")
	}
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("SWEEP_BASE", "/mnt/experiments")

	path := filepath.Join(t.TempDir(), "batch.yaml")
	content := "sweep_root: ${SWEEP_BASE}/sweeps\ntemplate: t.yaml\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if c.SweepRoot != "/mnt/experiments/sweeps" {
		t.Errorf("SweepRoot = %q, want env expanded", c.SweepRoot)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWEEPER_RUNS", "32")
	t.Setenv("SWEEPER_PARALLELISM", "4")
	t.Setenv("SWEEPER_LOG_LEVEL", "trace")

	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte("runs: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if c.Runs != 32 {
		t.Errorf("Runs = %d, want env override 32", c.Runs)
	}
	if c.Engine.Parallelism != 4 {
		t.Errorf("Engine.Parallelism = %d, want 4", c.Engine.Parallelism)
	}
	if c.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q, want trace", c.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SweepConfig)
		wantErr string
	}{
		{"valid", func(c *SweepConfig) {}, ""},
		{"missing project", func(c *SweepConfig) { c.Project = "" }, "project"},
		{"missing template", func(c *SweepConfig) { c.Template = "" }, "template"},
		{"no criteria", func(c *SweepConfig) { c.Criteria = nil }, "criterion"},
		{"incomplete criterion", func(c *SweepConfig) { c.Criteria[0].Attr = "" }, "criterion 0"},
		{"zero runs", func(c *SweepConfig) { c.Runs = 0 }, "runs"},
		{"zero parallelism", func(c *SweepConfig) { c.Engine.Parallelism = 0 }, "parallelism"},
		{"no command", func(c *SweepConfig) { c.Engine.Command = "" }, "command"},
		{"no input placeholder", func(c *SweepConfig) { c.Engine.Command = "engine -c run.yaml" }, "{input}"},
		{"missing seed key", func(c *SweepConfig) { c.Seed.Key = "" }, "seed"},
		{"unknown stat", func(c *SweepConfig) { c.Stats = []string{"mode"} }, "stats"},
		{"bad collation scope", func(c *SweepConfig) {
			c.Collations = []CollationConfig{{File: "f.csv", Column: "c", Scope: "cells"}}
		}, "scope"},
		{"bad log level", func(c *SweepConfig) { c.Logging.Level = "verbose" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
