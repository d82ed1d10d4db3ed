package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/config"
	"github.com/swarmlab/sweeper/internal/criteria"
	"github.com/swarmlab/sweeper/internal/logging"
)

// inputExt is the extension of materialized run input documents.
const inputExt = "yaml"

// batch bundles everything a subcommand needs about one configured batch:
// the validated config, the expanded criteria set and cells, and the
// computed batch root.
type batch struct {
	Config *config.SweepConfig
	Set    *criteria.Set
	Cells  []criteria.ExperimentCell
	Root   string
	Logger *slog.Logger
	Events *logging.EventLogger
}

// loadBatch loads and validates the configured batch, expands its criteria,
// and computes the batch root. Every pipeline subcommand starts here.
func loadBatch(cmd *cobra.Command) (*batch, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	crits := make([]*criteria.BatchCriterion, 0, len(cfg.Criteria))
	for _, cc := range cfg.Criteria {
		crit, err := criteria.Expand(cc.Spec, cc.Path, cc.Attr)
		if err != nil {
			return nil, err
		}
		crits = append(crits, crit)
	}
	set, err := criteria.NewSet(crits...)
	if err != nil {
		return nil, err
	}

	in := batchroot.Inputs{
		SweepRoot:    cfg.SweepRoot,
		Project:      cfg.Project,
		Controller:   cfg.Controller,
		Scenario:     cfg.Scenario,
		TemplateStem: templateStem(cfg.Template),
		CriteriaIDs:  set.IDs(),
	}
	if err := batchroot.Validate(in); err != nil {
		return nil, err
	}
	root := batchroot.Compute(in)

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	events := logging.NewEventLogger(batchroot.StateDir(root), cfg.Logging.Level)

	return &batch{
		Config: cfg,
		Set:    set,
		Cells:  set.Cells(),
		Root:   root,
		Logger: logger,
		Events: events,
	}, nil
}

// CellNames returns the ordered cell directory names.
func (b *batch) CellNames() []string {
	names := make([]string, len(b.Cells))
	for i, c := range b.Cells {
		names[i] = c.Name
	}
	return names
}

func (b *batch) Close() {
	b.Events.Close()
}

func templateStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
