package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmlab/sweeper/internal/collate"
	"github.com/swarmlab/sweeper/internal/config"
	"github.com/swarmlab/sweeper/internal/logging"
)

func newCollateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collate",
		Short: "Reassemble selected columns into collated files",
		Long: `Apply the configured collation selectors. Run-scoped selectors draw a raw
column from every run of each cell, producing one collated file per cell with
one column per run. Experiment-scoped selectors draw a processed column from
every cell, producing one batch-level file with one column per experiment.

Sources that did not produce the selected file or column are excluded and
reported, never zero-filled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			b, err := loadBatch(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			reports, err := runCollate(cmd, b)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(reports)
			}

			var collated, failed, missing int
			for _, rep := range reports {
				collated += rep.Collated
				failed += rep.Failed
				for _, sel := range rep.Selectors {
					missing += len(sel.Missing)
					for _, m := range sel.Missing {
						fmt.Printf("  missing: %s\n", m.Error())
					}
					if sel.Error != "" {
						fmt.Printf("  failed %s[%s]: %s\n", sel.Selector.File, sel.Selector.Column, sel.Error)
					}
				}
			}
			fmt.Printf("Collated %d files (%d failed, %d sources missing)\n", collated, failed, missing)
			return nil
		},
	}
}

// runCollate applies every configured selector. Shared with the pipeline
// command.
func runCollate(cmd *cobra.Command, b *batch) ([]*collate.Report, error) {
	if len(b.Config.Collations) == 0 {
		return nil, fmt.Errorf("no collations configured")
	}

	// Group selectors by scope; run-scoped collation repeats per cell.
	var runSelectors, expSelectors []collate.Selector
	for _, cc := range b.Config.Collations {
		sel := collate.Selector{File: cc.File, Column: cc.Column}
		if cc.Scope == config.ScopeRuns {
			runSelectors = append(runSelectors, sel)
		} else {
			expSelectors = append(expSelectors, sel)
		}
	}

	c := &collate.Collator{
		Parallelism: b.Config.Engine.Parallelism,
		Logger:      b.Logger,
	}

	var reports []*collate.Report
	for _, cell := range b.CellNames() {
		if len(runSelectors) == 0 {
			break
		}
		rep, err := c.Collate(cmd.Context(), b.Root, cell, runSelectors,
			collate.RunSources(b.Root, cell, b.Config.Runs))
		if err != nil {
			return reports, fmt.Errorf("collating cell %s: %w", cell, err)
		}
		reports = append(reports, rep)
	}

	if len(expSelectors) > 0 {
		rep, err := c.Collate(cmd.Context(), b.Root, "batch", expSelectors,
			collate.ExperimentSources(b.Root, b.CellNames()))
		if err != nil {
			return reports, fmt.Errorf("collating across experiments: %w", err)
		}
		reports = append(reports, rep)
	}

	var missing int
	for _, rep := range reports {
		for _, sel := range rep.Selectors {
			missing += len(sel.Missing)
		}
	}
	b.Events.Log(logging.Event{
		Stage:  logging.StageCollate,
		Name:   "collated",
		Counts: map[string]int{"reports": len(reports), "missing_sources": missing},
	})
	return reports, nil
}
