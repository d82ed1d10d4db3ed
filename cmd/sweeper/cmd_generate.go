package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmlab/sweeper/internal/expdef"
	"github.com/swarmlab/sweeper/internal/logging"
	"github.com/swarmlab/sweeper/internal/scaffold"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Expand criteria and scaffold the experiment directory tree",
		Long: `Expand the configured batch criteria into experiment cells and materialize
one input document per run under the deterministic batch root.

Scaffolding is collision-safe: if the input tree already exists, the command
aborts without touching the filesystem. Pass --overwrite to replace it; run
seeds recorded in each cell's manifest are reused so regenerated inputs
stay comparable with earlier results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			b, err := loadBatch(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			result, err := runGenerate(b, overwrite)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"root":  result.Root,
					"cells": result.Cells,
					"runs":  result.RunsPerCell,
				})
			}
			fmt.Printf("Scaffolded %d cells x %d runs under %s\n",
				len(result.Cells), result.RunsPerCell, result.Root)
			return nil
		},
	}

	cmd.Flags().Bool("overwrite", false, "Replace an existing input tree (seeds are reused)")
	return cmd
}

// runGenerate scaffolds the batch. Shared with the pipeline command.
func runGenerate(b *batch, overwrite bool) (*scaffold.Result, error) {
	template, err := expdef.Load(b.Config.Template)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", b.Config.Template, err)
	}

	result, err := scaffold.Scaffold(scaffold.Options{
		Root:     b.Root,
		Template: template,
		Cells:    b.Cells,
		Runs:     b.Config.Runs,
		Ext:      inputExt,
		Seed: scaffold.SeedTarget{
			Path: b.Config.Seed.Path,
			Key:  b.Config.Seed.Key,
		},
		Overwrite: overwrite,
		Logger:    b.Logger,
	})
	if err != nil {
		return nil, err
	}

	b.Events.Log(logging.Event{
		Stage:  logging.StageScaffold,
		Name:   "scaffolded",
		Counts: map[string]int{"cells": len(result.Cells), "runs_per_cell": result.RunsPerCell},
	})
	return result, nil
}
