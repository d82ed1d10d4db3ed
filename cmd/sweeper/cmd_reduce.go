package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmlab/sweeper/internal/logging"
	"github.com/swarmlab/sweeper/internal/reduce"
	"github.com/swarmlab/sweeper/internal/stats"
)

func newReduceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reduce",
		Short: "Reduce raw run outputs into per-experiment statistics files",
		Long: `For every experiment cell, match same-named raw output files across its
runs and compute the configured statistics. Each raw file yields one sibling
per statistic kind, e.g. food.csv becomes food.mean and food.stddev, with
columns and row count preserved.

A shape mismatch between runs fails that file name only; other file names
in the cell still reduce.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			b, err := loadBatch(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			report, err := runReduce(cmd, b)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(report)
			}
			fmt.Printf("Reduced %d raw files across %d cells (%d failed)\n",
				report.Reduced, len(report.Cells), report.Failed)
			for _, cell := range report.Cells {
				for _, f := range cell.Files {
					if f.Error != "" {
						fmt.Printf("  %s/%s: %s\n", cell.Cell, f.Name, f.Error)
					}
				}
			}
			return nil
		},
	}
}

// runReduce reduces the whole batch. Shared with the pipeline command.
func runReduce(cmd *cobra.Command, b *batch) (*reduce.Report, error) {
	kinds, err := stats.ParseKinds(b.Config.Stats)
	if err != nil {
		return nil, err
	}

	r := &reduce.Reducer{
		Kinds:       kinds,
		Parallelism: b.Config.Engine.Parallelism,
		Logger:      b.Logger,
	}
	report, err := r.ReduceBatch(cmd.Context(), b.Root, b.CellNames(), b.Config.Runs)
	if err != nil {
		return nil, err
	}

	b.Events.Log(logging.Event{
		Stage:  logging.StageReduce,
		Name:   "reduced",
		Counts: map[string]int{"files": report.Reduced, "failed": report.Failed},
	})
	return report, nil
}
