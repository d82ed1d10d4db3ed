package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/ledger"
	"github.com/swarmlab/sweeper/internal/runner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute every (cell, run) unit with the configured engine",
		Long: `Dispatch one engine subprocess per (cell, run) unit, up to the configured
parallelism. Each unit runs in its own output directory; its exit status is
recorded in the run ledger. A failed unit never blocks its siblings.

With --resume, units whose ledger record is completed are skipped, so an
interrupted batch picks up where it left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			resume, _ := cmd.Flags().GetBool("resume")
			parallelism, _ := cmd.Flags().GetInt("parallelism")

			b, err := loadBatch(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			if parallelism > 0 {
				b.Config.Engine.Parallelism = parallelism
			}

			report, err := runExecute(cmd, b, resume)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(report)
			}
			fmt.Printf("Executed %d units: %d completed, %d failed, %d skipped\n",
				report.Total, report.Completed, report.Failed, report.Skipped)
			if report.Failed > 0 {
				fmt.Println("Failed units are recorded in the ledger; inspect engine.log in their output directories.")
			}
			return nil
		},
	}

	cmd.Flags().Bool("resume", false, "Skip units already recorded complete")
	cmd.Flags().IntP("parallelism", "p", 0, "Override configured parallelism")
	return cmd
}

// runExecute dispatches the batch's units. Shared with the pipeline command.
func runExecute(cmd *cobra.Command, b *batch, resume bool) (*runner.ExecutionReport, error) {
	led, err := ledger.Open(batchroot.StateDir(b.Root))
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}
	defer led.Close()

	coord := &runner.Coordinator{
		Pool:            runner.LocalPool{},
		Ledger:          led,
		Parallelism:     b.Config.Engine.Parallelism,
		CommandTemplate: b.Config.Engine.Command,
		Logger:          b.Logger,
		Events:          b.Events,
	}

	units := runner.UnitsFor(b.Root, b.CellNames(), b.Config.Runs, inputExt)
	return coord.Execute(cmd.Context(), units, resume)
}
