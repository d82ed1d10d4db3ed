package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/ledger"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report per-cell run completion from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			b, err := loadBatch(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			led, err := ledger.Open(batchroot.StateDir(b.Root))
			if err != nil {
				return fmt.Errorf("opening run ledger: %w", err)
			}
			defer led.Close()

			cells, err := led.CellCounts(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"root":  b.Root,
					"runs":  b.Config.Runs,
					"cells": cells,
				})
			}

			fmt.Printf("Batch root: %s\n", b.Root)
			if len(cells) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}
			for _, cs := range cells {
				fmt.Printf("  %-24s %d/%d completed", cs.Cell, cs.Completed, b.Config.Runs)
				if cs.Failed > 0 {
					fmt.Printf(", %d failed", cs.Failed)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
