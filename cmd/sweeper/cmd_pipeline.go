package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run generate, run, reduce, and collate as one sequence",
		Long: `Run the full batch pipeline with hard stage boundaries: scaffolding must
fully succeed before execution starts, execution must finish before
reduction, and reduction before collation. A stage error stops the
pipeline; completed stages are not rolled back.

Collation is skipped when no collations are configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			resume, _ := cmd.Flags().GetBool("resume")

			b, err := loadBatch(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			summary := map[string]any{}

			scaffolded, err := runGenerate(b, overwrite)
			if err != nil {
				return fmt.Errorf("generate stage: %w", err)
			}
			summary["root"] = scaffolded.Root
			summary["cells"] = len(scaffolded.Cells)

			execution, err := runExecute(cmd, b, resume)
			if err != nil {
				return fmt.Errorf("run stage: %w", err)
			}
			summary["completed"] = execution.Completed
			summary["failed"] = execution.Failed
			summary["skipped"] = execution.Skipped

			reduction, err := runReduce(cmd, b)
			if err != nil {
				return fmt.Errorf("reduce stage: %w", err)
			}
			summary["reduced"] = reduction.Reduced
			summary["reduce_failed"] = reduction.Failed

			if len(b.Config.Collations) > 0 {
				reports, err := runCollate(cmd, b)
				if err != nil {
					return fmt.Errorf("collate stage: %w", err)
				}
				var collated int
				for _, rep := range reports {
					collated += rep.Collated
				}
				summary["collated"] = collated
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			fmt.Printf("Pipeline finished under %s\n", scaffolded.Root)
			fmt.Printf("  runs: %d completed, %d failed, %d skipped\n",
				execution.Completed, execution.Failed, execution.Skipped)
			fmt.Printf("  reduced: %d files (%d failed)\n", reduction.Reduced, reduction.Failed)
			if collated, ok := summary["collated"]; ok {
				fmt.Printf("  collated: %v files\n", collated)
			}
			return nil
		},
	}

	cmd.Flags().Bool("overwrite", false, "Replace an existing input tree (seeds are reused)")
	cmd.Flags().Bool("resume", false, "Skip units already recorded complete")
	return cmd
}
