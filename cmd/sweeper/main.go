package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sweeper",
		Short: "Sweeper - combinatorial experiment batch pipeline",
		Long: `sweeper expands batch criteria into concrete experiment configurations,
scaffolds them under a deterministic directory tree, coordinates parallel
execution of stochastic repetitions by an external engine, and reduces and
collates the per-run outputs into statistics files.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for machine consumption)")
	rootCmd.PersistentFlags().StringP("config", "c", "sweep.yaml", "Batch configuration file")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newGenerateCmd(),
		newRunCmd(),
		newReduceCmd(),
		newCollateCmd(),
		newPipelineCmd(),
		newStatusCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("sweeper version %s\n", version)
			}
		},
	}
}
