package mcp

import "github.com/swarmlab/sweeper/internal/ledger"

// StatusInput defines the input for the sweeper_status tool.
type StatusInput struct {
	Root string `json:"root" jsonschema:"Batch root directory"`
}

// StatusOutput defines the output for the sweeper_status tool.
type StatusOutput struct {
	Cells     []ledger.CellStatus `json:"cells" jsonschema:"Per-cell completion counts from the run ledger"`
	Completed int                 `json:"completed" jsonschema:"Total completed runs"`
	Failed    int                 `json:"failed" jsonschema:"Total failed runs"`
}

// ExperimentsInput defines the input for the sweeper_experiments tool.
type ExperimentsInput struct {
	Root string `json:"root" jsonschema:"Batch root directory"`
}

// ExperimentSummary describes one scaffolded experiment cell.
type ExperimentSummary struct {
	Cell   string   `json:"cell"`
	Runs   int      `json:"runs"`
	Values []string `json:"values,omitempty"`
}

// ExperimentsOutput defines the output for the sweeper_experiments tool.
type ExperimentsOutput struct {
	Experiments []ExperimentSummary `json:"experiments" jsonschema:"Scaffolded experiment cells with their criterion values"`
	Count       int                 `json:"count" jsonschema:"Number of cells"`
}

// CollationsInput defines the input for the sweeper_collations tool.
type CollationsInput struct {
	Root string `json:"root" jsonschema:"Batch root directory"`
}

// CollationsOutput defines the output for the sweeper_collations tool.
type CollationsOutput struct {
	Files []string `json:"files" jsonschema:"Collated file paths relative to the collated directory"`
	Count int      `json:"count" jsonschema:"Number of collated files"`
}
