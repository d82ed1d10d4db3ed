package mcp

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/ledger"
	"github.com/swarmlab/sweeper/internal/scaffold"
)

// registerTools registers all sweeper MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sweeper_status",
		Description: "Report per-cell run completion counts for a batch, from its run ledger",
	}, s.handleStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sweeper_experiments",
		Description: "List a batch's scaffolded experiment cells with run counts and criterion values",
	}, s.handleExperiments)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sweeper_collations",
		Description: "List the collated statistics files a batch has produced",
	}, s.handleCollations)
}

func (s *Server) handleStatus(ctx context.Context, req *sdk.CallToolRequest, args StatusInput) (*sdk.CallToolResult, StatusOutput, error) {
	if args.Root == "" {
		return nil, StatusOutput{}, fmt.Errorf("root is required")
	}

	led, err := ledger.Open(batchroot.StateDir(args.Root))
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("opening run ledger: %w", err)
	}
	defer led.Close()

	cells, err := led.CellCounts(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	out := StatusOutput{Cells: cells}
	for _, c := range cells {
		out.Completed += c.Completed
		out.Failed += c.Failed
	}
	return nil, out, nil
}

func (s *Server) handleExperiments(ctx context.Context, req *sdk.CallToolRequest, args ExperimentsInput) (*sdk.CallToolResult, ExperimentsOutput, error) {
	if args.Root == "" {
		return nil, ExperimentsOutput{}, fmt.Errorf("root is required")
	}

	entries, err := os.ReadDir(batchroot.InputsDir(args.Root))
	if err != nil {
		return nil, ExperimentsOutput{}, fmt.Errorf("listing experiment cells: %w", err)
	}

	out := ExperimentsOutput{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		summary := ExperimentSummary{Cell: e.Name()}
		// Cells scaffolded without a manifest still list, with zero runs.
		if m, err := scaffold.LoadManifest(args.Root, e.Name()); err == nil {
			summary.Runs = m.Runs
			summary.Values = m.Values
		}
		out.Experiments = append(out.Experiments, summary)
	}
	out.Count = len(out.Experiments)
	return nil, out, nil
}

func (s *Server) handleCollations(ctx context.Context, req *sdk.CallToolRequest, args CollationsInput) (*sdk.CallToolResult, CollationsOutput, error) {
	if args.Root == "" {
		return nil, CollationsOutput{}, fmt.Errorf("root is required")
	}

	dir := batchroot.CollatedDir(args.Root)
	out := CollationsOutput{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out.Files = append(out.Files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, CollationsOutput{}, fmt.Errorf("listing collated files: %w", err)
	}

	sort.Strings(out.Files)
	out.Count = len(out.Files)
	return nil, out, nil
}
