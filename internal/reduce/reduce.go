// Package reduce computes per-experiment statistical reductions: for each
// raw output file name shared by an experiment's runs, it loads the per-run
// tables and writes one processed sibling per requested statistic kind.
package reduce

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/pathutil"
	"github.com/swarmlab/sweeper/internal/stats"
	"github.com/swarmlab/sweeper/internal/table"
)

// FileResult records the outcome for one raw file name within one cell. A
// shape mismatch is fatal for that file name only; other file names in the
// same cell still reduce.
type FileResult struct {
	Name    string   `json:"name"`
	Runs    int      `json:"runs"`
	Outputs []string `json:"outputs,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// CellReport summarizes one cell's reduction.
type CellReport struct {
	Cell    string       `json:"cell"`
	Reduced int          `json:"reduced"`
	Failed  int          `json:"failed"`
	Files   []FileResult `json:"files"`
}

// Report summarizes a whole-batch reduction.
type Report struct {
	Reduced int          `json:"reduced"`
	Failed  int          `json:"failed"`
	Cells   []CellReport `json:"cells"`
}

// Reducer reduces raw run outputs into processed statistics files.
type Reducer struct {
	Kinds       []stats.StatKind
	Parallelism int
	Logger      *slog.Logger
}

// ReduceCell reduces one experiment: every raw .csv file name observed across
// runDirs becomes one processed file per requested statistic kind, written
// under the cell's statistics directory. File names are independent units and
// reduce in parallel; a failure in one never stops the others.
func (r *Reducer) ReduceCell(ctx context.Context, root, cell string, runDirs []string) (*CellReport, error) {
	if len(r.Kinds) == 0 {
		return nil, fmt.Errorf("no statistic kinds requested")
	}
	if len(runDirs) == 0 {
		return nil, fmt.Errorf("no run output directories for cell %s", cell)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	names, err := rawFileNames(runDirs)
	if err != nil {
		return nil, err
	}

	report := &CellReport{Cell: cell, Files: make([]FileResult, len(names))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism())

	for i, name := range names {
		g.Go(func() error {
			res := r.reduceFile(root, cell, name, runDirs)

			mu.Lock()
			report.Files[i] = res
			if res.Error != "" {
				report.Failed++
				logger.Warn("reduction failed", "cell", cell, "file", name, "error", res.Error)
			} else {
				report.Reduced++
				logger.Debug("reduced raw file", "cell", cell, "file", name, "runs", res.Runs)
			}
			mu.Unlock()
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("reduction interrupted: %w", err)
	}
	return report, nil
}

// ReduceBatch reduces every cell in a batch, reading each cell's run output
// directories from the canonical layout.
func (r *Reducer) ReduceBatch(ctx context.Context, root string, cells []string, runs int) (*Report, error) {
	report := &Report{}
	for _, cell := range cells {
		runDirs := make([]string, 0, runs)
		for k := 0; k < runs; k++ {
			runDirs = append(runDirs, batchroot.RunOutputDir(root, cell, k))
		}

		cr, err := r.ReduceCell(ctx, root, cell, runDirs)
		if err != nil {
			return report, fmt.Errorf("reducing cell %s: %w", cell, err)
		}
		report.Reduced += cr.Reduced
		report.Failed += cr.Failed
		report.Cells = append(report.Cells, *cr)
	}
	return report, nil
}

// reduceFile loads one raw file name from every run directory, reduces, and
// writes one output per statistic kind. Every run must have produced the
// file; a partial reduction over a subset of runs would silently bias the
// statistics.
func (r *Reducer) reduceFile(root, cell, name string, runDirs []string) FileResult {
	res := FileResult{Name: name}

	tables := make([]*table.Table, 0, len(runDirs))
	for _, dir := range runDirs {
		path := filepath.Join(dir, name)
		t, err := table.ReadCSV(path)
		if err != nil {
			res.Error = fmt.Sprintf("loading %s: %v", pathutil.RedactPath(path), err)
			return res
		}
		tables = append(tables, t)
	}
	res.Runs = len(tables)

	reduced, err := stats.Reduce(tables, r.Kinds)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	for _, kind := range r.Kinds {
		out := batchroot.StatFile(root, cell, name, string(kind))
		if err := reduced[kind].WriteCSV(out); err != nil {
			res.Error = fmt.Sprintf("writing %s: %v", pathutil.RedactPath(out), err)
			return res
		}
		res.Outputs = append(res.Outputs, out)
	}
	return res
}

func (r *Reducer) parallelism() int {
	if r.Parallelism < 1 {
		return 1
	}
	return r.Parallelism
}

// rawFileNames returns the sorted union of .csv file names across the run
// output directories. A directory that does not exist yet contributes
// nothing; a cell whose runs all failed simply has no files to reduce.
func rawFileNames(runDirs []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range runDirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing run outputs in %s: %w", pathutil.RedactPath(dir), err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if filepath.Ext(e.Name()) == ".csv" {
				seen[e.Name()] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
