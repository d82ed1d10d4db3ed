// Package collate reassembles named columns from many source units into
// single files: one output column per source that produced the column, with
// the row index as the join key.
package collate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/pathutil"
	"github.com/swarmlab/sweeper/internal/table"
)

// Selector names one (file, column) pair to draw from every source unit.
type Selector struct {
	File   string `json:"file"`
	Column string `json:"column"`
}

// Source is one unit a selector draws from: a run output directory for
// intra-experiment collation over raw files, or a cell statistics directory
// for inter-experiment collation over processed files. Name becomes the
// output column header.
type Source struct {
	Name string
	Dir  string
}

// MissingSourceError records a source that did not produce the selected
// file or column. It is surfaced in the result, never zero-filled: a
// collated file shows exactly the sources that exist.
type MissingSourceError struct {
	Source string `json:"source"`
	File   string `json:"file"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("source %s has no %s column %q: %s", e.Source, e.File, e.Column, e.Reason)
}

// SelectorResult is the outcome of one selector.
type SelectorResult struct {
	Selector Selector              `json:"selector"`
	Path     string                `json:"path,omitempty"`
	Included []string              `json:"included,omitempty"`
	Missing  []*MissingSourceError `json:"missing,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Report summarizes one collation invocation.
type Report struct {
	Collated  int              `json:"collated"`
	Failed    int              `json:"failed"`
	Selectors []SelectorResult `json:"selectors"`
}

// Collator draws selected columns out of source units and writes collated
// files under the batch's collated statistics directory.
type Collator struct {
	Parallelism int
	Logger      *slog.Logger
}

// RunSources builds the source list for intra-experiment collation: one
// source per run, drawing from raw output files.
func RunSources(root, cell string, runs int) []Source {
	sources := make([]Source, 0, runs)
	for k := 0; k < runs; k++ {
		sources = append(sources, Source{
			Name: fmt.Sprintf("run%d", k),
			Dir:  batchroot.RunOutputDir(root, cell, k),
		})
	}
	return sources
}

// ExperimentSources builds the source list for inter-experiment collation:
// one source per cell, drawing from processed statistics files.
func ExperimentSources(root string, cells []string) []Source {
	sources := make([]Source, 0, len(cells))
	for _, cell := range cells {
		sources = append(sources, Source{
			Name: cell,
			Dir:  batchroot.CellStatsDir(root, cell),
		})
	}
	return sources
}

// Collate applies every selector over the sources. Selectors are independent
// units writing to distinct paths, so they run in parallel. Missing sources
// are excluded from the output and recorded in the result; a row count
// disagreement between included sources is a hard failure for that selector.
// Outputs land under the collated directory in a group named by scope, the
// cell name for intra-experiment collation or a batch-level label.
func (c *Collator) Collate(ctx context.Context, root, scope string, selectors []Selector, sources []Source) (*Report, error) {
	if len(selectors) == 0 {
		return nil, fmt.Errorf("no column selectors given")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no source units given")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &Report{Selectors: make([]SelectorResult, len(selectors))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism())

	for i, sel := range selectors {
		g.Go(func() error {
			res := collateSelector(root, scope, sel, sources)

			mu.Lock()
			report.Selectors[i] = res
			if res.Error != "" {
				report.Failed++
				logger.Warn("collation failed", "scope", scope, "file", sel.File,
					"column", sel.Column, "error", res.Error)
			} else {
				report.Collated++
				logger.Debug("collated column", "scope", scope, "file", sel.File,
					"column", sel.Column, "included", len(res.Included), "missing", len(res.Missing))
			}
			mu.Unlock()
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("collation interrupted: %w", err)
	}
	return report, nil
}

func (c *Collator) parallelism() int {
	if c.Parallelism < 1 {
		return 1
	}
	return c.Parallelism
}

// collateSelector builds one collated file: one column per source that
// produced the selected file and column.
func collateSelector(root, scope string, sel Selector, sources []Source) SelectorResult {
	res := SelectorResult{Selector: sel}

	type extracted struct {
		name   string
		values []float64
	}
	var cols []extracted

	for _, src := range sources {
		path := filepath.Join(src.Dir, sel.File)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			res.Missing = append(res.Missing, &MissingSourceError{
				Source: src.Name, File: sel.File, Column: sel.Column,
				Reason: "file does not exist",
			})
			continue
		}

		t, err := table.ReadCSV(path)
		if err != nil {
			res.Error = fmt.Sprintf("loading %s: %v", pathutil.RedactPath(path), err)
			return res
		}

		values := t.Column(sel.Column)
		if values == nil {
			res.Missing = append(res.Missing, &MissingSourceError{
				Source: src.Name, File: sel.File, Column: sel.Column,
				Reason: "column not present",
			})
			continue
		}
		cols = append(cols, extracted{name: src.Name, values: values})
	}

	if len(cols) == 0 {
		res.Error = fmt.Sprintf("no source produced %s column %q", sel.File, sel.Column)
		return res
	}

	// Row index is the join key; included sources must agree on row count.
	rows := len(cols[0].values)
	for _, col := range cols[1:] {
		if len(col.values) != rows {
			err := &table.ShapeMismatchError{
				Source:   col.name,
				WantCols: []string{sel.Column},
				GotCols:  []string{sel.Column},
				WantRows: rows,
				GotRows:  len(col.values),
			}
			res.Error = err.Error()
			return res
		}
	}

	out := &table.Table{
		Columns: make([]string, len(cols)),
		Data:    make([][]float64, len(cols)),
	}
	for i, col := range cols {
		out.Columns[i] = col.name
		out.Data[i] = col.values
		res.Included = append(res.Included, col.name)
	}

	path := batchroot.CollatedFile(root, scope, sel.File, sel.Column)
	if err := out.WriteCSV(path); err != nil {
		res.Error = fmt.Sprintf("writing %s: %v", pathutil.RedactPath(path), err)
		return res
	}
	res.Path = path
	return res
}
