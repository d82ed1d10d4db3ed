// Package scaffold materializes the on-disk experiment tree for a batch:
// one directory per experiment cell, one materialized input document per
// run, and a manifest recording run count and seeds. Scaffolding is
// plan-then-commit: every target is validated and every document rendered
// in memory before the first filesystem write, so a failing batch leaves
// the filesystem untouched.
package scaffold

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/criteria"
	"github.com/swarmlab/sweeper/internal/expdef"
	"github.com/swarmlab/sweeper/internal/pathutil"
)

// SeedTarget names the document location that receives each run's random
// seed: an attribute key under a path expression.
type SeedTarget struct {
	Path string
	Key  string
}

// Options configures one scaffold invocation.
type Options struct {
	// Root is the batch root computed by batchroot.Compute.
	Root string

	// Template is the loaded template document. Never mutated; every run
	// materializes from a clone.
	Template *expdef.Document

	// Cells is the experiment cell sequence from criteria.Set.Cells.
	Cells []criteria.ExperimentCell

	// Runs is the number of stochastic repetitions per cell.
	Runs int

	// Ext is the input document extension (default "yaml").
	Ext string

	// Seed is where each run's random seed is injected.
	Seed SeedTarget

	// Overwrite permits replacing an existing input tree. The derived trees
	// (exp-outputs, statistics) are reproducible and always replaced.
	Overwrite bool

	Logger *slog.Logger
}

// Result reports what a successful scaffold created.
type Result struct {
	Root        string
	Cells       []string
	RunsPerCell int
	Overwrote   bool
}

// Manifest is the per-cell scaffold record. Seeds are persisted here so
// re-scaffolding reuses them instead of silently diverging.
type Manifest struct {
	Cell      string   `yaml:"cell"`
	Runs      int      `yaml:"runs"`
	Seeds     []int64  `yaml:"seeds"`
	Values    []string `yaml:"criteria_values"`
	CreatedAt string   `yaml:"created_at"`
}

// CollisionError reports scaffold targets that already exist and are
// nonempty. It is returned before any filesystem mutation.
type CollisionError struct {
	Paths []string
}

func (e *CollisionError) Error() string {
	redacted := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		redacted[i] = pathutil.RedactPath(p)
	}
	return fmt.Sprintf("scaffold target(s) already exist (pass overwrite to replace): %s",
		strings.Join(redacted, ", "))
}

// plannedRun is one fully rendered input document awaiting commit.
type plannedRun struct {
	path string
	data []byte
}

// plannedCell is one cell's rendered artifacts awaiting commit.
type plannedCell struct {
	dir          string
	runs         []plannedRun
	manifestPath string
	manifest     []byte
}

// Scaffold creates the experiment tree for a batch. Either every cell
// directory is created, or the filesystem is left exactly as found:
// collisions and edit failures are detected during planning, before any
// write. Seeds from a previous scaffold of the same cell are reused when
// the run count matches.
func Scaffold(opts Options) (*Result, error) {
	if opts.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", opts.Runs)
	}
	if len(opts.Cells) == 0 {
		return nil, fmt.Errorf("no experiment cells to scaffold")
	}
	if opts.Ext == "" {
		opts.Ext = "yaml"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Phase 1a: collision scan over every target before creating any.
	var collisions []string
	for _, cell := range opts.Cells {
		dir := batchroot.CellInputDir(opts.Root, cell.Name)
		if batchroot.ExistsAndNonempty(dir) {
			collisions = append(collisions, dir)
		}
	}
	if len(collisions) > 0 && !opts.Overwrite {
		return nil, &CollisionError{Paths: collisions}
	}

	// Phase 1b: render every document in memory. An edit that cannot be
	// applied aborts the whole scaffold with nothing written.
	planned := make([]plannedCell, 0, len(opts.Cells))
	for _, cell := range opts.Cells {
		pc, err := planCell(opts, cell)
		if err != nil {
			return nil, fmt.Errorf("planning cell %s: %w", cell.Name, err)
		}
		planned = append(planned, pc)
	}

	// Phase 1c: every derived path must stay inside the batch root.
	for _, pc := range planned {
		for _, run := range pc.runs {
			if err := pathutil.ValidatePath(run.path, opts.Root); err != nil {
				return nil, err
			}
		}
	}

	// Phase 2: commit. With overwrite, the input tree and the reproducible
	// derived trees are removed first so the result matches a fresh scaffold.
	if opts.Overwrite {
		for _, dir := range []string{
			batchroot.InputsDir(opts.Root),
			batchroot.OutputsDir(opts.Root),
			batchroot.StatsDir(opts.Root),
		} {
			if err := os.RemoveAll(dir); err != nil {
				return nil, fmt.Errorf("removing %s: %w", pathutil.RedactPath(dir), err)
			}
		}
	}

	result := &Result{Root: opts.Root, RunsPerCell: opts.Runs, Overwrote: opts.Overwrite}
	for _, pc := range planned {
		if err := commitCell(pc); err != nil {
			return nil, err
		}
	}
	for _, cell := range opts.Cells {
		result.Cells = append(result.Cells, cell.Name)
	}

	logger.Info("scaffolded batch",
		"root", pathutil.RedactPath(opts.Root),
		"cells", len(result.Cells),
		"runs_per_cell", opts.Runs)
	return result, nil
}

// planCell renders one cell's run documents and manifest in memory.
func planCell(opts Options, cell criteria.ExperimentCell) (plannedCell, error) {
	seeds, err := cellSeeds(opts, cell.Name)
	if err != nil {
		return plannedCell{}, err
	}

	pc := plannedCell{
		dir:          batchroot.CellInputDir(opts.Root, cell.Name),
		manifestPath: batchroot.ManifestFile(opts.Root, cell.Name),
	}

	for run := 0; run < opts.Runs; run++ {
		doc := opts.Template.Clone()
		edits := cell.Edits.Union(expdef.EditOpSet{{
			Kind:  expdef.OpSetAttr,
			Path:  opts.Seed.Path,
			Key:   opts.Seed.Key,
			Value: strconv.FormatInt(seeds[run], 10),
		}})
		if err := doc.Apply(edits); err != nil {
			return plannedCell{}, err
		}
		data, err := doc.Encode()
		if err != nil {
			return plannedCell{}, err
		}
		pc.runs = append(pc.runs, plannedRun{
			path: batchroot.RunInputFile(opts.Root, cell.Name, run, opts.Ext),
			data: data,
		})
	}

	manifest := Manifest{
		Cell:      cell.Name,
		Runs:      opts.Runs,
		Seeds:     seeds,
		Values:    cell.Values,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return plannedCell{}, fmt.Errorf("encoding manifest: %w", err)
	}
	pc.manifest = data
	return pc, nil
}

// cellSeeds returns the run seeds for a cell, reusing a prior manifest's
// seeds when its run count matches so regeneration is stable.
func cellSeeds(opts Options, cellName string) ([]int64, error) {
	if prev, err := LoadManifest(opts.Root, cellName); err == nil && prev.Runs == opts.Runs {
		return prev.Seeds, nil
	}

	seeds := make([]int64, 0, opts.Runs)
	seen := make(map[int64]bool, opts.Runs)
	for len(seeds) < opts.Runs {
		s := rand.Int64()
		if seen[s] {
			continue
		}
		seen[s] = true
		seeds = append(seeds, s)
	}
	return seeds, nil
}

// commitCell writes one planned cell to disk.
func commitCell(pc plannedCell) error {
	if err := os.MkdirAll(pc.dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", pathutil.RedactPath(pc.dir), err)
	}
	for _, run := range pc.runs {
		if err := os.WriteFile(run.path, run.data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", pathutil.RedactPath(run.path), err)
		}
	}
	if err := os.WriteFile(pc.manifestPath, pc.manifest, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", pathutil.RedactPath(pc.manifestPath), err)
	}
	return nil
}

// LoadManifest reads a cell's scaffold manifest.
func LoadManifest(root, cell string) (*Manifest, error) {
	data, err := os.ReadFile(batchroot.ManifestFile(root, cell))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest for %s: %w", cell, err)
	}
	return &m, nil
}
