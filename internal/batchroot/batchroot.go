// Package batchroot computes the canonical on-disk layout for a batch.
// The root path is a pure function of the batch's identifying tuple; every
// derived path (experiment input dirs, run output dirs, statistics files) is
// composed here so that no two units of work can ever collide.
package batchroot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/swarmlab/sweeper/internal/sanitize"
)

// Subdirectory names under a batch root. The input tree (InputsDirName) is
// the stage 1-2 product and is protected by the scaffolder's collision guard;
// the derived trees are reproducible and always overwritable.
const (
	InputsDirName   = "exp-inputs"
	OutputsDirName  = "exp-outputs"
	StatsDirName    = "statistics"
	CollatedDirName = "collated"
	StateDirName    = ".sweeper"
	ManifestName    = "manifest.yaml"
)

// Inputs is the identifying tuple a batch root is computed from. Identical
// inputs yield an identical root on every invocation; no other configuration
// participates.
type Inputs struct {
	SweepRoot    string
	Project      string
	Controller   string
	Scenario     string
	TemplateStem string
	CriteriaIDs  []string
}

// Validate rejects malformed identifying fields before root computation.
// Compute itself cannot fail; callers run Validate first.
func Validate(in Inputs) error {
	if in.SweepRoot == "" {
		return fmt.Errorf("sweep root must not be empty")
	}
	fields := map[string]string{
		"project":       in.Project,
		"controller":    in.Controller,
		"scenario":      in.Scenario,
		"template stem": in.TemplateStem,
	}
	for label, v := range fields {
		if !sanitize.IsCleanIdentifier(v) {
			return fmt.Errorf("%s %q is empty or contains unsafe path characters", label, v)
		}
	}
	if len(in.CriteriaIDs) == 0 {
		return fmt.Errorf("at least one criterion id is required")
	}
	for _, id := range in.CriteriaIDs {
		if !sanitize.IsCleanIdentifier(id) {
			return fmt.Errorf("criterion id %q is empty or contains unsafe path characters", id)
		}
	}
	return nil
}

// Compute returns the canonical batch root for the identifying tuple:
//
//	<sweep-root>/<project>/<template-stem>-<scenario>+<criteria-ids joined by '+'>/<controller>
//
// Deterministic string composition; every field passes through the sanitizer
// so no field can inject a path separator.
func Compute(in Inputs) string {
	ids := make([]string, len(in.CriteriaIDs))
	for i, id := range in.CriteriaIDs {
		ids[i] = sanitize.Identifier(id)
	}
	key := sanitize.Identifier(in.TemplateStem) + "-" + sanitize.Identifier(in.Scenario) +
		"+" + strings.Join(ids, "+")
	return filepath.Join(in.SweepRoot,
		sanitize.Identifier(in.Project),
		key,
		sanitize.Identifier(in.Controller))
}

// ExistsAndNonempty reports whether path exists and contains at least one
// entry. The scaffolder's collision guard (and the coordinator's resume
// fallback) both key off this probe.
func ExistsAndNonempty(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// InputsDir returns the experiment-inputs tree for a batch root.
func InputsDir(root string) string { return filepath.Join(root, InputsDirName) }

// OutputsDir returns the run-outputs tree for a batch root.
func OutputsDir(root string) string { return filepath.Join(root, OutputsDirName) }

// StatsDir returns the statistics tree for a batch root.
func StatsDir(root string) string { return filepath.Join(root, StatsDirName) }

// CollatedDir returns the collated-statistics tree for a batch root.
func CollatedDir(root string) string {
	return filepath.Join(root, StatsDirName, CollatedDirName)
}

// StateDir returns the sweeper state directory (ledger, event log). It sits
// outside the idempotence boundary: its presence never counts as a scaffold
// collision.
func StateDir(root string) string { return filepath.Join(root, StateDirName) }

// CellInputDir returns the input directory for one experiment cell.
func CellInputDir(root, cell string) string {
	return filepath.Join(InputsDir(root), cell)
}

// CellOutputDir returns the output directory for one experiment cell.
func CellOutputDir(root, cell string) string {
	return filepath.Join(OutputsDir(root), cell)
}

// RunInputFile returns the materialized input document path for one run.
func RunInputFile(root, cell string, run int, ext string) string {
	return filepath.Join(CellInputDir(root, cell), fmt.Sprintf("run%d.%s", run, ext))
}

// RunOutputDir returns the working/output directory for one run. Its
// non-emptiness is the legacy completion signal consumed by resume when no
// ledger record exists.
func RunOutputDir(root, cell string, run int) string {
	return filepath.Join(CellOutputDir(root, cell), fmt.Sprintf("run%d_output", run))
}

// CellStatsDir returns the processed-statistics directory for one cell.
func CellStatsDir(root, cell string) string {
	return filepath.Join(StatsDir(root), cell)
}

// StatFile returns the processed output path for one (cell, raw file, stat):
// the raw file's stem with the statistic kind as its extension.
func StatFile(root, cell, rawName, stat string) string {
	stem := strings.TrimSuffix(rawName, filepath.Ext(rawName))
	return filepath.Join(CellStatsDir(root, cell), stem+"."+stat)
}

// CollatedFile returns the collated output path for one (cell, file, column)
// selector.
func CollatedFile(root, cell, rawName, column string) string {
	stem := strings.TrimSuffix(rawName, filepath.Ext(rawName))
	return filepath.Join(CollatedDir(root), cell, stem+"-"+column+".csv")
}

// ManifestFile returns the scaffold manifest path for one cell.
func ManifestFile(root, cell string) string {
	return filepath.Join(CellInputDir(root, cell), ManifestName)
}
