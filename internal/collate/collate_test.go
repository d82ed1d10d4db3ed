package collate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/table"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error = %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
}

func TestCollate_OneColumnPerRun(t *testing.T) {
	root := t.TempDir()
	cell := "c1-exp0"
	sources := RunSources(root, cell, 4)
	for k, src := range sources {
		writeSourceFile(t, src.Dir, "food.csv",
			"collected,wasted\n"+strings.Repeat((string('1'+byte(k)))+",0\n", 3))
	}

	c := &Collator{Parallelism: 2}
	report, err := c.Collate(context.Background(), root, cell,
		[]Selector{{File: "food.csv", Column: "collected"}}, sources)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	if report.Collated != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 1 collated", report)
	}

	out, err := table.ReadCSV(batchroot.CollatedFile(root, cell, "food.csv", "collected"))
	if err != nil {
		t.Fatalf("reading collated file: %v", err)
	}
	wantCols := []string{"run0", "run1", "run2", "run3"}
	if len(out.Columns) != len(wantCols) {
		t.Fatalf("collated columns = %v, want %v", out.Columns, wantCols)
	}
	for i, want := range wantCols {
		if out.Columns[i] != want {
			t.Errorf("column %d = %q, want %q", i, out.Columns[i], want)
		}
	}
	if out.Rows() != 3 {
		t.Errorf("collated rows = %d, want 3", out.Rows())
	}
	if got := out.Column("run2")[0]; got != 3 {
		t.Errorf("run2 first value = %v, want 3", got)
	}
}

func TestCollate_MissingSourceExcludedAndSurfaced(t *testing.T) {
	root := t.TempDir()
	cell := "c1-exp0"
	sources := RunSources(root, cell, 3)
	// run1 produced nothing.
	writeSourceFile(t, sources[0].Dir, "food.csv", "collected\n1\n")
	writeSourceFile(t, sources[2].Dir, "food.csv", "collected\n3\n")

	c := &Collator{}
	report, err := c.Collate(context.Background(), root, cell,
		[]Selector{{File: "food.csv", Column: "collected"}}, sources)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}

	res := report.Selectors[0]
	if res.Error != "" {
		t.Fatalf("selector error = %q, want success with partial coverage", res.Error)
	}
	if len(res.Included) != 2 {
		t.Errorf("Included = %v, want the two producing runs", res.Included)
	}
	if len(res.Missing) != 1 || res.Missing[0].Source != "run1" {
		t.Fatalf("Missing = %+v, want one entry for run1", res.Missing)
	}
	if res.Missing[0].Reason == "" {
		t.Error("missing source should carry a reason")
	}

	out, err := table.ReadCSV(res.Path)
	if err != nil {
		t.Fatalf("reading collated file: %v", err)
	}
	if len(out.Columns) != 2 || out.Column("run1") != nil {
		t.Errorf("collated columns = %v, want run1 excluded not zero-filled", out.Columns)
	}
}

func TestCollate_MissingColumnSurfaced(t *testing.T) {
	root := t.TempDir()
	cell := "c1-exp0"
	sources := RunSources(root, cell, 2)
	writeSourceFile(t, sources[0].Dir, "food.csv", "collected\n1\n")
	writeSourceFile(t, sources[1].Dir, "food.csv", "other\n2\n")

	c := &Collator{}
	report, err := c.Collate(context.Background(), root, cell,
		[]Selector{{File: "food.csv", Column: "collected"}}, sources)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}

	res := report.Selectors[0]
	if len(res.Missing) != 1 || res.Missing[0].Source != "run1" {
		t.Fatalf("Missing = %+v, want run1 reported for the absent column", res.Missing)
	}
	if res.Missing[0].Reason != "column not present" {
		t.Errorf("Reason = %q", res.Missing[0].Reason)
	}
}

func TestCollate_RowCountDisagreementFails(t *testing.T) {
	root := t.TempDir()
	cell := "c1-exp0"
	sources := RunSources(root, cell, 2)
	writeSourceFile(t, sources[0].Dir, "food.csv", "collected\n1\n2\n")
	writeSourceFile(t, sources[1].Dir, "food.csv", "collected\n1\n")

	c := &Collator{}
	report, err := c.Collate(context.Background(), root, cell,
		[]Selector{{File: "food.csv", Column: "collected"}}, sources)
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report = %+v, want the selector failed on row disagreement", report)
	}
	if !strings.Contains(report.Selectors[0].Error, "shape mismatch") {
		t.Errorf("Error = %q, want a shape mismatch", report.Selectors[0].Error)
	}
}

func TestCollate_AllSourcesMissingFails(t *testing.T) {
	root := t.TempDir()
	c := &Collator{}
	report, err := c.Collate(context.Background(), root, "c1-exp0",
		[]Selector{{File: "food.csv", Column: "collected"}},
		RunSources(root, "c1-exp0", 2))
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("report = %+v, want failure when no source produced the column", report)
	}
}

func TestCollate_ExperimentSourcesOverProcessedFiles(t *testing.T) {
	root := t.TempDir()
	cells := []string{"c1-exp0", "c1-exp1"}
	for i, cell := range cells {
		writeSourceFile(t, batchroot.CellStatsDir(root, cell), "food.mean",
			"collected\n"+string('1'+byte(i))+"\n")
	}

	c := &Collator{}
	report, err := c.Collate(context.Background(), root, "batch",
		[]Selector{{File: "food.mean", Column: "collected"}},
		ExperimentSources(root, cells))
	if err != nil {
		t.Fatalf("Collate() error = %v", err)
	}
	if report.Collated != 1 {
		t.Fatalf("report = %+v, want 1 collated", report)
	}

	out, err := table.ReadCSV(report.Selectors[0].Path)
	if err != nil {
		t.Fatalf("reading collated file: %v", err)
	}
	if len(out.Columns) != 2 || out.Columns[0] != "c1-exp0" || out.Columns[1] != "c1-exp1" {
		t.Errorf("columns = %v, want one per experiment", out.Columns)
	}
}

func TestCollate_NoSelectors(t *testing.T) {
	c := &Collator{}
	if _, err := c.Collate(context.Background(), t.TempDir(), "x", nil,
		RunSources(t.TempDir(), "c1-exp0", 1)); err == nil {
		t.Error("Collate() with no selectors should fail")
	}
}
