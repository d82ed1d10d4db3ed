package batchroot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/swarmlab/sweeper/internal/criteria"
)

func baseInputs() Inputs {
	return Inputs{
		SweepRoot:    "/data/sweeps",
		Project:      "foraging",
		Controller:   "crw",
		Scenario:     "rn-16x16",
		TemplateStem: "template",
		CriteriaIDs:  []string{"population_size.Log8"},
	}
}

func TestCompute_Deterministic(t *testing.T) {
	in := baseInputs()
	a := Compute(in)
	b := Compute(in)
	if a != b {
		t.Errorf("Compute() not deterministic: %q vs %q", a, b)
	}
}

func TestCompute_Layout(t *testing.T) {
	got := Compute(baseInputs())
	want := filepath.Join("/data/sweeps", "foraging",
		"template-rn-16x16+population_size.Log8", "crw")
	if got != want {
		t.Errorf("Compute() = %q, want %q", got, want)
	}
}

func TestCompute_EveryFieldChangesPath(t *testing.T) {
	base := Compute(baseInputs())

	mutations := map[string]func(*Inputs){
		"sweep root":    func(in *Inputs) { in.SweepRoot = "/other" },
		"project":       func(in *Inputs) { in.Project = "diffusion" },
		"controller":    func(in *Inputs) { in.Controller = "dpo" },
		"scenario":      func(in *Inputs) { in.Scenario = "rn-32x32" },
		"template stem": func(in *Inputs) { in.TemplateStem = "other" },
		"criteria ids":  func(in *Inputs) { in.CriteriaIDs = []string{"population_size.Log16"} },
		"criteria order": func(in *Inputs) {
			in.CriteriaIDs = []string{"b.Log2", "a.Log2"}
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := baseInputs()
			mutate(&in)
			if got := Compute(in); got == base {
				t.Errorf("changing %s did not change the path (%q)", name, got)
			}
		})
	}
}

func TestCompute_EnumCriterion(t *testing.T) {
	crit, err := criteria.Expand("strategy.Enum[greedy,random]", "arena/swarm", "strategy")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	in := baseInputs()
	in.CriteriaIDs = []string{crit.ID}
	if err := Validate(in); err != nil {
		t.Fatalf("Validate() rejected enum criterion id %q: %v", crit.ID, err)
	}

	got := Compute(in)
	want := filepath.Join("/data/sweeps", "foraging",
		"template-rn-16x16+strategy.Enum-greedy-random", "crw")
	if got != want {
		t.Errorf("Compute() = %q, want %q", got, want)
	}

	// A different value split must never land on the same root.
	other, err := criteria.Expand("strategy.Enum[greedyrandom]", "arena/swarm", "strategy")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	in.CriteriaIDs = []string{other.ID}
	if Compute(in) == got {
		t.Errorf("distinct enum value lists collapsed to the same root %q", got)
	}
}

func TestCompute_SanitizesInjection(t *testing.T) {
	in := baseInputs()
	in.Controller = "crw/../../escape"
	got := Compute(in)

	if strings.Contains(got, "..") {
		t.Errorf("Compute() leaked traversal sequence: %q", got)
	}
	rel, err := filepath.Rel(in.SweepRoot, got)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Errorf("Compute() escaped sweep root: %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Inputs)
		wantErr bool
	}{
		{"valid", func(in *Inputs) {}, false},
		{"two criteria", func(in *Inputs) {
			in.CriteriaIDs = []string{"a.Log2", "b.Log4"}
		}, false},
		{"empty sweep root", func(in *Inputs) { in.SweepRoot = "" }, true},
		{"empty controller", func(in *Inputs) { in.Controller = "" }, true},
		{"separator in project", func(in *Inputs) { in.Project = "a/b" }, true},
		{"traversal in scenario", func(in *Inputs) { in.Scenario = ".." }, true},
		{"no criteria", func(in *Inputs) { in.CriteriaIDs = nil }, true},
		{"unsafe criterion id", func(in *Inputs) { in.CriteriaIDs = []string{"a/b.Log2"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInputs()
			tt.mutate(&in)
			err := Validate(in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExistsAndNonempty(t *testing.T) {
	dir := t.TempDir()

	if ExistsAndNonempty(filepath.Join(dir, "absent")) {
		t.Error("absent dir reported nonempty")
	}

	empty := filepath.Join(dir, "empty")
	os.MkdirAll(empty, 0755)
	if ExistsAndNonempty(empty) {
		t.Error("empty dir reported nonempty")
	}

	full := filepath.Join(dir, "full")
	os.MkdirAll(full, 0755)
	os.WriteFile(filepath.Join(full, "f"), []byte("x"), 0644)
	if !ExistsAndNonempty(full) {
		t.Error("nonempty dir reported empty")
	}
}

func TestDerivedPaths(t *testing.T) {
	root := "/data/sweeps/foraging/template-rn+a.Log2/crw"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"run input", RunInputFile(root, "c1-exp3", 2, "yaml"),
			filepath.Join(root, "exp-inputs", "c1-exp3", "run2.yaml")},
		{"run output", RunOutputDir(root, "c1-exp3", 2),
			filepath.Join(root, "exp-outputs", "c1-exp3", "run2_output")},
		{"stat file", StatFile(root, "c1-exp3", "food.csv", "mean"),
			filepath.Join(root, "statistics", "c1-exp3", "food.mean")},
		{"collated file", CollatedFile(root, "c1-exp3", "food.csv", "collected"),
			filepath.Join(root, "statistics", "collated", "c1-exp3", "food-collected.csv")},
		{"manifest", ManifestFile(root, "c1-exp3"),
			filepath.Join(root, "exp-inputs", "c1-exp3", "manifest.yaml")},
		{"state dir", StateDir(root), filepath.Join(root, ".sweeper")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
