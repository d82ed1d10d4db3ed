// Package stats implements the tabular reduction primitive: given a set of
// equally-shaped tables, it computes column-wise statistics across the set,
// independently at every row index. The reduction is time-series-preserving:
// each output table has the same columns and row count as its inputs.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/swarmlab/sweeper/internal/table"
)

// StatKind identifies one statistical reduction.
type StatKind string

// Supported reductions. The kind doubles as the output file extension, e.g.
// food.csv reduced under KindMean becomes food.mean.
const (
	KindMean   StatKind = "mean"
	KindStdDev StatKind = "stddev"
	KindMedian StatKind = "median"
	KindQ1     StatKind = "q1"
	KindQ3     StatKind = "q3"
	KindWhisLo StatKind = "whislo"
	KindWhisHi StatKind = "whishi"
	KindCILo   StatKind = "cilo"
	KindCIHi   StatKind = "cihi"
)

// allKinds is the canonical ordering used in listings.
var allKinds = []StatKind{
	KindMean, KindStdDev, KindMedian,
	KindQ1, KindQ3, KindWhisLo, KindWhisHi,
	KindCILo, KindCIHi,
}

// ParseKind validates a kind name.
func ParseKind(s string) (StatKind, error) {
	k := StatKind(strings.ToLower(s))
	for _, known := range allKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown statistic kind %q (valid: %s)", s, kindNames())
}

// ParseKinds validates a list of kind names, preserving order and dropping
// duplicates.
func ParseKinds(names []string) ([]StatKind, error) {
	seen := make(map[StatKind]bool, len(names))
	kinds := make([]StatKind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("at least one statistic kind is required")
	}
	return kinds, nil
}

func kindNames() string {
	names := make([]string, len(allKinds))
	for i, k := range allKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Reduce computes the requested statistics over a set of equally-shaped
// tables. Each returned table shares the input column set and row count; the
// value at (column, row) is the statistic over that cell's values across all
// input tables. A shape divergence between inputs is a *table.ShapeMismatchError.
func Reduce(tables []*table.Table, kinds []StatKind) (map[StatKind]*table.Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to reduce")
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no statistic kinds requested")
	}

	ref := tables[0]
	for i, t := range tables[1:] {
		if err := table.SameShape(ref, t, fmt.Sprintf("table %d", i+1)); err != nil {
			return nil, err
		}
	}

	out := make(map[StatKind]*table.Table, len(kinds))
	for _, k := range kinds {
		t := table.New(ref.Columns)
		for c := range t.Columns {
			t.Data[c] = make([]float64, ref.Rows())
		}
		out[k] = t
	}

	sample := make([]float64, len(tables))
	sorted := make([]float64, len(tables))
	for c := range ref.Columns {
		for r := 0; r < ref.Rows(); r++ {
			for i, t := range tables {
				sample[i] = t.Data[c][r]
			}
			copy(sorted, sample)
			sort.Float64s(sorted)
			for _, k := range kinds {
				out[k].Data[c][r] = reduceCell(k, sample, sorted)
			}
		}
	}
	return out, nil
}

// reduceCell computes one statistic over a sample. sorted is the ascending
// copy of sample required by the quantile-based kinds.
func reduceCell(k StatKind, sample, sorted []float64) float64 {
	n := float64(len(sample))
	switch k {
	case KindMean:
		return stat.Mean(sample, nil)
	case KindStdDev:
		return stdDev(sample)
	case KindMedian:
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	case KindQ1:
		return stat.Quantile(0.25, stat.Empirical, sorted, nil)
	case KindQ3:
		return stat.Quantile(0.75, stat.Empirical, sorted, nil)
	case KindWhisLo:
		return whisker(sorted, false)
	case KindWhisHi:
		return whisker(sorted, true)
	case KindCILo:
		return stat.Mean(sample, nil) - 1.96*stdDev(sample)/math.Sqrt(n)
	case KindCIHi:
		return stat.Mean(sample, nil) + 1.96*stdDev(sample)/math.Sqrt(n)
	default:
		return math.NaN()
	}
}

// stdDev is the sample standard deviation, defined as 0 for a single
// observation so a one-run experiment reduces cleanly.
func stdDev(sample []float64) float64 {
	if len(sample) < 2 {
		return 0
	}
	return stat.StdDev(sample, nil)
}

// whisker returns the boxplot whisker bound: the most extreme observation
// within 1.5 IQR of the nearer quartile.
func whisker(sorted []float64, upper bool) float64 {
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1

	if upper {
		fence := q3 + 1.5*iqr
		bound := sorted[0]
		for _, v := range sorted {
			if v <= fence {
				bound = v
			}
		}
		return bound
	}

	fence := q1 - 1.5*iqr
	bound := sorted[len(sorted)-1]
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] >= fence {
			bound = sorted[i]
		}
	}
	return bound
}
