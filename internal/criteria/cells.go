package criteria

import (
	"fmt"

	"github.com/swarmlab/sweeper/internal/expdef"
)

// MaxDimensions is the largest supported criteria-set dimensionality.
// Univariate and bivariate batches are supported; higher dimensions are out
// of scope.
const MaxDimensions = 2

// Set is an ordered collection of one or two batch criteria. The first
// declared criterion is the row/X axis in downstream deliverables.
type Set struct {
	Criteria []*BatchCriterion
}

// NewSet builds a criteria set, enforcing the dimensionality bounds.
func NewSet(cs ...*BatchCriterion) (*Set, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("criteria set requires at least one criterion")
	}
	if len(cs) > MaxDimensions {
		return nil, fmt.Errorf("criteria set supports at most %d dimensions, got %d", MaxDimensions, len(cs))
	}
	for i, c := range cs {
		if c == nil || len(c.Values) == 0 {
			return nil, fmt.Errorf("criterion %d has no values", i+1)
		}
	}
	return &Set{Criteria: cs}, nil
}

// IDs returns the ordered criterion identifiers, used in batch-root naming.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.Criteria))
	for i, c := range s.Criteria {
		ids[i] = c.ID
	}
	return ids
}

// ExperimentCell is one concrete configuration point in the criteria space:
// a name derived from per-dimension value indices, the chosen value per
// dimension, and the union of per-dimension document edits.
type ExperimentCell struct {
	// Name is "c1-exp{i}" for univariate sets, "c1-exp{i}+c2-exp{j}" for
	// bivariate sets. It doubles as the experiment directory name.
	Name string

	// Indices holds the zero-based value index per dimension.
	Indices []int

	// Values holds the chosen value per dimension, parallel to Indices.
	Values []string

	// Edits is the union of each dimension's edits for this cell's values.
	Edits expdef.EditOpSet
}

// CellName renders the canonical name for the given value indices.
func CellName(indices []int) string {
	name := ""
	for dim, idx := range indices {
		if dim > 0 {
			name += "+"
		}
		name += fmt.Sprintf("c%d-exp%d", dim+1, idx)
	}
	return name
}

// Cells yields the full Cartesian product of the set's value lists, one
// ExperimentCell per combination. For bivariate sets the second dimension
// varies fastest. Swapping the declaration order of two criteria yields the
// same set of value combinations; only the naming/axis convention changes.
func (s *Set) Cells() []ExperimentCell {
	switch len(s.Criteria) {
	case 1:
		c1 := s.Criteria[0]
		cells := make([]ExperimentCell, 0, len(c1.Values))
		for i, v := range c1.Values {
			cells = append(cells, ExperimentCell{
				Name:    CellName([]int{i}),
				Indices: []int{i},
				Values:  []string{v},
				Edits:   c1.EditsFor(v),
			})
		}
		return cells

	case 2:
		c1, c2 := s.Criteria[0], s.Criteria[1]
		cells := make([]ExperimentCell, 0, len(c1.Values)*len(c2.Values))
		for i, v1 := range c1.Values {
			for j, v2 := range c2.Values {
				cells = append(cells, ExperimentCell{
					Name:    CellName([]int{i, j}),
					Indices: []int{i, j},
					Values:  []string{v1, v2},
					Edits:   c1.EditsFor(v1).Union(c2.EditsFor(v2)),
				})
			}
		}
		return cells

	default:
		// NewSet enforces the dimensionality bound.
		return nil
	}
}
