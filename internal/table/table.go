// Package table provides the tabular primitive shared by the reducer and the
// collator: an in-memory numeric table with named columns, CSV persistence,
// and strict shape checking. Shape divergence between tables that are about
// to be combined is always a hard, typed failure, never a silent truncation
// or partial result.
package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/swarmlab/sweeper/internal/pathutil"
)

// Table is a column-major numeric table. Columns[i] names Data[i]; every
// column holds the same number of rows.
type Table struct {
	Columns []string
	Data    [][]float64
}

// New creates an empty table with the given column names.
func New(columns []string) *Table {
	t := &Table{Columns: columns, Data: make([][]float64, len(columns))}
	return t
}

// Rows returns the table's row count.
func (t *Table) Rows() int {
	if len(t.Data) == 0 {
		return 0
	}
	return len(t.Data[0])
}

// Column returns the values of the named column, or nil if absent.
func (t *Table) Column(name string) []float64 {
	for i, c := range t.Columns {
		if c == name {
			return t.Data[i]
		}
	}
	return nil
}

// AppendRow appends one row. The value count must match the column count.
func (t *Table) AppendRow(values []float64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	for i, v := range values {
		t.Data[i] = append(t.Data[i], v)
	}
	return nil
}

// ShapeMismatchError reports two tables that were required to share a shape
// but do not. Source names the offending table (a run, a file, a unit).
type ShapeMismatchError struct {
	Source   string
	WantCols []string
	GotCols  []string
	WantRows int
	GotRows  int
}

func (e *ShapeMismatchError) Error() string {
	if e.WantRows != e.GotRows {
		return fmt.Sprintf("shape mismatch in %s: %d rows, want %d", e.Source, e.GotRows, e.WantRows)
	}
	return fmt.Sprintf("shape mismatch in %s: columns %v, want %v", e.Source, e.GotCols, e.WantCols)
}

// SameShape verifies that got has exactly ref's column names (in order) and
// row count. Returns a *ShapeMismatchError naming source on divergence.
func SameShape(ref, got *Table, source string) error {
	if len(ref.Columns) != len(got.Columns) {
		return &ShapeMismatchError{Source: source, WantCols: ref.Columns, GotCols: got.Columns,
			WantRows: ref.Rows(), GotRows: got.Rows()}
	}
	for i := range ref.Columns {
		if ref.Columns[i] != got.Columns[i] {
			return &ShapeMismatchError{Source: source, WantCols: ref.Columns, GotCols: got.Columns,
				WantRows: ref.Rows(), GotRows: got.Rows()}
		}
	}
	if ref.Rows() != got.Rows() {
		return &ShapeMismatchError{Source: source, WantCols: ref.Columns, GotCols: got.Columns,
			WantRows: ref.Rows(), GotRows: got.Rows()}
	}
	return nil
}

// ReadCSV loads a table from a headered CSV file of numeric columns.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", pathutil.RedactPath(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pathutil.RedactPath(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading %s: file has no header row", pathutil.RedactPath(path))
	}

	t := New(records[0])
	row := make([]float64, len(t.Columns))
	for lineno, rec := range records[1:] {
		if len(rec) != len(t.Columns) {
			return nil, fmt.Errorf("reading %s: line %d has %d fields, want %d",
				pathutil.RedactPath(path), lineno+2, len(rec), len(t.Columns))
		}
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("reading %s: line %d column %q: %w",
					pathutil.RedactPath(path), lineno+2, t.Columns[i], err)
			}
			row[i] = v
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV writes the table to path, creating parent directories as needed.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", pathutil.RedactPath(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", pathutil.RedactPath(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("writing header to %s: %w", pathutil.RedactPath(path), err)
	}

	rec := make([]string, len(t.Columns))
	for r := 0; r < t.Rows(); r++ {
		for c := range t.Columns {
			rec[c] = strconv.FormatFloat(t.Data[c][r], 'f', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("writing row to %s: %w", pathutil.RedactPath(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", pathutil.RedactPath(path), err)
	}
	return nil
}
