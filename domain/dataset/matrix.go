package dataset

import (
	"fmt"
	"math"

	"gocure/domain/core"
)

// Matrix is a column-major numeric matrix with canonicalized column names.
// It is the output of design-matrix construction: one column per model term,
// no intercept column.
type Matrix struct {
	Names []string
	Cols  [][]float64
	Rows  int
}

// NewMatrix creates a matrix, validating that every column matches the row
// count and that names are unique.
func NewMatrix(names []string, cols [][]float64, rows int) (*Matrix, error) {
	if len(names) != len(cols) {
		return nil, core.NewValidationError("matrix",
			fmt.Sprintf("%d names for %d columns", len(names), len(cols)))
	}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			return nil, core.NewValidationError("matrix", fmt.Sprintf("column %d has no name", i))
		}
		if seen[name] {
			return nil, core.NewValidationError("matrix", fmt.Sprintf("duplicate column name %q", name))
		}
		seen[name] = true
		if len(cols[i]) != rows {
			return nil, core.NewValidationError("matrix",
				fmt.Sprintf("column %q has %d rows, expected %d", name, len(cols[i]), rows))
		}
	}
	return &Matrix{Names: names, Cols: cols, Rows: rows}, nil
}

// Column returns the named column, or nil if absent.
func (m *Matrix) Column(name string) []float64 {
	for i, n := range m.Names {
		if n == name {
			return m.Cols[i]
		}
	}
	return nil
}

// Has reports whether the matrix contains the named column.
func (m *Matrix) Has(name string) bool {
	return m.Column(name) != nil
}

// ColumnsEqual compares two columns for value identity, treating NaN as
// equal to NaN so structurally duplicate columns with shared missingness
// still collapse.
func ColumnsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
			continue
		}
		return false
	}
	return true
}

// Combined is the merged dataset handed to the fit engine: survival outcome
// columns first, then survival predictors, then cure predictors, with
// structurally duplicate columns removed. SurvivalTerms and CureTerms are
// each side's surviving term names in original order.
type Combined struct {
	Matrix          *Matrix
	SurvivalFormula string
	CureFormula     string
	SurvivalTerms   []string
	CureTerms       []string
}

// Rows returns the row count.
func (c *Combined) Rows() int { return c.Matrix.Rows }

// Column returns the named column, or nil if absent.
func (c *Combined) Column(name string) []float64 { return c.Matrix.Column(name) }

// Time returns the canonical survival time column.
func (c *Combined) Time() []float64 { return c.Matrix.Column("time") }

// Status returns the canonical event-indicator column (0 = censored).
func (c *Combined) Status() []float64 { return c.Matrix.Column("status") }

// Select builds a new Combined holding the given rows, in order and with
// repetition, for use in resampling. Formulas and term lists are shared:
// resampling never changes the model specification.
func (c *Combined) Select(rows []int) *Combined {
	cols := make([][]float64, len(c.Matrix.Cols))
	for j, src := range c.Matrix.Cols {
		dst := make([]float64, len(rows))
		for i, r := range rows {
			dst[i] = src[r]
		}
		cols[j] = dst
	}
	names := make([]string, len(c.Matrix.Names))
	copy(names, c.Matrix.Names)
	return &Combined{
		Matrix:          &Matrix{Names: names, Cols: cols, Rows: len(rows)},
		SurvivalFormula: c.SurvivalFormula,
		CureFormula:     c.CureFormula,
		SurvivalTerms:   c.SurvivalTerms,
		CureTerms:       c.CureTerms,
	}
}

// CompleteCases returns the indices of rows with no missing value in any
// column.
func (c *Combined) CompleteCases() []int {
	var rows []int
	for i := 0; i < c.Matrix.Rows; i++ {
		ok := true
		for _, col := range c.Matrix.Cols {
			if math.IsNaN(col[i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}
