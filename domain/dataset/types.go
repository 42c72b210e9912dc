package dataset

import (
	"fmt"
	"math"
	"sort"

	"gocure/domain/core"
)

// ColumnType defines the statistical type of a dataset column
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeOrdinal     ColumnType = "ordinal"
)

// Column is a single named column of a dataset. Numeric and ordinal columns
// carry their values in Values; categorical columns carry per-row labels in
// Labels. Levels is the declared level order for factor-like columns; when
// empty, the sorted distinct observed labels are used.
type Column struct {
	Name   string
	Type   ColumnType
	Values []float64
	Labels []string
	Levels []string
}

// NumericColumn creates a numeric column. NaN marks a missing value.
func NumericColumn(name string, values []float64) Column {
	return Column{Name: name, Type: TypeNumeric, Values: values}
}

// CategoricalColumn creates a free-text categorical column. The empty string
// marks a missing value; levels are the sorted distinct observed labels.
func CategoricalColumn(name string, labels []string) Column {
	return Column{Name: name, Type: TypeCategorical, Labels: labels}
}

// FactorColumn creates a categorical column with a declared level order. The
// first level is the reference level for design-matrix encoding.
func FactorColumn(name string, labels []string, levels []string) Column {
	return Column{Name: name, Type: TypeCategorical, Labels: labels, Levels: levels}
}

// OrdinalColumn creates an ordinal column whose integer codes enter models
// directly.
func OrdinalColumn(name string, codes []float64, levels []string) Column {
	return Column{Name: name, Type: TypeOrdinal, Values: codes, Levels: levels}
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	if c.Type == TypeCategorical {
		return len(c.Labels)
	}
	return len(c.Values)
}

// IsMissing reports whether row i holds a missing value.
func (c Column) IsMissing(i int) bool {
	if c.Type == TypeCategorical {
		return c.Labels[i] == ""
	}
	return math.IsNaN(c.Values[i])
}

// LevelSet returns the observed category set for the column: the declared
// levels for factors, the sorted distinct labels for free-text categoricals,
// and nil for continuous columns.
func (c Column) LevelSet() []string {
	switch c.Type {
	case TypeNumeric:
		return nil
	case TypeOrdinal:
		out := make([]string, len(c.Levels))
		copy(out, c.Levels)
		return out
	}
	if len(c.Levels) > 0 {
		out := make([]string, len(c.Levels))
		copy(out, c.Levels)
		return out
	}
	seen := make(map[string]bool)
	var out []string
	for _, l := range c.Labels {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Dataset is an immutable table of named columns sharing a common row count.
type Dataset struct {
	columns []Column
	index   map[string]int
	n       int
}

// New creates a dataset from columns, validating unique names and equal
// lengths.
func New(columns ...Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, core.NewValidationError("dataset", "at least one column is required")
	}
	n := columns[0].Len()
	if n == 0 {
		return nil, core.ErrEmptyDataset
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, core.NewValidationError("dataset", fmt.Sprintf("column %d has no name", i))
		}
		if _, dup := index[c.Name]; dup {
			return nil, core.NewValidationError("dataset", fmt.Sprintf("duplicate column name %q", c.Name))
		}
		if c.Len() != n {
			return nil, core.NewValidationError("dataset",
				fmt.Sprintf("column %q has %d rows, expected %d", c.Name, c.Len(), n))
		}
		index[c.Name] = i
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Dataset{columns: cols, index: index, n: n}, nil
}

// MustNew creates a dataset and panics on invalid input. Use only in tests.
func MustNew(columns ...Column) *Dataset {
	d, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return d
}

// N returns the row count.
func (d *Dataset) N() int { return d.n }

// Names returns the column names in declaration order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Has reports whether the dataset contains the named column.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}
