// Package cure holds the result types of a mixture cure model fit: raw
// coefficient vectors, bootstrap statistics, tidy coefficient tables, and the
// immutable fitted model object.
package cure

import (
	"encoding/json"
	"fmt"
	"math"

	"gocure/domain/core"
)

// Coefficients is a name-indexed ordered coefficient vector.
type Coefficients struct {
	Names  []string
	Values []float64
}

// NewCoefficients creates a coefficient vector, failing with a shape error
// when names and values disagree in length.
func NewCoefficients(names []string, values []float64) (Coefficients, error) {
	if len(names) != len(values) {
		return Coefficients{}, fmt.Errorf("%w: %d names for %d values",
			core.ErrShapeMismatch, len(names), len(values))
	}
	n := make([]string, len(names))
	copy(n, names)
	v := make([]float64, len(values))
	copy(v, values)
	return Coefficients{Names: n, Values: v}, nil
}

// MustNewCoefficients creates a coefficient vector and panics on shape
// mismatch. Use only in tests.
func MustNewCoefficients(names []string, values []float64) Coefficients {
	c, err := NewCoefficients(names, values)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of coefficients.
func (c Coefficients) Len() int { return len(c.Names) }

// Get returns the named coefficient value.
func (c Coefficients) Get(name string) (float64, bool) {
	for i, n := range c.Names {
		if n == name {
			return c.Values[i], true
		}
	}
	return 0, false
}

// Map returns the coefficients as a name-to-value mapping.
func (c Coefficients) Map() map[string]float64 {
	out := make(map[string]float64, len(c.Names))
	for i, n := range c.Names {
		out[n] = c.Values[i]
	}
	return out
}

// RawFit is the output of one fit-engine invocation: the hazard coefficients
// beta, the cure-logit coefficients b, and convergence metadata.
type RawFit struct {
	Beta          Coefficients
	B             Coefficients
	Converged     bool
	Iterations    int
	LogLikelihood float64
}

// TermStats holds the bootstrap statistics for one coefficient. All fields
// are NaN when resampling was not requested or fewer than two replicates
// converged for the term.
type TermStats struct {
	Term      string
	Variance  float64
	StdErr    float64
	Z         float64
	P         float64
	Converged int
}

// UndefinedTermStats returns the explicit undefined statistics for a term.
func UndefinedTermStats(term string) TermStats {
	nan := math.NaN()
	return TermStats{Term: term, Variance: nan, StdErr: nan, Z: nan, P: nan}
}

// Defined reports whether the term's variance is defined.
func (s TermStats) Defined() bool { return !math.IsNaN(s.Variance) }

// TableRow is one row of a tidy coefficient table.
type TableRow struct {
	Term     string  `json:"term"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	Z        float64 `json:"z"`
	P        float64 `json:"p"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
}

// MarshalJSON encodes undefined (NaN) statistics as null, since plain JSON
// has no NaN.
func (r TableRow) MarshalJSON() ([]byte, error) {
	opt := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Term     string   `json:"term"`
		Estimate float64  `json:"estimate"`
		StdErr   *float64 `json:"std_err"`
		Z        *float64 `json:"z"`
		P        *float64 `json:"p"`
		CILower  *float64 `json:"ci_lower"`
		CIUpper  *float64 `json:"ci_upper"`
	}{r.Term, r.Estimate, opt(r.StdErr), opt(r.Z), opt(r.P), opt(r.CILower), opt(r.CIUpper)})
}

// Table is a tidy row-per-term coefficient table for one sub-model, ordered
// by the deduplicated formula's term order.
type Table struct {
	Rows []TableRow
}

// Terms returns the table's term names in row order.
func (t Table) Terms() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Term
	}
	return out
}

// Row returns the row for the named term.
func (t Table) Row(term string) (TableRow, bool) {
	for _, r := range t.Rows {
		if r.Term == term {
			return r, true
		}
	}
	return TableRow{}, false
}
