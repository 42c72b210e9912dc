// Package bridge merges the cure-side and survival-side design matrices into
// the single deduplicated dataset the fit engine consumes, and reconstructs
// both formulas over the surviving column set.
package bridge

import (
	"fmt"
	"strings"

	"gocure/domain/core"
	"gocure/domain/dataset"
)

// Combine concatenates the outcome columns, survival predictors and cure
// predictors in that fixed order, drops every column that is value-identical
// to an earlier one, and rebuilds each side's formula from the surviving
// column names. Naive concatenation of two independently authored covariate
// lists would otherwise introduce exact collinearity and break the fit
// engine. Deduplication never reorders retained columns, and running Combine
// on already-deduplicated input yields the same column set.
func Combine(outcome, survival, cureSide *dataset.Matrix) (*dataset.Combined, error) {
	rows := outcome.Rows
	if survival.Rows != rows || cureSide.Rows != rows {
		return nil, core.NewValidationError("bridge",
			fmt.Sprintf("row counts differ: outcome=%d survival=%d cure=%d",
				rows, survival.Rows, cureSide.Rows))
	}
	if !outcome.Has("time") || !outcome.Has("status") {
		return nil, core.NewValidationError("bridge", "outcome matrix must carry time and status columns")
	}

	var names []string
	var cols [][]float64
	used := make(map[string]int)

	// retained maps every source column (by side and position) to its
	// surviving column name.
	retain := func(name string, col []float64) string {
		for i := range cols {
			if dataset.ColumnsEqual(cols[i], col) {
				return names[i]
			}
		}
		used[name]++
		if used[name] > 1 {
			name = fmt.Sprintf("%s_%d", name, used[name])
		}
		names = append(names, name)
		cols = append(cols, col)
		return name
	}

	for i, n := range outcome.Names {
		retain(n, outcome.Cols[i])
	}
	survTerms := retainSide(survival, retain)
	cureTerms := retainSide(cureSide, retain)

	if len(survTerms) == 0 || len(cureTerms) == 0 {
		return nil, core.NewValidationError("bridge", "each formula must retain at least one term")
	}

	m, err := dataset.NewMatrix(names, cols, rows)
	if err != nil {
		return nil, err
	}
	return &dataset.Combined{
		Matrix:          m,
		SurvivalFormula: fmt.Sprintf("Surv(time, status) ~ %s", strings.Join(survTerms, " + ")),
		CureFormula:     fmt.Sprintf("~ %s", strings.Join(cureTerms, " + ")),
		SurvivalTerms:   survTerms,
		CureTerms:       cureTerms,
	}, nil
}

// retainSide feeds one side's columns through the dedup filter and returns
// the side's surviving term names in original order. Two source terms that
// collapse onto one physical column yield a single term.
func retainSide(m *dataset.Matrix, retain func(string, []float64) string) []string {
	var terms []string
	seen := make(map[string]bool)
	for i, n := range m.Names {
		kept := retain(n, m.Cols[i])
		if kept == "time" || kept == "status" {
			// A predictor structurally identical to an outcome column is
			// degenerate and cannot survive as a model term.
			continue
		}
		if !seen[kept] {
			seen[kept] = true
			terms = append(terms, kept)
		}
	}
	return terms
}
