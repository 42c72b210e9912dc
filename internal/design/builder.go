// Package design builds numeric design matrices from formula specifications.
// Categorical covariates expand to indicator columns against a first-level
// reference; no intercept column is ever emitted; column names are
// canonicalized so overlapping covariate sets from two formulas can later be
// matched by exact string equality.
package design

import (
	"fmt"
	"math"
	"strings"

	"gocure/domain/core"
	"gocure/domain/dataset"
	"gocure/domain/formula"
)

// CanonicalName lower-cases a term name and normalizes every delimiter run
// to a single underscore. The result is stable across formulas that spell
// the same covariate with different local encodings.
func CanonicalName(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, "_"))
	var b strings.Builder
	lastUnderscore := true // swallow leading delimiters
	for _, r := range joined {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Predictors builds the covariate matrix for a formula against a dataset.
// The column set and order are a deterministic function of the inputs: one
// column per numeric or ordinal covariate, one indicator column per
// non-reference level of each categorical covariate, in formula term order.
func Predictors(spec *formula.Spec, ds *dataset.Dataset) (*dataset.Matrix, error) {
	var names []string
	var cols [][]float64
	used := make(map[string]int)

	for _, term := range spec.Covariates {
		col, ok := ds.Column(term)
		if !ok {
			return nil, core.NewColumnError(term)
		}
		switch col.Type {
		case dataset.TypeNumeric, dataset.TypeOrdinal:
			values := make([]float64, col.Len())
			copy(values, col.Values)
			names = append(names, uniquify(CanonicalName(term), used))
			cols = append(cols, values)
		case dataset.TypeCategorical:
			levels := col.LevelSet()
			if len(levels) < 2 {
				return nil, core.NewValidationError(term,
					fmt.Sprintf("categorical covariate needs at least 2 levels, got %d", len(levels)))
			}
			// First level is the reference and gets no column.
			for _, level := range levels[1:] {
				names = append(names, uniquify(CanonicalName(term, level), used))
				cols = append(cols, indicator(col, level))
			}
		default:
			return nil, core.NewValidationError(term, fmt.Sprintf("unsupported column type %q", col.Type))
		}
	}

	return dataset.NewMatrix(names, cols, ds.N())
}

// Outcome builds the survival outcome matrix with canonical column names
// "time" and "status". A categorical status column is coded by level index,
// so the first level maps to 0 (censored).
func Outcome(spec *formula.Spec, ds *dataset.Dataset) (*dataset.Matrix, error) {
	if !spec.HasOutcome() {
		return nil, fmt.Errorf("%w: formula %q carries no outcome", core.ErrNotRightCensored, spec.Raw)
	}

	timeCol, ok := ds.Column(spec.Outcome.Time)
	if !ok {
		return nil, core.NewColumnError(spec.Outcome.Time)
	}
	statusCol, ok := ds.Column(spec.Outcome.Status)
	if !ok {
		return nil, core.NewColumnError(spec.Outcome.Status)
	}

	times := make([]float64, timeCol.Len())
	copy(times, timeCol.Values)

	var status []float64
	if statusCol.Type == dataset.TypeCategorical {
		levels := statusCol.LevelSet()
		code := make(map[string]float64, len(levels))
		for i, l := range levels {
			code[l] = float64(i)
		}
		status = make([]float64, statusCol.Len())
		for i, label := range statusCol.Labels {
			if label == "" {
				status[i] = math.NaN()
				continue
			}
			status[i] = code[label]
		}
	} else {
		status = make([]float64, statusCol.Len())
		copy(status, statusCol.Values)
	}

	return dataset.NewMatrix([]string{"time", "status"}, [][]float64{times, status}, ds.N())
}

func indicator(col dataset.Column, level string) []float64 {
	out := make([]float64, col.Len())
	for i, label := range col.Labels {
		switch {
		case label == "":
			out[i] = math.NaN()
		case label == level:
			out[i] = 1
		}
	}
	return out
}

// uniquify guarantees collision-free canonical names by suffixing repeats.
func uniquify(name string, used map[string]int) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, used[name])
}
