// Package aggregate merges point estimates with bootstrap statistics into
// the two tidy, term-aligned coefficient tables.
package aggregate

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gocure/domain/cure"
	"gocure/internal/bootstrap"
)

// Tables builds the survival and cure coefficient tables. Row order follows
// the point fit's coefficient order, which is the deduplicated formula term
// order. Confidence intervals use the normal approximation around the
// bootstrap standard error and are only populated when resampling was
// requested and the term's variance is defined.
func Tables(point *cure.RawFit, inf *bootstrap.Inference, confidenceLevel float64) (survival, cureLogit cure.Table) {
	survival = buildTable(point.Beta, inf.Survival, confidenceLevel, inf.Requested > 0)
	cureLogit = buildTable(point.B, inf.Cure, confidenceLevel, inf.Requested > 0)
	return survival, cureLogit
}

func buildTable(point cure.Coefficients, stats []cure.TermStats, confidenceLevel float64, resampled bool) cure.Table {
	byTerm := make(map[string]cure.TermStats, len(stats))
	for _, s := range stats {
		byTerm[s.Term] = s
	}

	quantile := math.NaN()
	if resampled {
		quantile = distuv.UnitNormal.Quantile(1 - (1-confidenceLevel)/2)
	}

	rows := make([]cure.TableRow, len(point.Names))
	for i, term := range point.Names {
		estimate := point.Values[i]
		s, ok := byTerm[term]
		if !ok {
			s = cure.UndefinedTermStats(term)
		}

		row := cure.TableRow{
			Term:     term,
			Estimate: estimate,
			StdErr:   s.StdErr,
			Z:        s.Z,
			P:        s.P,
			CILower:  math.NaN(),
			CIUpper:  math.NaN(),
		}
		if resampled && s.Defined() {
			row.CILower = estimate - quantile*s.StdErr
			row.CIUpper = estimate + quantile*s.StdErr
		}
		rows[i] = row
	}
	return cure.Table{Rows: rows}
}
