// Package em provides the default fit engine for the proportional hazards
// mixture cure model: an EM algorithm whose M-step alternates a weighted
// logistic Newton update for the incidence sub-model with a weighted Cox
// partial-likelihood update and Breslow baseline for the latency sub-model.
package em

import (
	"context"
	"fmt"
	"math"

	"gocure/domain/core"
	"gocure/domain/cure"
	"gocure/domain/dataset"
	"gocure/domain/formula"
	"gocure/internal/errors"
	"gocure/ports"
)

const (
	defaultTolerance = 1e-7
	defaultMaxIter   = 200
	innerMaxIter     = 50
)

// Engine is the default ports.FitEngine implementation.
type Engine struct{}

var _ ports.FitEngine = (*Engine)(nil)

// NewEngine creates the default EM fit engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Fit estimates the hazard coefficients beta and the cure-logit coefficients
// b for the formulas and dataset in the request. Output is deterministic for
// deterministic input at a fixed tolerance. A non-convergent or numerically
// degenerate problem is reported through the error return; no partial fit is
// ever produced.
func (e *Engine) Fit(ctx context.Context, req ports.FitRequest) (*cure.RawFit, error) {
	survSpec, err := formula.Parse(req.SurvivalFormula)
	if err != nil {
		return nil, errors.Wrap(err, "invalid survival formula")
	}
	cureSpec, err := formula.Parse(req.CureFormula)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cure formula")
	}

	prob, err := assemble(req.Data, survSpec.Covariates, cureSpec.Covariates)
	if err != nil {
		return nil, err
	}

	tol := req.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}
	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	// The inner Newton solvers run tighter than the outer EM loop.
	innerTol := math.Min(tol, 1e-8)

	n := len(prob.status)
	p := len(prob.x)
	q := len(prob.z) // includes the internal intercept column

	// Initial posterior susceptibility weights: events are susceptible by
	// definition; censored rows start at the marginal event rate.
	events := 0.0
	for _, d := range prob.status {
		events += d
	}
	if events < 1 {
		return nil, fmt.Errorf("%w: no events observed", core.ErrInsufficientData)
	}
	rate := events / float64(n)
	w := make([]float64, n)
	for i, d := range prob.status {
		w[i] = d + (1-d)*rate
	}

	b := make([]float64, q)
	beta := make([]float64, p)
	cox := newCoxData(prob.x, prob.time, prob.status)

	iterations := 0
	converged := false
	logLik := 0.0
	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations = iter + 1

		bPrev := append([]float64(nil), b...)
		betaPrev := append([]float64(nil), beta...)

		// M-step: incidence then latency, against the current posteriors.
		if err := logisticNewton(prob.z, w, b, innerTol, innerMaxIter); err != nil {
			return nil, errors.FitFailed("incidence update failed", err)
		}
		coxLL, err := cox.newton(beta, w, innerTol, innerMaxIter)
		if err != nil {
			return nil, errors.FitFailed("latency update failed", err)
		}
		logLik = coxLL + logisticLogLik(prob.z, w, b)

		// E-step: posterior susceptibility of the censored rows under the
		// updated parameters.
		s0 := cox.breslow(beta, w)
		for i := 0; i < n; i++ {
			if prob.status[i] != 0 {
				w[i] = 1
				continue
			}
			etaZ := 0.0
			for j := 0; j < q; j++ {
				etaZ += prob.z[j][i] * b[j]
			}
			pi := expit(etaZ)
			etaX := 0.0
			for j := 0; j < p; j++ {
				etaX += prob.x[j][i] * beta[j]
			}
			if etaX > 200 {
				etaX = 200
			}
			s := math.Pow(s0[i], math.Exp(etaX))
			w[i] = pi * s / (1 - pi + pi*s)
		}

		change := 0.0
		for j := range b {
			change = math.Max(change, math.Abs(b[j]-bPrev[j]))
		}
		for j := range beta {
			change = math.Max(change, math.Abs(beta[j]-betaPrev[j]))
		}
		if math.IsNaN(change) {
			return nil, errors.FitFailed("parameters diverged", core.ErrNotConverged)
		}
		if iter > 0 && change < tol {
			converged = true
			break
		}
	}
	if !converged {
		return nil, errors.FitFailed(
			fmt.Sprintf("EM did not converge in %d iterations", maxIter), core.ErrNotConverged)
	}

	betaCoef, err := cure.NewCoefficients(survSpec.Covariates, beta)
	if err != nil {
		return nil, err
	}
	// The incidence intercept is internal to the engine; reported b covers
	// the formula terms only.
	bCoef, err := cure.NewCoefficients(cureSpec.Covariates, b[1:])
	if err != nil {
		return nil, err
	}

	return &cure.RawFit{
		Beta:          betaCoef,
		B:             bCoef,
		Converged:     true,
		Iterations:    iterations,
		LogLikelihood: logLik,
	}, nil
}

// problem holds the assembled numeric fitting problem: latency covariate
// columns x, incidence columns z (intercept first), and the outcome.
type problem struct {
	x      [][]float64
	z      [][]float64
	time   []float64
	status []float64
}

func assemble(data *dataset.Combined, survTerms, cureTerms []string) (*problem, error) {
	if data == nil || data.Rows() == 0 {
		return nil, core.ErrEmptyDataset
	}
	timeCol := data.Time()
	statusCol := data.Status()
	if timeCol == nil || statusCol == nil {
		return nil, core.NewValidationError("fit", "dataset must carry time and status columns")
	}

	pick := func(terms []string) ([][]float64, error) {
		cols := make([][]float64, 0, len(terms))
		for _, term := range terms {
			col := data.Column(term)
			if col == nil {
				return nil, core.NewColumnError(term)
			}
			cols = append(cols, col)
		}
		return cols, nil
	}

	x, err := pick(survTerms)
	if err != nil {
		return nil, err
	}
	z, err := pick(cureTerms)
	if err != nil {
		return nil, err
	}

	// The engine requires complete cases; the pipeline filters beforehand.
	check := func(cols [][]float64) error {
		for _, col := range cols {
			for i, v := range col {
				if math.IsNaN(v) {
					return core.NewValidationError("fit",
						fmt.Sprintf("missing value at row %d; drop incomplete rows before fitting", i))
				}
			}
		}
		return nil
	}
	if err := check(x); err != nil {
		return nil, err
	}
	if err := check(z); err != nil {
		return nil, err
	}
	if err := check([][]float64{timeCol, statusCol}); err != nil {
		return nil, err
	}

	intercept := make([]float64, data.Rows())
	for i := range intercept {
		intercept[i] = 1
	}
	return &problem{
		x:      x,
		z:      append([][]float64{intercept}, z...),
		time:   timeCol,
		status: statusCol,
	}, nil
}
