package em

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gocure/domain/core"
)

// expit is the logistic function with a clipped linear predictor to keep the
// IRLS weights away from exact 0 and 1.
func expit(eta float64) float64 {
	if eta > 30 {
		eta = 30
	} else if eta < -30 {
		eta = -30
	}
	return 1 / (1 + math.Exp(-eta))
}

// logisticNewton maximizes the weighted Bernoulli log-likelihood
// sum_i w_i*log(mu_i) + (1-w_i)*log(1-mu_i) over coefficients for the design
// z (n x q, intercept included by the caller). w may be fractional, as in
// the EM E-step posteriors. The start vector is updated in place.
func logisticNewton(z [][]float64, w []float64, coef []float64, tol float64, maxIter int) error {
	n := len(w)
	q := len(coef)

	grad := make([]float64, q)
	hess := mat.NewSymDense(q, nil)
	step := mat.NewVecDense(q, nil)

	for iter := 0; iter < maxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		hess.Zero()

		for i := 0; i < n; i++ {
			eta := 0.0
			for j := 0; j < q; j++ {
				eta += z[j][i] * coef[j]
			}
			mu := expit(eta)
			r := w[i] - mu
			v := mu * (1 - mu)
			for j := 0; j < q; j++ {
				grad[j] += z[j][i] * r
				for k := j; k < q; k++ {
					hess.SetSym(j, k, hess.At(j, k)+v*z[j][i]*z[k][i])
				}
			}
		}

		var chol mat.Cholesky
		if !chol.Factorize(hess) {
			return core.ErrSingular
		}
		if err := chol.SolveVecTo(step, mat.NewVecDense(q, grad)); err != nil {
			return core.ErrSingular
		}

		maxStep := 0.0
		for j := 0; j < q; j++ {
			s := step.AtVec(j)
			coef[j] += s
			if math.Abs(s) > maxStep {
				maxStep = math.Abs(s)
			}
		}
		if math.IsNaN(maxStep) || math.IsInf(maxStep, 0) {
			return core.ErrNotConverged
		}
		if maxStep < tol {
			return nil
		}
	}
	return core.ErrNotConverged
}

// logisticLogLik evaluates the weighted Bernoulli log-likelihood.
func logisticLogLik(z [][]float64, w []float64, coef []float64) float64 {
	n := len(w)
	q := len(coef)
	ll := 0.0
	for i := 0; i < n; i++ {
		eta := 0.0
		for j := 0; j < q; j++ {
			eta += z[j][i] * coef[j]
		}
		mu := expit(eta)
		ll += w[i]*math.Log(mu) + (1-w[i])*math.Log(1-mu)
	}
	return ll
}
