package em

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"gocure/domain/core"
)

// coxData holds one latency-model fitting problem: covariate columns, times,
// event indicators, per-subject risk weights (events always carry weight 1),
// and the row order sorted by descending time for risk-set accumulation.
type coxData struct {
	x      [][]float64
	time   []float64
	status []float64
	order  []int
}

func newCoxData(x [][]float64, time, status []float64) *coxData {
	order := make([]int, len(time))
	for i := range order {
		order[i] = i
	}
	// Descending time; events after censorings at tied times so tied event
	// rows enter the risk set before their own event is processed.
	sort.SliceStable(order, func(a, b int) bool {
		return time[order[a]] > time[order[b]]
	})
	return &coxData{x: x, time: time, status: status, order: order}
}

func (c *coxData) n() int { return len(c.time) }
func (c *coxData) p() int { return len(c.x) }

// score evaluates the weighted partial log-likelihood with Breslow tie
// handling, plus its gradient and negative Hessian, at beta.
func (c *coxData) score(beta, w []float64, grad []float64, hess *mat.SymDense) float64 {
	p := c.p()
	for j := range grad {
		grad[j] = 0
	}
	hess.Zero()

	eta := make([]float64, c.n())
	for i := range eta {
		v := 0.0
		for j := 0; j < p; j++ {
			v += c.x[j][i] * beta[j]
		}
		if v > 200 {
			v = 200
		}
		eta[i] = v
	}

	ll := 0.0
	s0 := 0.0
	s1 := make([]float64, p)
	s2 := mat.NewSymDense(p, nil)

	k := 0
	for k < len(c.order) {
		t := c.time[c.order[k]]
		// Admit every row tied at t into the risk set.
		tieStart := k
		for k < len(c.order) && c.time[c.order[k]] == t {
			i := c.order[k]
			r := w[i] * math.Exp(eta[i])
			s0 += r
			for j := 0; j < p; j++ {
				s1[j] += r * c.x[j][i]
				for l := j; l < p; l++ {
					s2.SetSym(j, l, s2.At(j, l)+r*c.x[j][i]*c.x[l][i])
				}
			}
			k++
		}
		// Process events at t against the accumulated risk set.
		for m := tieStart; m < k; m++ {
			i := c.order[m]
			if c.status[i] == 0 {
				continue
			}
			ll += eta[i] - math.Log(s0)
			for j := 0; j < p; j++ {
				mj := s1[j] / s0
				grad[j] += c.x[j][i] - mj
				for l := j; l < p; l++ {
					hess.SetSym(j, l, hess.At(j, l)+s2.At(j, l)/s0-mj*s1[l]/s0)
				}
			}
		}
	}
	return ll
}

// newton maximizes the weighted partial likelihood, updating beta in place.
func (c *coxData) newton(beta, w []float64, tol float64, maxIter int) (float64, error) {
	p := c.p()
	grad := make([]float64, p)
	hess := mat.NewSymDense(p, nil)
	step := mat.NewVecDense(p, nil)

	ll := math.Inf(-1)
	for iter := 0; iter < maxIter; iter++ {
		ll = c.score(beta, w, grad, hess)
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return 0, core.ErrNotConverged
		}

		var chol mat.Cholesky
		if !chol.Factorize(hess) {
			return 0, core.ErrSingular
		}
		if err := chol.SolveVecTo(step, mat.NewVecDense(p, grad)); err != nil {
			return 0, core.ErrSingular
		}

		maxStep := 0.0
		for j := 0; j < p; j++ {
			s := step.AtVec(j)
			beta[j] += s
			if math.Abs(s) > maxStep {
				maxStep = math.Abs(s)
			}
		}
		if maxStep < tol {
			return ll, nil
		}
	}
	return ll, core.ErrNotConverged
}

// breslow computes the per-subject baseline survival S0(t_i) under the
// current beta and weights, applying the zero-tail constraint: baseline
// survival is 0 beyond the last observed event time, so late censorings
// among the susceptible carry no mass.
func (c *coxData) breslow(beta, w []float64) []float64 {
	p := c.p()
	eta := make([]float64, c.n())
	for i := range eta {
		v := 0.0
		for j := 0; j < p; j++ {
			v += c.x[j][i] * beta[j]
		}
		if v > 200 {
			v = 200
		}
		eta[i] = v
	}

	type eventTime struct {
		t      float64
		hazard float64
	}
	var events []eventTime

	s0 := 0.0
	k := 0
	for k < len(c.order) {
		t := c.time[c.order[k]]
		tieStart := k
		for k < len(c.order) && c.time[c.order[k]] == t {
			i := c.order[k]
			s0 += w[i] * math.Exp(eta[i])
			k++
		}
		d := 0.0
		for m := tieStart; m < k; m++ {
			if c.status[c.order[m]] != 0 {
				d++
			}
		}
		if d > 0 {
			events = append(events, eventTime{t: t, hazard: d / s0})
		}
	}
	// events is in descending time order; reverse for cumulative sums.
	for a, b := 0, len(events)-1; a < b; a, b = a+1, b-1 {
		events[a], events[b] = events[b], events[a]
	}

	cum := make([]float64, len(events))
	for i := range events {
		cum[i] = events[i].hazard
	}
	floats.CumSum(cum, cum)

	lastEvent := math.Inf(-1)
	if len(events) > 0 {
		lastEvent = events[len(events)-1].t
	}

	surv := make([]float64, c.n())
	for i := range surv {
		t := c.time[i]
		if t > lastEvent {
			surv[i] = 0
			continue
		}
		// H0(t) = sum of hazard increments at event times <= t.
		idx := sort.Search(len(events), func(j int) bool { return events[j].t > t })
		if idx == 0 {
			surv[i] = 1
			continue
		}
		surv[i] = math.Exp(-cum[idx-1])
	}
	return surv
}
