// Package bootstrap estimates the sampling variability of the cure model
// coefficients by stratified resampling: each replicate redraws the censored
// and event strata independently with replacement, preserving both stratum
// sizes, and refits through the fit-engine port. Replicates are independent
// and run as a bounded parallel map; a failing replicate is recorded and
// excluded from aggregation, never propagated.
package bootstrap

import (
	"context"
	"math"
	"sync"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/stat/distuv"

	"gocure/domain/cure"
	"gocure/domain/dataset"
	"gocure/internal"
	"gocure/ports"
)

// Config controls one bootstrap run.
type Config struct {
	Replicates    int
	Seed          int64
	Workers       int
	Tolerance     float64
	MaxIterations int
}

// ReplicateResult is the outcome of one replicate fit: either a RawFit or
// the failure that excluded it from aggregation.
type ReplicateResult struct {
	Index int
	Fit   *cure.RawFit
	Err   error
}

// Converged reports whether the replicate produced a usable fit.
func (r ReplicateResult) Converged() bool {
	return r.Err == nil && r.Fit != nil && r.Fit.Converged
}

// Inference holds the aggregated resampling statistics, term-aligned with
// the point fit's coefficient order.
type Inference struct {
	Requested  int
	Converged  int
	Failed     int
	Replicates []ReplicateResult
	Survival   []cure.TermStats
	Cure       []cure.TermStats
}

// Engine runs stratified bootstrap inference through a fit engine and a
// seedable RNG port.
type Engine struct {
	fitter ports.FitEngine
	rng    ports.RNGPort
	log    *internal.Logger
}

// NewEngine creates a bootstrap engine.
func NewEngine(fitter ports.FitEngine, rng ports.RNGPort) *Engine {
	return &Engine{fitter: fitter, rng: rng, log: internal.DefaultLogger}
}

// Run attempts cfg.Replicates stratified replicates against the point fit.
// When cfg.Replicates is 0 nothing is resampled and every statistic is
// explicitly undefined. The point fit must already be complete: replicate
// variance is reported relative to it.
func (e *Engine) Run(ctx context.Context, data *dataset.Combined, point *cure.RawFit, cfg Config) (*Inference, error) {
	inf := &Inference{
		Requested: cfg.Replicates,
		Survival:  undefinedStats(point.Beta.Names),
		Cure:      undefinedStats(point.B.Names),
	}
	if cfg.Replicates == 0 {
		return inf, nil
	}

	// Complete cases only, split into the censored and event strata.
	complete := data.CompleteCases()
	status := data.Status()
	var eventRows, censoredRows []int
	for _, i := range complete {
		if status[i] != 0 {
			eventRows = append(eventRows, i)
		} else {
			censoredRows = append(censoredRows, i)
		}
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	results := make([]ReplicateResult, cfg.Replicates)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Replicates; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[index] = ReplicateResult{Index: index + 1, Err: err}
				return
			}
			defer sem.Release(1)

			rng := e.rng.ReplicateStream(cfg.Seed, index+1)
			rows := make([]int, 0, len(eventRows)+len(censoredRows))
			for range eventRows {
				rows = append(rows, eventRows[rng.Intn(len(eventRows))])
			}
			for range censoredRows {
				rows = append(rows, censoredRows[rng.Intn(len(censoredRows))])
			}

			fit, err := e.fitter.Fit(ctx, ports.FitRequest{
				SurvivalFormula: data.SurvivalFormula,
				CureFormula:     data.CureFormula,
				Data:            data.Select(rows),
				Tolerance:       cfg.Tolerance,
				MaxIterations:   cfg.MaxIterations,
			})
			results[index] = ReplicateResult{Index: index + 1, Fit: fit, Err: err}
		}(i)
	}
	wg.Wait()

	inf.Replicates = results
	for _, r := range results {
		if r.Converged() {
			inf.Converged++
		} else {
			inf.Failed++
			e.log.Warn("bootstrap replicate %d/%d failed: %v", r.Index, cfg.Replicates, r.Err)
		}
	}

	inf.Survival = aggregate(point.Beta, results, func(f *cure.RawFit) cure.Coefficients { return f.Beta })
	inf.Cure = aggregate(point.B, results, func(f *cure.RawFit) cure.Coefficients { return f.B })
	return inf, nil
}

// aggregate computes the per-term variance across converged replicates,
// with the converged-replicate count as denominator, then the derived
// standard error, z-statistic and two-sided p-value.
func aggregate(point cure.Coefficients, results []ReplicateResult,
	side func(*cure.RawFit) cure.Coefficients) []cure.TermStats {

	out := make([]cure.TermStats, len(point.Names))
	for t, term := range point.Names {
		var draws []float64
		for _, r := range results {
			if !r.Converged() {
				continue
			}
			if v, ok := side(r.Fit).Get(term); ok {
				draws = append(draws, v)
			}
		}
		if len(draws) < 2 {
			out[t] = cure.UndefinedTermStats(term)
			out[t].Converged = len(draws)
			continue
		}

		variance, err := stats.PopulationVariance(draws)
		if err != nil {
			out[t] = cure.UndefinedTermStats(term)
			out[t].Converged = len(draws)
			continue
		}
		se := math.Sqrt(variance)
		z, p := zAndP(point.Values[t], se)
		out[t] = cure.TermStats{
			Term:      term,
			Variance:  variance,
			StdErr:    se,
			Z:         z,
			P:         p,
			Converged: len(draws),
		}
	}
	return out
}

// zAndP computes z = estimate/SE and the two-sided normal p-value
// 2*min(Phi(z), 1-Phi(z)).
func zAndP(estimate, se float64) (float64, float64) {
	if se == 0 {
		if estimate == 0 {
			return 0, 1
		}
		return math.Inf(int(math.Copysign(1, estimate))), 0
	}
	z := estimate / se
	cdf := distuv.UnitNormal.CDF(z)
	p := 2 * math.Min(cdf, 1-cdf)
	if p > 1 {
		p = 1
	}
	return z, p
}

func undefinedStats(terms []string) []cure.TermStats {
	out := make([]cure.TermStats, len(terms))
	for i, term := range terms {
		out[i] = cure.UndefinedTermStats(term)
	}
	return out
}
