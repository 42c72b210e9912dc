// Package testkit provides synthetic survival data and fake fit engines for
// exercising the pipeline without a live estimation run.
package testkit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"gocure/domain/cure"
	"gocure/domain/dataset"
	"gocure/ports"
)

// CureDataConfig tunes the synthetic mixture population.
type CureDataConfig struct {
	N    int
	Seed int64
	// CureLogitIntercept shifts the cured fraction: large positive values
	// mean mostly cured.
	CureLogitIntercept float64
	// CensorTime is the administrative censoring horizon.
	CensorTime float64
}

// DefaultCureDataConfig produces a population with roughly a third cured.
func DefaultCureDataConfig(n int, seed int64) CureDataConfig {
	return CureDataConfig{N: n, Seed: seed, CureLogitIntercept: -0.7, CensorTime: 8}
}

// SyntheticCureData simulates a right-censored mixture population with one
// numeric covariate ("age", standardized), one two-level factor ("group",
// levels control/treated) and "time"/"status" outcome columns. Susceptible
// subjects draw an exponential latency whose rate depends on both
// covariates; cured subjects are always censored at the horizon.
func SyntheticCureData(cfg CureDataConfig) *dataset.Dataset {
	rng := rand.New(rand.NewSource(cfg.Seed))

	age := make([]float64, cfg.N)
	groupLabels := make([]string, cfg.N)
	times := make([]float64, cfg.N)
	status := make([]float64, cfg.N)

	for i := 0; i < cfg.N; i++ {
		age[i] = rng.NormFloat64()
		treated := 0.0
		if rng.Float64() < 0.5 {
			treated = 1
			groupLabels[i] = "treated"
		} else {
			groupLabels[i] = "control"
		}

		// Incidence: logit P(cured) with a protective treatment effect.
		cureLogit := cfg.CureLogitIntercept + 0.8*treated - 0.4*age[i]
		cured := rng.Float64() < 1/(1+math.Exp(-cureLogit))

		censor := cfg.CensorTime * rng.Float64()
		if cured {
			times[i] = censor
			status[i] = 0
			continue
		}

		// Latency: exponential with log-linear hazard in the covariates.
		rate := math.Exp(0.5*age[i] - 0.6*treated)
		event := rng.ExpFloat64() / rate
		if event < censor {
			times[i] = event
			status[i] = 1
		} else {
			times[i] = censor
			status[i] = 0
		}
	}

	return dataset.MustNew(
		dataset.NumericColumn("time", times),
		dataset.NumericColumn("status", status),
		dataset.NumericColumn("age", age),
		dataset.FactorColumn("group", groupLabels, []string{"control", "treated"}),
	)
}

// FakeFitEngine produces a deterministic RawFit from column means: identical
// data gives identical output, resampled data shifts it. It never fails.
type FakeFitEngine struct{}

var _ ports.FitEngine = (*FakeFitEngine)(nil)

func (f *FakeFitEngine) Fit(_ context.Context, req ports.FitRequest) (*cure.RawFit, error) {
	beta, err := meanCoefficients(req.Data, req.Data.SurvivalTerms)
	if err != nil {
		return nil, err
	}
	b, err := meanCoefficients(req.Data, req.Data.CureTerms)
	if err != nil {
		return nil, err
	}
	return &cure.RawFit{
		Beta:       beta,
		B:          b,
		Converged:  true,
		Iterations: 1,
	}, nil
}

func meanCoefficients(data *dataset.Combined, terms []string) (cure.Coefficients, error) {
	values := make([]float64, len(terms))
	for i, term := range terms {
		col := data.Column(term)
		if col == nil {
			return cure.Coefficients{}, fmt.Errorf("column %q not found", term)
		}
		sum := 0.0
		for _, v := range col {
			sum += v
		}
		values[i] = sum / float64(len(col))
	}
	return cure.NewCoefficients(terms, values)
}

// FlakyFitEngine wraps an engine and fails every FailEvery-th call. The call
// counter is shared across goroutines, so the number of failures in a fixed
// number of calls is deterministic even when the calls are concurrent.
type FlakyFitEngine struct {
	Inner     ports.FitEngine
	FailEvery int64
	calls     int64
}

var _ ports.FitEngine = (*FlakyFitEngine)(nil)

func (f *FlakyFitEngine) Fit(ctx context.Context, req ports.FitRequest) (*cure.RawFit, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if f.FailEvery > 0 && n%f.FailEvery == 0 {
		return nil, fmt.Errorf("replicate fit did not converge")
	}
	return f.Inner.Fit(ctx, req)
}

// FailingFitEngine always fails.
type FailingFitEngine struct{}

var _ ports.FitEngine = (*FailingFitEngine)(nil)

func (f *FailingFitEngine) Fit(context.Context, ports.FitRequest) (*cure.RawFit, error) {
	return nil, fmt.Errorf("fit engine unavailable")
}
