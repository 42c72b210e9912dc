// Package app wires the fitting pipeline end to end: formula validation,
// design-matrix construction, column bridging, the point fit, bootstrap
// inference and final model assembly.
package app

import (
	"context"
	"fmt"
	"time"

	"gocure/domain/cure"
	"gocure/domain/dataset"
	"gocure/domain/formula"
	"gocure/internal"
	"gocure/internal/aggregate"
	"gocure/internal/bootstrap"
	"gocure/internal/bridge"
	"gocure/internal/config"
	"gocure/internal/design"
	"gocure/internal/em"
	"gocure/internal/errors"
	"gocure/ports"

	rngadapter "gocure/adapters/rng"
)

// Options holds the tunable parameters of a fit run.
type Options struct {
	// ConfidenceLevel for the reported intervals, in (0, 1).
	ConfidenceLevel float64
	// Bootstrap is the number of resampling replicates. Zero disables
	// inference: tables carry point estimates only.
	Bootstrap int
	// Tolerance is the convergence tolerance of the fit engine.
	Tolerance float64
	// MaxIterations bounds the outer estimation loop.
	MaxIterations int
	// Seed fixes the resampling stream. Zero draws a seed from the clock.
	Seed int64
	// Workers bounds concurrent replicate fits. Zero means one per
	// replicate up to the engine default.
	Workers int
}

// DefaultOptions returns the standard fit parameters.
func DefaultOptions() Options {
	return Options{
		ConfidenceLevel: 0.95,
		Bootstrap:       100,
		Tolerance:       1e-7,
	}
}

// OptionsFromConfig builds Options from environment-derived fit settings.
func OptionsFromConfig(fc *config.FitConfig) Options {
	opts := DefaultOptions()
	opts.Bootstrap = fc.DefaultBootstrap
	opts.Tolerance = fc.DefaultTolerance
	opts.MaxIterations = fc.MaxIterations
	opts.Workers = fc.Workers
	return opts
}

func (o Options) validate() error {
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		return errors.InvalidInput(fmt.Sprintf("confidence level must be in (0, 1), got %g", o.ConfidenceLevel))
	}
	if o.Bootstrap < 0 {
		return errors.InvalidInput(fmt.Sprintf("bootstrap replicates cannot be negative, got %d", o.Bootstrap))
	}
	if o.Tolerance <= 0 {
		return errors.InvalidInput(fmt.Sprintf("tolerance must be positive, got %g", o.Tolerance))
	}
	return nil
}

// CureService orchestrates cure model fitting through a fit engine and a
// seedable RNG port. A repository, when present, receives every completed
// fit for audit; persistence failures never fail the fit itself.
type CureService struct {
	fitter ports.FitEngine
	rng    ports.RNGPort
	boot   *bootstrap.Engine
	repo   ports.FitRunRepository
	log    *internal.Logger
}

// NewCureService creates the orchestration service. repo may be nil.
func NewCureService(fitter ports.FitEngine, rng ports.RNGPort, repo ports.FitRunRepository) *CureService {
	return &CureService{
		fitter: fitter,
		rng:    rng,
		boot:   bootstrap.NewEngine(fitter, rng),
		repo:   repo,
		log:    internal.NewDefaultLogger(),
	}
}

// Fit runs the complete pipeline and returns the immutable fitted model.
//
// The survival formula must carry a Surv(time, status) outcome; the cure
// formula must be one-sided. Rows with a missing value in any model column
// are dropped before fitting, and the bootstrap resamples the same filtered
// rows the point fit saw.
func (s *CureService) Fit(ctx context.Context, survivalFormula, cureFormula string,
	data *dataset.Dataset, opts Options) (*cure.Model, error) {

	started := time.Now()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	survSpec, err := formula.Parse(survivalFormula)
	if err != nil {
		return nil, errors.Wrap(err, "invalid survival formula")
	}
	if err := survSpec.ValidateSurvivalOutcome(data); err != nil {
		return nil, err
	}
	cureSpec, err := formula.Parse(cureFormula)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cure formula")
	}
	if cureSpec.HasOutcome() {
		return nil, errors.InvalidInput("cure formula must be one-sided, without a Surv() outcome")
	}

	outcome, err := design.Outcome(survSpec, data)
	if err != nil {
		return nil, err
	}
	survMat, err := design.Predictors(survSpec, data)
	if err != nil {
		return nil, err
	}
	cureMat, err := design.Predictors(cureSpec, data)
	if err != nil {
		return nil, err
	}

	combined, err := bridge.Combine(outcome, survMat, cureMat)
	if err != nil {
		return nil, err
	}

	rows := combined.CompleteCases()
	if len(rows) == 0 {
		return nil, errors.ValidationError("no complete cases after removing rows with missing values")
	}
	if dropped := combined.Rows() - len(rows); dropped > 0 {
		s.log.Info("dropped %d of %d rows with missing values", dropped, combined.Rows())
	}
	filtered := combined.Select(rows)

	seed := opts.Seed
	if seed == 0 {
		seed = started.UnixNano()
	}

	point, err := s.fitter.Fit(ctx, ports.FitRequest{
		SurvivalFormula: combined.SurvivalFormula,
		CureFormula:     combined.CureFormula,
		Data:            filtered,
		Tolerance:       opts.Tolerance,
		MaxIterations:   opts.MaxIterations,
	})
	if err != nil {
		return nil, errors.FitFailed("point estimation failed", err)
	}

	inference, err := s.boot.Run(ctx, filtered, point, bootstrap.Config{
		Replicates:    opts.Bootstrap,
		Seed:          seed,
		Workers:       opts.Workers,
		Tolerance:     opts.Tolerance,
		MaxIterations: opts.MaxIterations,
	})
	if err != nil {
		return nil, err
	}

	survTable, cureTable := aggregate.Tables(point, inference, opts.ConfidenceLevel)

	manifest := cure.NewManifest(survivalFormula, cureFormula, len(rows), seed,
		opts.Bootstrap, opts.Tolerance, opts.ConfidenceLevel)
	manifest.BootstrapFailed = inference.Failed
	manifest.RuntimeMs = time.Since(started).Milliseconds()

	covariates := append(append([]string{}, survSpec.Covariates...), cureSpec.Covariates...)
	model, err := cure.NewModel(*point, survTable, cureTable,
		survivalFormula, cureFormula, data, covariates, manifest)
	if err != nil {
		return nil, err
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, model); err != nil {
			s.log.Warn("failed to persist fit run %s: %v", manifest.FitID, err)
		}
	}
	return model, nil
}

// FitCureModel fits a mixture cure model with the default EM engine and RNG.
// It is the package-level convenience entry point.
func FitCureModel(ctx context.Context, survivalFormula, cureFormula string,
	data *dataset.Dataset, opts Options) (*cure.Model, error) {

	svc := NewCureService(em.NewEngine(), rngadapter.NewAdapter(), nil)
	return svc.Fit(ctx, survivalFormula, cureFormula, data, opts)
}
