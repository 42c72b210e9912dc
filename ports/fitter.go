package ports

import (
	"context"

	"gocure/domain/cure"
	"gocure/domain/dataset"
)

// FitRequest carries one fit-engine invocation: the deduplicated dataset and
// the reconstructed formula pair referencing only its columns.
type FitRequest struct {
	SurvivalFormula string
	CureFormula     string
	Data            *dataset.Combined
	Tolerance       float64
	MaxIterations   int
}

// FitEngine is the external solver contract. The pipeline treats it as
// opaque: it requires deterministic output for deterministic input at a
// fixed tolerance, coefficient vectors indexed by the term names present in
// the formulas passed in, and a hard success/failure outcome. A failed fit
// is reported through the error return, never a partial RawFit.
type FitEngine interface {
	Fit(ctx context.Context, req FitRequest) (*cure.RawFit, error)
}
