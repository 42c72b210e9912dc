package cure

import (
	"fmt"

	"gocure/domain/core"
	"gocure/domain/dataset"
)

// Reporter is the fixed operation set a fitted model exposes to external
// collaborators (reporting, prediction, nomogram tooling). There is no
// runtime type dispatch anywhere: every consumer programs against these
// operations.
type Reporter interface {
	// Coefficients returns the name-to-value maps for the survival and cure
	// sub-models.
	Coefficients() (survival, cureLogit map[string]float64)
	// Tables returns the two tidy coefficient tables.
	Tables() (survival, cureLogit Table)
	// Levels returns the observed category set per covariate, snapshotted at
	// fit time.
	Levels() map[string][]string
	// ValidateNewData checks a prediction dataset against the training-time
	// category sets.
	ValidateNewData(ds *dataset.Dataset) error
}

// Model is the terminal immutable result of a cure model fit. It is created
// once per top-level invocation and never mutated afterwards.
type Model struct {
	fit           RawFit
	survivalTable Table
	cureTable     Table

	survivalFormula string
	cureFormula     string
	data            *dataset.Dataset
	levels          map[string][]string
	manifest        *Manifest
}

var _ Reporter = (*Model)(nil)

// NewModel assembles the immutable model object. It validates coefficient
// shape, snapshots each covariate's observed category set from the training
// dataset (declared levels for factors, sorted distinct values for free-text
// categoricals, no snapshot for continuous covariates), and freezes the fit
// metadata.
func NewModel(fit RawFit, survivalTable, cureTable Table,
	survivalFormula, cureFormula string, data *dataset.Dataset,
	covariates []string, manifest *Manifest) (*Model, error) {

	if len(fit.Beta.Names) != len(fit.Beta.Values) {
		return nil, fmt.Errorf("%w: survival coefficients", core.ErrShapeMismatch)
	}
	if len(fit.B.Names) != len(fit.B.Values) {
		return nil, fmt.Errorf("%w: cure coefficients", core.ErrShapeMismatch)
	}
	if manifest == nil {
		return nil, core.NewValidationError("model", "manifest is required")
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	levels := make(map[string][]string)
	for _, name := range covariates {
		col, ok := data.Column(name)
		if !ok {
			return nil, core.NewColumnError(name)
		}
		if set := col.LevelSet(); set != nil {
			levels[name] = set
		}
	}

	return &Model{
		fit:             fit,
		survivalTable:   survivalTable,
		cureTable:       cureTable,
		survivalFormula: survivalFormula,
		cureFormula:     cureFormula,
		data:            data,
		levels:          levels,
		manifest:        manifest,
	}, nil
}

// Coefficients returns the name-to-value maps for both sub-models.
func (m *Model) Coefficients() (survival, cureLogit map[string]float64) {
	return m.fit.Beta.Map(), m.fit.B.Map()
}

// RawFit returns the point-estimate fit.
func (m *Model) RawFit() RawFit { return m.fit }

// Tables returns the two tidy coefficient tables.
func (m *Model) Tables() (survival, cureLogit Table) {
	return m.survivalTable, m.cureTable
}

// Formulas returns the survival and cure formulas exactly as supplied by the
// caller.
func (m *Model) Formulas() (survival, cureLogit string) {
	return m.survivalFormula, m.cureFormula
}

// Data returns the training dataset reference.
func (m *Model) Data() *dataset.Dataset { return m.data }

// Levels returns the per-covariate observed category sets captured at
// construction.
func (m *Model) Levels() map[string][]string {
	out := make(map[string][]string, len(m.levels))
	for k, v := range m.levels {
		set := make([]string, len(v))
		copy(set, v)
		out[k] = set
	}
	return out
}

// Manifest returns the fit metadata.
func (m *Model) Manifest() *Manifest { return m.manifest }

// ValidateNewData checks that every snapshotted covariate exists in the new
// dataset and carries no category outside the training-time set.
func (m *Model) ValidateNewData(ds *dataset.Dataset) error {
	for name, trained := range m.levels {
		col, ok := ds.Column(name)
		if !ok {
			return core.NewColumnError(name)
		}
		allowed := make(map[string]bool, len(trained))
		for _, l := range trained {
			allowed[l] = true
		}
		for _, observed := range col.LevelSet() {
			if !allowed[observed] {
				return core.NewValidationError(name,
					fmt.Sprintf("category %q was not observed at fit time", observed))
			}
		}
	}
	return nil
}
