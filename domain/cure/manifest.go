package cure

import (
	"fmt"

	"gocure/domain/core"
)

// Manifest captures the complete audit metadata of a fit run: replay
// parameters plus a deterministic fingerprint, in the style of a run
// manifest. It must be constructed once per top-level invocation.
type Manifest struct {
	FitID              core.FitID     `json:"fit_id"`
	SurvivalFormula    string         `json:"survival_formula"`
	CureFormula        string         `json:"cure_formula"`
	N                  int            `json:"n"`
	Seed               int64          `json:"seed"`
	BootstrapRequested int            `json:"bootstrap_requested"`
	BootstrapFailed    int            `json:"bootstrap_failed"`
	Tolerance          float64        `json:"tolerance"`
	ConfidenceLevel    float64        `json:"confidence_level"`
	RuntimeMs          int64          `json:"runtime_ms"`
	Fingerprint        core.Hash      `json:"fingerprint"`
	CreatedAt          core.Timestamp `json:"created_at"`
}

// NewManifest creates a manifest with a deterministic fingerprint over the
// inputs that fix a run's output: formulas, row count, seed, replicate count
// and tolerance.
func NewManifest(survivalFormula, cureFormula string, n int, seed int64,
	nboot int, tolerance, confidenceLevel float64) *Manifest {

	return &Manifest{
		FitID:              core.FitID(core.NewID()),
		SurvivalFormula:    survivalFormula,
		CureFormula:        cureFormula,
		N:                  n,
		Seed:               seed,
		BootstrapRequested: nboot,
		Tolerance:          tolerance,
		ConfidenceLevel:    confidenceLevel,
		Fingerprint:        Fingerprint(survivalFormula, cureFormula, n, seed, nboot, tolerance),
		CreatedAt:          core.Now(),
	}
}

// Fingerprint computes the deterministic run fingerprint.
func Fingerprint(survivalFormula, cureFormula string, n int, seed int64,
	nboot int, tolerance float64) core.Hash {

	data := fmt.Sprintf("%s|%s|%d|%d|%d|%.17g",
		survivalFormula, cureFormula, n, seed, nboot, tolerance)
	return core.NewHash([]byte(data))
}

// Validate checks that the manifest is complete.
func (m *Manifest) Validate() error {
	if core.ID(m.FitID).IsEmpty() {
		return core.NewValidationError("manifest", "fit_id cannot be empty")
	}
	if m.SurvivalFormula == "" {
		return core.NewValidationError("manifest", "survival_formula cannot be empty")
	}
	if m.CureFormula == "" {
		return core.NewValidationError("manifest", "cure_formula cannot be empty")
	}
	if m.N <= 0 {
		return core.NewValidationError("manifest", "n must be positive")
	}
	if m.Fingerprint.IsEmpty() {
		return core.NewValidationError("manifest", "fingerprint cannot be empty")
	}
	return nil
}
