package formula

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gocure/domain/core"
	"gocure/domain/dataset"
)

func TestParse_SurvivalSide(t *testing.T) {
	spec, err := Parse("Surv(time, status) ~ age + group")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !spec.HasOutcome() {
		t.Fatal("expected an outcome")
	}
	if spec.Outcome.Time != "time" || spec.Outcome.Status != "status" {
		t.Errorf("outcome = %+v", spec.Outcome)
	}
	if len(spec.Covariates) != 2 || spec.Covariates[0] != "age" || spec.Covariates[1] != "group" {
		t.Errorf("covariates = %v", spec.Covariates)
	}
}

func TestParse_CureSide(t *testing.T) {
	spec, err := Parse("~ age + group")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.HasOutcome() {
		t.Error("cure-side formula should carry no outcome")
	}
	if len(spec.Covariates) != 2 {
		t.Errorf("covariates = %v", spec.Covariates)
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		formula string
		substr  string
	}{
		{"missing tilde", "Surv(time, status)", "missing '~'"},
		{"three surv fields", "Surv(start, stop, status) ~ age", "right-censored"},
		{"one surv field", "Surv(time) ~ age", "right-censored"},
		{"not surv", "status ~ age", "Surv(time, status)"},
		{"duplicate term", "~ age + age", "duplicate term"},
		{"empty term", "~ age + ", "empty term"},
		{"no covariates", "~ 1", "at least one covariate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.formula)
			if err == nil {
				t.Fatalf("expected error for %q", tc.formula)
			}
			if !strings.Contains(err.Error(), tc.substr) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.substr)
			}
		})
	}
}

func TestParse_InterceptTermSkipped(t *testing.T) {
	spec, err := Parse("~ 1 + age")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spec.Covariates) != 1 || spec.Covariates[0] != "age" {
		t.Errorf("covariates = %v", spec.Covariates)
	}
}

func TestValidateSurvivalOutcome(t *testing.T) {
	ds := dataset.MustNew(
		dataset.NumericColumn("time", []float64{1, 2, 3}),
		dataset.NumericColumn("status", []float64{0, 1, 1}),
		dataset.NumericColumn("age", []float64{50, 60, 70}),
	)

	t.Run("valid", func(t *testing.T) {
		if err := MustParse("Surv(time, status) ~ age").ValidateSurvivalOutcome(ds); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("no outcome", func(t *testing.T) {
		err := MustParse("~ age").ValidateSurvivalOutcome(ds)
		if !errors.Is(err, core.ErrNotRightCensored) {
			t.Errorf("expected ErrNotRightCensored, got %v", err)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		err := MustParse("Surv(followup, status) ~ age").ValidateSurvivalOutcome(ds)
		if !errors.Is(err, core.ErrColumnNotFound) {
			t.Errorf("expected ErrColumnNotFound, got %v", err)
		}
	})

	t.Run("negative time", func(t *testing.T) {
		bad := dataset.MustNew(
			dataset.NumericColumn("time", []float64{1, -2}),
			dataset.NumericColumn("status", []float64{0, 1}),
		)
		err := MustParse("Surv(time, status) ~ time").ValidateSurvivalOutcome(bad)
		if !errors.Is(err, core.ErrNotRightCensored) {
			t.Errorf("expected ErrNotRightCensored, got %v", err)
		}
	})

	t.Run("status outside 0 1", func(t *testing.T) {
		bad := dataset.MustNew(
			dataset.NumericColumn("time", []float64{1, 2}),
			dataset.NumericColumn("status", []float64{0, 2}),
		)
		err := MustParse("Surv(time, status) ~ time").ValidateSurvivalOutcome(bad)
		if !errors.Is(err, core.ErrNotRightCensored) {
			t.Errorf("expected ErrNotRightCensored, got %v", err)
		}
	})

	t.Run("missing status rows tolerated", func(t *testing.T) {
		withNA := dataset.MustNew(
			dataset.NumericColumn("time", []float64{1, 2}),
			dataset.NumericColumn("status", []float64{math.NaN(), 1}),
		)
		if err := MustParse("Surv(time, status) ~ time").ValidateSurvivalOutcome(withNA); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("categorical status", func(t *testing.T) {
		cat := dataset.MustNew(
			dataset.NumericColumn("time", []float64{1, 2}),
			dataset.FactorColumn("outcome", []string{"alive", "dead"}, []string{"alive", "dead"}),
		)
		if err := MustParse("Surv(time, outcome) ~ time").ValidateSurvivalOutcome(cat); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("single-level categorical status", func(t *testing.T) {
		cat := dataset.MustNew(
			dataset.NumericColumn("time", []float64{1, 2}),
			dataset.CategoricalColumn("outcome", []string{"alive", "alive"}),
		)
		err := MustParse("Surv(time, outcome) ~ time").ValidateSurvivalOutcome(cat)
		if !errors.Is(err, core.ErrNotRightCensored) {
			t.Errorf("expected ErrNotRightCensored, got %v", err)
		}
	})
}
