package design

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gocure/domain/core"
	"gocure/domain/dataset"
	"gocure/domain/formula"
)

func TestCanonicalName(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{"Age"}, "age"},
		{[]string{"tumor size"}, "tumor_size"},
		{[]string{"group", "Stage II"}, "group_stage_ii"},
		{[]string{"  x..y  "}, "x_y"},
		{[]string{"a--b__c"}, "a_b_c"},
	}
	for _, tc := range cases {
		if got := CanonicalName(tc.in...); got != tc.want {
			t.Errorf("CanonicalName(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func builderData() *dataset.Dataset {
	return dataset.MustNew(
		dataset.NumericColumn("time", []float64{5, 3, 8, 1}),
		dataset.NumericColumn("status", []float64{1, 0, 1, 1}),
		dataset.NumericColumn("age", []float64{50, 60, math.NaN(), 80}),
		dataset.FactorColumn("stage", []string{"I", "II", "III", "I"},
			[]string{"I", "II", "III"}),
		dataset.OrdinalColumn("grade", []float64{1, 2, 2, 3}, []string{"low", "mid", "high"}),
	)
}

func TestPredictors_Expansion(t *testing.T) {
	ds := builderData()
	m, err := Predictors(formula.MustParse("~ age + stage + grade"), ds)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"age", "stage_ii", "stage_iii", "grade"}
	if !reflect.DeepEqual(m.Names, want) {
		t.Fatalf("Names = %v, want %v", m.Names, want)
	}

	// First level "I" is the reference: row 0 and 3 carry no indicator.
	if got := m.Column("stage_ii"); !reflect.DeepEqual(got, []float64{0, 1, 0, 0}) {
		t.Errorf("stage_ii = %v", got)
	}
	if got := m.Column("stage_iii"); !reflect.DeepEqual(got, []float64{0, 0, 1, 0}) {
		t.Errorf("stage_iii = %v", got)
	}
	// Ordinal codes pass through unchanged.
	if got := m.Column("grade"); !reflect.DeepEqual(got, []float64{1, 2, 2, 3}) {
		t.Errorf("grade = %v", got)
	}
	// A missing numeric value stays NaN.
	if !math.IsNaN(m.Column("age")[2]) {
		t.Error("missing age should propagate as NaN")
	}
}

func TestPredictors_MissingCategoryPropagates(t *testing.T) {
	ds := dataset.MustNew(
		dataset.CategoricalColumn("group", []string{"a", "", "b"}),
	)
	m, err := Predictors(formula.MustParse("~ group"), ds)
	if err != nil {
		t.Fatal(err)
	}
	col := m.Column("group_b")
	if col == nil {
		t.Fatalf("Names = %v", m.Names)
	}
	if !math.IsNaN(col[1]) {
		t.Error("missing label should yield NaN in every indicator")
	}
}

func TestPredictors_Errors(t *testing.T) {
	ds := builderData()

	t.Run("unknown column", func(t *testing.T) {
		_, err := Predictors(formula.MustParse("~ weight"), ds)
		if !errors.Is(err, core.ErrColumnNotFound) {
			t.Errorf("expected ErrColumnNotFound, got %v", err)
		}
	})

	t.Run("single-level categorical", func(t *testing.T) {
		one := dataset.MustNew(dataset.CategoricalColumn("g", []string{"x", "x"}))
		if _, err := Predictors(formula.MustParse("~ g"), one); err == nil {
			t.Error("expected error for a single-level categorical covariate")
		}
	})
}

func TestPredictors_Deterministic(t *testing.T) {
	ds := builderData()
	spec := formula.MustParse("~ age + stage + grade")
	a, err := Predictors(spec, ds)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Predictors(spec, ds)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Names, b.Names) {
		t.Error("column set and order must be deterministic")
	}
	for i := range a.Cols {
		if !dataset.ColumnsEqual(a.Cols[i], b.Cols[i]) {
			t.Errorf("column %q differs between runs", a.Names[i])
		}
	}
}

func TestOutcome(t *testing.T) {
	ds := builderData()

	t.Run("numeric status", func(t *testing.T) {
		m, err := Outcome(formula.MustParse("Surv(time, status) ~ age"), ds)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(m.Names, []string{"time", "status"}) {
			t.Fatalf("Names = %v", m.Names)
		}
		if got := m.Column("status"); !reflect.DeepEqual(got, []float64{1, 0, 1, 1}) {
			t.Errorf("status = %v", got)
		}
	})

	t.Run("categorical status coded by level index", func(t *testing.T) {
		cat := dataset.MustNew(
			dataset.NumericColumn("t", []float64{1, 2, 3}),
			dataset.FactorColumn("vital", []string{"dead", "alive", "dead"},
				[]string{"alive", "dead"}),
		)
		m, err := Outcome(formula.MustParse("Surv(t, vital) ~ t"), cat)
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Column("status"); !reflect.DeepEqual(got, []float64{1, 0, 1}) {
			t.Errorf("status = %v", got)
		}
	})

	t.Run("cure-side formula has no outcome", func(t *testing.T) {
		_, err := Outcome(formula.MustParse("~ age"), ds)
		if !errors.Is(err, core.ErrNotRightCensored) {
			t.Errorf("expected ErrNotRightCensored, got %v", err)
		}
	})
}
