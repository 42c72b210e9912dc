// Package formula defines the explicit formula specification consumed by the
// design-matrix builder: an optional survival outcome reference plus an
// ordered covariate list, parsed from a small fixed grammar.
package formula

import (
	"fmt"
	"strings"

	"gocure/domain/core"
	"gocure/domain/dataset"
)

// Outcome references the time and event-indicator fields of a right-censored
// survival outcome. The first level of the status field encodes censoring;
// later levels encode events.
type Outcome struct {
	Time   string
	Status string
}

// Spec is an explicit formula value: an optional outcome (survival side only)
// and an ordered set of covariate names. Raw preserves the text exactly as
// supplied by the caller.
type Spec struct {
	Raw        string
	Outcome    *Outcome
	Covariates []string
}

// HasOutcome reports whether the spec carries a survival outcome.
func (s *Spec) HasOutcome() bool { return s.Outcome != nil }

// Parse parses a formula string. Two shapes are accepted:
//
//	Surv(time, status) ~ a + b    survival side
//	~ a + b                       cure side
//
// Duplicate covariates and interval/counting-process outcomes (a third Surv
// argument) are rejected.
func Parse(raw string) (*Spec, error) {
	lhs, rhs, found := strings.Cut(raw, "~")
	if !found {
		return nil, core.NewValidationError("formula", fmt.Sprintf("missing '~' in %q", raw))
	}

	spec := &Spec{Raw: raw}

	lhs = strings.TrimSpace(lhs)
	if lhs != "" {
		outcome, err := parseSurv(lhs)
		if err != nil {
			return nil, err
		}
		spec.Outcome = outcome
	}

	covariates, err := parseTerms(rhs)
	if err != nil {
		return nil, err
	}
	spec.Covariates = covariates
	return spec, nil
}

// MustParse parses a formula and panics on error. Use only in tests.
func MustParse(raw string) *Spec {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func parseSurv(lhs string) (*Outcome, error) {
	if !strings.HasPrefix(lhs, "Surv(") || !strings.HasSuffix(lhs, ")") {
		return nil, fmt.Errorf("%w: left-hand side %q must be Surv(time, status)",
			core.ErrNotRightCensored, lhs)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(lhs, "Surv("), ")")
	fields := strings.Split(inner, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return nil, fmt.Errorf("%w: Surv must name exactly a time field and an event "+
			"indicator (got %d fields); interval and counting-process outcomes are not supported",
			core.ErrNotRightCensored, len(fields))
	}
	return &Outcome{Time: fields[0], Status: fields[1]}, nil
}

func parseTerms(rhs string) ([]string, error) {
	var terms []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(rhs, "+") {
		term := strings.TrimSpace(part)
		if term == "" {
			return nil, core.NewValidationError("formula", "empty term on right-hand side")
		}
		if term == "1" {
			// Explicit intercept term; the design matrix never carries one.
			continue
		}
		if seen[term] {
			return nil, core.NewValidationError("formula", fmt.Sprintf("duplicate term %q", term))
		}
		seen[term] = true
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, core.NewValidationError("formula", "at least one covariate is required")
	}
	return terms, nil
}

// ValidateSurvivalOutcome checks that the spec's outcome evaluates to a
// two-field right-censored specification against the dataset: the time field
// must be numeric and non-negative where observed, and the status field must
// encode censoring as its first level (numeric 0 = censored, or the first
// declared factor level). It is a pure precondition check with no side
// effects, run before any matrix construction.
func (s *Spec) ValidateSurvivalOutcome(ds *dataset.Dataset) error {
	if s.Outcome == nil {
		return fmt.Errorf("%w: formula %q has no outcome; the left-hand side must be a "+
			"two-field right-censored specification Surv(time, status) with the first "+
			"status level encoding censoring", core.ErrNotRightCensored, s.Raw)
	}

	timeCol, ok := ds.Column(s.Outcome.Time)
	if !ok {
		return core.NewColumnError(s.Outcome.Time)
	}
	if timeCol.Type != dataset.TypeNumeric {
		return fmt.Errorf("%w: time field %q must be numeric", core.ErrNotRightCensored, s.Outcome.Time)
	}
	for i, v := range timeCol.Values {
		if !timeCol.IsMissing(i) && v < 0 {
			return fmt.Errorf("%w: time field %q has negative value at row %d",
				core.ErrNotRightCensored, s.Outcome.Time, i)
		}
	}

	statusCol, ok := ds.Column(s.Outcome.Status)
	if !ok {
		return core.NewColumnError(s.Outcome.Status)
	}
	switch statusCol.Type {
	case dataset.TypeNumeric, dataset.TypeOrdinal:
		for i, v := range statusCol.Values {
			if statusCol.IsMissing(i) {
				continue
			}
			if v != 0 && v != 1 {
				return fmt.Errorf("%w: status field %q must be coded 0 (censored) or 1 "+
					"(event), found %g at row %d", core.ErrNotRightCensored, s.Outcome.Status, v, i)
			}
		}
	case dataset.TypeCategorical:
		levels := statusCol.LevelSet()
		if len(levels) < 2 {
			return fmt.Errorf("%w: status field %q needs at least two levels (first = censored)",
				core.ErrNotRightCensored, s.Outcome.Status)
		}
	}
	return nil
}
