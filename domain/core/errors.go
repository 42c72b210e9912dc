package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Validation errors
	ErrNotRightCensored = errors.New("outcome is not a right-censored survival specification")
	ErrShapeMismatch    = errors.New("coefficient and name vectors have mismatched lengths")
	ErrColumnNotFound   = errors.New("column not found in dataset")
	ErrEmptyDataset     = errors.New("dataset has no rows")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Fit errors
	ErrNotConverged = errors.New("fit did not converge")
	ErrSingular     = errors.New("singular information matrix")

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewColumnError(name string) error {
	return fmt.Errorf("%w: %s", ErrColumnNotFound, name)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNotRightCensored) ||
		errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrColumnNotFound) ||
		errors.Is(err, ErrEmptyDataset)
}

func IsFitError(err error) bool {
	return errors.Is(err, ErrNotConverged) || errors.Is(err, ErrSingular)
}
