/*
errors.go - Centralized error types for the scenario simulator

PURPOSE:
  All simulator error types in one place. Precondition violations fail
  synchronously BEFORE any computation, with a message naming the
  violated constraint; nothing is ever silently coerced.

ERROR CATEGORIES:
  1. Precondition violations - illegal option combinations, negative
     numeric configuration
  2. Degenerate populations - no holding carries a usable eligible area
  3. Calibration failures - propagated from the calibrate package,
     never replaced by an uncalibrated rate

USAGE:
  if errors.Is(err, scenario.ErrPrecondition) { ... }
  if errors.Is(err, calibrate.ErrNoSignChange) { ... }
*/
package scenario

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is returned when a scenario configuration violates
	// one of the documented option constraints.
	ErrPrecondition = errors.New("scenario precondition violated")

	// ErrNoEligibleArea is returned when the holdings table carries no
	// positive eligible area, making every per-hectare rate undefined.
	ErrNoEligibleArea = errors.New("holdings table has no eligible area")
)

// PreconditionError names the violated constraint.
type PreconditionError struct {
	Constraint string
	Detail     string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("precondition violated: %s", e.Constraint)
	}
	return fmt.Sprintf("precondition violated: %s (%s)", e.Constraint, e.Detail)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

func precondition(constraint, detail string) error {
	return &PreconditionError{Constraint: constraint, Detail: detail}
}
