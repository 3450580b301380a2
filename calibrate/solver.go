/*
Package calibrate provides the generic bracketing root-finder used by
every "find the parameter that reproduces a target aggregate" problem.

PURPOSE:
  The engine solves the same shape of problem for the convergence
  acceleration, the uniform entitlement value and the per-hectare aid
  rate, so the mechanism lives here once and the objectives are injected.

METHOD:
  Interval bisection on objective(p) − target over a caller-supplied
  bracket [lo, hi] known to contain a sign change. Bisection was chosen
  over faster bracketing variants because every objective here is a
  monotone aggregate: robustness matters, iteration count does not.

FAILURE MODES (never silently defaulted):
  - ErrNoSignChange:  objective − target has the same sign at both ends
  - ErrMaxIterations: the iteration bound was exhausted before the
    tolerance was met

USAGE:
  rate, err := calibrate.Solve(calibrate.Problem{
      Objective: func(r decimal.Decimal) (decimal.Decimal, error) { ... },
      Target:    budget,
      Lo:        decimal.Zero,
      Hi:        decimal.NewFromInt(10000),
  })
*/
package calibrate

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoSignChange is returned when the supplied interval does not
	// bracket a root of objective − target.
	ErrNoSignChange = errors.New("no sign change across calibration interval")

	// ErrMaxIterations is returned when the solver exhausts its iteration
	// bound before converging.
	ErrMaxIterations = errors.New("calibration did not converge within iteration bound")
)

// NoRootError carries the interval endpoints that failed to bracket.
type NoRootError struct {
	Lo, Hi decimal.Decimal
	FLo    decimal.Decimal
	FHi    decimal.Decimal
}

func (e *NoRootError) Error() string {
	return fmt.Sprintf("objective minus target has the same sign at %s (%s) and %s (%s)",
		e.Lo, e.FLo, e.Hi, e.FHi)
}

func (e *NoRootError) Unwrap() error { return ErrNoSignChange }

// ConvergenceError carries the state of a solve that ran out of iterations.
type ConvergenceError struct {
	Iterations int
	Lo, Hi     decimal.Decimal
	Residual   decimal.Decimal
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("no convergence after %d iterations: interval [%s, %s], residual %s",
		e.Iterations, e.Lo, e.Hi, e.Residual)
}

func (e *ConvergenceError) Unwrap() error { return ErrMaxIterations }

// =============================================================================
// PROBLEM
// =============================================================================

const (
	// DefaultMaxIterations bounds the bisection loop. 200 halvings shrink
	// any practical bracket far below any practical tolerance.
	DefaultMaxIterations = 200
)

// DefaultTolerance accepts a solution when |objective − target| falls
// under one millionth of a currency unit.
var DefaultTolerance = decimal.New(1, -6)

// Problem is one calibration: find p in [Lo, Hi] with objective(p) equal
// to Target within Tolerance. The objective must be monotone across the
// bracket in the expected operating region; each Problem is solved
// independently and shares no state with any other.
type Problem struct {
	Objective func(decimal.Decimal) (decimal.Decimal, error)
	Target    decimal.Decimal
	Lo, Hi    decimal.Decimal

	// Tolerance on |objective(p) − Target|. Zero means DefaultTolerance.
	Tolerance decimal.Decimal

	// MaxIterations bounds the loop. Zero means DefaultMaxIterations.
	MaxIterations int
}

// Solve runs the bisection. Errors from the objective propagate unchanged.
func Solve(p Problem) (decimal.Decimal, error) {
	tol := p.Tolerance
	if tol.Sign() <= 0 {
		tol = DefaultTolerance
	}
	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	residual := func(x decimal.Decimal) (decimal.Decimal, error) {
		v, err := p.Objective(x)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return v.Sub(p.Target), nil
	}

	lo, hi := p.Lo, p.Hi
	fLo, err := residual(lo)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if fLo.Abs().LessThanOrEqual(tol) {
		return lo, nil
	}
	fHi, err := residual(hi)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if fHi.Abs().LessThanOrEqual(tol) {
		return hi, nil
	}
	if fLo.Sign() == fHi.Sign() {
		return decimal.Decimal{}, &NoRootError{Lo: lo, Hi: hi, FLo: fLo, FHi: fHi}
	}

	var fMid decimal.Decimal
	for i := 0; i < maxIter; i++ {
		mid := lo.Add(hi).Div(two)
		fMid, err = residual(mid)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if fMid.Abs().LessThanOrEqual(tol) {
			return mid, nil
		}
		if fMid.Sign() == fLo.Sign() {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return decimal.Decimal{}, &ConvergenceError{
		Iterations: maxIter,
		Lo:         lo,
		Hi:         hi,
		Residual:   fMid,
	}
}

var two = decimal.NewFromInt(2)
