/*
convergence.go - National convergence of entitlement unit values

PURPOSE:
  Maps a holding's historical unit value to its year-N value under the
  national convergence rule. High values converge down toward the target,
  low values converge up from a floor. One parameter, the upward
  acceleration coefficient, is left free and solved by calibration so
  that the aggregate allocator output reproduces a reference aggregate.

THE RULE:
  v    = min(original, ValueCeiling)          (ceiling before convergence)
  down (v >= target):
      reduced = v − DownwardRate × (v − target)
      result  = max(reduced, v × (1 − MaxDownwardFraction))
  up (v < target):
      floor   = max(FloorCoefficient × target, v)
      result  = floor + Acceleration × (target − floor)

CONTINUITY:
  At v == target both branches yield the target (the up-branch floor is
  max(coef×target, target) = target when coef <= 1), which keeps the
  aggregate a monotone function of Acceleration, which the solver needs.
*/
package entitlement

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// ConvergenceParams parameterizes the convergence rule. Acceleration is
// the single free parameter the calibration solves for; the rest are
// policy constants.
type ConvergenceParams struct {
	// ValueCeiling caps the original unit value before convergence.
	ValueCeiling decimal.Decimal

	// TargetValue selects the branch and anchors both formulas.
	TargetValue decimal.Decimal

	// FloorCoefficient: the upward branch starts from
	// max(FloorCoefficient × TargetValue, original value).
	FloorCoefficient decimal.Decimal

	// DownwardRate is the fraction of the excess over the target removed
	// from high values.
	DownwardRate decimal.Decimal

	// MaxDownwardFraction bounds the total reduction: a value never loses
	// more than this fraction of itself.
	MaxDownwardFraction decimal.Decimal

	// Acceleration is the fraction of the remaining gap to the target
	// granted to low values. Solved by calibration.
	Acceleration decimal.Decimal
}

// Converge applies the convergence rule to one unit value.
func (p ConvergenceParams) Converge(original decimal.Decimal) decimal.Decimal {
	v := decimal.Min(original, p.ValueCeiling)

	if v.GreaterThanOrEqual(p.TargetValue) {
		reduced := v.Sub(p.DownwardRate.Mul(v.Sub(p.TargetValue)))
		floor := v.Mul(one.Sub(p.MaxDownwardFraction))
		return decimal.Max(reduced, floor)
	}

	floor := decimal.Max(p.FloorCoefficient.Mul(p.TargetValue), v)
	return floor.Add(p.Acceleration.Mul(p.TargetValue.Sub(floor)))
}

// WithAcceleration returns a copy of the params with the free parameter
// replaced. Used by the calibration objective.
func (p ConvergenceParams) WithAcceleration(a decimal.Decimal) ConvergenceParams {
	p.Acceleration = a
	return p
}

// Converged returns a copy of the portfolio with every block value passed
// through the convergence rule.
func (p Portfolio) Converged(params ConvergenceParams) Portfolio {
	return p.WithValues(params.Converge)
}
