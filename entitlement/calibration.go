/*
calibration.go - Calibration problems over a fixed portfolio set

PURPOSE:
  Two of the engine's three calibrations operate on entitlement
  portfolios and live here; both produce a calibrate.Problem so the one
  solver handles them.

  1. Convergence acceleration: find the coefficient for which the
     aggregate allocator output over converged portfolios equals the
     reference aggregate.
  2. Uniform entitlement value: find the single unit value which, applied
     to every block, reproduces the same reference aggregate.

  (The third, the per-hectare aid rate, needs the degressivity schedule
  and the holdings table, so it lives in the scenario package.)

AGGREGATION RULE:
  Portfolios with an undefined area ceiling contribute nothing to the
  aggregate: "not applicable" is skipped, not zero-coerced, so both
  calibrations see the same population the baseline stage pays.
*/
package entitlement

import (
	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/calibrate"
)

// AggregateAllocation sums weighted allocator output over a portfolio
// set, skipping undefined-area portfolios. Weights line up by index.
func AggregateAllocation(portfolios []Portfolio, weights []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i, p := range portfolios {
		v := Allocate(p)
		if !v.Valid {
			continue
		}
		w := decimal.NewFromInt(1)
		if weights != nil {
			w = weights[i]
		}
		total = total.Add(w.Mul(v.Decimal))
	}
	return total
}

// ConvergenceCoefficientProblem builds the calibration that solves for
// the upward acceleration coefficient reproducing the reference
// aggregate. The bracket [0, 1] spans "no upward convergence" to "full
// jump to target", which covers every admissible coefficient.
func ConvergenceCoefficientProblem(
	portfolios []Portfolio,
	weights []decimal.Decimal,
	params ConvergenceParams,
	reference decimal.Decimal,
) calibrate.Problem {
	return calibrate.Problem{
		Objective: func(a decimal.Decimal) (decimal.Decimal, error) {
			converged := make([]Portfolio, len(portfolios))
			p := params.WithAcceleration(a)
			for i, pf := range portfolios {
				converged[i] = pf.Converged(p)
			}
			return AggregateAllocation(converged, weights), nil
		},
		Target: reference,
		Lo:     decimal.Zero,
		Hi:     decimal.NewFromInt(1),
	}
}

// UniformValueProblem builds the calibration that solves for a single
// unit value replacing every block's value. The upper bracket is the
// reference aggregate itself: one unit worth the whole aggregate always
// overshoots any non-degenerate portfolio set.
func UniformValueProblem(
	portfolios []Portfolio,
	weights []decimal.Decimal,
	reference decimal.Decimal,
) calibrate.Problem {
	return calibrate.Problem{
		Objective: func(v decimal.Decimal) (decimal.Decimal, error) {
			uniform := make([]Portfolio, len(portfolios))
			for i, pf := range portfolios {
				uniform[i] = pf.WithUniformValue(v)
			}
			return AggregateAllocation(uniform, weights), nil
		},
		Target: reference,
		Lo:     decimal.Zero,
		Hi:     reference,
	}
}
