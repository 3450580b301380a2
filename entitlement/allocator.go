/*
allocator.go - Capacity-constrained, priority-ordered allocation

PURPOSE:
  Turns a portfolio of entitlement blocks into a single payment amount
  under the eligible-area ceiling. This is the continuous relaxation of a
  knapsack: blocks are divisible, so the greedy descending-value order is
  value-maximizing.

ALGORITHM:
  1. If the ceiling is undefined: result is undefined ("not applicable").
  2. If total units fit under the ceiling: pay every unit at its own value.
  3. Otherwise consume blocks in descending unit-value order. Full blocks
     that fit are paid whole; the first block that would overflow the
     ceiling is paid for its remaining fraction only; everything after it
     pays zero.

TIE-BREAK:
  Blocks with equal unit values are consumed in stable input order. The
  choice is observable only through WHICH equal-valued block gets
  truncated at the ceiling, never through the payment amount.

EDGE CASES:
  - no blocks        -> 0
  - ceiling == 0     -> 0
  - ceiling undefined-> undefined (callers must not coerce to zero)
*/
package entitlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocate computes the payment amount for a portfolio under its area
// ceiling. The returned value is invalid when the ceiling is undefined.
func Allocate(p Portfolio) decimal.NullDecimal {
	if !p.EligibleArea.Valid {
		return decimal.NullDecimal{}
	}
	ceiling := p.EligibleArea.Decimal
	if ceiling.Sign() <= 0 || len(p.Blocks) == 0 {
		return defined(decimal.Zero)
	}

	// Unconstrained case: every unit is paid at its own value.
	if p.TotalUnits().LessThanOrEqual(ceiling) {
		return defined(p.TotalValue())
	}

	// Working copy sorted by unit value descending, stable on ties.
	blocks := make([]Block, len(p.Blocks))
	copy(blocks, p.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].UnitValue.GreaterThan(blocks[j].UnitValue)
	})

	paid := decimal.Zero
	consumed := decimal.Zero
	for _, b := range blocks {
		count := decimal.NewFromInt(b.Count)
		if consumed.Add(count).LessThanOrEqual(ceiling) {
			paid = paid.Add(b.Value())
			consumed = consumed.Add(count)
			continue
		}
		// Partial block: pay the remaining fraction of the ceiling and stop.
		remainder := ceiling.Sub(consumed)
		if remainder.Sign() > 0 {
			paid = paid.Add(b.UnitValue.Mul(remainder))
		}
		break
	}
	return defined(paid)
}

// AllocateOrZero is Allocate with the undefined case collapsed to zero.
// Only the simulator's baseline stage uses this, where policy defines a
// missing area as "no allocation, zero baseline downstream".
func AllocateOrZero(p Portfolio) decimal.Decimal {
	if v := Allocate(p); v.Valid {
		return v.Decimal
	}
	return decimal.Zero
}

func defined(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
