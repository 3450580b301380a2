/*
Package entitlement models payment-entitlement portfolios and the
allocation rule that turns them into money.

PURPOSE:
  A holding owns a set of entitlement blocks, each a quantity of payment
  units sharing one unit value. Payment is the value of the portfolio up
  to an area ceiling: units beyond the ceiling are worthless, so the
  allocator spends the ceiling on the most valuable units first.

KEY CONCEPTS IN THIS FILE (types.go):
  - Block: {count, unit value}: count units all worth the same per unit
  - Portfolio: a holding's blocks plus its eligible-area ceiling

INVARIANTS:
  - Block.Count >= 0 (a zero-count block is legal and pays nothing)
  - Block order in a Portfolio is storage order; the allocator sorts its
    own working copy and never reorders the stored blocks

SEE ALSO:
  - allocator.go: the capacity-constrained allocation rule
  - convergence.go: national convergence of unit values
*/
package entitlement

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTITLEMENT BLOCK
// =============================================================================

// Block is a quantity of payment units sharing one unit value.
type Block struct {
	Count     int64
	UnitValue decimal.Decimal
}

// Value returns Count × UnitValue.
func (b Block) Value() decimal.Decimal {
	return b.UnitValue.Mul(decimal.NewFromInt(b.Count))
}

// =============================================================================
// PORTFOLIO
// =============================================================================

// Portfolio is the set of entitlement blocks owned by one holding, plus
// the eligible area that ceilings their activation. The area may be
// undefined, which means "no payment" rather than "zero hectares".
type Portfolio struct {
	Blocks       []Block
	EligibleArea decimal.NullDecimal
}

// TotalUnits returns the unit count summed over all blocks.
func (p Portfolio) TotalUnits() decimal.Decimal {
	total := int64(0)
	for _, b := range p.Blocks {
		total += b.Count
	}
	return decimal.NewFromInt(total)
}

// TotalValue returns the unconstrained portfolio value Σ count × unit value.
func (p Portfolio) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, b := range p.Blocks {
		total = total.Add(b.Value())
	}
	return total
}

// WithValues returns a copy of the portfolio whose block values have been
// replaced element-wise by applying fn to each original unit value. Block
// counts, order, and the area ceiling are preserved.
func (p Portfolio) WithValues(fn func(decimal.Decimal) decimal.Decimal) Portfolio {
	blocks := make([]Block, len(p.Blocks))
	for i, b := range p.Blocks {
		blocks[i] = Block{Count: b.Count, UnitValue: fn(b.UnitValue)}
	}
	return Portfolio{Blocks: blocks, EligibleArea: p.EligibleArea}
}

// WithUniformValue returns a copy of the portfolio with every block's unit
// value replaced by v. Used by the uniform-value calibration.
func (p Portfolio) WithUniformValue(v decimal.Decimal) Portfolio {
	return p.WithValues(func(decimal.Decimal) decimal.Decimal { return v })
}
