/*
Package holding provides the core tabular model for the payment engine.

PURPOSE:
  This package contains the record types shared by every computation stage.
  A Holding is one agricultural holding: its sampling weight, eligible area,
  category attributes, and the two amount columns the pipeline fills in
  (baseline and simulated payment).

KEY CONCEPTS IN THIS FILE (types.go):
  - Holding: one row of the holdings table
  - HoldingID: type-safe identifier
  - NullDecimal fields: "not applicable" is a first-class value, never a
    zero-coercion (a holding with an unknown eligible area is NOT a holding
    with zero hectares)

DESIGN PRINCIPLES:
  1. Immutability across stages: each stage copies the table and fills its
     own column; it never mutates the table handed to it
  2. Precision: decimal.Decimal for all monetary and area quantities
  3. Type safety: category labels carry a typed sort ordinal, decoupling
     display text from ordering

USAGE:
  h := holding.Holding{
      ID:           "farm-001",
      Weight:       decimal.NewFromInt(12),
      EligibleArea: holding.Area(48.5),
      Region:       holding.NewCategory("2_Highlands"),
  }

SEE ALSO:
  - category.go: Category construction and ordering
  - ../entitlement: fills BaselineAmount
  - ../scenario: fills SimulatedAmount
*/
package holding

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type HoldingID string

// =============================================================================
// HOLDING - One row of the holdings table
// =============================================================================

// Holding is one agricultural holding. Weight is the sampling/expansion
// coefficient applied to every aggregate the holding contributes to.
//
// EligibleArea may be undefined (Valid == false): the holding is then
// excluded from allocation and its treatment in aggregate statistics is
// governed by the caller's undefined-area policy, not guessed here.
type Holding struct {
	ID     HoldingID
	Weight decimal.Decimal

	// Allocation ceiling in hectares. Undefined means "no payment", which
	// is distinct from a defined zero area (which pays zero by arithmetic).
	EligibleArea decimal.NullDecimal

	// Amount columns. BaselineAmount is set by the allocation stage,
	// SimulatedAmount by the scenario simulator. Each is immutable once
	// its stage completes.
	BaselineAmount  decimal.Decimal
	SimulatedAmount decimal.Decimal

	// Category attributes used as grouping dimensions.
	Region    Category
	SizeClass Category
	TypeClass Category
	AreaBand  Category

	// Subpopulation attributes consumed by flexible-mode top-ups.
	FemaleOperators   int64
	YoungOperators    int64
	DisadvantagedZone bool
}

// Area builds a defined eligible-area value.
func Area(hectares float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(hectares), Valid: true}
}

// NoArea is the undefined eligible area.
func NoArea() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

// WeightedArea returns Weight × EligibleArea, or zero when the area is
// undefined. Aggregate area totals treat undefined as contributing nothing.
func (h Holding) WeightedArea() decimal.Decimal {
	if !h.EligibleArea.Valid {
		return decimal.Zero
	}
	return h.Weight.Mul(h.EligibleArea.Decimal)
}

// Diff returns the per-holding payment difference (simulated − baseline).
func (h Holding) Diff() decimal.Decimal {
	return h.SimulatedAmount.Sub(h.BaselineAmount)
}

// CloneTable returns a value copy of a holdings table. Stages use this to
// honor the "append columns, never mutate upstream" ownership rule.
func CloneTable(hs []Holding) []Holding {
	out := make([]Holding, len(hs))
	copy(out, hs)
	return out
}
