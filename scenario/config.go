/*
config.go - Scenario configuration as disjoint mode variants

PURPOSE:
  A scenario runs in exactly one of two modes, and the modes accept
  different options. Historically this was one flat option set policed by
  runtime checks ("total budget excludes flat rate", "recalibration
  requires zero flat rate"); here each mode is its own type implementing
  the sealed Mode interface, so the cross-mode combinations are
  unrepresentable. The constraints that remain WITHIN a mode are still
  enforced as hard preconditions before any computation.

MODES:
  BudgetConstant:
    A per-hectare rate is supplied, derived from a total budget, or
    defaulted from the reference aggregate. Optionally recalibrated so
    the post-degressivity aggregate matches the target budget exactly.

  Flexible:
    A caller-supplied rate used as-is, plus configurable flat top-ups to
    designated subpopulations.

UNDEFINED ELIGIBLE AREA:
  Whether such holdings count as zero-amount participants in downstream
  statistics or are excluded entirely is a configuration flag, not a
  fixed policy.
*/
package scenario

import (
	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/degressivity"
)

// =============================================================================
// UNDEFINED-AREA POLICY
// =============================================================================

type UndefinedAreaPolicy string

const (
	// UndefinedAreaCountsZero keeps undefined-area holdings in the output
	// table as zero-amount participants.
	UndefinedAreaCountsZero UndefinedAreaPolicy = "count_as_zero"

	// UndefinedAreaExcluded drops undefined-area holdings from aggregate
	// statistics entirely.
	UndefinedAreaExcluded UndefinedAreaPolicy = "exclude"
)

// =============================================================================
// MODE VARIANTS
// =============================================================================

// Mode is the sealed scenario-mode union.
type Mode interface {
	Validate() error
	mode()
}

// BudgetConstant derives or calibrates a single per-hectare rate so the
// scenario spends a fixed envelope.
type BudgetConstant struct {
	// Rate, when set, is the per-hectare rate used directly.
	Rate decimal.NullDecimal

	// TotalBudget, when set, derives the rate as TotalBudget / total
	// eligible area and becomes the recalibration target. Mutually
	// exclusive with Rate.
	TotalBudget decimal.NullDecimal

	// Recalibrate solves for the rate at which the aggregate
	// post-degressivity amount equals the target budget exactly.
	// Requires the rate to be derived, not supplied.
	Recalibrate bool
}

func (BudgetConstant) mode() {}

func (m BudgetConstant) Validate() error {
	if m.Rate.Valid && m.TotalBudget.Valid {
		return precondition("rate and total budget are mutually exclusive",
			"supply one of them, or neither to default from the reference aggregate")
	}
	if m.Recalibrate && m.Rate.Valid {
		return precondition("recalibration requires a derived rate",
			"a directly supplied rate contradicts solving for one")
	}
	if m.Rate.Valid && m.Rate.Decimal.Sign() < 0 {
		return precondition("rate must not be negative", m.Rate.Decimal.String())
	}
	if m.TotalBudget.Valid && m.TotalBudget.Decimal.Sign() < 0 {
		return precondition("total budget must not be negative", m.TotalBudget.Decimal.String())
	}
	return nil
}

// Flexible applies a caller-supplied rate as-is, then adds flat top-ups
// to designated subpopulations after the degressivity transform.
type Flexible struct {
	Rate   decimal.Decimal
	TopUps TopUps
}

func (Flexible) mode() {}

func (m Flexible) Validate() error {
	if m.Rate.Sign() < 0 {
		return precondition("rate must not be negative", m.Rate.String())
	}
	if err := m.TopUps.validate(); err != nil {
		return err
	}
	if m.TopUps.any() && m.Rate.Sign() == 0 {
		return precondition("top-ups require a nonzero rate",
			"flat top-ups supplement an area payment, they do not replace it")
	}
	return nil
}

// TopUps configures the flexible-mode flat supplements.
type TopUps struct {
	// PerFemaleOperator is paid once per female operator on the holding.
	PerFemaleOperator decimal.Decimal

	// SmallHolding is paid to holdings with a defined eligible area below
	// SmallHoldingMaxArea hectares.
	SmallHolding        decimal.Decimal
	SmallHoldingMaxArea decimal.Decimal

	// DisadvantagedZone is paid to holdings carrying the zone flag.
	DisadvantagedZone decimal.Decimal

	// PerYoungOperator is paid once per young operator on the holding.
	PerYoungOperator decimal.Decimal

	// TypeClass is paid to holdings whose type-class label is listed in
	// TypeClassLabels.
	TypeClass       decimal.Decimal
	TypeClassLabels []string
}

func (t TopUps) validate() error {
	checks := []struct {
		name string
		v    decimal.Decimal
	}{
		{"per-female-operator top-up", t.PerFemaleOperator},
		{"small-holding top-up", t.SmallHolding},
		{"small-holding area threshold", t.SmallHoldingMaxArea},
		{"disadvantaged-zone top-up", t.DisadvantagedZone},
		{"per-young-operator top-up", t.PerYoungOperator},
		{"type-class top-up", t.TypeClass},
	}
	for _, c := range checks {
		if c.v.Sign() < 0 {
			return precondition(c.name+" must not be negative", c.v.String())
		}
	}
	if t.SmallHolding.Sign() > 0 && t.SmallHoldingMaxArea.Sign() <= 0 {
		return precondition("small-holding top-up requires a positive area threshold", "")
	}
	if t.TypeClass.Sign() > 0 && len(t.TypeClassLabels) == 0 {
		return precondition("type-class top-up requires at least one type-class label", "")
	}
	return nil
}

func (t TopUps) any() bool {
	return t.PerFemaleOperator.Sign() > 0 ||
		t.SmallHolding.Sign() > 0 ||
		t.DisadvantagedZone.Sign() > 0 ||
		t.PerYoungOperator.Sign() > 0 ||
		t.TypeClass.Sign() > 0
}

// =============================================================================
// CONFIG
// =============================================================================

// Config is one scenario run.
type Config struct {
	Mode     Mode
	Schedule degressivity.Schedule

	// ReferenceAggregate is the historical aggregate the scenario
	// reproduces by default (budget-constant mode with neither rate nor
	// budget supplied) and the recalibration target when no total budget
	// is given.
	ReferenceAggregate decimal.Decimal

	UndefinedArea UndefinedAreaPolicy

	// Calibration knobs; zero values use the solver defaults.
	Tolerance     decimal.Decimal
	MaxIterations int
}

func (c Config) Validate() error {
	if c.Mode == nil {
		return precondition("scenario mode is required", "")
	}
	if err := c.Mode.Validate(); err != nil {
		return err
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if c.ReferenceAggregate.Sign() < 0 {
		return precondition("reference aggregate must not be negative",
			c.ReferenceAggregate.String())
	}
	switch c.UndefinedArea {
	case "", UndefinedAreaCountsZero, UndefinedAreaExcluded:
	default:
		return precondition("unknown undefined-area policy", string(c.UndefinedArea))
	}
	return nil
}

// UndefinedAreaOrDefault resolves the policy, defaulting to
// count-as-zero when none is set.
func (c Config) UndefinedAreaOrDefault() UndefinedAreaPolicy {
	if c.UndefinedArea == "" {
		return UndefinedAreaCountsZero
	}
	return c.UndefinedArea
}
