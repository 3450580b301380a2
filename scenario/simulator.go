/*
simulator.go - Scenario orchestration

PURPOSE:
  Runs one what-if scenario over a holdings table: the baseline stage
  prices each holding's entitlement portfolio through the allocator, the
  simulation stage replaces that portfolio logic with a flat per-hectare
  payment pushed through the degressivity schedule, optionally
  recalibrated so the aggregate hits a target budget to the cent.

STAGES:
  ComputeBaseline:  portfolios -> baseline amount column
  Simulate:         baseline table + config -> simulated amount column

OWNERSHIP:
  Each stage clones the table it receives and fills only its own column.
  Amounts are immutable once their stage completes.

CALIBRATION:
  Recalibration delegates to the calibrate package (AreaRateProblem).
  A failed calibration is a failed scenario; the simulator never falls
  back to the uncalibrated rate.

SEE ALSO:
  - config.go: mode variants and preconditions
  - ../entitlement: allocator and portfolio types
  - ../stats: consumes Result.Holdings
*/
package scenario

import (
	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/calibrate"
	"github.com/warp/subsidy-engine/degressivity"
	"github.com/warp/subsidy-engine/entitlement"
	"github.com/warp/subsidy-engine/holding"
)

// =============================================================================
// BASELINE STAGE
// =============================================================================

// BaselineInput pairs a holding with its entitlement portfolio and any
// coupled add-on components that belong in the baseline amount.
type BaselineInput struct {
	Holding   holding.Holding
	Portfolio entitlement.Portfolio
	AddOn     decimal.Decimal
}

// ComputeBaseline prices each portfolio through the allocator and
// returns a fresh table with the baseline column filled. The holding's
// eligible area is authoritative: it overrides whatever ceiling the
// portfolio arrived with. A holding with an undefined area gets a zero
// baseline (policy: no allocation, not an error).
func ComputeBaseline(inputs []BaselineInput) []holding.Holding {
	out := make([]holding.Holding, len(inputs))
	for i, in := range inputs {
		h := in.Holding
		pf := in.Portfolio
		pf.EligibleArea = h.EligibleArea
		h.BaselineAmount = entitlement.AllocateOrZero(pf).Add(in.AddOn)
		out[i] = h
	}
	return out
}

// WeightedBaselineTotal sums weight × baseline over a table. This is the
// usual reference aggregate for a scenario.
func WeightedBaselineTotal(hs []holding.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range hs {
		total = total.Add(h.Weight.Mul(h.BaselineAmount))
	}
	return total
}

// =============================================================================
// SIMULATION STAGE
// =============================================================================

// Result is one simulated scenario.
type Result struct {
	// Holdings is the input table with the simulated column filled.
	Holdings []holding.Holding

	// Rate is the per-hectare rate actually applied (calibrated when
	// Calibrated is true).
	Rate       decimal.Decimal
	Calibrated bool

	TotalBaseline  decimal.Decimal
	TotalSimulated decimal.Decimal
	TotalArea      decimal.Decimal
}

// Simulate runs the configured scenario over a baseline table. All
// preconditions are checked before any computation; calibration
// failures propagate unchanged.
func Simulate(cfg Config, hs []holding.Holding) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	totalArea := decimal.Zero
	for _, h := range hs {
		totalArea = totalArea.Add(h.WeightedArea())
	}

	switch m := cfg.Mode.(type) {
	case BudgetConstant:
		return simulateBudgetConstant(cfg, m, hs, totalArea)
	case Flexible:
		return simulateFlexible(cfg, m, hs, totalArea)
	default:
		return nil, precondition("unknown scenario mode", "")
	}
}

func simulateBudgetConstant(cfg Config, m BudgetConstant, hs []holding.Holding, totalArea decimal.Decimal) (*Result, error) {
	target := cfg.ReferenceAggregate
	if m.TotalBudget.Valid {
		target = m.TotalBudget.Decimal
	}

	var rate decimal.Decimal
	switch {
	case m.Rate.Valid:
		rate = m.Rate.Decimal
	default:
		if totalArea.Sign() <= 0 {
			return nil, ErrNoEligibleArea
		}
		rate = target.Div(totalArea)
	}

	calibrated := false
	if m.Recalibrate {
		solved, err := calibrate.Solve(AreaRateProblem(hs, cfg.Schedule, target, rate, cfg.Tolerance, cfg.MaxIterations))
		if err != nil {
			return nil, err
		}
		rate = solved
		calibrated = true
	}

	out := holding.CloneTable(hs)
	for i := range out {
		out[i].SimulatedAmount = transformedAmount(out[i], rate, cfg.Schedule)
	}
	return newResult(out, rate, calibrated, totalArea), nil
}

func simulateFlexible(cfg Config, m Flexible, hs []holding.Holding, totalArea decimal.Decimal) (*Result, error) {
	typeClasses := make(map[string]bool, len(m.TopUps.TypeClassLabels))
	for _, label := range m.TopUps.TypeClassLabels {
		typeClasses[label] = true
	}

	out := holding.CloneTable(hs)
	for i := range out {
		amount := transformedAmount(out[i], m.Rate, cfg.Schedule)
		amount = amount.Add(topUpAmount(out[i], m.TopUps, typeClasses))
		out[i].SimulatedAmount = amount
	}
	return newResult(out, m.Rate, false, totalArea), nil
}

// transformedAmount is rate × area pushed through the schedule; an
// undefined area pays zero by construction of the allocation policy.
func transformedAmount(h holding.Holding, rate decimal.Decimal, s degressivity.Schedule) decimal.Decimal {
	if !h.EligibleArea.Valid {
		return decimal.Zero
	}
	return s.Transform(rate.Mul(h.EligibleArea.Decimal))
}

func topUpAmount(h holding.Holding, t TopUps, typeClasses map[string]bool) decimal.Decimal {
	total := decimal.Zero
	if t.PerFemaleOperator.Sign() > 0 && h.FemaleOperators > 0 {
		total = total.Add(t.PerFemaleOperator.Mul(decimal.NewFromInt(h.FemaleOperators)))
	}
	if t.SmallHolding.Sign() > 0 && h.EligibleArea.Valid &&
		h.EligibleArea.Decimal.LessThan(t.SmallHoldingMaxArea) {
		total = total.Add(t.SmallHolding)
	}
	if t.DisadvantagedZone.Sign() > 0 && h.DisadvantagedZone {
		total = total.Add(t.DisadvantagedZone)
	}
	if t.PerYoungOperator.Sign() > 0 && h.YoungOperators > 0 {
		total = total.Add(t.PerYoungOperator.Mul(decimal.NewFromInt(h.YoungOperators)))
	}
	if t.TypeClass.Sign() > 0 && typeClasses[h.TypeClass.Label] {
		total = total.Add(t.TypeClass)
	}
	return total
}

func newResult(out []holding.Holding, rate decimal.Decimal, calibrated bool, totalArea decimal.Decimal) *Result {
	totalBaseline := decimal.Zero
	totalSimulated := decimal.Zero
	for _, h := range out {
		totalBaseline = totalBaseline.Add(h.Weight.Mul(h.BaselineAmount))
		totalSimulated = totalSimulated.Add(h.Weight.Mul(h.SimulatedAmount))
	}
	return &Result{
		Holdings:       out,
		Rate:           rate,
		Calibrated:     calibrated,
		TotalBaseline:  totalBaseline,
		TotalSimulated: totalSimulated,
		TotalArea:      totalArea,
	}
}

// =============================================================================
// AREA-RATE CALIBRATION
// =============================================================================

// AreaRateProblem builds the calibration that solves for the uniform
// per-hectare rate at which the weighted post-degressivity aggregate
// equals the target budget. The bracket starts at zero (aggregate zero)
// and stretches to eight times the naive rate: the schedule retains at
// least a quarter of every uncapped tranche, so any reachable target is
// bracketed; an unreachable one (absolute caps binding everywhere)
// surfaces as ErrNoSignChange rather than a silently missed budget.
func AreaRateProblem(
	hs []holding.Holding,
	schedule degressivity.Schedule,
	target decimal.Decimal,
	naiveRate decimal.Decimal,
	tolerance decimal.Decimal,
	maxIterations int,
) calibrate.Problem {
	return calibrate.Problem{
		Objective: func(rate decimal.Decimal) (decimal.Decimal, error) {
			total := decimal.Zero
			for _, h := range hs {
				amount := transformedAmount(h, rate, schedule)
				total = total.Add(h.Weight.Mul(amount))
			}
			return total, nil
		},
		Target:        target,
		Lo:            decimal.Zero,
		Hi:            naiveRate.Mul(decimal.NewFromInt(8)),
		Tolerance:     tolerance,
		MaxIterations: maxIterations,
	}
}
