package entitlement_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/calibrate"
	"github.com/warp/subsidy-engine/entitlement"
)

func TestAggregateAllocation_SkipsUndefinedAreas(t *testing.T) {
	// GIVEN: one payable portfolio and one with an undefined ceiling
	// WHEN: aggregating
	// THEN: the undefined one contributes nothing, not zero-with-weight

	portfolios := []entitlement.Portfolio{
		portfolio("5", block(5, "100")),
		{Blocks: []entitlement.Block{block(5, "100")}},
	}
	weights := []decimal.Decimal{dec("2"), dec("1000")}

	got := entitlement.AggregateAllocation(portfolios, weights)
	if !got.Equal(dec("1000")) {
		t.Errorf("AggregateAllocation = %s, want 1000", got)
	}
}

func TestAggregateAllocation_NilWeightsMeanOne(t *testing.T) {
	portfolios := []entitlement.Portfolio{
		portfolio("5", block(5, "100")),
		portfolio("2", block(2, "30")),
	}
	got := entitlement.AggregateAllocation(portfolios, nil)
	if !got.Equal(dec("560")) {
		t.Errorf("AggregateAllocation = %s, want 560", got)
	}
}

func TestConvergenceCoefficientProblem_SolvesAcceleration(t *testing.T) {
	// GIVEN: one low value (100) and one high value (400), target 250.
	//        Converged aggregate is 520 + 100a: the low value starts from
	//        its 150 floor and gains a×100, the high value reduces to 370.
	// WHEN: calibrating against reference 570
	// THEN: the solved acceleration is 0.5

	params := entitlement.ConvergenceParams{
		ValueCeiling:        dec("1000"),
		TargetValue:         dec("250"),
		FloorCoefficient:    dec("0.6"),
		DownwardRate:        dec("0.2"),
		MaxDownwardFraction: dec("0.3"),
	}
	portfolios := []entitlement.Portfolio{
		portfolio("1", block(1, "100")),
		portfolio("1", block(1, "400")),
	}

	a, err := calibrate.Solve(entitlement.ConvergenceCoefficientProblem(
		portfolios, nil, params, dec("570")))
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if a.Sub(dec("0.5")).Abs().GreaterThan(dec("0.001")) {
		t.Errorf("acceleration = %s, want 0.5", a)
	}
}

func TestConvergenceCoefficientProblem_PreservesAggregate(t *testing.T) {
	// GIVEN: the solved coefficient
	// WHEN: re-running the convergence with it
	// THEN: the aggregate reproduces the reference within tolerance

	params := entitlement.ConvergenceParams{
		ValueCeiling:        dec("800"),
		TargetValue:         dec("300"),
		FloorCoefficient:    dec("0.5"),
		DownwardRate:        dec("0.25"),
		MaxDownwardFraction: dec("0.3"),
	}
	portfolios := []entitlement.Portfolio{
		portfolio("10", block(10, "120")),
		portfolio("4", block(4, "480")),
		portfolio("6", block(6, "250")),
	}
	weights := []decimal.Decimal{dec("3"), dec("1"), dec("2")}
	reference := dec("10000")

	a, err := calibrate.Solve(entitlement.ConvergenceCoefficientProblem(
		portfolios, weights, params, reference))
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	converged := make([]entitlement.Portfolio, len(portfolios))
	p := params.WithAcceleration(a)
	for i, pf := range portfolios {
		converged[i] = pf.Converged(p)
	}
	got := entitlement.AggregateAllocation(converged, weights)
	if got.Sub(reference).Abs().GreaterThan(dec("0.001")) {
		t.Errorf("aggregate %s misses reference %s", got, reference)
	}
}

func TestUniformValueProblem_SolvesUnitValue(t *testing.T) {
	// GIVEN: portfolios paying 2v and 3v with weights 1 and 2, so the
	//        aggregate is 8v
	// WHEN: calibrating against reference 400
	// THEN: the uniform value is 50

	portfolios := []entitlement.Portfolio{
		portfolio("2", block(2, "999")),
		portfolio("3", block(3, "1")),
	}
	weights := []decimal.Decimal{dec("1"), dec("2")}

	v, err := calibrate.Solve(entitlement.UniformValueProblem(
		portfolios, weights, dec("400")))
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if v.Sub(dec("50")).Abs().GreaterThan(dec("0.001")) {
		t.Errorf("uniform value = %s, want 50", v)
	}
}
