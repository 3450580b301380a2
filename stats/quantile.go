/*
quantile.go - Weighted order statistics

PURPOSE:
  Weighted quantiles over per-holding values, tie-aware and without
  interpolation: sort by value, accumulate weight, and return the first
  value whose cumulative weight fraction reaches the requested
  probability. Equal values are adjacent after the sort, so ties share
  one cumulative step.

DEGENERACY:
  An empty sample or a zero total weight yields "not applicable", never
  an arithmetic fault.
*/
package stats

import (
	"sort"

	"github.com/shopspring/decimal"
)

// sample is one weighted observation.
type sample struct {
	value  decimal.Decimal
	weight decimal.Decimal
}

// quantile returns the first value whose cumulative weight fraction
// reaches p (0 < p <= 1).
func quantile(samples []sample, p decimal.Decimal) decimal.NullDecimal {
	if len(samples) == 0 {
		return decimal.NullDecimal{}
	}
	total := decimal.Zero
	for _, s := range samples {
		total = total.Add(s.weight)
	}
	if total.Sign() <= 0 {
		return decimal.NullDecimal{}
	}

	sorted := make([]sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].value.LessThan(sorted[j].value)
	})

	threshold := p.Mul(total)
	cum := decimal.Zero
	for _, s := range sorted {
		cum = cum.Add(s.weight)
		if cum.GreaterThanOrEqual(threshold) {
			return defined(s.value)
		}
	}
	// Reachable only through rounding at p == 1; the largest value is the
	// correct answer either way.
	return defined(sorted[len(sorted)-1].value)
}

// mean returns Σ weight×value / Σ weight.
func mean(samples []sample) decimal.NullDecimal {
	totalW := decimal.Zero
	totalWV := decimal.Zero
	for _, s := range samples {
		totalW = totalW.Add(s.weight)
		totalWV = totalWV.Add(s.weight.Mul(s.value))
	}
	if totalW.Sign() <= 0 {
		return decimal.NullDecimal{}
	}
	return defined(totalWV.Div(totalW))
}

// minValue and maxValue return subgroup extremes, NA on empty input.
func minValue(samples []sample) decimal.NullDecimal {
	if len(samples) == 0 {
		return decimal.NullDecimal{}
	}
	m := samples[0].value
	for _, s := range samples[1:] {
		m = decimal.Min(m, s.value)
	}
	return defined(m)
}

func maxValue(samples []sample) decimal.NullDecimal {
	if len(samples) == 0 {
		return decimal.NullDecimal{}
	}
	m := samples[0].value
	for _, s := range samples[1:] {
		m = decimal.Max(m, s.value)
	}
	return defined(m)
}

func defined(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
