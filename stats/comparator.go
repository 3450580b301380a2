/*
Package stats compares the baseline and simulated amount columns of a
holdings table and aggregates the differences into weighted statistics.

PURPOSE:
  The comparator answers the policy questions a scenario exists to ask:
  who loses, who gains, by how much, and how are the tails shaped,
  overall and within each grouping dimension.

KEY CONCEPTS:
  - Dimension: a named key function from holding to category; the
    overall pseudo-dimension maps every holding to one bucket
  - Classification: each holding is exactly one of loser (diff < 0),
    existing gainer (diff > 0, baseline > 0), new gainer (diff > 0,
    baseline == 0), unchanged (diff == 0)
  - Weighted everything: counts, sums, means, medians and tail
    quantiles all use the sampling weight

NOT-APPLICABLE DISCIPLINE:
  Every ratio and every subgroup statistic can be undefined (empty
  subgroup, zero denominator). Such cells are invalid NullDecimals and
  render as the NA marker; they are never coerced to zero.

SEE ALSO:
  - quantile.go: weighted order statistics
  - grid.go: fixed-schema rectangular export
  - ../scenario: produces the table this package consumes
*/
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/holding"
)

// =============================================================================
// DIMENSIONS
// =============================================================================

// OverallDimension is the name of the single-bucket pseudo-dimension.
const OverallDimension = "overall"

var (
	p01 = decimal.RequireFromString("0.01")
	p50 = decimal.RequireFromString("0.5")
	p99 = decimal.RequireFromString("0.99")
)

// Dimension is one grouping axis of the comparison.
type Dimension struct {
	Name string
	Key  func(holding.Holding) holding.Category
}

// Overall returns the pseudo-dimension that buckets every holding
// together.
func Overall() Dimension {
	all := holding.Category{Label: "all"}
	return Dimension{
		Name: OverallDimension,
		Key:  func(holding.Holding) holding.Category { return all },
	}
}

// StandardDimensions returns the overall pseudo-dimension followed by
// the four category attributes of the holdings table.
func StandardDimensions() []Dimension {
	return []Dimension{
		Overall(),
		{Name: "region", Key: func(h holding.Holding) holding.Category { return h.Region }},
		{Name: "size_class", Key: func(h holding.Holding) holding.Category { return h.SizeClass }},
		{Name: "type_class", Key: func(h holding.Holding) holding.Category { return h.TypeClass }},
		{Name: "area_band", Key: func(h holding.Holding) holding.Category { return h.AreaBand }},
	}
}

// Options tunes the comparison.
type Options struct {
	// ExcludeUndefinedArea drops holdings with an undefined eligible area
	// from every statistic. When false they participate as zero-amount
	// records (their unknown area still stays out of the area columns).
	ExcludeUndefinedArea bool
}

// =============================================================================
// ROW SCHEMA
// =============================================================================

// Row is one (dimension, category) cell of the comparison. All counts
// and sums are weighted.
type Row struct {
	Dimension string
	Category  holding.Category

	HoldingCount decimal.Decimal

	LoserCount          decimal.Decimal
	GainerExistingCount decimal.Decimal
	GainerNewCount      decimal.Decimal
	UnchangedCount      decimal.Decimal

	LoserShare          decimal.NullDecimal
	GainerExistingShare decimal.NullDecimal
	GainerNewShare      decimal.NullDecimal

	BaselineSum  decimal.Decimal
	SimulatedSum decimal.Decimal
	DiffSum      decimal.Decimal

	// DiffRel is DiffSum / BaselineSum.
	DiffRel decimal.NullDecimal

	DiffMean   decimal.NullDecimal
	DiffMedian decimal.NullDecimal

	// Loser tail: the worst loss and the 1st percentile of losses.
	LoserDiffMean   decimal.NullDecimal
	LoserDiffMedian decimal.NullDecimal
	LoserDiffMin    decimal.NullDecimal
	LoserDiffP1     decimal.NullDecimal

	// Existing-gainer tail: the largest gain and its 99th percentile.
	GainerExistingDiffMean   decimal.NullDecimal
	GainerExistingDiffMedian decimal.NullDecimal
	GainerExistingDiffMax    decimal.NullDecimal
	GainerExistingDiffP99    decimal.NullDecimal

	GainerNewDiffMean   decimal.NullDecimal
	GainerNewDiffMedian decimal.NullDecimal
	GainerNewDiffMax    decimal.NullDecimal
	GainerNewDiffP99    decimal.NullDecimal

	AreaMean   decimal.NullDecimal
	AreaMedian decimal.NullDecimal
}

// =============================================================================
// COMPARISON
// =============================================================================

// Compare aggregates the baseline/simulated difference per dimension
// and category. Rows come back in dimension order, categories ordered
// by their sort ordinal within each dimension.
func Compare(hs []holding.Holding, dims []Dimension, opts Options) []Row {
	if opts.ExcludeUndefinedArea {
		kept := make([]holding.Holding, 0, len(hs))
		for _, h := range hs {
			if h.EligibleArea.Valid {
				kept = append(kept, h)
			}
		}
		hs = kept
	}

	rows := make([]Row, 0, len(dims)*4)
	for _, dim := range dims {
		buckets := make(map[holding.Category][]holding.Holding)
		for _, h := range hs {
			key := dim.Key(h)
			buckets[key] = append(buckets[key], h)
		}

		keys := make([]holding.Category, 0, len(buckets))
		for key := range buckets {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

		for _, key := range keys {
			rows = append(rows, aggregate(dim.Name, key, buckets[key]))
		}
	}
	return rows
}

func aggregate(dimension string, category holding.Category, hs []holding.Holding) Row {
	row := Row{Dimension: dimension, Category: category}

	var (
		diffs, areas           []sample
		losers, existing, news []sample
	)

	for _, h := range hs {
		w := h.Weight
		diff := h.Diff()

		row.HoldingCount = row.HoldingCount.Add(w)
		row.BaselineSum = row.BaselineSum.Add(w.Mul(h.BaselineAmount))
		row.SimulatedSum = row.SimulatedSum.Add(w.Mul(h.SimulatedAmount))
		row.DiffSum = row.DiffSum.Add(w.Mul(diff))

		diffs = append(diffs, sample{value: diff, weight: w})
		if h.EligibleArea.Valid {
			areas = append(areas, sample{value: h.EligibleArea.Decimal, weight: w})
		}

		switch {
		case diff.Sign() < 0:
			row.LoserCount = row.LoserCount.Add(w)
			losers = append(losers, sample{value: diff, weight: w})
		case diff.Sign() > 0 && h.BaselineAmount.Sign() > 0:
			row.GainerExistingCount = row.GainerExistingCount.Add(w)
			existing = append(existing, sample{value: diff, weight: w})
		case diff.Sign() > 0:
			row.GainerNewCount = row.GainerNewCount.Add(w)
			news = append(news, sample{value: diff, weight: w})
		default:
			row.UnchangedCount = row.UnchangedCount.Add(w)
		}
	}

	row.LoserShare = share(row.LoserCount, row.HoldingCount)
	row.GainerExistingShare = share(row.GainerExistingCount, row.HoldingCount)
	row.GainerNewShare = share(row.GainerNewCount, row.HoldingCount)

	if row.BaselineSum.Sign() > 0 {
		row.DiffRel = defined(row.DiffSum.Div(row.BaselineSum))
	}

	row.DiffMean = mean(diffs)
	row.DiffMedian = quantile(diffs, p50)

	row.LoserDiffMean = mean(losers)
	row.LoserDiffMedian = quantile(losers, p50)
	row.LoserDiffMin = minValue(losers)
	row.LoserDiffP1 = quantile(losers, p01)

	row.GainerExistingDiffMean = mean(existing)
	row.GainerExistingDiffMedian = quantile(existing, p50)
	row.GainerExistingDiffMax = maxValue(existing)
	row.GainerExistingDiffP99 = quantile(existing, p99)

	row.GainerNewDiffMean = mean(news)
	row.GainerNewDiffMedian = quantile(news, p50)
	row.GainerNewDiffMax = maxValue(news)
	row.GainerNewDiffP99 = quantile(news, p99)

	row.AreaMean = mean(areas)
	row.AreaMedian = quantile(areas, p50)

	return row
}

func share(part, whole decimal.Decimal) decimal.NullDecimal {
	if whole.Sign() <= 0 {
		return decimal.NullDecimal{}
	}
	return defined(part.Div(whole))
}
