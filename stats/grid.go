/*
grid.go - Fixed-schema rectangular export of comparison rows

PURPOSE:
  Downstream reporting consumes the comparison as a rectangular grid:
  one header row, one record per (dimension, category) cell, every
  record the same width. Undefined cells carry the NA marker.
*/
package stats

import (
	"github.com/shopspring/decimal"
)

// NA is the marker written for undefined cells.
const NA = "NA"

// Header returns the grid's column names, in record order.
func Header() []string {
	return []string{
		"dimension",
		"category",
		"holding_count",
		"loser_count",
		"gainer_existing_count",
		"gainer_new_count",
		"unchanged_count",
		"loser_share",
		"gainer_existing_share",
		"gainer_new_share",
		"baseline_sum",
		"simulated_sum",
		"diff_sum",
		"diff_rel",
		"diff_mean",
		"diff_median",
		"loser_diff_mean",
		"loser_diff_median",
		"loser_diff_min",
		"loser_diff_p1",
		"gainer_existing_diff_mean",
		"gainer_existing_diff_median",
		"gainer_existing_diff_max",
		"gainer_existing_diff_p99",
		"gainer_new_diff_mean",
		"gainer_new_diff_median",
		"gainer_new_diff_max",
		"gainer_new_diff_p99",
		"area_mean",
		"area_median",
	}
}

// Record renders one row in Header order.
func (r Row) Record() []string {
	return []string{
		r.Dimension,
		r.Category.Label,
		r.HoldingCount.String(),
		r.LoserCount.String(),
		r.GainerExistingCount.String(),
		r.GainerNewCount.String(),
		r.UnchangedCount.String(),
		cell(r.LoserShare),
		cell(r.GainerExistingShare),
		cell(r.GainerNewShare),
		r.BaselineSum.String(),
		r.SimulatedSum.String(),
		r.DiffSum.String(),
		cell(r.DiffRel),
		cell(r.DiffMean),
		cell(r.DiffMedian),
		cell(r.LoserDiffMean),
		cell(r.LoserDiffMedian),
		cell(r.LoserDiffMin),
		cell(r.LoserDiffP1),
		cell(r.GainerExistingDiffMean),
		cell(r.GainerExistingDiffMedian),
		cell(r.GainerExistingDiffMax),
		cell(r.GainerExistingDiffP99),
		cell(r.GainerNewDiffMean),
		cell(r.GainerNewDiffMedian),
		cell(r.GainerNewDiffMax),
		cell(r.GainerNewDiffP99),
		cell(r.AreaMean),
		cell(r.AreaMedian),
	}
}

// Grid renders a comparison as header plus records.
func Grid(rows []Row) [][]string {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, Header())
	for _, r := range rows {
		out = append(out, r.Record())
	}
	return out
}

func cell(d decimal.NullDecimal) string {
	if !d.Valid {
		return NA
	}
	return d.Decimal.String()
}
