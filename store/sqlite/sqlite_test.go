package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/entitlement"
	"github.com/warp/subsidy-engine/holding"
	"github.com/warp/subsidy-engine/stats"
	"github.com/warp/subsidy-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testHoldings() []sqlite.HoldingRecord {
	withArea := holding.Holding{
		ID:                "h-1",
		Weight:            dec("2.5"),
		EligibleArea:      decimal.NullDecimal{Decimal: dec("30.25"), Valid: true},
		BaselineAmount:    dec("1234.56"),
		Region:            holding.NewCategory("1_North"),
		SizeClass:         holding.NewCategory("2_Medium"),
		TypeClass:         holding.NewCategory("Dairy"),
		AreaBand:          holding.NewCategory("1_0-30"),
		FemaleOperators:   1,
		YoungOperators:    2,
		DisadvantagedZone: true,
	}
	noArea := holding.Holding{
		ID:             "h-2",
		Weight:         dec("1"),
		BaselineAmount: dec("0"),
		Region:         holding.NewCategory("2_South"),
		SizeClass:      holding.NewCategory("1_Small"),
		TypeClass:      holding.NewCategory("Arable"),
		AreaBand:       holding.NewCategory("1_0-30"),
	}
	return []sqlite.HoldingRecord{
		{Holding: withArea, Blocks: []entitlement.Block{
			{Count: 10, UnitValue: dec("250.10")},
			{Count: 5, UnitValue: dec("80")},
		}},
		{Holding: noArea},
	}
}

func saveTestDataset(t *testing.T, store *sqlite.Store, id string) {
	t.Helper()
	err := store.SaveDataset(context.Background(), sqlite.DatasetRecord{
		ID:                 id,
		Name:               "test dataset",
		ReferenceAggregate: dec("98765.43"),
	}, testHoldings())
	if err != nil {
		t.Fatalf("SaveDataset failed: %v", err)
	}
}

// =============================================================================
// DATASET TESTS
// =============================================================================

func TestStore_DatasetRoundTrip(t *testing.T) {
	// GIVEN: a dataset with a defined-area and an undefined-area holding
	// WHEN: saving and loading
	// THEN: decimals, categories, blocks and the NULL area survive exactly

	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")

	d, err := store.GetDataset(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if d == nil {
		t.Fatal("dataset not found after save")
	}
	if !d.ReferenceAggregate.Equal(dec("98765.43")) {
		t.Errorf("ReferenceAggregate = %s, want 98765.43", d.ReferenceAggregate)
	}

	hs, err := store.LoadHoldings(ctx, "ds-1")
	if err != nil {
		t.Fatalf("LoadHoldings failed: %v", err)
	}
	if len(hs) != 2 {
		t.Fatalf("loaded %d holdings, want 2", len(hs))
	}

	first := hs[0].Holding
	if first.ID != "h-1" {
		t.Errorf("insertion order lost: first holding is %s", first.ID)
	}
	if !first.Weight.Equal(dec("2.5")) || !first.BaselineAmount.Equal(dec("1234.56")) {
		t.Errorf("decimals corrupted: weight %s, baseline %s", first.Weight, first.BaselineAmount)
	}
	if !first.EligibleArea.Valid || !first.EligibleArea.Decimal.Equal(dec("30.25")) {
		t.Errorf("EligibleArea = %v, want 30.25", first.EligibleArea)
	}
	if first.Region.Ordinal != 1 || first.Region.Label != "North" {
		t.Errorf("Region = %+v, want {1 North}", first.Region)
	}
	if first.TypeClass.Label != "Dairy" {
		t.Errorf("unprefixed category corrupted: %+v", first.TypeClass)
	}
	if first.FemaleOperators != 1 || first.YoungOperators != 2 || !first.DisadvantagedZone {
		t.Errorf("operator attributes corrupted: %+v", first)
	}

	if len(hs[0].Blocks) != 2 {
		t.Fatalf("loaded %d blocks, want 2", len(hs[0].Blocks))
	}
	if hs[0].Blocks[0].Count != 10 || !hs[0].Blocks[0].UnitValue.Equal(dec("250.10")) {
		t.Errorf("block order or values corrupted: %+v", hs[0].Blocks)
	}

	second := hs[1].Holding
	if second.EligibleArea.Valid {
		t.Errorf("undefined area came back as %s", second.EligibleArea.Decimal)
	}
	if len(hs[1].Blocks) != 0 {
		t.Errorf("blockless holding gained %d blocks", len(hs[1].Blocks))
	}
}

func TestStore_GetDatasetAbsent(t *testing.T) {
	store := newStore(t)
	d, err := store.GetDataset(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if d != nil {
		t.Errorf("expected nil for an absent dataset, got %+v", d)
	}
}

func TestStore_UpdateBaselines(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")

	err := store.UpdateBaselines(ctx, "ds-1", []holding.Holding{
		{ID: "h-1", BaselineAmount: dec("42")},
	})
	if err != nil {
		t.Fatalf("UpdateBaselines failed: %v", err)
	}

	hs, err := store.LoadHoldings(ctx, "ds-1")
	if err != nil {
		t.Fatalf("LoadHoldings failed: %v", err)
	}
	if !hs[0].Holding.BaselineAmount.Equal(dec("42")) {
		t.Errorf("baseline = %s, want 42", hs[0].Holding.BaselineAmount)
	}
	if !hs[1].Holding.BaselineAmount.Equal(dec("0")) {
		t.Errorf("untouched baseline = %s, want 0", hs[1].Holding.BaselineAmount)
	}
}

func TestStore_DeleteDatasetCascades(t *testing.T) {
	// GIVEN: a dataset with holdings, blocks and a run
	// WHEN: deleting the dataset
	// THEN: the holdings and the run go with it

	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")
	saveTestRun(t, store, "run-1", "ds-1")

	if err := store.DeleteDataset(ctx, "ds-1"); err != nil {
		t.Fatalf("DeleteDataset failed: %v", err)
	}

	hs, err := store.LoadHoldings(ctx, "ds-1")
	if err != nil {
		t.Fatalf("LoadHoldings failed: %v", err)
	}
	if len(hs) != 0 {
		t.Errorf("%d holdings survived the cascade", len(hs))
	}
	r, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if r != nil {
		t.Error("run survived the cascade")
	}
}

// =============================================================================
// RUN TESTS
// =============================================================================

func saveTestRun(t *testing.T, store *sqlite.Store, id, datasetID string) {
	t.Helper()
	amounts := []holding.Holding{
		{ID: "h-1", BaselineAmount: dec("1234.56"), SimulatedAmount: dec("1100")},
		{ID: "h-2", BaselineAmount: dec("0"), SimulatedAmount: dec("0")},
	}
	comparison := []stats.Row{
		{
			Dimension:    stats.OverallDimension,
			Category:     holding.Category{Label: "all"},
			HoldingCount: dec("3.5"),
			LoserCount:   dec("2.5"),
			DiffSum:      dec("-134.56"),
			DiffRel:      decimal.NullDecimal{Decimal: dec("-0.109"), Valid: true},
		},
		{
			Dimension: "region",
			Category:  holding.NewCategory("1_North"),
		},
	}
	err := store.SaveRun(context.Background(), sqlite.RunRecord{
		ID:             id,
		DatasetID:      datasetID,
		Name:           "test run",
		ScenarioJSON:   `{"mode":"budget_constant"}`,
		Rate:           dec("12.5"),
		Calibrated:     true,
		TotalBaseline:  dec("1234.56"),
		TotalSimulated: dec("1100"),
		TotalArea:      dec("75.625"),
	}, amounts, comparison)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
}

func TestStore_RunRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")
	saveTestRun(t, store, "run-1", "ds-1")

	r, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if r == nil {
		t.Fatal("run not found after save")
	}
	if r.DatasetID != "ds-1" || r.Name != "test run" {
		t.Errorf("header corrupted: %+v", r)
	}
	if !r.Rate.Equal(dec("12.5")) || !r.Calibrated {
		t.Errorf("rate/calibrated corrupted: %s %v", r.Rate, r.Calibrated)
	}
	if !r.TotalArea.Equal(dec("75.625")) {
		t.Errorf("TotalArea = %s, want 75.625", r.TotalArea)
	}
	if r.ScenarioJSON != `{"mode":"budget_constant"}` {
		t.Errorf("ScenarioJSON = %s", r.ScenarioJSON)
	}
}

func TestStore_ComparisonRoundTrip(t *testing.T) {
	// GIVEN: comparison rows with defined and NA cells
	// WHEN: loading them back
	// THEN: values, NA validity and row order survive

	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")
	saveTestRun(t, store, "run-1", "ds-1")

	rows, err := store.LoadComparison(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadComparison failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("loaded %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.Dimension != stats.OverallDimension {
		t.Errorf("row order lost: first dimension %q", first.Dimension)
	}
	if !first.HoldingCount.Equal(dec("3.5")) || !first.DiffSum.Equal(dec("-134.56")) {
		t.Errorf("decimals corrupted: %+v", first)
	}
	if !first.DiffRel.Valid || !first.DiffRel.Decimal.Equal(dec("-0.109")) {
		t.Errorf("DiffRel = %v, want -0.109", first.DiffRel)
	}
	if first.DiffMedian.Valid {
		t.Error("NA cell came back defined")
	}

	second := rows[1]
	if second.Category.Ordinal != 1 || second.Category.Label != "North" {
		t.Errorf("category corrupted: %+v", second.Category)
	}
}

func TestStore_ListRuns(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")
	saveTestRun(t, store, "run-1", "ds-1")
	saveTestRun(t, store, "run-2", "ds-1")

	runs, err := store.ListRuns(ctx, "ds-1")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("listed %d runs, want 2", len(runs))
	}
	seen := map[string]bool{}
	for _, r := range runs {
		seen[r.ID] = true
	}
	if !seen["run-1"] || !seen["run-2"] {
		t.Errorf("runs missing from listing: %v", seen)
	}

	none, err := store.ListRuns(ctx, "other")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("foreign dataset lists %d runs", len(none))
	}
}

func TestStore_DeleteRunLeavesDataset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")
	saveTestRun(t, store, "run-1", "ds-1")

	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	rows, err := store.LoadComparison(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadComparison failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("%d comparison rows survived the run delete", len(rows))
	}
	d, err := store.GetDataset(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetDataset failed: %v", err)
	}
	if d == nil {
		t.Error("dataset vanished with its run")
	}
}

func TestStore_Reset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveTestDataset(t, store, "ds-1")
	saveTestRun(t, store, "run-1", "ds-1")

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	datasets, err := store.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets failed: %v", err)
	}
	if len(datasets) != 0 {
		t.Errorf("%d datasets survived the reset", len(datasets))
	}
}
