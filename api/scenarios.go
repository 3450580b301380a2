/*
scenarios.go - Demo dataset loaders for testing and demonstrations

PURPOSE:

	Provides pre-built datasets that populate the database with realistic
	holdings for testing and demos. Each dataset demonstrates a specific
	shape of the payment distribution.

AVAILABLE SCENARIOS:

	uniform-smallholders: Similar small holdings, flat-rate scenarios
	                      barely redistribute
	skewed-estates:       A few large estates among many smallholders,
	                      degressivity and capping bite visibly
	mixed-regions:        Regions, size classes, undefined areas and
	                      top-up subpopulations all represented

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build the holdings table with entitlement portfolios
 3. Price baselines through the allocator
 4. Save as a dataset whose id equals the scenario id

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "skewed-estates"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create builder function: xxxHoldings()
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: dataset and run handlers operating on loaded data
  - factory/scenario.go: scenario documents to run against these datasets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/entitlement"
	"github.com/warp/subsidy-engine/holding"
	"github.com/warp/subsidy-engine/scenario"
	"github.com/warp/subsidy-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "uniform-smallholders",
		Name:        "Uniform Smallholders",
		Description: "A dozen similar small holdings; flat-rate scenarios stay close to the baseline",
		Category:    "basic",
	},
	{
		ID:          "skewed-estates",
		Name:        "Skewed Estates",
		Description: "Two large estates among smallholders; degressivity and capping redistribute visibly",
		Category:    "degressivity",
	},
	{
		ID:          "mixed-regions",
		Name:        "Mixed Regions",
		Description: "Regions, size classes, undefined areas and top-up subpopulations all present",
		Category:    "statistics",
	},
}

// ListScenarios returns available demo datasets.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded demo dataset, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined demo dataset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var (
		name   string
		inputs []demoHolding
	)
	switch req.ScenarioID {
	case "uniform-smallholders":
		name, inputs = "Uniform Smallholders", uniformSmallholders()
	case "skewed-estates":
		name, inputs = "Skewed Estates", skewedEstates()
	case "mixed-regions":
		name, inputs = "Mixed Regions", mixedRegions()
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err := h.loadDemoDataset(ctx, req.ScenarioID, name, inputs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "loaded",
		"dataset_id": req.ScenarioID,
	})
}

// =============================================================================
// DATASET BUILDERS
// =============================================================================

// demoHolding is the compact builder form of one demo holding.
type demoHolding struct {
	id       string
	weight   float64
	area     *float64
	region   string
	size     string
	typeCls  string
	band     string
	female   int64
	young    int64
	zone     bool
	blocks   []entitlement.Block
	addOn    float64
}

func (h *Handler) loadDemoDataset(ctx context.Context, id, name string, demo []demoHolding) error {
	inputs := make([]scenario.BaselineInput, len(demo))
	for i, d := range demo {
		hd := holding.Holding{
			ID:                holding.HoldingID(d.id),
			Weight:            decimal.NewFromFloat(d.weight),
			Region:            holding.NewCategory(d.region),
			SizeClass:         holding.NewCategory(d.size),
			TypeClass:         holding.NewCategory(d.typeCls),
			AreaBand:          holding.NewCategory(d.band),
			FemaleOperators:   d.female,
			YoungOperators:    d.young,
			DisadvantagedZone: d.zone,
		}
		if d.area != nil {
			hd.EligibleArea = holding.Area(*d.area)
		}
		inputs[i] = scenario.BaselineInput{
			Holding:   hd,
			Portfolio: entitlement.Portfolio{Blocks: d.blocks},
			AddOn:     decimal.NewFromFloat(d.addOn),
		}
	}

	table := scenario.ComputeBaseline(inputs)
	record := sqlite.DatasetRecord{
		ID:                 id,
		Name:               name,
		ReferenceAggregate: scenario.WeightedBaselineTotal(table),
	}
	records := make([]sqlite.HoldingRecord, len(table))
	for i, hd := range table {
		records[i] = sqlite.HoldingRecord{Holding: hd, Blocks: demo[i].blocks}
	}
	return h.Store.SaveDataset(ctx, record, records)
}

func area(v float64) *float64 { return &v }

func blocks(pairs ...float64) []entitlement.Block {
	var out []entitlement.Block
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, entitlement.Block{
			Count:     int64(pairs[i]),
			UnitValue: decimal.NewFromFloat(pairs[i+1]),
		})
	}
	return out
}

func uniformSmallholders() []demoHolding {
	out := make([]demoHolding, 0, 12)
	for i := 1; i <= 12; i++ {
		out = append(out, demoHolding{
			id:      fmt.Sprintf("small-%02d", i),
			weight:  25,
			area:    area(8 + float64(i%4)),
			region:  "1_North",
			size:    "1_Under 20 ha",
			typeCls: "1_Arable",
			band:    "1_0-10 ha",
			blocks:  blocks(8, 240, 2, 180),
		})
	}
	return out
}

func skewedEstates() []demoHolding {
	out := []demoHolding{
		{
			id: "estate-1", weight: 1, area: area(900),
			region: "2_East", size: "4_Over 250 ha", typeCls: "1_Arable", band: "5_Over 250 ha",
			blocks: blocks(900, 310),
		},
		{
			id: "estate-2", weight: 1, area: area(600),
			region: "2_East", size: "4_Over 250 ha", typeCls: "2_Livestock", band: "5_Over 250 ha",
			blocks: blocks(650, 280),
		},
	}
	for i := 1; i <= 20; i++ {
		out = append(out, demoHolding{
			id:      fmt.Sprintf("farm-%02d", i),
			weight:  40,
			area:    area(12 + float64(i%7)*3),
			region:  "1_North",
			size:    "1_Under 20 ha",
			typeCls: "2_Livestock",
			band:    "2_10-50 ha",
			blocks:  blocks(14, 210),
		})
	}
	return out
}

func mixedRegions() []demoHolding {
	return []demoHolding{
		{id: "mx-01", weight: 30, area: area(6), region: "1_North", size: "1_Under 20 ha",
			typeCls: "1_Arable", band: "1_0-10 ha", female: 1, blocks: blocks(6, 250)},
		{id: "mx-02", weight: 30, area: area(15), region: "1_North", size: "1_Under 20 ha",
			typeCls: "2_Livestock", band: "2_10-50 ha", zone: true, blocks: blocks(12, 230, 4, 150)},
		{id: "mx-03", weight: 20, area: area(48), region: "2_East", size: "2_20-100 ha",
			typeCls: "1_Arable", band: "2_10-50 ha", young: 1, blocks: blocks(45, 260)},
		{id: "mx-04", weight: 15, area: area(120), region: "2_East", size: "3_100-250 ha",
			typeCls: "3_Permanent crops", band: "3_50-150 ha", blocks: blocks(110, 290)},
		{id: "mx-05", weight: 10, area: area(210), region: "3_South", size: "3_100-250 ha",
			typeCls: "2_Livestock", band: "4_150-250 ha", zone: true, blocks: blocks(190, 275)},
		// Undefined eligible area: pays nothing at baseline, policy decides
		// whether it appears in statistics.
		{id: "mx-06", weight: 25, area: nil, region: "3_South", size: "1_Under 20 ha",
			typeCls: "1_Arable", band: "1_0-10 ha", female: 2, blocks: blocks(5, 200)},
		{id: "mx-07", weight: 30, area: area(0), region: "1_North", size: "1_Under 20 ha",
			typeCls: "2_Livestock", band: "1_0-10 ha", blocks: blocks(3, 220)},
		{id: "mx-08", weight: 18, area: area(75), region: "3_South", size: "2_20-100 ha",
			typeCls: "3_Permanent crops", band: "3_50-150 ha", young: 2, addOn: 1500,
			blocks: blocks(70, 240)},
	}
}
