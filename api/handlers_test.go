package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/subsidy-engine/api"
	"github.com/warp/subsidy-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return api.NewRouter(api.NewHandler(store), nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func f64(v float64) *float64 { return &v }

// twoFarmDataset uploads two holdings and returns the dataset id.
// Portfolio values price to baselines 500 and 300, so the default
// reference aggregate is 800.
func twoFarmDataset(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/datasets", api.CreateDatasetRequest{
		Name: "two farms",
		Holdings: []api.HoldingJSON{
			{
				ID: "h-1", Weight: 1, EligibleArea: f64(10),
				Region: "1_North", SizeClass: "1_Small",
				Blocks: []api.BlockJSON{{Count: 10, UnitValue: 50}},
			},
			{
				ID: "h-2", Weight: 1, EligibleArea: f64(20),
				Region: "2_South", SizeClass: "2_Medium",
				Blocks: []api.BlockJSON{{Count: 10, UnitValue: 30}},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.DatasetDTO](t, rec).ID
}

// =============================================================================
// DATASET ENDPOINTS
// =============================================================================

func TestCreateDataset_PricesBaselines(t *testing.T) {
	// GIVEN: an uploaded table with entitlement portfolios
	// WHEN: creating the dataset
	// THEN: baselines are priced through the allocator and the reference
	//       defaults to their weighted total

	router := newTestRouter(t)
	id := twoFarmDataset(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/datasets/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[api.DatasetDTO](t, rec)
	assert.Equal(t, "two farms", d.Name)
	assert.InDelta(t, 800, d.ReferenceAggregate, 1e-9)

	rec = doJSON(t, router, http.MethodGet, "/api/datasets/"+id+"/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hs := decode[[]api.HoldingDTO](t, rec)
	require.Len(t, hs, 2)
	assert.InDelta(t, 500, hs[0].BaselineAmount, 1e-9)
	assert.InDelta(t, 300, hs[1].BaselineAmount, 1e-9)
	require.NotNil(t, hs[0].EligibleArea)
	assert.InDelta(t, 10, *hs[0].EligibleArea, 1e-9)
}

func TestCreateDataset_Validation(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		req  api.CreateDatasetRequest
	}{
		{"missing name", api.CreateDatasetRequest{
			Holdings: []api.HoldingJSON{{ID: "h", Weight: 1}},
		}},
		{"no holdings", api.CreateDatasetRequest{Name: "empty"}},
		{"duplicate ids", api.CreateDatasetRequest{
			Name: "dupes",
			Holdings: []api.HoldingJSON{
				{ID: "h", Weight: 1}, {ID: "h", Weight: 1},
			},
		}},
		{"negative weight", api.CreateDatasetRequest{
			Name:     "weightless",
			Holdings: []api.HoldingJSON{{ID: "h", Weight: -1}},
		}},
		{"negative block", api.CreateDatasetRequest{
			Name: "negative",
			Holdings: []api.HoldingJSON{{
				ID: "h", Weight: 1,
				Blocks: []api.BlockJSON{{Count: 1, UnitValue: -5}},
			}},
		}},
	}
	for _, tc := range cases {
		rec := doJSON(t, router, http.MethodPost, "/api/datasets", tc.req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
	}
}

func TestCreateDataset_ZeroWeightAccepted(t *testing.T) {
	// GIVEN: a table including a zero-weight holding
	// WHEN: creating the dataset
	// THEN: the holding is stored but the weighted reference ignores it

	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/datasets", api.CreateDatasetRequest{
		Name: "with sample zero",
		Holdings: []api.HoldingJSON{
			{
				ID: "h-1", Weight: 1, EligibleArea: f64(10),
				Blocks: []api.BlockJSON{{Count: 10, UnitValue: 50}},
			},
			{
				ID: "h-2", Weight: 0, EligibleArea: f64(20),
				Blocks: []api.BlockJSON{{Count: 10, UnitValue: 30}},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[api.DatasetDTO](t, rec)
	assert.InDelta(t, 500, d.ReferenceAggregate, 1e-9)

	rec = doJSON(t, router, http.MethodGet, "/api/datasets/"+d.ID+"/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hs := decode[[]api.HoldingDTO](t, rec)
	require.Len(t, hs, 2)
	// The zero-weight row still prices its own baseline.
	assert.InDelta(t, 300, hs[1].BaselineAmount, 1e-9)
}

func TestGetDataset_NotFound(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/datasets/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Dataset not found", decode[api.ErrorResponse](t, rec).Error)
}

func TestDeleteDataset_RemovesRuns(t *testing.T) {
	router := newTestRouter(t)
	id := twoFarmDataset(t, router)
	runID := runFlatRate(t, router, id)

	rec := doJSON(t, router, http.MethodDelete, "/api/datasets/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

func runFlatRate(t *testing.T, router http.Handler, datasetID string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/datasets/"+datasetID+"/runs", map[string]any{
		"name": "flat ten",
		"scenario": map[string]any{
			"mode": "budget_constant",
			"rate": 10,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.RunDTO](t, rec).ID
}

func TestRunScenario_FlatRate(t *testing.T) {
	// GIVEN: the two-farm dataset with 30 total hectares
	// WHEN: running a flat rate of 10
	// THEN: simulated totals are 10 × 30 and the run is persisted

	router := newTestRouter(t)
	id := twoFarmDataset(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/datasets/"+id+"/runs", map[string]any{
		"name": "flat ten",
		"scenario": map[string]any{
			"mode": "budget_constant",
			"rate": 10,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[api.RunDTO](t, rec)

	assert.Equal(t, id, run.DatasetID)
	assert.InDelta(t, 10, run.Rate, 1e-9)
	assert.False(t, run.Calibrated)
	assert.InDelta(t, 800, run.TotalBaseline, 1e-9)
	assert.InDelta(t, 300, run.TotalSimulated, 1e-9)
	assert.InDelta(t, 30, run.TotalArea, 1e-9)

	rec = doJSON(t, router, http.MethodGet, "/api/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "flat ten", decode[api.RunDTO](t, rec).Name)

	rec = doJSON(t, router, http.MethodGet, "/api/datasets/"+id+"/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.RunDTO](t, rec), 1)
}

func TestRunScenario_PreconditionViolation(t *testing.T) {
	// GIVEN: a scenario naming both a rate and a budget
	// WHEN: running it
	// THEN: 400, the contradiction is rejected, not resolved silently

	router := newTestRouter(t)
	id := twoFarmDataset(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/datasets/"+id+"/runs", map[string]any{
		"scenario": map[string]any{
			"mode":         "budget_constant",
			"rate":         10,
			"total_budget": 5000,
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestRunScenario_UnknownMode(t *testing.T) {
	router := newTestRouter(t)
	id := twoFarmDataset(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/datasets/"+id+"/runs", map[string]any{
		"scenario": map[string]any{"mode": "mystery"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetComparison_Grid(t *testing.T) {
	// GIVEN: a persisted run
	// WHEN: fetching its comparison
	// THEN: a rectangular grid, overall row first, every row as wide as
	//       the header

	router := newTestRouter(t)
	id := twoFarmDataset(t, router)
	runID := runFlatRate(t, router, id)

	rec := doJSON(t, router, http.MethodGet, "/api/runs/"+runID+"/comparison", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decode[api.ComparisonDTO](t, rec)

	require.NotEmpty(t, grid.Rows)
	assert.Equal(t, "dimension", grid.Header[0])
	assert.Equal(t, "overall", grid.Rows[0][0])
	for i, row := range grid.Rows {
		assert.Len(t, row, len(grid.Header), "row %d", i)
	}
}

func TestDeleteRun(t *testing.T) {
	router := newTestRouter(t)
	id := twoFarmDataset(t, router)
	runID := runFlatRate(t, router, id)

	rec := doJSON(t, router, http.MethodDelete, "/api/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/datasets/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// CALIBRATION ENDPOINTS
// =============================================================================

func TestCalibrateUniformValue(t *testing.T) {
	// GIVEN: the two-farm dataset: 10 + 10 payable units, reference 800
	// WHEN: solving for the uniform unit value
	// THEN: 20v = 800 gives v = 40

	router := newTestRouter(t)
	id := twoFarmDataset(t, router)

	rec := doJSON(t, router, http.MethodPost,
		"/api/datasets/"+id+"/calibrate/uniform-value",
		api.UniformValueCalibrationRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 40, decode[api.CalibrationDTO](t, rec).Value, 0.001)
}

func TestCalibrateUniformValue_ExplicitReference(t *testing.T) {
	router := newTestRouter(t)
	id := twoFarmDataset(t, router)

	rec := doJSON(t, router, http.MethodPost,
		"/api/datasets/"+id+"/calibrate/uniform-value",
		api.UniformValueCalibrationRequest{Reference: f64(400)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 20, decode[api.CalibrationDTO](t, rec).Value, 0.001)
}

// =============================================================================
// DEMO SCENARIOS AND ADMIN
// =============================================================================

func TestScenarios_ListAndLoad(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]api.ScenarioDTO](t, rec)
	require.NotEmpty(t, list)

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "skewed-estates"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/datasets/skewed-estates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "skewed-estates", decode[api.ScenarioDTO](t, rec).ID)
}

func TestScenarios_LoadUnknown(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "mystery"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReset_ClearsEverything(t *testing.T) {
	router := newTestRouter(t)
	twoFarmDataset(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/datasets/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.DatasetDTO](t, rec))
}
