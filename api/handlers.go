/*
handlers.go - HTTP API handlers for the subsidy simulation engine

PURPOSE:
  Exposes the simulation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Datasets:
    GET    /api/datasets                    List datasets
    POST   /api/datasets                    Upload a holdings table
    GET    /api/datasets/{id}               Dataset header
    GET    /api/datasets/{id}/holdings      Holdings with portfolios
    DELETE /api/datasets/{id}               Remove dataset and its runs

  Runs:
    POST   /api/datasets/{id}/runs          Execute a scenario
    GET    /api/datasets/{id}/runs          List runs for a dataset
    GET    /api/runs/{id}                   Run record
    GET    /api/runs/{id}/comparison        Comparison grid of a run
    DELETE /api/runs/{id}                   Remove a run

  Calibration:
    POST   /api/datasets/{id}/calibrate/convergence    Solve acceleration
    POST   /api/datasets/{id}/calibrate/uniform-value  Solve unit value

  Scenarios:
    GET    /api/scenarios                   List demo datasets
    POST   /api/scenarios/load              Load a demo dataset
    POST   /api/scenarios/reset             Clear the database

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (simulator, calibrations, comparator)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, precondition violations
  - 404: Dataset or run not found
  - 422: Calibration failures, degenerate populations
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo dataset loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/calibrate"
	"github.com/warp/subsidy-engine/entitlement"
	"github.com/warp/subsidy-engine/factory"
	"github.com/warp/subsidy-engine/holding"
	"github.com/warp/subsidy-engine/scenario"
	"github.com/warp/subsidy-engine/stats"
	"github.com/warp/subsidy-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store           *sqlite.Store
	ScenarioFactory *factory.ScenarioFactory

	// Track currently loaded demo dataset
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:           store,
		ScenarioFactory: factory.NewScenarioFactory(),
	}
}

// =============================================================================
// DATASET HANDLERS
// =============================================================================

// ListDatasets returns all dataset headers.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.Store.ListDatasets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list datasets", err)
		return
	}

	dtos := make([]DatasetDTO, len(datasets))
	for i, d := range datasets {
		dtos[i] = toDatasetDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDataset uploads a holdings table, prices every portfolio through
// the allocator and stores the result.
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Dataset name is required", nil)
		return
	}
	if len(req.Holdings) == 0 {
		writeError(w, http.StatusBadRequest, "Dataset needs at least one holding", nil)
		return
	}

	seen := make(map[string]bool, len(req.Holdings))
	inputs := make([]scenario.BaselineInput, len(req.Holdings))
	blocks := make([][]entitlement.Block, len(req.Holdings))
	for i, hj := range req.Holdings {
		if hj.ID == "" {
			writeError(w, http.StatusBadRequest, "Every holding needs an id", nil)
			return
		}
		if seen[hj.ID] {
			writeError(w, http.StatusBadRequest, "Duplicate holding id: "+hj.ID, nil)
			return
		}
		seen[hj.ID] = true
		if hj.Weight < 0 {
			writeError(w, http.StatusBadRequest, "Holding "+hj.ID+" must not have a negative weight", nil)
			return
		}

		pf := entitlement.Portfolio{}
		for _, bj := range hj.Blocks {
			if bj.Count < 0 || bj.UnitValue < 0 {
				writeError(w, http.StatusBadRequest, "Holding "+hj.ID+" has a negative block", nil)
				return
			}
			pf.Blocks = append(pf.Blocks, entitlement.Block{
				Count:     bj.Count,
				UnitValue: decimal.NewFromFloat(bj.UnitValue),
			})
		}
		blocks[i] = pf.Blocks

		inputs[i] = scenario.BaselineInput{
			Holding:   fromHoldingJSON(hj),
			Portfolio: pf,
			AddOn:     decimal.NewFromFloat(hj.AddOn),
		}
	}

	table := scenario.ComputeBaseline(inputs)

	reference := scenario.WeightedBaselineTotal(table)
	if req.ReferenceAggregate != nil {
		reference = decimal.NewFromFloat(*req.ReferenceAggregate)
	}

	record := sqlite.DatasetRecord{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		ReferenceAggregate: reference,
	}
	records := make([]sqlite.HoldingRecord, len(table))
	for i, hd := range table {
		records[i] = sqlite.HoldingRecord{Holding: hd, Blocks: blocks[i]}
	}

	if err := h.Store.SaveDataset(r.Context(), record, records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save dataset", err)
		return
	}

	record.CreatedAt = time.Now().UTC()
	writeJSON(w, http.StatusCreated, toDatasetDTO(record))
}

// GetDataset returns a dataset header.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toDatasetDTO(*d))
}

// GetHoldings returns a dataset's holdings with their portfolios.
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}

	records, err := h.Store.LoadHoldings(r.Context(), d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load holdings", err)
		return
	}

	dtos := make([]HoldingDTO, len(records))
	for i, rec := range records {
		dtos[i] = toHoldingDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteDataset removes a dataset, its holdings and its runs.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteDataset(r.Context(), d.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete dataset", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// RunRequest executes one scenario against a dataset.
type RunRequest struct {
	Name     string               `json:"name,omitempty"`
	Scenario factory.ScenarioJSON `json:"scenario"`
}

// RunScenario simulates a scenario over a dataset, aggregates the
// comparison and persists everything as one run.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.ScenarioFactory.FromJSON(req.Scenario)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scenario", err)
		return
	}
	cfg.ReferenceAggregate = d.ReferenceAggregate

	records, err := h.Store.LoadHoldings(r.Context(), d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load holdings", err)
		return
	}
	table := make([]holding.Holding, len(records))
	for i, rec := range records {
		table[i] = rec.Holding
	}

	result, err := scenario.Simulate(cfg, table)
	if err != nil {
		writeError(w, statusFor(err), "Simulation failed", err)
		return
	}

	opts := stats.Options{
		ExcludeUndefinedArea: cfg.UndefinedAreaOrDefault() == scenario.UndefinedAreaExcluded,
	}
	comparison := stats.Compare(result.Holdings, stats.StandardDimensions(), opts)

	scenarioDoc, err := json.Marshal(req.Scenario)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize scenario", err)
		return
	}

	run := sqlite.RunRecord{
		ID:             uuid.NewString(),
		DatasetID:      d.ID,
		Name:           req.Name,
		ScenarioJSON:   string(scenarioDoc),
		Rate:           result.Rate,
		Calibrated:     result.Calibrated,
		TotalBaseline:  result.TotalBaseline,
		TotalSimulated: result.TotalSimulated,
		TotalArea:      result.TotalArea,
	}
	if err := h.Store.SaveRun(r.Context(), run, result.Holdings, comparison); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save run", err)
		return
	}

	run.CreatedAt = time.Now().UTC()
	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// ListRuns returns all runs for a dataset, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}

	runs, err := h.Store.ListRuns(r.Context(), d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run record.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// GetComparison returns a run's comparison grid.
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}

	rows, err := h.Store.LoadComparison(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load comparison", err)
		return
	}

	dto := ComparisonDTO{Header: stats.Header()}
	for _, row := range rows {
		dto.Rows = append(dto.Rows, row.Record())
	}
	writeJSON(w, http.StatusOK, dto)
}

// DeleteRun removes a run.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteRun(r.Context(), run.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete run", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// CALIBRATION HANDLERS
// =============================================================================

// CalibrateConvergence solves for the upward acceleration coefficient of
// the unit-value convergence rule over a dataset's portfolios.
func (h *Handler) CalibrateConvergence(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}

	var req ConvergenceCalibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	portfolios, weights, err := h.portfolios(r, d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load holdings", err)
		return
	}

	params := entitlement.ConvergenceParams{
		ValueCeiling:        decimal.NewFromFloat(req.ValueCeiling),
		TargetValue:         decimal.NewFromFloat(req.TargetValue),
		FloorCoefficient:    decimal.NewFromFloat(req.FloorCoefficient),
		DownwardRate:        decimal.NewFromFloat(req.DownwardRate),
		MaxDownwardFraction: decimal.NewFromFloat(req.MaxDownwardFraction),
	}
	reference := d.ReferenceAggregate
	if req.Reference != nil {
		reference = decimal.NewFromFloat(*req.Reference)
	}

	value, err := calibrate.Solve(
		entitlement.ConvergenceCoefficientProblem(portfolios, weights, params, reference))
	if err != nil {
		writeError(w, statusFor(err), "Calibration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CalibrationDTO{Value: f64(value)})
}

// CalibrateUniformValue solves for the single unit value reproducing the
// reference aggregate over a dataset's portfolios.
func (h *Handler) CalibrateUniformValue(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}

	var req UniformValueCalibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	portfolios, weights, err := h.portfolios(r, d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load holdings", err)
		return
	}

	reference := d.ReferenceAggregate
	if req.Reference != nil {
		reference = decimal.NewFromFloat(*req.Reference)
	}

	value, err := calibrate.Solve(
		entitlement.UniformValueProblem(portfolios, weights, reference))
	if err != nil {
		writeError(w, statusFor(err), "Calibration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CalibrationDTO{Value: f64(value)})
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data. Development and demos only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) dataset(w http.ResponseWriter, r *http.Request) (*sqlite.DatasetRecord, bool) {
	id := chi.URLParam(r, "id")
	d, err := h.Store.GetDataset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get dataset", err)
		return nil, false
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Dataset not found", nil)
		return nil, false
	}
	return d, true
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*sqlite.RunRecord, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return nil, false
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return nil, false
	}
	return run, true
}

func (h *Handler) portfolios(r *http.Request, datasetID string) ([]entitlement.Portfolio, []decimal.Decimal, error) {
	records, err := h.Store.LoadHoldings(r.Context(), datasetID)
	if err != nil {
		return nil, nil, err
	}
	portfolios := make([]entitlement.Portfolio, len(records))
	weights := make([]decimal.Decimal, len(records))
	for i, rec := range records {
		portfolios[i] = entitlement.Portfolio{
			Blocks:       rec.Blocks,
			EligibleArea: rec.Holding.EligibleArea,
		}
		weights[i] = rec.Holding.Weight
	}
	return portfolios, weights, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scenario.ErrPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, scenario.ErrNoEligibleArea),
		errors.Is(err, calibrate.ErrNoSignChange),
		errors.Is(err, calibrate.ErrMaxIterations):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
