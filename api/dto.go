/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON-facing types, kept separate from the domain types. Amounts cross
  the wire as float64 for frontend convenience; the engine itself never
  computes on them. Nullable quantities are pointers: an absent
  eligible_area is an unknown area, not zero hectares.

CONVENTIONS:
  - snake_case JSON field names
  - Dates as RFC3339 strings
  - Undefined statistics render as the string "NA" inside comparison
    grids, never as 0

SEE ALSO:
  - handlers.go: handlers producing/consuming these types
  - factory/scenario.go: the scenario document embedded in run requests
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/holding"
	"github.com/warp/subsidy-engine/store/sqlite"
)

const timeLayout = time.RFC3339

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DATASET DTOs
// =============================================================================

// DatasetDTO describes a stored holdings table.
type DatasetDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	ReferenceAggregate float64 `json:"reference_aggregate"`
	CreatedAt          string  `json:"created_at"`
}

// CreateDatasetRequest uploads a holdings table. When the reference
// aggregate is omitted it defaults to the weighted baseline total.
type CreateDatasetRequest struct {
	Name               string        `json:"name"`
	ReferenceAggregate *float64      `json:"reference_aggregate,omitempty"`
	Holdings           []HoldingJSON `json:"holdings"`
}

// HoldingJSON is one uploaded holding with its entitlement portfolio.
// Weight must not be negative; a zero weight keeps the holding in the
// table without contributing to aggregates.
type HoldingJSON struct {
	ID                string      `json:"id"`
	Weight            float64     `json:"weight"`
	EligibleArea      *float64    `json:"eligible_area,omitempty"`
	Region            string      `json:"region,omitempty"`
	SizeClass         string      `json:"size_class,omitempty"`
	TypeClass         string      `json:"type_class,omitempty"`
	AreaBand          string      `json:"area_band,omitempty"`
	FemaleOperators   int64       `json:"female_operators,omitempty"`
	YoungOperators    int64       `json:"young_operators,omitempty"`
	DisadvantagedZone bool        `json:"disadvantaged_zone,omitempty"`
	AddOn             float64     `json:"add_on,omitempty"`
	Blocks            []BlockJSON `json:"blocks,omitempty"`
}

// BlockJSON is one entitlement block.
type BlockJSON struct {
	Count     int64   `json:"count"`
	UnitValue float64 `json:"unit_value"`
}

// HoldingDTO is one stored holding with its amount columns.
type HoldingDTO struct {
	ID                string      `json:"id"`
	Weight            float64     `json:"weight"`
	EligibleArea      *float64    `json:"eligible_area"`
	BaselineAmount    float64     `json:"baseline_amount"`
	Region            string      `json:"region,omitempty"`
	SizeClass         string      `json:"size_class,omitempty"`
	TypeClass         string      `json:"type_class,omitempty"`
	AreaBand          string      `json:"area_band,omitempty"`
	FemaleOperators   int64       `json:"female_operators,omitempty"`
	YoungOperators    int64       `json:"young_operators,omitempty"`
	DisadvantagedZone bool        `json:"disadvantaged_zone,omitempty"`
	Blocks            []BlockJSON `json:"blocks,omitempty"`
}

// =============================================================================
// RUN DTOs
// =============================================================================

// RunDTO describes an executed scenario.
type RunDTO struct {
	ID             string  `json:"id"`
	DatasetID      string  `json:"dataset_id"`
	Name           string  `json:"name"`
	Rate           float64 `json:"rate"`
	Calibrated     bool    `json:"calibrated"`
	TotalBaseline  float64 `json:"total_baseline"`
	TotalSimulated float64 `json:"total_simulated"`
	TotalArea      float64 `json:"total_area"`
	CreatedAt      string  `json:"created_at"`
}

// ComparisonDTO is the rectangular comparison grid of a run.
type ComparisonDTO struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// =============================================================================
// CALIBRATION DTOs
// =============================================================================

// ConvergenceCalibrationRequest solves for the upward acceleration
// coefficient of the unit-value convergence rule.
type ConvergenceCalibrationRequest struct {
	ValueCeiling        float64  `json:"value_ceiling"`
	TargetValue         float64  `json:"target_value"`
	FloorCoefficient    float64  `json:"floor_coefficient"`
	DownwardRate        float64  `json:"downward_rate"`
	MaxDownwardFraction float64  `json:"max_downward_fraction"`
	Reference           *float64 `json:"reference,omitempty"`
}

// UniformValueCalibrationRequest solves for the single unit value that
// reproduces the reference aggregate.
type UniformValueCalibrationRequest struct {
	Reference *float64 `json:"reference,omitempty"`
}

// CalibrationDTO carries a solved parameter.
type CalibrationDTO struct {
	Value float64 `json:"value"`
}

// ScenarioDTO describes a loadable demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDatasetDTO(d sqlite.DatasetRecord) DatasetDTO {
	return DatasetDTO{
		ID:                 d.ID,
		Name:               d.Name,
		ReferenceAggregate: f64(d.ReferenceAggregate),
		CreatedAt:          d.CreatedAt.Format(timeLayout),
	}
}

func toRunDTO(r sqlite.RunRecord) RunDTO {
	return RunDTO{
		ID:             r.ID,
		DatasetID:      r.DatasetID,
		Name:           r.Name,
		Rate:           f64(r.Rate),
		Calibrated:     r.Calibrated,
		TotalBaseline:  f64(r.TotalBaseline),
		TotalSimulated: f64(r.TotalSimulated),
		TotalArea:      f64(r.TotalArea),
		CreatedAt:      r.CreatedAt.Format(timeLayout),
	}
}

func toHoldingDTO(rec sqlite.HoldingRecord) HoldingDTO {
	h := rec.Holding
	dto := HoldingDTO{
		ID:                string(h.ID),
		Weight:            f64(h.Weight),
		BaselineAmount:    f64(h.BaselineAmount),
		Region:            h.Region.Label,
		SizeClass:         h.SizeClass.Label,
		TypeClass:         h.TypeClass.Label,
		AreaBand:          h.AreaBand.Label,
		FemaleOperators:   h.FemaleOperators,
		YoungOperators:    h.YoungOperators,
		DisadvantagedZone: h.DisadvantagedZone,
	}
	if h.EligibleArea.Valid {
		v := f64(h.EligibleArea.Decimal)
		dto.EligibleArea = &v
	}
	for _, b := range rec.Blocks {
		dto.Blocks = append(dto.Blocks, BlockJSON{Count: b.Count, UnitValue: f64(b.UnitValue)})
	}
	return dto
}

func fromHoldingJSON(hj HoldingJSON) holding.Holding {
	h := holding.Holding{
		ID:                holding.HoldingID(hj.ID),
		Weight:            decimal.NewFromFloat(hj.Weight),
		Region:            holding.NewCategory(hj.Region),
		SizeClass:         holding.NewCategory(hj.SizeClass),
		TypeClass:         holding.NewCategory(hj.TypeClass),
		AreaBand:          holding.NewCategory(hj.AreaBand),
		FemaleOperators:   hj.FemaleOperators,
		YoungOperators:    hj.YoungOperators,
		DisadvantagedZone: hj.DisadvantagedZone,
	}
	if hj.EligibleArea != nil {
		h.EligibleArea = holding.Area(*hj.EligibleArea)
	}
	return h
}

func f64(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
