/*
Package factory provides JSON to Go scenario conversion.

PURPOSE:
  Converts JSON scenario definitions into scenario.Config values. This
  enables scenario configuration without code changes - analysts can
  define what-if runs in JSON, and the factory creates the proper Go
  structs with the mode variant resolved.

WHY JSON?
  - Non-developers can define scenarios
  - Easy integration with the HTTP API
  - Version control for scenario definitions
  - Database storage of run configurations

JSON SCHEMA:
  {
    "mode": "budget_constant",
    "total_budget": 5000000,
    "recalibrate": true,
    "degressivity": {
      "enabled": true,
      "tranches": [
        {"floor": 0, "rate": 1},
        {"floor": 20000, "rate": 0.75}
      ],
      "cap": 100000
    },
    "undefined_area": "count_as_zero"
  }

KEY FEATURES:
  - Resolves the mode string into the matching Mode variant
  - Sets sensible defaults (statutory schedule, count-as-zero policy)
  - Round-trips Config back to JSON for persistence

USAGE:
  f := factory.NewScenarioFactory()

  cfg, err := f.ParseScenario(jsonString)

  // Use in system
  result, err := scenario.Simulate(cfg, table)

SEE ALSO:
  - scenario/config.go: Config and mode variant definitions
  - api/handlers.go: accepts ScenarioJSON over HTTP
  - store/sqlite: persists the JSON document alongside each run
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/degressivity"
	"github.com/warp/subsidy-engine/scenario"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScenarioJSON is the JSON representation of a scenario configuration.
// Run naming is a property of the run request, not the scenario document.
type ScenarioJSON struct {
	Mode string `json:"mode"` // budget_constant, flexible

	// Budget-constant options.
	Rate        *float64 `json:"rate,omitempty"`
	TotalBudget *float64 `json:"total_budget,omitempty"`
	Recalibrate bool     `json:"recalibrate,omitempty"`

	// Flexible options.
	TopUps *TopUpsJSON `json:"top_ups,omitempty"`

	Degressivity  *DegressivityJSON `json:"degressivity,omitempty"`
	UndefinedArea string            `json:"undefined_area,omitempty"` // count_as_zero, exclude

	Tolerance     *float64 `json:"tolerance,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

// TopUpsJSON represents the flexible-mode flat supplements.
type TopUpsJSON struct {
	PerFemaleOperator   float64  `json:"per_female_operator,omitempty"`
	SmallHolding        float64  `json:"small_holding,omitempty"`
	SmallHoldingMaxArea float64  `json:"small_holding_max_area,omitempty"`
	DisadvantagedZone   float64  `json:"disadvantaged_zone,omitempty"`
	PerYoungOperator    float64  `json:"per_young_operator,omitempty"`
	TypeClass           float64  `json:"type_class,omitempty"`
	TypeClassLabels     []string `json:"type_class_labels,omitempty"`
}

// DegressivityJSON represents the reduction schedule. Enabled=false maps
// to the identity schedule; omitted tranches default to the statutory
// ones.
type DegressivityJSON struct {
	Enabled  bool          `json:"enabled"`
	Tranches []TrancheJSON `json:"tranches,omitempty"`
	Cap      *float64      `json:"cap,omitempty"`
}

// TrancheJSON is one reduction tranche.
type TrancheJSON struct {
	Floor float64 `json:"floor"`
	Rate  float64 `json:"rate"`
}

// =============================================================================
// SCENARIO FACTORY
// =============================================================================

// ScenarioFactory converts JSON scenarios to Go structs.
type ScenarioFactory struct{}

// NewScenarioFactory creates a new scenario factory.
func NewScenarioFactory() *ScenarioFactory {
	return &ScenarioFactory{}
}

// ParseScenario parses a JSON string into a scenario.Config. The
// reference aggregate is a property of the dataset, not the scenario,
// so callers fill Config.ReferenceAggregate afterwards.
func (f *ScenarioFactory) ParseScenario(jsonStr string) (scenario.Config, error) {
	var sj ScenarioJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return scenario.Config{}, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts ScenarioJSON to scenario.Config.
func (f *ScenarioFactory) FromJSON(sj ScenarioJSON) (scenario.Config, error) {
	mode, err := parseMode(sj)
	if err != nil {
		return scenario.Config{}, err
	}

	cfg := scenario.Config{
		Mode:          mode,
		Schedule:      parseSchedule(sj.Degressivity),
		UndefinedArea: scenario.UndefinedAreaPolicy(sj.UndefinedArea),
		MaxIterations: sj.MaxIterations,
	}
	if sj.Tolerance != nil {
		cfg.Tolerance = decimal.NewFromFloat(*sj.Tolerance)
	}
	return cfg, nil
}

// ToJSON converts a scenario.Config back to ScenarioJSON.
func (f *ScenarioFactory) ToJSON(cfg scenario.Config) ScenarioJSON {
	sj := ScenarioJSON{
		UndefinedArea: string(cfg.UndefinedArea),
		MaxIterations: cfg.MaxIterations,
		Degressivity:  scheduleJSON(cfg.Schedule),
	}
	if cfg.Tolerance.Sign() > 0 {
		v, _ := cfg.Tolerance.Float64()
		sj.Tolerance = &v
	}

	switch m := cfg.Mode.(type) {
	case scenario.BudgetConstant:
		sj.Mode = "budget_constant"
		if m.Rate.Valid {
			v, _ := m.Rate.Decimal.Float64()
			sj.Rate = &v
		}
		if m.TotalBudget.Valid {
			v, _ := m.TotalBudget.Decimal.Float64()
			sj.TotalBudget = &v
		}
		sj.Recalibrate = m.Recalibrate
	case scenario.Flexible:
		sj.Mode = "flexible"
		v, _ := m.Rate.Float64()
		sj.Rate = &v
		sj.TopUps = topUpsJSON(m.TopUps)
	}
	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseMode(sj ScenarioJSON) (scenario.Mode, error) {
	switch sj.Mode {
	case "budget_constant", "":
		m := scenario.BudgetConstant{Recalibrate: sj.Recalibrate}
		if sj.Rate != nil {
			m.Rate = nullDecimal(*sj.Rate)
		}
		if sj.TotalBudget != nil {
			m.TotalBudget = nullDecimal(*sj.TotalBudget)
		}
		if sj.TopUps != nil {
			return nil, fmt.Errorf("top_ups require flexible mode")
		}
		return m, nil

	case "flexible":
		m := scenario.Flexible{}
		if sj.Rate != nil {
			m.Rate = decimal.NewFromFloat(*sj.Rate)
		}
		if sj.TotalBudget != nil {
			return nil, fmt.Errorf("total_budget requires budget_constant mode")
		}
		if sj.Recalibrate {
			return nil, fmt.Errorf("recalibrate requires budget_constant mode")
		}
		if sj.TopUps != nil {
			m.TopUps = parseTopUps(*sj.TopUps)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown scenario mode: %s", sj.Mode)
	}
}

func parseTopUps(tj TopUpsJSON) scenario.TopUps {
	return scenario.TopUps{
		PerFemaleOperator:   decimal.NewFromFloat(tj.PerFemaleOperator),
		SmallHolding:        decimal.NewFromFloat(tj.SmallHolding),
		SmallHoldingMaxArea: decimal.NewFromFloat(tj.SmallHoldingMaxArea),
		DisadvantagedZone:   decimal.NewFromFloat(tj.DisadvantagedZone),
		PerYoungOperator:    decimal.NewFromFloat(tj.PerYoungOperator),
		TypeClass:           decimal.NewFromFloat(tj.TypeClass),
		TypeClassLabels:     tj.TypeClassLabels,
	}
}

func parseSchedule(dj *DegressivityJSON) degressivity.Schedule {
	if dj == nil {
		return degressivity.Default()
	}
	if !dj.Enabled {
		return degressivity.Identity()
	}
	if len(dj.Tranches) == 0 {
		return degressivity.Default()
	}

	s := degressivity.Schedule{}
	for _, tj := range dj.Tranches {
		s.Tranches = append(s.Tranches, degressivity.Tranche{
			Floor: decimal.NewFromFloat(tj.Floor),
			Rate:  decimal.NewFromFloat(tj.Rate),
		})
	}
	if dj.Cap != nil {
		s.Cap = nullDecimal(*dj.Cap)
	}
	return s
}

func scheduleJSON(s degressivity.Schedule) *DegressivityJSON {
	dj := &DegressivityJSON{Enabled: true}
	for _, t := range s.Tranches {
		floor, _ := t.Floor.Float64()
		rate, _ := t.Rate.Float64()
		dj.Tranches = append(dj.Tranches, TrancheJSON{Floor: floor, Rate: rate})
	}
	if s.Cap.Valid {
		v, _ := s.Cap.Decimal.Float64()
		dj.Cap = &v
	}
	return dj
}

func topUpsJSON(t scenario.TopUps) *TopUpsJSON {
	f := func(d decimal.Decimal) float64 {
		v, _ := d.Float64()
		return v
	}
	return &TopUpsJSON{
		PerFemaleOperator:   f(t.PerFemaleOperator),
		SmallHolding:        f(t.SmallHolding),
		SmallHoldingMaxArea: f(t.SmallHoldingMaxArea),
		DisadvantagedZone:   f(t.DisadvantagedZone),
		PerYoungOperator:    f(t.PerYoungOperator),
		TypeClass:           f(t.TypeClass),
		TypeClassLabels:     t.TypeClassLabels,
	}
}

func nullDecimal(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}
