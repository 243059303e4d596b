package engine

import (
	"errors"
	"sort"
)

// ScenarioMode selects whether a scenario quantity is a piece count or a
// batch mass.
type ScenarioMode string

const (
	ScenarioUnits ScenarioMode = "UNITS"
	ScenarioKG    ScenarioMode = "KG"
)

// DefaultScenarioMargin is applied to newly created scenarios.
const DefaultScenarioMargin = 30.0

// ErrScenarioGeometry is returned when a KG-mode scenario is created on a
// product without a positive unit volume and density: such a scenario could
// never be reconciled to a unit count.
var ErrScenarioGeometry = errors.New("kg scenario requires a positive unit volume and density")

// Scenario is an alternate quantity point for the same product configuration,
// priced independently of the main offer.
type Scenario struct {
	Qty           float64      `json:"qty"`
	Mode          ScenarioMode `json:"mode"`
	MarginPercent float64      `json:"marginPercent"`
	// ExtrasOverride replaces the product's extras selection when non-nil;
	// nil means the scenario inherits the main selection.
	ExtrasOverride []ExtraItem `json:"extrasOverride,omitempty"`
}

// NewScenario validates geometry for the requested mode and returns a scenario
// with the default margin applied.
func NewScenario(p Product, qty float64, mode ScenarioMode) (Scenario, error) {
	s := Scenario{Qty: qty, Mode: mode, MarginPercent: DefaultScenarioMargin}
	if err := ValidateScenario(p, s); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// ValidateScenario is the single fail-fast check of the engine: every other
// degenerate input degrades toward zero, but a KG scenario without unit
// geometry is rejected up front.
func ValidateScenario(p Product, s Scenario) error {
	if s.Mode == ScenarioKG && (p.UnitVolumeML <= 0 || p.DensityGML <= 0) {
		return ErrScenarioGeometry
	}
	return nil
}

// Simulate re-runs the full costing pipeline at the scenario quantity. The
// substituted product uses the scenario's margin and, when present, its extras
// override; everything else is inherited from the main configuration.
func Simulate(cfg Snapshot, p Product, s Scenario) Result {
	scaled := p
	switch s.Mode {
	case ScenarioKG:
		scaled.BatchKg = s.Qty
	default:
		scaled.BatchKg = s.Qty * p.UnitVolumeML * p.DensityGML / 1000
	}
	if s.ExtrasOverride != nil {
		scaled.Extras = s.ExtrasOverride
	}
	scaled.MarginPercent = s.MarginPercent
	return Calculate(cfg, scaled)
}

// ScenarioRow is one line of the scenario comparison table.
type ScenarioRow struct {
	Main   bool         `json:"main"`
	Qty    float64      `json:"qty,omitempty"`
	Mode   ScenarioMode `json:"mode,omitempty"`
	Result Result       `json:"result"`
}

// ScenarioTable prices the main configuration (as an implicit scenario) plus
// every explicit scenario and returns the rows sorted ascending by derived
// units.
func ScenarioTable(cfg Snapshot, p Product, scenarios []Scenario) []ScenarioRow {
	rows := make([]ScenarioRow, 0, len(scenarios)+1)
	rows = append(rows, ScenarioRow{Main: true, Result: Calculate(cfg, p)})
	for _, s := range scenarios {
		rows = append(rows, ScenarioRow{Qty: s.Qty, Mode: s.Mode, Result: Simulate(cfg, p, s)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Result.DerivedUnits < rows[j].Result.DerivedUnits
	})
	return rows
}
