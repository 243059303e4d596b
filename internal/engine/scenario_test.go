package engine

import (
	"errors"
	"testing"
)

func TestSimulate_UnitsAndKgSymmetry(t *testing.T) {
	cfg := testSnapshot()
	p := testProduct() // 50 ml, density 1

	byUnits := Simulate(cfg, p, Scenario{Qty: 1000, Mode: ScenarioUnits, MarginPercent: 30})
	byKg := Simulate(cfg, p, Scenario{Qty: 50, Mode: ScenarioKG, MarginPercent: 30})

	nearlyEqual(t, "units derivedUnits", byUnits.DerivedUnits, 1000)
	nearlyEqual(t, "kg derivedUnits", byKg.DerivedUnits, 1000)
	nearlyEqual(t, "directCost", byUnits.DirectCost, byKg.DirectCost)
	nearlyEqual(t, "salePrice", byUnits.SalePrice, byKg.SalePrice)
	nearlyEqual(t, "bulkCostUnit", byUnits.BulkCostUnit, byKg.BulkCostUnit)
}

func TestSimulate_OwnMarginIndependentOfMain(t *testing.T) {
	cfg := testSnapshot()
	p := testProduct()
	p.MarginPercent = 55

	result := Simulate(cfg, p, Scenario{Qty: 100, Mode: ScenarioKG, MarginPercent: 20})

	nearlyEqual(t, "salePrice", result.SalePrice, result.DirectCost/0.8)
}

func TestSimulate_ExtrasInheritedUnlessOverridden(t *testing.T) {
	cfg := testSnapshot()
	p := testProduct()
	p.Extras = []ExtraItem{{ID: "cert-iso", Cost: 150, Type: ExtraFixed, Quantity: 1}}

	inherited := Simulate(cfg, p, Scenario{Qty: 100, Mode: ScenarioKG, MarginPercent: 30})
	nearlyEqual(t, "inherited extras", inherited.Details.GrandTotalExtras, 150)

	overridden := Simulate(cfg, p, Scenario{
		Qty: 100, Mode: ScenarioKG, MarginPercent: 30,
		ExtrasOverride: []ExtraItem{{ID: "x1", Cost: 10, Type: ExtraFixed, Quantity: 1, IsCustom: true}},
	})
	nearlyEqual(t, "overridden extras", overridden.Details.GrandTotalExtras, 10)

	// An explicit empty override means "no extras", not "inherit".
	cleared := Simulate(cfg, p, Scenario{
		Qty: 100, Mode: ScenarioKG, MarginPercent: 30,
		ExtrasOverride: []ExtraItem{},
	})
	nearlyEqual(t, "cleared extras", cleared.Details.GrandTotalExtras, 0)
}

func TestNewScenario_DefaultsAndKgValidation(t *testing.T) {
	p := testProduct()

	s, err := NewScenario(p, 500, ScenarioUnits)
	if err != nil {
		t.Fatalf("NewScenario returned error: %v", err)
	}
	nearlyEqual(t, "default margin", s.MarginPercent, DefaultScenarioMargin)

	p.DensityGML = 0
	if _, err := NewScenario(p, 50, ScenarioKG); !errors.Is(err, ErrScenarioGeometry) {
		t.Fatalf("expected ErrScenarioGeometry, got %v", err)
	}

	// UNITS mode does not need geometry to be created.
	if _, err := NewScenario(p, 500, ScenarioUnits); err != nil {
		t.Fatalf("units scenario should not require geometry: %v", err)
	}
}

func TestScenarioTable_SortedByDerivedUnitsWithImplicitMain(t *testing.T) {
	cfg := testSnapshot()
	p := testProduct() // main configuration is 2000 units

	rows := ScenarioTable(cfg, p, []Scenario{
		{Qty: 5000, Mode: ScenarioUnits, MarginPercent: 30},
		{Qty: 25, Mode: ScenarioKG, MarginPercent: 30}, // 500 units
	})

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	nearlyEqual(t, "row 0 units", rows[0].Result.DerivedUnits, 500)
	nearlyEqual(t, "row 1 units", rows[1].Result.DerivedUnits, 2000)
	nearlyEqual(t, "row 2 units", rows[2].Result.DerivedUnits, 5000)
	if !rows[1].Main {
		t.Fatalf("expected the 2000-unit row to be the main configuration: %+v", rows)
	}
}
