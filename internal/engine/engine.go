// Package engine implements the offer costing and pricing calculations for a
// cosmetics contract manufacturer: bulk material cost with waste and
// minimum-purchase surplus, time-based manufacturing cost, packaging and
// filling unit costs, extras, a residue fee, and margin-driven sale pricing.
//
// Every entry point is a pure function of a tenant configuration snapshot and
// a product configuration. The engine performs no I/O, keeps no state, and is
// designed to always return numbers: malformed configuration and degenerate
// geometry degrade toward zero instead of propagating errors, NaN or Inf.
package engine

import "math"

// BulkCostMode selects how the bulk material cost per kg is sourced.
type BulkCostMode string

const (
	BulkCostFormula BulkCostMode = "formula"
	BulkCostManual  BulkCostMode = "manual"
)

// ExtraType distinguishes per-batch extras from per-unit extras. The
// aggregation is identical for both; the type drives defaults on the input
// surface only.
type ExtraType string

const (
	ExtraFixed    ExtraType = "FIXED"
	ExtraVariable ExtraType = "VARIABLE"
)

// Ingredient is one row of the product formula.
type Ingredient struct {
	Name           string  `json:"name"`
	Percentage     float64 `json:"percentage"` // share of the formula, 0-100
	CostPerKg      float64 `json:"costPerKg"`
	ClientSupplied bool    `json:"clientSupplied"`
	MinPurchaseKg  float64 `json:"minPurchaseKg"`
	ImputeSurplus  bool    `json:"imputeSurplus"`
}

// ExtraItem is a selected add-on cost line, either from the tenant catalog or
// entered ad hoc (IsCustom).
type ExtraItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Cost     float64   `json:"cost"`
	Type     ExtraType `json:"type"`
	Quantity float64   `json:"quantity"`
	IsCustom bool      `json:"isCustom,omitempty"`
}

// Product is the per-line product configuration the engine prices. The
// packaging unit costs are supplied by the packaging pricer; the engine treats
// them as opaque non-negative inputs.
type Product struct {
	BatchKg              float64      `json:"batchKg"`
	UnitVolumeML         float64      `json:"unitVolumeMl"`
	DensityGML           float64      `json:"density"` // g/ml
	ManufacturingMinutes float64      `json:"manufacturingMinutes"`
	BulkCostMode         BulkCostMode `json:"bulkCostMode"`
	ManualBulkCost       float64      `json:"manualBulkCost"` // €/kg, manual mode only
	Ingredients          []Ingredient `json:"ingredients"`
	PackingCostUnit      float64      `json:"packingCostUnit"`
	ProcessCostUnit      float64      `json:"processCostUnit"`
	Extras               []ExtraItem  `json:"extras"`
	MarginPercent        float64      `json:"marginPercent"`
}

// Details carries the intermediate values of a calculation for reporting.
type Details struct {
	TotalMaterialCost     float64 `json:"totalMaterialCost"`
	TotalImputedSurplus   float64 `json:"totalImputedSurplus"`
	MfgCost               float64 `json:"mfgCost"`
	PackagingMaterialCost float64 `json:"packagingMaterialCost"`
	PackagingFillingCost  float64 `json:"packagingFillingCost"`
	BulkMaterialUnit      float64 `json:"bulkMaterialUnit"`
	BulkMfgUnit           float64 `json:"bulkMfgUnit"`
	MaterialCostPerKg     float64 `json:"materialCostPerKg"`
	WastePercent          float64 `json:"wastePercent"`
	HourlyRate            float64 `json:"hourlyRate"`
	ResiduePercent        float64 `json:"residuePercent"`
	GrandTotalExtras      float64 `json:"grandTotalExtras"`
}

// Result is the full costing output for one product configuration. All
// top-level cost fields are per unit.
type Result struct {
	BulkCostUnit    float64 `json:"bulkCostUnit"`
	PackingCostUnit float64 `json:"packingCostUnit"`
	ProcessCostUnit float64 `json:"processCostUnit"`
	ExtrasCostUnit  float64 `json:"extrasCostUnit"`
	ResidueCostUnit float64 `json:"residueCostUnit"`
	DirectCost      float64 `json:"directCost"`
	SalePrice       float64 `json:"salePrice"`
	Profit          float64 `json:"profit"`
	DerivedUnits    float64 `json:"derivedUnits"`
	Details         Details `json:"details"`
}

// Calculate prices one product configuration against a tenant configuration
// snapshot.
func Calculate(cfg Snapshot, p Product) Result {
	units := DerivedUnits(p.BatchKg, p.UnitVolumeML, p.DensityGML)

	waste := Resolve(cfg.WasteTiers, p.BatchKg, DefaultWastePercent)

	materialPerKg := 0.0
	switch p.BulkCostMode {
	case BulkCostManual:
		materialPerKg = p.ManualBulkCost
	default:
		for _, ing := range p.Ingredients {
			if ing.ClientSupplied {
				// The client ships this ingredient; it occupies formula
				// percentage but costs the manufacturer nothing.
				continue
			}
			materialPerKg += ing.CostPerKg * ing.Percentage / 100
		}
	}

	totalMaterial := materialPerKg * p.BatchKg * (1 + waste/100)

	// Supplier minimum order quantities can force buying more raw material
	// than the batch consumes. Flagged rows charge that surplus to the offer;
	// unflagged surplus is informational only.
	surplus := 0.0
	for _, ing := range p.Ingredients {
		if !ing.ImputeSurplus {
			continue
		}
		requiredKg := p.BatchKg * ing.Percentage / 100
		if surplusKg := ing.MinPurchaseKg - requiredKg; surplusKg > 0 {
			surplus += surplusKg * ing.CostPerKg
		}
	}

	// Pricier formulas are assumed to demand higher-skill handling, so the
	// hourly rate scales with material cost per kg, not batch size.
	rate := Resolve(cfg.HourlyRateTiers, materialPerKg, DefaultHourlyRate)
	minutes := p.ManufacturingMinutes
	if !(minutes > 0) {
		minutes = DefaultManufacturingMinutes
	}
	mfg := minutes / 60 * rate

	grandExtras := 0.0
	for _, e := range p.Extras {
		grandExtras += e.Cost * e.Quantity
	}

	bulkUnit := safeDiv(totalMaterial+mfg+surplus, units)
	extrasUnit := safeDiv(grandExtras, units)

	packingUnit := p.PackingCostUnit
	processUnit := p.ProcessCostUnit
	if units <= 0 {
		packingUnit = 0
		processUnit = 0
	}

	residuePct := Resolve(cfg.ResidueTiers, p.BatchKg, DefaultResiduePercent)
	base := bulkUnit + packingUnit + processUnit + extrasUnit
	residueUnit := base * residuePct / 100

	direct := base + residueUnit
	sale := SalePrice(direct, p.MarginPercent)

	return Result{
		BulkCostUnit:    bulkUnit,
		PackingCostUnit: packingUnit,
		ProcessCostUnit: processUnit,
		ExtrasCostUnit:  extrasUnit,
		ResidueCostUnit: residueUnit,
		DirectCost:      direct,
		SalePrice:       sale,
		Profit:          sale - direct,
		DerivedUnits:    units,
		Details: Details{
			TotalMaterialCost:     totalMaterial,
			TotalImputedSurplus:   surplus,
			MfgCost:               mfg,
			PackagingMaterialCost: packingUnit * units,
			PackagingFillingCost:  processUnit * units,
			BulkMaterialUnit:      safeDiv(totalMaterial+surplus, units),
			BulkMfgUnit:           safeDiv(mfg, units),
			MaterialCostPerKg:     materialPerKg,
			WastePercent:          waste,
			HourlyRate:            rate,
			ResiduePercent:        residuePct,
			GrandTotalExtras:      grandExtras,
		},
	}
}

// DerivedUnits converts a batch mass to a piece count via fill volume and
// density. Degenerate geometry (zero or negative volume or density) yields 0.
func DerivedUnits(batchKg, unitVolumeML, densityGML float64) float64 {
	return safeDiv(batchKg*1000, unitVolumeML*densityGML)
}

// SalePrice inverts a target margin into a price. Margins at or above 100%
// have no finite positive price and yield 0; callers flag that state to the
// user instead of receiving Inf or a negative figure.
func SalePrice(directCost, marginPercent float64) float64 {
	if marginPercent >= 100 {
		return 0
	}
	return directCost / (1 - marginPercent/100)
}

// safeDiv divides n by d and returns 0 for non-positive denominators or
// non-finite results, so per-unit figures degrade to zero instead of NaN/Inf.
func safeDiv(n, d float64) float64 {
	if !(d > 0) {
		return 0
	}
	v := n / d
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
