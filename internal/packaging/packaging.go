// Package packaging resolves a product's packaging selection against the
// tenant pricing tables and yields the two per-unit figures the costing
// engine consumes: packaging material cost and filling labor cost.
package packaging

import (
	"database/sql"
	"fmt"
)

// Selection is the packaging half of a product configuration: a container
// choice plus the filling operations the line runs for it.
type Selection struct {
	Type       string   `json:"type"`
	Subtype    string   `json:"subtype"`
	CapacityML float64  `json:"capacityMl"`
	Components []string `json:"components"`
	Operations []string `json:"operations"`
}

// UnitCosts is the engine-facing contract: both values are non-negative and
// finite, zero when the selection is empty or prices against no known rate.
type UnitCosts struct {
	PackingCostUnit float64 `json:"packingCostUnit"`
	ProcessCostUnit float64 `json:"processCostUnit"`
}

type Pricer struct {
	db *sql.DB
}

func NewPricer(db *sql.DB) *Pricer {
	return &Pricer{db: db}
}

// UnitCosts prices a selection. Components are matched by packaging type,
// subtype, component name and a capacity band; operations by name. Unknown
// rows price at zero so an in-progress selection still renders a number.
func (p *Pricer) UnitCosts(sel Selection) (UnitCosts, error) {
	var costs UnitCosts

	for _, component := range sel.Components {
		var unitCost float64
		err := p.db.QueryRow(`
			SELECT unit_cost
			FROM packaging_rates
			WHERE packaging_type = ?
			  AND subtype = ?
			  AND component = ?
			  AND capacity_min_ml <= ?
			  AND capacity_max_ml >= ?
			  AND active
			ORDER BY id
			LIMIT 1
		`, sel.Type, sel.Subtype, component, sel.CapacityML, sel.CapacityML).Scan(&unitCost)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return UnitCosts{}, fmt.Errorf("query packaging rate for %q: %w", component, err)
		}
		costs.PackingCostUnit += unitCost
	}

	for _, operation := range sel.Operations {
		var unitCost float64
		err := p.db.QueryRow(`
			SELECT unit_cost
			FROM filling_operations
			WHERE name = ? AND active
			ORDER BY id
			LIMIT 1
		`, operation).Scan(&unitCost)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return UnitCosts{}, fmt.Errorf("query filling operation %q: %w", operation, err)
		}
		costs.ProcessCostUnit += unitCost
	}

	return costs, nil
}
