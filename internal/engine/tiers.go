package engine

import (
	"encoding/json"
	"fmt"
)

// Tier is one band of a scaling table: a tenant-configured step function over
// a continuous input such as material cost per kg or batch size.
type Tier struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Value float64 `json:"value"`
}

// ParseTiers decodes a JSON-encoded tier list. Pricing call sites treat an
// error as "fall back to the hardcoded constant", so a malformed configuration
// can degrade a rate but never stop the pipeline.
func ParseTiers(raw string) ([]Tier, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty tier list")
	}
	var tiers []Tier
	if err := json.Unmarshal([]byte(raw), &tiers); err != nil {
		return nil, fmt.Errorf("decode tier list: %w", err)
	}
	return tiers, nil
}

// Resolve selects the first tier whose [Min, Max] band contains input and
// returns its value, or fallback when no tier matches or the list is absent.
// Tiers are evaluated in list order; the tenant is responsible for keeping
// bands disjoint.
func Resolve(tiers []Tier, input, fallback float64) float64 {
	for _, t := range tiers {
		if input >= t.Min && input <= t.Max {
			return t.Value
		}
	}
	return fallback
}
