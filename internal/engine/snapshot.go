package engine

import (
	"encoding/json"
	"fmt"
)

// Keys of the tenant configuration map the engine reads.
const (
	KeyHourlyRateTiers = "hourly_rate_tiers"
	KeyBulkWasteTiers  = "bulk_waste_tiers"
	KeyResidueTiers    = "residue_tiers"
	KeyExtrasCatalog   = "extras_catalog"
)

// Fallback constants used when a configuration key is missing or malformed.
const (
	DefaultHourlyRate           = 30.0
	DefaultWastePercent         = 5.0
	DefaultResiduePercent       = 0.0
	DefaultManufacturingMinutes = 120.0
)

// Snapshot is the typed view of the flat tenant configuration map. A nil tier
// list means the corresponding key was absent or unparseable; Resolve then
// yields the fallback constant.
type Snapshot struct {
	HourlyRateTiers []Tier
	WasteTiers      []Tier
	ResidueTiers    []Tier
	ExtrasCatalog   []CatalogExtra
}

// CatalogExtra is a selectable add-on cost item from the tenant catalog.
type CatalogExtra struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Cost float64   `json:"cost"`
	Type ExtraType `json:"type"`
}

// ParseIssue records a configuration key that failed to parse and therefore
// resolves to its fallback during pricing.
type ParseIssue struct {
	Key string
	Err error
}

// ParseSnapshot converts the flat string-keyed configuration map into a typed
// Snapshot. Keys that are missing or malformed are reported as issues and left
// nil in the snapshot; pricing still works off the fallback constants, the
// issues exist so configuration admin surfaces (and tests) can see exactly
// which keys degraded.
func ParseSnapshot(values map[string]string) (Snapshot, []ParseIssue) {
	var snap Snapshot
	var issues []ParseIssue

	tierKeys := []struct {
		key  string
		dest *[]Tier
	}{
		{KeyHourlyRateTiers, &snap.HourlyRateTiers},
		{KeyBulkWasteTiers, &snap.WasteTiers},
		{KeyResidueTiers, &snap.ResidueTiers},
	}
	for _, tk := range tierKeys {
		tiers, err := ParseTiers(values[tk.key])
		if err != nil {
			issues = append(issues, ParseIssue{Key: tk.key, Err: err})
			continue
		}
		*tk.dest = tiers
	}

	if raw := values[KeyExtrasCatalog]; raw == "" {
		issues = append(issues, ParseIssue{Key: KeyExtrasCatalog, Err: fmt.Errorf("empty extras catalog")})
	} else if err := json.Unmarshal([]byte(raw), &snap.ExtrasCatalog); err != nil {
		issues = append(issues, ParseIssue{Key: KeyExtrasCatalog, Err: fmt.Errorf("decode extras catalog: %w", err)})
	}

	return snap, issues
}
