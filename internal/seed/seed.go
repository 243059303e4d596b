// Package seed installs the baseline data a fresh installation needs: the
// admin user, the default tenant configuration (scaling tables and extras
// catalog) and the default packaging price list. Defaults live in an embedded
// YAML file so ops can review them without reading Go.
package seed

import (
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nacrelab/costing/internal/engine"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type packagingRate struct {
	Type          string  `yaml:"type"`
	Subtype       string  `yaml:"subtype"`
	Component     string  `yaml:"component"`
	CapacityMinML float64 `yaml:"capacity_min_ml"`
	CapacityMaxML float64 `yaml:"capacity_max_ml"`
	UnitCost      float64 `yaml:"unit_cost"`
}

type fillingOperation struct {
	Name     string  `yaml:"name"`
	UnitCost float64 `yaml:"unit_cost"`
}

type defaults struct {
	HourlyRateTiers   []engine.Tier         `yaml:"hourly_rate_tiers"`
	BulkWasteTiers    []engine.Tier         `yaml:"bulk_waste_tiers"`
	ResidueTiers      []engine.Tier         `yaml:"residue_tiers"`
	ExtrasCatalog     []engine.CatalogExtra `yaml:"extras_catalog"`
	PackagingRates    []packagingRate       `yaml:"packaging_rates"`
	FillingOperations []fillingOperation    `yaml:"filling_operations"`
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	var defs defaults
	if err := yaml.Unmarshal(defaultsYAML, &defs); err != nil {
		return Stats{}, fmt.Errorf("decode embedded defaults: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedTenantConfig(tx, defs, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := seedPackaging(tx, defs, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash, is_admin) VALUES (?, ?, TRUE)`, email, hashPassword(password)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func seedTenantConfig(tx *sql.Tx, defs defaults, stats *Stats) error {
	entries := []struct {
		key   string
		value any
	}{
		{engine.KeyHourlyRateTiers, defs.HourlyRateTiers},
		{engine.KeyBulkWasteTiers, defs.BulkWasteTiers},
		{engine.KeyResidueTiers, defs.ResidueTiers},
		{engine.KeyExtrasCatalog, defs.ExtrasCatalog},
	}

	for _, entry := range entries {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM tenant_config WHERE key = ? LIMIT 1)`, entry.key).Scan(&exists); err != nil {
			return fmt.Errorf("check config key %q: %w", entry.key, err)
		}
		if exists {
			continue
		}

		raw, err := json.Marshal(entry.value)
		if err != nil {
			return fmt.Errorf("encode default for %q: %w", entry.key, err)
		}
		if _, err := tx.Exec(`INSERT INTO tenant_config (key, value) VALUES (?, ?)`, entry.key, string(raw)); err != nil {
			return fmt.Errorf("insert config key %q: %w", entry.key, err)
		}
		stats.Inserts++
	}
	return nil
}

func seedPackaging(tx *sql.Tx, defs defaults, stats *Stats) error {
	var rateCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM packaging_rates`).Scan(&rateCount); err != nil {
		return fmt.Errorf("count packaging rates: %w", err)
	}
	if rateCount == 0 {
		for _, r := range defs.PackagingRates {
			if _, err := tx.Exec(`
				INSERT INTO packaging_rates (packaging_type, subtype, component, capacity_min_ml, capacity_max_ml, unit_cost, active)
				VALUES (?, ?, ?, ?, ?, ?, TRUE)
			`, r.Type, r.Subtype, r.Component, r.CapacityMinML, r.CapacityMaxML, r.UnitCost); err != nil {
				return fmt.Errorf("insert packaging rate: %w", err)
			}
			stats.Inserts++
		}
	}

	var opCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM filling_operations`).Scan(&opCount); err != nil {
		return fmt.Errorf("count filling operations: %w", err)
	}
	if opCount == 0 {
		for _, op := range defs.FillingOperations {
			if _, err := tx.Exec(`
				INSERT INTO filling_operations (name, unit_cost, active)
				VALUES (?, ?, TRUE)
			`, op.Name, op.UnitCost); err != nil {
				return fmt.Errorf("insert filling operation: %w", err)
			}
			stats.Inserts++
		}
	}

	return nil
}
