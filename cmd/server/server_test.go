package main

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/nacrelab/costing/internal/offers"
	"github.com/nacrelab/costing/internal/packaging"
	"github.com/nacrelab/costing/internal/tenant"
)

const testSchema = `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE TABLE tenant_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE offers (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL DEFAULT '',
		title TEXT,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		snapshot_config TEXT,
		total_value NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE offer_items (
		id TEXT PRIMARY KEY,
		offer_id TEXT NOT NULL REFERENCES offers(id) ON DELETE CASCADE,
		product_name TEXT NOT NULL,
		input_json TEXT NOT NULL,
		results_json TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE packaging_rates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		packaging_type TEXT NOT NULL,
		subtype TEXT NOT NULL,
		component TEXT NOT NULL,
		capacity_min_ml NUMERIC NOT NULL,
		capacity_max_ml NUMERIC NOT NULL,
		unit_cost NUMERIC NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE TABLE filling_operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		unit_cost NUMERIC NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
`

func newTestServer(t *testing.T) (*server, *sql.DB) {
	t.Helper()

	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if _, err := database.Exec(testSchema); err != nil {
		t.Fatalf("failed creating schema: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	tenantStore := tenant.NewStore(database)
	pricer := packaging.NewPricer(database)
	srv := &server{
		auth:   newAuthService(database, "test-secret"),
		db:     database,
		tenant: tenantStore,
		pricer: pricer,
		offers: offers.NewStore(database, tenantStore, pricer),
	}
	return srv, database
}

func seedTestConfig(t *testing.T, database *sql.DB) {
	t.Helper()

	_, err := database.Exec(`
		INSERT INTO tenant_config (key, value) VALUES
		('hourly_rate_tiers', '[{"min":0,"max":10,"value":30},{"min":10,"max":100000,"value":45}]'),
		('bulk_waste_tiers', '[{"min":0,"max":100000,"value":4}]'),
		('residue_tiers', '[{"min":0,"max":100000,"value":2}]'),
		('extras_catalog', '[{"id":"cpsr","name":"CPSR safety assessment","cost":350,"type":"FIXED"}]');
		INSERT INTO packaging_rates (packaging_type, subtype, component, capacity_min_ml, capacity_max_ml, unit_cost) VALUES
		('jar', 'glass', 'container', 15, 60, 0.55),
		('jar', 'glass', 'lid', 15, 60, 0.20);
		INSERT INTO filling_operations (name, unit_cost) VALUES
		('fill', 0.10),
		('label', 0.06);
	`)
	if err != nil {
		t.Fatalf("failed seeding test config: %v", err)
	}
}

func mainTestSelection() packaging.Selection {
	return packaging.Selection{
		Type:       "jar",
		Subtype:    "glass",
		CapacityML: 50,
		Components: []string{"container", "lid"},
		Operations: []string{"fill", "label"},
	}
}

func seedTestUser(t *testing.T, database *sql.DB, email, password string, admin bool) {
	t.Helper()

	_, err := database.Exec(`INSERT INTO users (email, password_hash, is_admin) VALUES (?, ?, ?)`,
		email, hashPassword(password), admin)
	if err != nil {
		t.Fatalf("failed seeding user: %v", err)
	}
}
