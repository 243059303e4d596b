package tenant

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func newTenantTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE tenant_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("failed creating schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetAll_UpsertsEveryKeyInOneCall(t *testing.T) {
	db := newTenantTestDB(t)
	store := NewStore(db)

	if err := store.Set("hourly_rate_tiers", `[]`); err != nil {
		t.Fatalf("seed key: %v", err)
	}

	err := store.SetAll(map[string]string{
		"hourly_rate_tiers": `[{"min":0,"max":10,"value":30}]`,
		"bulk_waste_tiers":  `[{"min":0,"max":100,"value":4}]`,
	})
	if err != nil {
		t.Fatalf("SetAll returned error: %v", err)
	}

	values, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(values))
	}
	if values["hourly_rate_tiers"] != `[{"min":0,"max":10,"value":30}]` {
		t.Fatalf("existing key was not updated: %s", values["hourly_rate_tiers"])
	}
	if values["bulk_waste_tiers"] != `[{"min":0,"max":100,"value":4}]` {
		t.Fatalf("new key was not inserted: %s", values["bulk_waste_tiers"])
	}
}

func TestLoadTx_ReadsInsideTransaction(t *testing.T) {
	db := newTenantTestDB(t)
	store := NewStore(db)

	if err := store.Set("residue_tiers", `[]`); err != nil {
		t.Fatalf("seed key: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	values, err := LoadTx(tx)
	if err != nil {
		t.Fatalf("LoadTx returned error: %v", err)
	}
	if values["residue_tiers"] != `[]` {
		t.Fatalf("LoadTx missed committed key: %v", values)
	}
}
