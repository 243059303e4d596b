// Package tenant stores the tenant-wide configuration as a flat key to
// JSON-string mapping. The engine never reads it directly; callers load the
// map and hand it to engine.ParseSnapshot, which is what makes configuration
// freezing a pure parameter swap.
package tenant

import (
	"database/sql"
	"fmt"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the full configuration map.
func (s *Store) Load() (map[string]string, error) {
	return loadConfig(s.db)
}

// LoadTx reads the configuration inside an existing transaction. Offer
// freezing uses this so the snapshot and the status write land atomically.
func LoadTx(tx *sql.Tx) (map[string]string, error) {
	return loadConfig(tx)
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func loadConfig(q querier) (map[string]string, error) {
	rows, err := q.Query(`SELECT key, value FROM tenant_config`)
	if err != nil {
		return nil, fmt.Errorf("query tenant config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan tenant config row: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant config: %w", err)
	}
	return values, nil
}

// Set upserts one configuration key.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(upsertConfigSQL, key, value)
	if err != nil {
		return fmt.Errorf("upsert tenant config key %q: %w", key, err)
	}
	return nil
}

// SetAll upserts every given key in one transaction, so a failure partway
// through a multi-key update never leaves a half-applied configuration.
func (s *Store) SetAll(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tenant config update: %w", err)
	}
	for key, value := range values {
		if _, err := tx.Exec(upsertConfigSQL, key, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert tenant config key %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tenant config update: %w", err)
	}
	return nil
}

const upsertConfigSQL = `
	INSERT INTO tenant_config (key, value)
	VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`
