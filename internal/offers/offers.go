// Package offers persists commercial offers and their line items and keeps
// their cached cost figures honest: every save recomputes every line from its
// input through the costing engine, and leaving draft status freezes the
// tenant configuration the offer was priced with.
package offers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nacrelab/costing/internal/engine"
	"github.com/nacrelab/costing/internal/packaging"
	"github.com/nacrelab/costing/internal/tenant"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// TempIDPrefix marks line-item identifiers created client-side before the
// first save round-trip. Save replaces them with persisted uuids.
const TempIDPrefix = "tmp-"

// LineInput is everything needed to reprice one line: the product
// configuration plus its packaging selection and what-if scenarios.
type LineInput struct {
	Product   engine.Product      `json:"product"`
	Packaging packaging.Selection `json:"packaging"`
	Scenarios []engine.Scenario   `json:"scenarios,omitempty"`
}

type LineItem struct {
	ID          string        `json:"id"`
	ProductName string        `json:"productName"`
	Input       LineInput     `json:"input"`
	Results     engine.Result `json:"results"`
	// ScenarioRows holds the what-if table for the line's stored scenarios,
	// recomputed on every save alongside Results. Empty when the line has no
	// scenarios.
	ScenarioRows []engine.ScenarioRow `json:"scenarioRows,omitempty"`
	SortOrder    int                  `json:"sortOrder"`
}

type Offer struct {
	ID         string     `json:"id"`
	ClientName string     `json:"clientName"`
	Title      string     `json:"title"`
	Notes      string     `json:"notes"`
	Status     Status     `json:"status"`
	// SnapshotConfig is the tenant configuration frozen when the offer left
	// draft status; nil while the offer still prices against live rates.
	SnapshotConfig map[string]string `json:"snapshotConfig,omitempty"`
	Items          []LineItem        `json:"items"`
	TotalValue     decimal.Decimal   `json:"totalValue"`
	CreatedAt      string            `json:"createdAt"`
	UpdatedAt      string            `json:"updatedAt"`
}

// NewLineID returns a fresh temporary line-item identifier.
func NewLineID() string {
	return TempIDPrefix + uuid.NewString()
}

// NewCustomExtraID returns an identifier for an ad-hoc extra item.
func NewCustomExtraID() string {
	return "custom-" + uuid.NewString()
}

// storedResults is the shape persisted in offer_items.results_json.
type storedResults struct {
	Results      engine.Result        `json:"results"`
	ScenarioRows []engine.ScenarioRow `json:"scenarioRows,omitempty"`
}

type Store struct {
	db     *sql.DB
	tenant *tenant.Store
	pricer *packaging.Pricer
}

func NewStore(db *sql.DB, tenantStore *tenant.Store, pricer *packaging.Pricer) *Store {
	return &Store{db: db, tenant: tenantStore, pricer: pricer}
}

// Save recomputes every line item from its current input and persists the
// offer. The configuration used is the offer's frozen snapshot when present,
// otherwise the live tenant configuration; useLive forces live rates and is
// reserved for administratively privileged recalculation of frozen offers.
func (s *Store) Save(o *Offer, useLive bool) error {
	values := o.SnapshotConfig
	if useLive || len(values) == 0 {
		live, err := s.tenant.Load()
		if err != nil {
			return fmt.Errorf("load live tenant config: %w", err)
		}
		values = live
	}

	if err := s.Recalculate(o, values); err != nil {
		return err
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	snapshotJSON := sql.NullString{}
	if len(o.SnapshotConfig) > 0 {
		raw, err := json.Marshal(o.SnapshotConfig)
		if err != nil {
			return fmt.Errorf("marshal snapshot config: %w", err)
		}
		snapshotJSON = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin offer save: %w", err)
	}

	totalValue, _ := o.TotalValue.Float64()
	_, err = tx.Exec(`
		INSERT INTO offers (id, client_name, title, notes, status, snapshot_config, total_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			title = excluded.title,
			notes = excluded.notes,
			snapshot_config = excluded.snapshot_config,
			total_value = excluded.total_value,
			updated_at = CURRENT_TIMESTAMP
	`, o.ID, o.ClientName, o.Title, o.Notes, string(o.Status), snapshotJSON, totalValue)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert offer: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM offer_items WHERE offer_id = ?`, o.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear offer items: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == "" || strings.HasPrefix(item.ID, TempIDPrefix) {
			item.ID = uuid.NewString()
		}

		inputJSON, err := json.Marshal(item.Input)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal line input: %w", err)
		}
		resultsJSON, err := json.Marshal(storedResults{
			Results:      item.Results,
			ScenarioRows: item.ScenarioRows,
		})
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal line results: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO offer_items (id, offer_id, product_name, input_json, results_json, sort_order)
			VALUES (?, ?, ?, ?, ?, ?)
		`, item.ID, o.ID, item.ProductName, string(inputJSON), string(resultsJSON), item.SortOrder)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert offer item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit offer save: %w", err)
	}
	return nil
}

// Recalculate reprices every line item against the given configuration values
// and refreshes the offer total. It touches every line, not only recently
// edited ones, so the total is never built from stale cached results.
func (s *Store) Recalculate(o *Offer, values map[string]string) error {
	snap, _ := engine.ParseSnapshot(values)

	total := decimal.Zero
	for i := range o.Items {
		item := &o.Items[i]

		for j := range item.Input.Product.Extras {
			extra := &item.Input.Product.Extras[j]
			if extra.IsCustom && extra.ID == "" {
				extra.ID = NewCustomExtraID()
			}
		}

		unitCosts, err := s.pricer.UnitCosts(item.Input.Packaging)
		if err != nil {
			return fmt.Errorf("price packaging for %q: %w", item.ProductName, err)
		}

		product := item.Input.Product
		product.PackingCostUnit = unitCosts.PackingCostUnit
		product.ProcessCostUnit = unitCosts.ProcessCostUnit

		item.Results = engine.Calculate(snap, product)

		item.ScenarioRows = nil
		if len(item.Input.Scenarios) > 0 {
			for _, sc := range item.Input.Scenarios {
				if err := engine.ValidateScenario(product, sc); err != nil {
					return fmt.Errorf("scenario for %q: %w", item.ProductName, err)
				}
			}
			item.ScenarioRows = engine.ScenarioTable(snap, product, item.Input.Scenarios)
		}

		units := decimal.NewFromFloat(item.Results.DerivedUnits)
		price := decimal.NewFromFloat(item.Results.SalePrice)
		total = total.Add(units.Mul(price))
	}

	o.TotalValue = total.Round(2)
	return nil
}

// Transition moves an offer to a new status. The first transition out of
// draft freezes the live tenant configuration; the read and the status write
// share one transaction so a concurrent configuration edit cannot land
// between them.
func (s *Store) Transition(offerID string, newStatus Status) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin status transition: %w", err)
	}

	var current string
	var snapshot sql.NullString
	err = tx.QueryRow(`SELECT status, snapshot_config FROM offers WHERE id = ?`, offerID).
		Scan(&current, &snapshot)
	if err != nil {
		_ = tx.Rollback()
		if err == sql.ErrNoRows {
			return fmt.Errorf("offer %s not found", offerID)
		}
		return fmt.Errorf("read offer status: %w", err)
	}

	if Status(current) == StatusDraft && newStatus != StatusDraft && !snapshot.Valid {
		values, err := tenant.LoadTx(tx)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("freeze tenant config: %w", err)
		}
		raw, err := json.Marshal(values)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal frozen config: %w", err)
		}
		snapshot = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = tx.Exec(`
		UPDATE offers
		SET status = ?, snapshot_config = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(newStatus), snapshot, offerID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update offer status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status transition: %w", err)
	}
	return nil
}

// Get loads one offer with its line items ordered by sort order.
func (s *Store) Get(offerID string) (*Offer, error) {
	o := &Offer{ID: offerID}

	var status string
	var snapshot sql.NullString
	var totalValue float64
	err := s.db.QueryRow(`
		SELECT client_name, COALESCE(title, ''), COALESCE(notes, ''), status, snapshot_config, total_value, created_at, updated_at
		FROM offers
		WHERE id = ?
	`, offerID).Scan(&o.ClientName, &o.Title, &o.Notes, &status, &snapshot, &totalValue, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("offer %s not found", offerID)
		}
		return nil, fmt.Errorf("query offer: %w", err)
	}
	o.Status = Status(status)
	o.TotalValue = decimal.NewFromFloat(totalValue)

	if snapshot.Valid {
		if err := json.Unmarshal([]byte(snapshot.String), &o.SnapshotConfig); err != nil {
			return nil, fmt.Errorf("decode snapshot config: %w", err)
		}
	}

	rows, err := s.db.Query(`
		SELECT id, product_name, input_json, results_json, sort_order
		FROM offer_items
		WHERE offer_id = ?
		ORDER BY sort_order, id
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("query offer items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item LineItem
		var inputJSON, resultsJSON string
		if err := rows.Scan(&item.ID, &item.ProductName, &inputJSON, &resultsJSON, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("scan offer item: %w", err)
		}
		if err := json.Unmarshal([]byte(inputJSON), &item.Input); err != nil {
			return nil, fmt.Errorf("decode line input: %w", err)
		}
		var stored storedResults
		if err := json.Unmarshal([]byte(resultsJSON), &stored); err != nil {
			return nil, fmt.Errorf("decode line results: %w", err)
		}
		item.Results = stored.Results
		item.ScenarioRows = stored.ScenarioRows
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer items: %w", err)
	}

	return o, nil
}

// ListEntry is the offer list projection.
type ListEntry struct {
	ID         string          `json:"id"`
	ClientName string          `json:"clientName"`
	Title      string          `json:"title"`
	Status     Status          `json:"status"`
	TotalValue decimal.Decimal `json:"totalValue"`
	CreatedAt  string          `json:"createdAt"`
}

// List returns offers newest first, optionally filtered by a substring of the
// title or client name.
func (s *Store) List(query string) ([]ListEntry, error) {
	search := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT id, client_name, COALESCE(title, ''), status, total_value, created_at
		FROM offers
		WHERE (? = '' OR COALESCE(title, '') LIKE ? OR client_name LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	entries := make([]ListEntry, 0)
	for rows.Next() {
		var e ListEntry
		var status string
		var totalValue float64
		if err := rows.Scan(&e.ID, &e.ClientName, &e.Title, &status, &totalValue, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		e.Status = Status(status)
		e.TotalValue = decimal.NewFromFloat(totalValue)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}

	return entries, nil
}
