package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nacrelab/costing/internal/config"
	"github.com/nacrelab/costing/internal/db"
	"github.com/nacrelab/costing/internal/engine"
	"github.com/nacrelab/costing/internal/export"
	"github.com/nacrelab/costing/internal/migrations"
	"github.com/nacrelab/costing/internal/offers"
	"github.com/nacrelab/costing/internal/packaging"
	"github.com/nacrelab/costing/internal/seed"
	"github.com/nacrelab/costing/internal/tenant"
)

type server struct {
	auth   *authService
	db     *sql.DB
	tenant *tenant.Store
	offers *offers.Store
	pricer *packaging.Pricer
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatalf("failed to run startup seed: %v", err)
	}
	if stats.Inserts > 0 {
		log.Printf("seed inserted %d rows", stats.Inserts)
	}

	tenantStore := tenant.NewStore(database)
	pricer := packaging.NewPricer(database)
	srv := &server{
		auth:   newAuthService(database, cfg.SessionSecret),
		db:     database,
		tenant: tenantStore,
		pricer: pricer,
		offers: offers.NewStore(database, tenantStore, pricer),
	}

	r := chi.NewRouter()
	r.Use(srv.authMiddleware)
	r.Post("/login", srv.handleLogin)
	r.Post("/logout", srv.handleLogout)
	r.Get("/api/config", srv.handleConfigGet)
	r.Put("/api/config", srv.handleConfigPut)
	r.Post("/api/calculate", srv.handleCalculate)
	r.Post("/api/calculate/scenarios", srv.handleScenarioTable)
	r.Get("/api/offers", srv.handleOffersList)
	r.Post("/api/offers", srv.handleOfferCreate)
	r.Get("/api/offers/{id}", srv.handleOfferGet)
	r.Put("/api/offers/{id}", srv.handleOfferUpdate)
	r.Post("/api/offers/{id}/status", srv.handleOfferStatus)
	r.Post("/api/offers/{id}/recalculate", srv.handleOfferRecalculate)
	r.Get("/api/offers/{id}/pdf", srv.handleOfferPDF)
	r.Get("/api/offers/{id}/xlsx", srv.handleOfferExcel)

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := sessionEmail(r, s.auth); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAdmin resolves the session account and checks its role. It writes
// the error response itself and reports whether the caller may proceed.
func (s *server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	email, ok := sessionEmail(r, s.auth)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	admin, err := s.auth.isAdmin(email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve role")
		return false
	}
	if !admin {
		writeError(w, http.StatusForbidden, "administrator role required")
		return false
	}
	return true
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valid, err := s.auth.validateCredentials(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.auth.setSessionCookie(w, req.Email)
	writeJSON(w, http.StatusOK, map[string]string{"email": req.Email})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type configResponse struct {
	Values   map[string]string `json:"values"`
	Degraded []string          `json:"degraded,omitempty"`
}

func (s *server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	values, err := s.tenant.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load configuration")
		return
	}

	_, issues := engine.ParseSnapshot(values)
	resp := configResponse{Values: values}
	for _, issue := range issues {
		resp.Degraded = append(resp.Degraded, issue.Key)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var values map[string]string
	if err := readJSON(r, &values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Malformed values are stored anyway; pricing falls back to constants.
	// The warnings tell the admin which keys will degrade.
	var warnings []string
	for key, value := range values {
		switch key {
		case engine.KeyHourlyRateTiers, engine.KeyBulkWasteTiers, engine.KeyResidueTiers:
			if _, err := engine.ParseTiers(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			}
		case engine.KeyExtrasCatalog:
			var catalog []engine.CatalogExtra
			if err := json.Unmarshal([]byte(value), &catalog); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: invalid catalog", key))
			}
		}
	}
	if err := s.tenant.SetAll(values); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"saved": len(values), "warnings": warnings})
}

type calculateRequest struct {
	Product   engine.Product      `json:"product"`
	Packaging packaging.Selection `json:"packaging"`
	Scenario  *engine.Scenario    `json:"scenario,omitempty"`
}

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, product, ok := s.prepareProduct(w, req.Product, req.Packaging)
	if !ok {
		return
	}

	var result engine.Result
	if req.Scenario != nil {
		if err := engine.ValidateScenario(product, *req.Scenario); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		result = engine.Simulate(snap, product, *req.Scenario)
	} else {
		result = engine.Calculate(snap, product)
	}

	writeJSON(w, http.StatusOK, result)
}

type scenarioTableRequest struct {
	Product   engine.Product      `json:"product"`
	Packaging packaging.Selection `json:"packaging"`
	Scenarios []engine.Scenario   `json:"scenarios"`
}

func (s *server) handleScenarioTable(w http.ResponseWriter, r *http.Request) {
	var req scenarioTableRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, product, ok := s.prepareProduct(w, req.Product, req.Packaging)
	if !ok {
		return
	}

	for _, sc := range req.Scenarios {
		if err := engine.ValidateScenario(product, sc); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, engine.ScenarioTable(snap, product, req.Scenarios))
}

// prepareProduct loads the live configuration snapshot and resolves the
// packaging unit costs onto the product. False means the error response was
// already written.
func (s *server) prepareProduct(w http.ResponseWriter, product engine.Product, sel packaging.Selection) (engine.Snapshot, engine.Product, bool) {
	values, err := s.tenant.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load configuration")
		return engine.Snapshot{}, product, false
	}
	snap, _ := engine.ParseSnapshot(values)

	unitCosts, err := s.pricer.UnitCosts(sel)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to price packaging")
		return engine.Snapshot{}, product, false
	}
	product.PackingCostUnit = unitCosts.PackingCostUnit
	product.ProcessCostUnit = unitCosts.ProcessCostUnit
	return snap, product, true
}

func (s *server) handleOffersList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	entries, err := s.offers.List(query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load offers")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type offerPayload struct {
	ClientName string            `json:"clientName"`
	Title      string            `json:"title"`
	Notes      string            `json:"notes"`
	Items      []offers.LineItem `json:"items"`
}

func (s *server) handleOfferCreate(w http.ResponseWriter, r *http.Request) {
	var payload offerPayload
	if err := readJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	offer := &offers.Offer{
		ClientName: payload.ClientName,
		Title:      payload.Title,
		Notes:      payload.Notes,
		Status:     offers.StatusDraft,
		Items:      payload.Items,
	}
	if err := s.offers.Save(offer, false); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save offer")
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (s *server) handleOfferGet(w http.ResponseWriter, r *http.Request) {
	offer, ok := s.loadOffer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *server) handleOfferUpdate(w http.ResponseWriter, r *http.Request) {
	offer, ok := s.loadOffer(w, r)
	if !ok {
		return
	}

	var payload offerPayload
	if err := readJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Status and the frozen snapshot come from the store, never the client.
	offer.ClientName = payload.ClientName
	offer.Title = payload.Title
	offer.Notes = payload.Notes
	offer.Items = payload.Items

	if err := s.offers.Save(offer, false); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save offer")
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

type statusRequest struct {
	Status offers.Status `json:"status"`
}

func (s *server) handleOfferStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case offers.StatusDraft, offers.StatusSent, offers.StatusAccepted, offers.StatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if err := s.offers.Transition(id, req.Status); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "offer not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	offer, err := s.offers.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload offer")
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// handleOfferRecalculate forces a reprice. Frozen offers reprice against
// their snapshot; ?live=1 switches to live tenant rates and is admin-only.
func (s *server) handleOfferRecalculate(w http.ResponseWriter, r *http.Request) {
	useLive := r.URL.Query().Get("live") == "1"
	if useLive && !s.requireAdmin(w, r) {
		return
	}

	offer, ok := s.loadOffer(w, r)
	if !ok {
		return
	}

	if err := s.offers.Save(offer, useLive); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to recalculate offer")
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *server) handleOfferPDF(w http.ResponseWriter, r *http.Request) {
	offer, ok := s.loadOffer(w, r)
	if !ok {
		return
	}

	data, err := export.OfferPDF(offer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "offer-"+offer.ID+".pdf"))
	_, _ = w.Write(data)
}

func (s *server) handleOfferExcel(w http.ResponseWriter, r *http.Request) {
	offer, ok := s.loadOffer(w, r)
	if !ok {
		return
	}

	data, err := export.OfferExcel(offer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render spreadsheet")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "offer-"+offer.ID+".xlsx"))
	_, _ = w.Write(data)
}

func (s *server) loadOffer(w http.ResponseWriter, r *http.Request) (*offers.Offer, bool) {
	id := chi.URLParam(r, "id")
	offer, err := s.offers.Get(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "offer not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to load offer")
		return nil, false
	}
	return offer, true
}

func readJSON(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
