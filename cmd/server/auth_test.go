package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoginSetsSessionCookie(t *testing.T) {
	srv, db := newTestServer(t)
	seedTestUser(t, db, "ops@nacrelab.test", "secret123", false)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"ops@nacrelab.test","password":"secret123"}`))
	rec := httptest.NewRecorder()
	srv.handleLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("expected a session cookie to be set")
	}
	email, ok := srv.auth.verifySessionValue(session.Value)
	if !ok || email != "ops@nacrelab.test" {
		t.Fatalf("session cookie does not verify: email=%q ok=%v", email, ok)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, db := newTestServer(t)
	seedTestUser(t, db, "ops@nacrelab.test", "secret123", false)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"ops@nacrelab.test","password":"wrong"}`))
	rec := httptest.NewRecorder()
	srv.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			t.Fatal("no session cookie should be issued on failed login")
		}
	}
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"nobody@nacrelab.test","password":"secret123"}`))
	rec := httptest.NewRecorder()
	srv.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareBlocksAnonymousRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	handler := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/offers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}

	// The login route stays open.
	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /login to pass through, got %d", rec.Code)
	}
}

func TestAuthMiddlewareAcceptsValidSession(t *testing.T) {
	srv, db := newTestServer(t)
	seedTestUser(t, db, "ops@nacrelab.test", "secret123", false)

	handler := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/offers", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: srv.auth.createSessionValue("ops@nacrelab.test")})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid session, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsTamperedSession(t *testing.T) {
	srv, _ := newTestServer(t)

	handler := srv.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	value := srv.auth.createSessionValue("ops@nacrelab.test")
	req := httptest.NewRequest(http.MethodGet, "/api/offers", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: value + "x"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered session, got %d", rec.Code)
	}
}
