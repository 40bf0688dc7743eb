package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogin(t *testing.T) {
	api := newTestAPI(t)
	api.signup(t, "alice")

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"wrong password", map[string]string{"email": "alice@example.com", "password": "nope-nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "bob@example.com", "password": "password-alice"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{}, http.StatusBadRequest},
		{"invalid json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/auth/token/login", "", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	api := newTestAPI(t)
	api.signup(t, "alice")

	wrong := api.do(t, http.MethodPost, "/api/auth/token/login", "", map[string]string{"email": "alice@example.com", "password": "nope-nope"})
	unknown := api.do(t, http.MethodPost, "/api/auth/token/login", "", map[string]string{"email": "ghost@example.com", "password": "nope-nope"})
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
	if wrong.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Errorf("missing WWW-Authenticate header")
	}
}

func TestRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.signup(t, "alice")

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Token " + token},
		{"garbage token", "Bearer garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			api.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Errorf("missing WWW-Authenticate header")
			}
		})
	}

	if rec := api.do(t, http.MethodGet, "/api/users/me", token, nil); rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", rec.Code)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.signup(t, "alice")

	if rec := api.do(t, http.MethodDelete, "/api/auth/token/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/api/users/me", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked token status = %d, want 401", rec.Code)
	}
	if rec := api.do(t, http.MethodDelete, "/api/auth/token/logout", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous logout status = %d, want 401", rec.Code)
	}
}
