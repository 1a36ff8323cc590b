package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stowpoint/stowpoint-backend/pkg/auth"
	"github.com/stowpoint/stowpoint-backend/pkg/config"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

func TestAuthRejectsMissingToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	tenantID := uuid.New()
	locationID := uuid.New()
	token := mintTestToken(t, cfg, enums.StaffRoleManager, tenantID, &locationID)

	var captured struct {
		staff    string
		tenant   string
		role     string
		location string
	}
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.staff = StaffIDFromContext(r.Context())
		captured.tenant = TenantIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.location = LocationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.staff == "" {
		t.Fatal("expected staff id in context")
	}
	if captured.tenant != tenantID.String() {
		t.Fatalf("expected tenant %s got %s", tenantID, captured.tenant)
	}
	if captured.role != string(enums.StaffRoleManager) {
		t.Fatalf("expected role manager got %s", captured.role)
	}
	if captured.location != locationID.String() {
		t.Fatalf("expected location %s got %s", locationID, captured.location)
	}
}

func TestAuthAllowsTokenWithoutLocation(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	token := mintTestToken(t, cfg, enums.StaffRoleAdmin, uuid.New(), nil)

	var captured struct {
		staff    string
		role     string
		location string
	}
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.staff = StaffIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.location = LocationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.staff == "" {
		t.Fatal("expected staff id in context")
	}
	if captured.role != string(enums.StaffRoleAdmin) {
		t.Fatalf("expected role admin got %s", captured.role)
	}
	if captured.location != "" {
		t.Fatalf("expected empty location got %s", captured.location)
	}
}

func TestRequireRoleHonoursHierarchy(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		role    enums.StaffRole
		minimum enums.StaffRole
		want    int
	}{
		{"admin passes manager gate", enums.StaffRoleAdmin, enums.StaffRoleManager, http.StatusOK},
		{"manager passes manager gate", enums.StaffRoleManager, enums.StaffRoleManager, http.StatusOK},
		{"agent blocked by manager gate", enums.StaffRoleAgent, enums.StaffRoleManager, http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(req.Context(), string(tt.role)))
		resp := httptest.NewRecorder()
		RequireRole(tt.minimum, nil)(next).ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, resp.Code)
		}
	}
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	RequireRole(enums.StaffRoleAgent, nil)(next).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.StaffRole, tenantID uuid.UUID, locationID *uuid.UUID) string {
	t.Helper()
	payload := auth.AccessTokenPayload{
		StaffID:    uuid.New(),
		TenantID:   tenantID,
		LocationID: locationID,
		Role:       role,
	}
	token, err := auth.MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
