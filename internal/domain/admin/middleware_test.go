package admin_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/estimax/estimax-api/internal/domain/admin"
	"github.com/estimax/estimax-api/internal/pkg/jwt"
)

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	tokens := jwt.NewService("test-secret", time.Hour)
	adminID := uuid.New()

	token, err := tokens.GenerateToken(adminID, "ops@example.com")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	var captured uuid.UUID
	h := admin.AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = admin.GetAdminID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured != adminID {
		t.Fatalf("expected admin id %s in context, got %s", adminID, captured)
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	tokens := jwt.NewService("test-secret", time.Hour)
	h := admin.AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run unauthenticated")
	}))

	cases := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	tokens := jwt.NewService("test-secret", -time.Minute)
	token, err := tokens.GenerateToken(uuid.New(), "ops@example.com")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	h := admin.AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run with an expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
