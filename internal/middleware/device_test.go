package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDeviceIDRequired(t *testing.T) {
	var captured string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetDeviceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := DeviceID(next)

	req := httptest.NewRequest(http.MethodPost, "/ledger/init", nil)
	req.Header.Set(DeviceHeader, "ios_abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured != "ios_abc123" {
		t.Fatalf("expected device id in context, got %q", captured)
	}
}

func TestDeviceIDMissing(t *testing.T) {
	h := DeviceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without a device id")
	}))

	req := httptest.NewRequest(http.MethodPost, "/ledger/init", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeviceIDTooLong(t *testing.T) {
	h := DeviceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run with an oversize device id")
	}))

	req := httptest.NewRequest(http.MethodPost, "/ledger/init", nil)
	req.Header.Set(DeviceHeader, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
