package ledgerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsDeviceHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(DeviceHeader)
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"userId": "u1", "creditsBalance": 3,
		}, "", "")
	}))
	defer srv.Close()

	c := New(srv.URL, "ios_abc123")
	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if gotHeader != "ios_abc123" {
		t.Fatalf("expected device header, got %q", gotHeader)
	}
	if status.CreditsBalance != 3 {
		t.Fatalf("expected balance 3, got %d", status.CreditsBalance)
	}
}

func TestClientReserve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ledger/reserve" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["projectType"] != "house" || body["countryCode"] != "US" {
			t.Errorf("unexpected body: %v", body)
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"requestId":       "req_1",
			"creditsBalance":  0,
			"creditsReserved": 1,
		}, "", "")
	}))
	defer srv.Close()

	c := New(srv.URL, "ios_abc123")
	res, err := c.Reserve(context.Background(), "house", "US")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if res.RequestID != "req_1" || res.CreditsReserved != 1 {
		t.Fatalf("unexpected reservation: %+v", res)
	}
}

func TestClientErrorMapping(t *testing.T) {
	cases := []struct {
		code     string
		status   int
		sentinel error
	}{
		{"INSUFFICIENT_CREDITS", http.StatusPaymentRequired, ErrInsufficientCredits},
		{"DAILY_LIMIT_REACHED", http.StatusTooManyRequests, ErrDailyLimitReached},
		{"SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavailable},
		{"NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"VALIDATION_ERROR", http.StatusUnprocessableEntity, ErrValidation},
		{"FOREIGN_RESERVATION", http.StatusBadRequest, ErrValidation},
		{"INTERNAL_ERROR", http.StatusInternalServerError, ErrInternal},
		{"SOME_FUTURE_CODE", http.StatusConflict, ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tc.status, nil, tc.code, "nope")
			}))
			defer srv.Close()

			c := New(srv.URL, "ios_abc123")
			_, err := c.Reserve(context.Background(), "", "")
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("expected %v, got %v", tc.sentinel, err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Code != tc.code || apiErr.Status != tc.status {
				t.Fatalf("expected code=%s status=%d, got %+v", tc.code, tc.status, apiErr)
			}
		})
	}
}

func TestClientUnparseableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, "ios_abc123")
	_, err := c.Status(context.Background())
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal for junk response, got %v", err)
	}
}

func TestClientFinalizeAndRollback(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]bool{"ok": true}, "", "")
	}))
	defer srv.Close()

	c := New(srv.URL, "ios_abc123")
	if err := c.Finalize(context.Background(), "req_1", UsageReport{LatencyMs: 900}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if err := c.Rollback(context.Background(), "req_1", "upstream timeout"); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/ledger/finalize" || paths[1] != "/ledger/rollback" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]interface{}{
		"success": code == "",
	}
	if data != nil {
		body["data"] = data
	}
	if code != "" {
		body["error"] = map[string]interface{}{"code": code, "message": message}
	}
	json.NewEncoder(w).Encode(body)
}
