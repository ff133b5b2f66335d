package purchase_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/estimax/estimax-api/internal/domain/ledger"
	"github.com/estimax/estimax-api/internal/domain/purchase"
	"github.com/estimax/estimax-api/internal/domain/user"
	"github.com/estimax/estimax-api/internal/pkg/revenuecat"
)

func newWebhookHandler(secret string) *purchase.Handler {
	rc := revenuecat.NewClient(revenuecat.Config{WebhookSecret: secret})
	svc := purchase.NewService(user.NewRepository(nil), ledger.NewRepository(nil), rc)
	return purchase.NewHandler(svc, rc)
}

func TestWebhookRejectsBadAuthorization(t *testing.T) {
	h := newWebhookHandler("hook-secret")

	cases := []struct {
		name string
		auth string
	}{
		{"missing", ""},
		{"wrong secret", "Bearer nope"},
		{"raw wrong secret", "nope"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/revenuecat", strings.NewReader(`{}`))
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()

			h.Webhook(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestWebhookRejectsAllWhenSecretUnset(t *testing.T) {
	h := newWebhookHandler("")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/revenuecat", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no configured secret, got %d", rec.Code)
	}
}

func TestWebhookAcknowledgesUnparseablePayload(t *testing.T) {
	h := newWebhookHandler("hook-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/revenuecat", strings.NewReader("not json"))
	req.Header.Set("Authorization", "Bearer hook-secret")
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	// Permanently malformed payloads return 200 so RevenueCat stops
	// retrying a delivery that can never succeed.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unparseable payload, got %d", rec.Code)
	}
}

func TestLookupProduct(t *testing.T) {
	cases := []struct {
		productID string
		credits   int
		ok        bool
	}{
		{"com.estimax.app.single", 1, true},
		{"com.estimax.app.pack10", 10, true},
		{"pro_monthly", 30, true},
		{"com.estimax.app.mystery", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		p, ok := purchase.LookupProduct(tc.productID)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.productID, tc.ok, ok)
		}
		if ok && p.Credits != tc.credits {
			t.Fatalf("%q: expected %d credits, got %d", tc.productID, tc.credits, p.Credits)
		}
	}
}
