package purchase

import (
	"strings"

	"github.com/estimax/estimax-api/internal/domain/ledger"
	"github.com/estimax/estimax-api/internal/domain/user"
)

// RevenueCat webhook event types the ledger reacts to. Everything else
// (cancellations, billing issues, transfers) is acknowledged and ignored.
const (
	EventInitialPurchase     = "INITIAL_PURCHASE"
	EventNonRenewingPurchase = "NON_RENEWING_PURCHASE"
	EventRenewal             = "RENEWAL"
)

// WebhookPayload is the envelope RevenueCat POSTs to the webhook endpoint
type WebhookPayload struct {
	APIVersion string       `json:"api_version"`
	Event      WebhookEvent `json:"event"`
}

// WebhookEvent is the subset of RevenueCat event fields the ledger uses
type WebhookEvent struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	AppUserID         string `json:"app_user_id"`
	OriginalAppUserID string `json:"original_app_user_id"`
	ProductID         string `json:"product_id"`
	TransactionID     string `json:"transaction_id"`
	Store             string `json:"store"`
	EventTimestampMs  int64  `json:"event_timestamp_ms"`
}

// Product describes what a store product grants when purchased
type Product struct {
	Credits int
	Plan    user.PlanType
}

// catalog maps store product identifiers to credit grants. Product ids
// follow the "<prefix>.<plan>" convention used in the app store listings.
var catalog = map[string]Product{
	"single":      {Credits: 1, Plan: user.PlanSingle},
	"pack10":      {Credits: 10, Plan: user.PlanPack10},
	"pro_monthly": {Credits: 30, Plan: user.PlanProMonthly},
}

// LookupProduct resolves a store product id against the catalog. Store
// listings prefix product ids with a reverse-DNS bundle id, so matching
// is on the last dot-separated segment.
func LookupProduct(productID string) (Product, bool) {
	key := productID
	if i := strings.LastIndex(productID, "."); i >= 0 {
		key = productID[i+1:]
	}
	p, ok := catalog[key]
	return p, ok
}

// RestoreResponse is returned by the restore-purchases operation
type RestoreResponse struct {
	CreditsBalance  int                  `json:"creditsBalance"`
	LifetimeCredits int                  `json:"lifetimeCredits"`
	TotalPurchases  int                  `json:"totalPurchases"`
	TotalUsage      int                  `json:"totalUsage"`
	Transactions    []ledger.Transaction `json:"transactions"`
}
