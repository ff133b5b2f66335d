package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType defines supported ledger transaction types.
type TransactionType string

const (
	TxTypePurchase            TransactionType = "purchase"
	TxTypeUsage               TransactionType = "usage"
	TxTypeRefund              TransactionType = "refund"
	TxTypeSubscriptionRenewal TransactionType = "subscription_renewal"
)

// Wallet holds per-user credit balances. credits_balance is spendable
// now; credits_reserved is held against in-flight reservations;
// lifetime_credits only ever grows, via purchase/renewal grants.
type Wallet struct {
	UserID          uuid.UUID `db:"user_id" json:"userId"`
	CreditsBalance  int       `db:"credits_balance" json:"creditsBalance"`
	CreditsReserved int       `db:"credits_reserved" json:"creditsReserved"`
	LifetimeCredits int       `db:"lifetime_credits" json:"lifetimeCredits"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Transaction is an immutable, append-only ledger row.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"userId"`
	Amount      int             `db:"amount" json:"amount"`
	Type        TransactionType `db:"type" json:"type"`
	ReferenceID *string         `db:"reference_id" json:"referenceId,omitempty"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// UsageStatus is the reservation state. pending is the only state in
// which a unit is held in credits_reserved; a terminal row is never
// re-entered.
type UsageStatus string

const (
	UsagePending   UsageStatus = "pending"
	UsageCompleted UsageStatus = "completed"
	UsageFailed    UsageStatus = "failed"
)

// UsageLog is one row per reservation attempt.
type UsageLog struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	UserID           uuid.UUID   `db:"user_id" json:"userId"`
	RequestID        string      `db:"request_id" json:"requestId"`
	Status           UsageStatus `db:"status" json:"status"`
	ProjectType      *string     `db:"project_type" json:"projectType,omitempty"`
	CountryCode      *string     `db:"country_code" json:"countryCode,omitempty"`
	LatencyMs        *int        `db:"latency_ms" json:"latencyMs,omitempty"`
	ResponseSize     *int        `db:"response_size" json:"responseSize,omitempty"`
	EstimatedCostUsd *float64    `db:"estimated_cost_usd" json:"estimatedCostUsd,omitempty"`
	ErrorMessage     *string     `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`
}

// UsageMeta is the estimate metadata the gateway reports on finalize.
// Externally supplied shapes are normalized into this one record at the
// handler boundary.
type UsageMeta struct {
	LatencyMs        int
	ResponseSize     int
	EstimatedCostUsd float64
}
