package user

import (
	"time"

	"github.com/google/uuid"
)

// PlanType represents a user's entitlement tier. It influences credit
// grants on purchase ingestion, not access control inside the ledger.
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanSingle     PlanType = "single"
	PlanPack10     PlanType = "pack10"
	PlanProMonthly PlanType = "pro_monthly"
)

// Valid reports whether p is a known plan type
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanSingle, PlanPack10, PlanProMonthly:
		return true
	}
	return false
}

// User is an anonymous device-keyed account. Created lazily on first
// contact; one user per device identifier.
type User struct {
	ID                uuid.UUID `db:"id" json:"userId"`
	DeviceID          string    `db:"device_id" json:"deviceId"`
	Email             *string   `db:"email" json:"email,omitempty"`
	PlanType          PlanType  `db:"plan_type" json:"planType"`
	IsActive          bool      `db:"is_active" json:"isActive"`
	PaymentCustomerID *string   `db:"payment_customer_id" json:"paymentCustomerId,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}
