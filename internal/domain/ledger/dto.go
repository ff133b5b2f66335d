package ledger

import (
	"github.com/google/uuid"

	"github.com/estimax/estimax-api/internal/domain/user"
)

// UserStatus is the full projection returned by init-user and get-status.
type UserStatus struct {
	UserID             uuid.UUID     `json:"userId"`
	DeviceID           string        `json:"deviceId"`
	Email              *string       `json:"email,omitempty"`
	PlanType           user.PlanType `json:"planType"`
	IsActive           bool          `json:"isActive"`
	PaymentCustomerID  *string       `json:"paymentCustomerId,omitempty"`
	CreditsBalance     int           `json:"creditsBalance"`
	CreditsReserved    int           `json:"creditsReserved"`
	LifetimeCredits    int           `json:"lifetimeCredits"`
	DailyUsage         int           `json:"dailyUsage"`
	DailyLimit         int           `json:"dailyLimit"`
	CanUseAI           bool          `json:"canUseAi"`
	IsNewUser          bool          `json:"isNewUser,omitempty"`
	RecentTransactions []Transaction `json:"recentTransactions,omitempty"`
}

// ReserveRequest carries optional estimate metadata known at reserve time.
type ReserveRequest struct {
	ProjectType string `json:"projectType" validate:"omitempty,max=64"`
	CountryCode string `json:"countryCode" validate:"omitempty,country_code"`
}

// ReserveResponse returns the new hold and the post-reserve balances.
type ReserveResponse struct {
	RequestID       string `json:"requestId"`
	CreditsBalance  int    `json:"creditsBalance"`
	CreditsReserved int    `json:"creditsReserved"`
}

// FinalizeRequest reports a successful estimate for a held reservation.
type FinalizeRequest struct {
	RequestID        string  `json:"requestId" validate:"required,max=64"`
	LatencyMs        int     `json:"latencyMs" validate:"gte=0"`
	ResponseSize     int     `json:"responseSize" validate:"gte=0"`
	EstimatedCostUsd float64 `json:"estimatedCostUsd" validate:"gte=0"`
}

// RollbackRequest reports a failed estimate for a held reservation.
type RollbackRequest struct {
	RequestID    string `json:"requestId" validate:"required,max=64"`
	ErrorMessage string `json:"errorMessage" validate:"required,max=1024"`
}
