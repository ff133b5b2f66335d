// Package ledgerclient is the calling application's interface to the
// credit ledger API: init, status, reserve, finalize, rollback and
// restore-purchases, with backend error codes mapped to typed errors.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DeviceHeader carries the anonymous device identifier on every call
const DeviceHeader = "x-device-id"

// Client is a ledger API client bound to one device identifier
type Client struct {
	baseURL    string
	deviceID   string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a ledger client. baseURL is the API root, e.g.
// "https://api.example.com/api/v1"; deviceID is the stable identifier
// from the deviceid package.
func New(baseURL, deviceID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		deviceID:   deviceID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserStatus mirrors the backend's status projection
type UserStatus struct {
	UserID          string        `json:"userId"`
	DeviceID        string        `json:"deviceId"`
	PlanType        string        `json:"planType"`
	CreditsBalance  int           `json:"creditsBalance"`
	CreditsReserved int           `json:"creditsReserved"`
	LifetimeCredits int           `json:"lifetimeCredits"`
	DailyUsage      int           `json:"dailyUsage"`
	DailyLimit      int           `json:"dailyLimit"`
	CanUseAI        bool          `json:"canUseAi"`
	IsNewUser       bool          `json:"isNewUser,omitempty"`
	Transactions    []Transaction `json:"recentTransactions,omitempty"`
}

// Transaction is one immutable ledger entry
type Transaction struct {
	ID          string    `json:"id"`
	Amount      int       `json:"amount"`
	Type        string    `json:"type"`
	ReferenceID *string   `json:"referenceId,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Reservation is the result of a successful reserve call
type Reservation struct {
	RequestID       string `json:"requestId"`
	CreditsBalance  int    `json:"creditsBalance"`
	CreditsReserved int    `json:"creditsReserved"`
}

// RestoreResult is the result of a restore-purchases call
type RestoreResult struct {
	CreditsBalance  int           `json:"creditsBalance"`
	LifetimeCredits int           `json:"lifetimeCredits"`
	TotalPurchases  int           `json:"totalPurchases"`
	TotalUsage      int           `json:"totalUsage"`
	Transactions    []Transaction `json:"transactions"`
}

// UsageReport is the estimate metadata reported on finalize
type UsageReport struct {
	LatencyMs        int     `json:"latencyMs"`
	ResponseSize     int     `json:"responseSize"`
	EstimatedCostUsd float64 `json:"estimatedCostUsd"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// InitUser registers the device and returns its status. Safe to call
// on every app start; the backend creates the user at most once.
func (c *Client) InitUser(ctx context.Context) (*UserStatus, error) {
	var status UserStatus
	if err := c.do(ctx, http.MethodPost, "/ledger/init", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Status returns the current wallet and quota projection
func (c *Client) Status(ctx context.Context) (*UserStatus, error) {
	var status UserStatus
	if err := c.do(ctx, http.MethodGet, "/ledger/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Reserve holds one credit for an estimate request. projectType and
// countryCode are optional request metadata; pass "" to omit.
func (c *Client) Reserve(ctx context.Context, projectType, countryCode string) (*Reservation, error) {
	body := map[string]string{}
	if projectType != "" {
		body["projectType"] = projectType
	}
	if countryCode != "" {
		body["countryCode"] = countryCode
	}

	var res Reservation
	if err := c.do(ctx, http.MethodPost, "/ledger/reserve", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Finalize settles a reservation as spent after a successful estimate
func (c *Client) Finalize(ctx context.Context, requestID string, report UsageReport) error {
	body := map[string]interface{}{
		"requestId":        requestID,
		"latencyMs":        report.LatencyMs,
		"responseSize":     report.ResponseSize,
		"estimatedCostUsd": report.EstimatedCostUsd,
	}
	return c.do(ctx, http.MethodPost, "/ledger/finalize", body, nil)
}

// Rollback refunds a reservation after a failed estimate
func (c *Client) Rollback(ctx context.Context, requestID, errorMessage string) error {
	body := map[string]string{
		"requestId":    requestID,
		"errorMessage": errorMessage,
	}
	return c.do(ctx, http.MethodPost, "/ledger/rollback", body, nil)
}

// Restore reconciles purchases and returns ledger truth for the device
func (c *Client) Restore(ctx context.Context) (*RestoreResult, error) {
	var res RestoreResult
	if err := c.do(ctx, http.MethodPost, "/ledger/restore", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Transactions returns a page of the device's ledger history
func (c *Client) Transactions(ctx context.Context, limit, offset int) ([]Transaction, error) {
	path := "/ledger/transactions?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)

	var page struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Transactions, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(DeviceHeader, c.deviceID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{
			Status:   res.StatusCode,
			Code:     "INTERNAL_ERROR",
			Message:  "unparseable response",
			sentinel: ErrInternal,
		}
	}

	if !env.Success || env.Error != nil {
		apiErr := &APIError{
			Status:   res.StatusCode,
			Code:     "INTERNAL_ERROR",
			Message:  "request failed",
			sentinel: ErrInternal,
		}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
			apiErr.sentinel = mapCode(env.Error.Code)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
