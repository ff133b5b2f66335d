package revenuecat

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSubscriberNotFound is returned when RevenueCat has no record for the
// given app user id.
var ErrSubscriberNotFound = errors.New("revenuecat subscriber not found")

// Config holds RevenueCat API configuration
type Config struct {
	BaseURL       string // defaults to the public API
	APIKey        string // secret API key, used as Bearer token
	WebhookSecret string // shared Authorization secret for webhooks
	Timeout       time.Duration
}

// Client represents a RevenueCat REST API client
type Client struct {
	httpClient *http.Client
	config     Config
}

// Subscriber is the subset of the RevenueCat subscriber record the ledger
// cares about.
type Subscriber struct {
	OriginalAppUserID string                        `json:"original_app_user_id"`
	Entitlements      map[string]Entitlement        `json:"entitlements"`
	Subscriptions     map[string]Subscription       `json:"subscriptions"`
	NonSubscriptions  map[string][]NonSubscription  `json:"non_subscriptions"`
}

// Entitlement is an active or expired entitlement on a subscriber
type Entitlement struct {
	ExpiresDate       *string `json:"expires_date"`
	ProductIdentifier string  `json:"product_identifier"`
	PurchaseDate      *string `json:"purchase_date"`
}

// Subscription is a store subscription attached to a subscriber
type Subscription struct {
	ExpiresDate  *string `json:"expires_date"`
	PurchaseDate *string `json:"purchase_date"`
	Store        string  `json:"store"`
}

// NonSubscription is a one-time purchase attached to a subscriber
type NonSubscription struct {
	ID           string  `json:"id"`
	PurchaseDate *string `json:"purchase_date"`
	Store        string  `json:"store"`
}

type subscriberResponse struct {
	Subscriber Subscriber `json:"subscriber"`
}

// NewClient creates a new RevenueCat API client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.revenuecat.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Configured reports whether the client has an API key and can make
// subscriber lookups.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.config.APIKey) != ""
}

// GetSubscriber fetches the subscriber record for an app user id
func (c *Client) GetSubscriber(ctx context.Context, appUserID string) (*Subscriber, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("revenuecat config error: api key is empty")
	}
	if strings.TrimSpace(appUserID) == "" {
		return nil, fmt.Errorf("validation error: app user id must be non-empty")
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/subscribers/" + appUserID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create revenuecat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.config.APIKey))
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriber: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read revenuecat response: %w", err)
	}

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrSubscriberNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("revenuecat API error: status %d", res.StatusCode)
	}

	var payload subscriberResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse revenuecat response: %w", err)
	}

	return &payload.Subscriber, nil
}

// VerifyWebhookAuth checks the Authorization header RevenueCat sends with
// every webhook delivery against the configured shared secret.
func (c *Client) VerifyWebhookAuth(authHeader string) bool {
	secret := strings.TrimSpace(c.config.WebhookSecret)
	if secret == "" {
		return false
	}

	got := strings.TrimSpace(authHeader)
	if strings.HasPrefix(strings.ToLower(got), "bearer ") {
		got = strings.TrimSpace(got[len("bearer "):])
	}

	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
