package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/estimax/estimax-api/internal/domain/ledger"
	"github.com/estimax/estimax-api/internal/domain/user"
	"github.com/estimax/estimax-api/internal/pkg/revenuecat"
)

// Service applies payment platform events to the ledger and answers
// restore-purchases calls.
type Service struct {
	users  *user.Repository
	ledger *ledger.Repository
	rc     *revenuecat.Client
}

func NewService(users *user.Repository, ledgerRepo *ledger.Repository, rc *revenuecat.Client) *Service {
	return &Service{users: users, ledger: ledgerRepo, rc: rc}
}

// HandleEvent processes a single webhook event. Grants are idempotent
// per external transaction id, so webhook retries are safe. Unknown
// event types and unknown products are logged and acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event WebhookEvent) error {
	switch event.Type {
	case EventInitialPurchase, EventNonRenewingPurchase, EventRenewal:
	default:
		log.Debug().
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("ignoring webhook event")
		return nil
	}

	product, ok := LookupProduct(event.ProductID)
	if !ok {
		log.Warn().
			Str("product_id", event.ProductID).
			Str("event_id", event.ID).
			Msg("webhook event for unknown product")
		return nil
	}

	// app_user_id is the device id: the client registers the device
	// identifier as the RevenueCat app user id at purchase time.
	deviceID := event.AppUserID
	if deviceID == "" {
		deviceID = event.OriginalAppUserID
	}
	if deviceID == "" {
		return fmt.Errorf("webhook event %s has no app user id", event.ID)
	}

	u, _, _, err := s.ledger.GetOrCreateByDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolve user for webhook: %w", err)
	}

	if event.OriginalAppUserID != "" {
		if err := s.users.SetPaymentCustomerID(ctx, u.ID, event.OriginalAppUserID); err != nil {
			return fmt.Errorf("store payment customer id: %w", err)
		}
	}
	if err := s.users.UpdatePlan(ctx, u.ID, product.Plan); err != nil {
		return fmt.Errorf("update plan: %w", err)
	}

	txType := ledger.TxTypePurchase
	if event.Type == EventRenewal {
		txType = ledger.TxTypeSubscriptionRenewal
	}

	referenceID := event.TransactionID
	if referenceID == "" {
		referenceID = event.ID
	}
	description := fmt.Sprintf("%s via %s (+%s credits)",
		event.ProductID, event.Store, strconv.Itoa(product.Credits))

	err = s.ledger.Grant(ctx, u.ID, product.Credits, txType, referenceID, description)
	if errors.Is(err, ledger.ErrReferenceConflict) {
		return fmt.Errorf("webhook reference %s already granted with different amount: %w", referenceID, err)
	}
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}

	log.Info().
		Str("user_id", u.ID.String()).
		Str("product_id", event.ProductID).
		Int("credits", product.Credits).
		Str("reference_id", referenceID).
		Msg("purchase credited")

	return nil
}

// Restore reconciles the caller's wallet against the payment platform
// and reports ledger truth. It never mutates wallet or transaction
// state; new purchases arrive only through the webhook path.
func (s *Service) Restore(ctx context.Context, deviceID string) (*RestoreResponse, error) {
	u, err := s.users.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ledger.ErrUserNotFound
		}
		return nil, err
	}

	// Best effort: the subscriber lookup cross-checks that store state
	// and ledger state agree. Its absence never fails a restore.
	if s.rc.Configured() {
		appUserID := deviceID
		if u.PaymentCustomerID != nil && *u.PaymentCustomerID != "" {
			appUserID = *u.PaymentCustomerID
		}
		sub, err := s.rc.GetSubscriber(ctx, appUserID)
		switch {
		case errors.Is(err, revenuecat.ErrSubscriberNotFound):
			log.Debug().Str("user_id", u.ID.String()).Msg("no subscriber record on restore")
		case err != nil:
			log.Warn().Err(err).Str("user_id", u.ID.String()).Msg("subscriber lookup failed on restore")
		default:
			log.Debug().
				Str("user_id", u.ID.String()).
				Int("entitlements", len(sub.Entitlements)).
				Msg("subscriber record fetched on restore")
		}
	}

	wallet, err := s.ledger.GetWallet(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	purchases, err := s.ledger.ListPurchases(ctx, u.ID, 50)
	if err != nil {
		return nil, err
	}

	totalUsage, err := s.ledger.CountCompleted(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &RestoreResponse{
		CreditsBalance:  wallet.CreditsBalance,
		LifetimeCredits: wallet.LifetimeCredits,
		TotalPurchases:  len(purchases),
		TotalUsage:      totalUsage,
		Transactions:    purchases,
	}, nil
}
