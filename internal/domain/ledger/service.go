package ledger

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/estimax/estimax-api/internal/domain/sysconfig"
	"github.com/estimax/estimax-api/internal/domain/user"
)

const recentTransactionsLimit = 10

// Service implements the reservation protocol on top of the repository.
// It is stateless; all shared mutable state lives in the store.
type Service struct {
	repo   *Repository
	config *sysconfig.Service
}

func NewService(repo *Repository, config *sysconfig.Service) *Service {
	return &Service{repo: repo, config: config}
}

// InitUser creates the user and wallet on first contact and returns the
// full status. Idempotent per device.
func (s *Service) InitUser(ctx context.Context, deviceID string) (*UserStatus, error) {
	u, w, isNew, err := s.repo.GetOrCreateByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if isNew {
		log.Info().Str("user_id", u.ID.String()).Str("device_id", deviceID).Msg("user created")
	}

	dailyUsage := 0
	if !isNew {
		dailyUsage, err = s.repo.countCompletedToday(ctx, s.repo.db, u.ID)
		if err != nil {
			return nil, err
		}
	}

	status, err := s.buildStatus(ctx, u, w, dailyUsage)
	if err != nil {
		return nil, err
	}
	status.IsNewUser = isNew

	return status, nil
}

// GetStatus returns the status projection without creating anything.
func (s *Service) GetStatus(ctx context.Context, deviceID string) (*UserStatus, error) {
	u, w, dailyUsage, err := s.repo.Status(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	status, err := s.buildStatus(ctx, u, w, dailyUsage)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.ListTransactions(ctx, u.ID, recentTransactionsLimit, 0)
	if err != nil {
		return nil, err
	}
	status.RecentTransactions = recent

	return status, nil
}

func (s *Service) buildStatus(ctx context.Context, u *user.User, w *Wallet, dailyUsage int) (*UserStatus, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &UserStatus{
		UserID:            u.ID,
		DeviceID:          u.DeviceID,
		Email:             u.Email,
		PlanType:          u.PlanType,
		IsActive:          u.IsActive,
		PaymentCustomerID: u.PaymentCustomerID,
		CreditsBalance:    w.CreditsBalance,
		CreditsReserved:   w.CreditsReserved,
		LifetimeCredits:   w.LifetimeCredits,
		DailyUsage:        dailyUsage,
		DailyLimit:        cfg.DailyLimitPerUser,
		CanUseAI:          cfg.AIEnabled && !cfg.MaintenanceMode && dailyUsage < cfg.DailyLimitPerUser,
	}, nil
}

// Reserve holds one credit for the device. The runtime config gate runs
// before any state is touched; the quota and balance checks run inside
// the repository's transaction.
func (s *Service) Reserve(ctx context.Context, deviceID string, req ReserveRequest) (*ReserveResponse, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.MaintenanceMode || !cfg.AIEnabled {
		return nil, ErrServiceUnavailable
	}

	res, err := s.repo.Reserve(ctx, deviceID, cfg.DailyLimitPerUser, optional(req.ProjectType), optional(req.CountryCode))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("device_id", deviceID).
		Str("request_id", res.RequestID).
		Int("credits_balance", res.CreditsBalance).
		Msg("credit reserved")

	return res, nil
}

// Finalize settles a reservation as spent after a successful estimate.
func (s *Service) Finalize(ctx context.Context, deviceID string, req FinalizeRequest) error {
	meta := UsageMeta{
		LatencyMs:        req.LatencyMs,
		ResponseSize:     req.ResponseSize,
		EstimatedCostUsd: req.EstimatedCostUsd,
	}

	if err := s.repo.Finalize(ctx, deviceID, req.RequestID, meta); err != nil {
		return err
	}

	log.Info().
		Str("device_id", deviceID).
		Str("request_id", req.RequestID).
		Int("latency_ms", req.LatencyMs).
		Msg("reservation finalized")

	return nil
}

// Rollback refunds a reservation in full after a failed estimate.
func (s *Service) Rollback(ctx context.Context, deviceID string, req RollbackRequest) error {
	if err := s.repo.Rollback(ctx, deviceID, req.RequestID, req.ErrorMessage); err != nil {
		return err
	}

	log.Info().
		Str("device_id", deviceID).
		Str("request_id", req.RequestID).
		Str("error", req.ErrorMessage).
		Msg("reservation rolled back")

	return nil
}

// Transactions returns the device's ledger history
func (s *Service) Transactions(ctx context.Context, deviceID string, limit, offset int) ([]Transaction, error) {
	u, _, _, err := s.repo.Status(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, u.ID, limit, offset)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
