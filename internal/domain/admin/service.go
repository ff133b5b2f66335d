package admin

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/estimax/estimax-api/internal/domain/sysconfig"
	"github.com/estimax/estimax-api/internal/pkg/jwt"
	"github.com/estimax/estimax-api/internal/pkg/password"
)

// Service handles admin authentication and runtime config management
type Service struct {
	repo   *Repository
	tokens *jwt.Service
	config *sysconfig.Service
}

func NewService(repo *Repository, tokens *jwt.Service, config *sysconfig.Service) *Service {
	return &Service{repo: repo, tokens: tokens, config: config}
}

// Login authenticates an admin and returns a signed access token
func (s *Service) Login(ctx context.Context, email, pwd string) (*LoginResponse, error) {
	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !admin.IsActive {
		return nil, ErrAdminInactive
	}

	if !password.Verify(pwd, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(admin.ID, admin.Email)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, admin.ID); err != nil {
		log.Warn().Err(err).Str("admin_id", admin.ID.String()).Msg("Failed to record last login")
	}

	log.Info().Str("admin_id", admin.ID.String()).Msg("admin logged in")

	return &LoginResponse{Token: token, Admin: admin}, nil
}

// GetConfig returns the current runtime configuration
func (s *Service) GetConfig(ctx context.Context) (*sysconfig.Config, error) {
	return s.config.Get(ctx)
}

// UpdateConfig applies a partial config update and returns the result
func (s *Service) UpdateConfig(ctx context.Context, req UpdateConfigRequest) (*sysconfig.Config, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	if req.AIEnabled != nil {
		cfg.AIEnabled = *req.AIEnabled
	}
	if req.DailyLimitPerUser != nil {
		cfg.DailyLimitPerUser = *req.DailyLimitPerUser
	}
	if req.MaintenanceMode != nil {
		cfg.MaintenanceMode = *req.MaintenanceMode
	}

	if err := s.config.Update(ctx, cfg); err != nil {
		return nil, err
	}

	log.Info().
		Bool("ai_enabled", cfg.AIEnabled).
		Int("daily_limit", cfg.DailyLimitPerUser).
		Bool("maintenance_mode", cfg.MaintenanceMode).
		Msg("system config updated")

	return cfg, nil
}
