package sysconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository reads and writes the single system_config row.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context) (*Config, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var cfg Config
	err := r.db.GetContext(ctx2, &cfg, `
		SELECT ai_enabled, daily_limit_per_user, maintenance_mode, updated_at
		FROM system_config
		WHERE id = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("get system config: %w", err)
	}

	return &cfg, nil
}

func (r *Repository) Update(ctx context.Context, cfg *Config) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE system_config
		SET ai_enabled = $1, daily_limit_per_user = $2, maintenance_mode = $3, updated_at = now()
		WHERE id = 1
	`, cfg.AIEnabled, cfg.DailyLimitPerUser, cfg.MaintenanceMode)
	if err != nil {
		return fmt.Errorf("update system config: %w", err)
	}

	return nil
}
