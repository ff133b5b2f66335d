package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository provides read and profile-update access to users.
// Lazy creation of users happens inside the ledger repository's
// transactions, never here.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByDeviceID(ctx context.Context, deviceID string) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `
		SELECT id, device_id, email, plan_type, is_active, payment_customer_id, created_at, updated_at
		FROM users
		WHERE device_id = $1
	`, deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by device: %w", err)
	}

	return &u, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `
		SELECT id, device_id, email, plan_type, is_active, payment_customer_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &u, nil
}

// UpdatePlan sets the user's plan tier
func (r *Repository) UpdatePlan(ctx context.Context, id uuid.UUID, plan PlanType) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `
		UPDATE users SET plan_type = $2, updated_at = now() WHERE id = $1
	`, id, plan)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SetPaymentCustomerID records the payment platform's customer key for
// later reconciliation. The first non-empty value wins.
func (r *Repository) SetPaymentCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE users
		SET payment_customer_id = $2, updated_at = now()
		WHERE id = $1 AND (payment_customer_id IS NULL OR payment_customer_id = '')
	`, id, customerID)
	if err != nil {
		return fmt.Errorf("set payment customer id: %w", err)
	}

	return nil
}
