package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository handles admin user persistence
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetByEmail returns an admin by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	query := `
		SELECT id, email, password_hash, name, is_active, last_login_at, created_at, updated_at
		FROM admin_users
		WHERE LOWER(email) = LOWER($1)`

	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin by email: %w", err)
	}
	return &u, nil
}

// GetByID returns an admin by id
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	query := `
		SELECT id, email, password_hash, name, is_active, last_login_at, created_at, updated_at
		FROM admin_users
		WHERE id = $1`

	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin by id: %w", err)
	}
	return &u, nil
}

// UpdateLastLogin records a successful login
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE admin_users SET last_login_at = now(), updated_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
