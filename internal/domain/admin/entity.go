package admin

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents an operator account on the admin surface
type User struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	Name         string       `db:"name" json:"name"`
	IsActive     bool         `db:"is_active" json:"isActive"`
	LastLoginAt  sql.NullTime `db:"last_login_at" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}
