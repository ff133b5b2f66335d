package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/estimax/estimax-api/internal/domain/user"
)

const queryTimeout = 5 * time.Second

// startOfUTCDay is the boundary used for daily quota counting.
const startOfUTCDay = `date_trunc('day', now() AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'`

// Repository owns every wallet mutation. Each exported mutation runs as
// one transaction holding a FOR UPDATE lock on the wallet row, so two
// concurrent reserves against a one-credit wallet can never both succeed.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// ensureUser lazily creates the user and wallet rows for a device.
// Returns true when the user was created by this call.
func (r *Repository) ensureUser(ctx context.Context, tx *sqlx.Tx, deviceID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	if err != nil {
		return false, fmt.Errorf("%w: insert user", ErrInternal)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: insert user rows", ErrInternal)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id)
		SELECT id FROM users WHERE device_id = $1
		ON CONFLICT (user_id) DO NOTHING
	`, deviceID); err != nil {
		return false, fmt.Errorf("%w: insert wallet", ErrInternal)
	}

	return rows > 0, nil
}

// lockWallet takes the FOR UPDATE lock on the device's wallet row and
// returns the user alongside the locked wallet snapshot.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, deviceID string) (*user.User, *Wallet, error) {
	var u user.User
	err := tx.GetContext(ctx, &u, `
		SELECT id, device_id, email, plan_type, is_active, payment_customer_id, created_at, updated_at
		FROM users WHERE device_id = $1
	`, deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("%w: get user", ErrInternal)
	}

	w, err := r.lockWalletByUserID(ctx, tx, u.ID)
	if err != nil {
		return nil, nil, err
	}

	return &u, w, nil
}

func (r *Repository) lockWalletByUserID(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT user_id, credits_balance, credits_reserved, lifetime_credits, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: lock wallet", ErrInternal)
	}
	return &w, nil
}

// GetOrCreateByDevice resolves the user and wallet for a device,
// creating both on first contact. Idempotent on device id uniqueness.
func (r *Repository) GetOrCreateByDevice(ctx context.Context, deviceID string) (*user.User, *Wallet, bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	isNew, err := r.ensureUser(ctx2, tx, deviceID)
	if err != nil {
		return nil, nil, false, err
	}

	var u user.User
	if err := tx.GetContext(ctx2, &u, `
		SELECT id, device_id, email, plan_type, is_active, payment_customer_id, created_at, updated_at
		FROM users WHERE device_id = $1
	`, deviceID); err != nil {
		return nil, nil, false, fmt.Errorf("%w: get user", ErrInternal)
	}

	var w Wallet
	if err := tx.GetContext(ctx2, &w, `
		SELECT user_id, credits_balance, credits_reserved, lifetime_credits, updated_at
		FROM wallets WHERE user_id = $1
	`, u.ID); err != nil {
		return nil, nil, false, fmt.Errorf("%w: get wallet", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return &u, &w, isNew, nil
}

// Status returns the user, wallet and today's completed usage count in
// one repeatable-read snapshot. Never creates anything.
func (r *Repository) Status(ctx context.Context, deviceID string) (*user.User, *Wallet, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var u user.User
	if err := tx.GetContext(ctx2, &u, `
		SELECT id, device_id, email, plan_type, is_active, payment_customer_id, created_at, updated_at
		FROM users WHERE device_id = $1
	`, deviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, 0, ErrUserNotFound
		}
		return nil, nil, 0, fmt.Errorf("%w: get user", ErrInternal)
	}

	var w Wallet
	if err := tx.GetContext(ctx2, &w, `
		SELECT user_id, credits_balance, credits_reserved, lifetime_credits, updated_at
		FROM wallets WHERE user_id = $1
	`, u.ID); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: get wallet", ErrInternal)
	}

	dailyUsage, err := r.countCompletedToday(ctx2, tx, u.ID)
	if err != nil {
		return nil, nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return &u, &w, dailyUsage, nil
}

func (r *Repository) countCompletedToday(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		SELECT COUNT(*) FROM usage_logs
		WHERE user_id = $1 AND status = 'completed' AND created_at >= `+startOfUTCDay,
		userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count daily usage", ErrInternal)
	}
	return count, nil
}

// Reserve holds one credit for the device: balance -1, reserved +1, and
// a pending usage row, all in one transaction against the locked wallet.
// The daily quota is counted inside the same transaction so concurrent
// reserves serialize on the wallet lock before reading it.
func (r *Repository) Reserve(ctx context.Context, deviceID string, dailyLimit int, projectType, countryCode *string) (*ReserveResponse, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if _, err := r.ensureUser(ctx2, tx, deviceID); err != nil {
		return nil, err
	}

	u, w, err := r.lockWallet(ctx2, tx, deviceID)
	if err != nil {
		return nil, err
	}

	dailyUsage, err := r.countCompletedToday(ctx2, tx, u.ID)
	if err != nil {
		return nil, err
	}
	if dailyUsage >= dailyLimit {
		return nil, ErrDailyLimitReached
	}

	if w.CreditsBalance < 1 {
		return nil, ErrInsufficientCredits
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE wallets
		SET credits_balance = credits_balance - 1,
		    credits_reserved = credits_reserved + 1,
		    updated_at = now()
		WHERE user_id = $1
	`, u.ID); err != nil {
		return nil, fmt.Errorf("%w: update wallet", ErrInternal)
	}

	requestID := "req_" + uuid.NewString()
	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO usage_logs (id, user_id, request_id, status, project_type, country_code)
		VALUES (gen_random_uuid(), $1, $2, 'pending', $3, $4)
	`, u.ID, requestID, projectType, countryCode); err != nil {
		return nil, fmt.Errorf("%w: insert usage log", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return &ReserveResponse{
		RequestID:       requestID,
		CreditsBalance:  w.CreditsBalance - 1,
		CreditsReserved: w.CreditsReserved + 1,
	}, nil
}

type lockedUsage struct {
	ID       uuid.UUID   `db:"id"`
	UserID   uuid.UUID   `db:"user_id"`
	Status   UsageStatus `db:"status"`
	DeviceID string      `db:"device_id"`
}

// lockUsage takes the FOR UPDATE lock on a usage row by request id.
// Lock order is always usage row, then wallet row.
func (r *Repository) lockUsage(ctx context.Context, tx *sqlx.Tx, requestID string) (*lockedUsage, error) {
	var row lockedUsage
	err := tx.GetContext(ctx, &row, `
		SELECT ul.id, ul.user_id, ul.status, u.device_id
		FROM usage_logs ul
		JOIN users u ON u.id = ul.user_id
		WHERE ul.request_id = $1
		FOR UPDATE OF ul
	`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("%w: lock usage log", ErrInternal)
	}
	return &row, nil
}

// Finalize settles a pending reservation as spent: reserved -1, one
// usage transaction of -1, usage row completed with metadata. The
// debited balance is not restored.
func (r *Repository) Finalize(ctx context.Context, deviceID, requestID string, meta UsageMeta) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	row, err := r.lockUsage(ctx2, tx, requestID)
	if err != nil {
		return err
	}
	if row.DeviceID != deviceID {
		return ErrForeignReservation
	}
	if row.Status != UsagePending {
		return ErrReservationNotFound
	}

	w, err := r.lockWalletByUserID(ctx2, tx, row.UserID)
	if err != nil {
		return err
	}
	if w.CreditsReserved < 1 {
		return fmt.Errorf("%w: reserved underflow for user %s", ErrInternal, row.UserID)
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE wallets
		SET credits_reserved = credits_reserved - 1, updated_at = now()
		WHERE user_id = $1
	`, row.UserID); err != nil {
		return fmt.Errorf("%w: update wallet", ErrInternal)
	}

	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO transactions (id, user_id, amount, type, reference_id, description)
		VALUES (gen_random_uuid(), $1, -1, 'usage', $2, 'AI cost estimate')
	`, row.UserID, requestID); err != nil {
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE usage_logs
		SET status = 'completed', latency_ms = $2, response_size = $3,
		    estimated_cost_usd = $4, updated_at = now()
		WHERE id = $1
	`, row.ID, meta.LatencyMs, meta.ResponseSize, meta.EstimatedCostUsd); err != nil {
		return fmt.Errorf("%w: update usage log", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

// Rollback refunds a pending reservation in full: reserved -1,
// balance +1, usage row failed. No transaction row is written; the
// credit was never actually spent.
func (r *Repository) Rollback(ctx context.Context, deviceID, requestID, errorMessage string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	row, err := r.lockUsage(ctx2, tx, requestID)
	if err != nil {
		return err
	}
	if row.DeviceID != deviceID {
		return ErrForeignReservation
	}
	if row.Status != UsagePending {
		return ErrReservationNotFound
	}

	if err := r.releaseLocked(ctx2, tx, row, errorMessage); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

// releaseLocked reverses a locked pending reservation within tx.
func (r *Repository) releaseLocked(ctx context.Context, tx *sqlx.Tx, row *lockedUsage, errorMessage string) error {
	w, err := r.lockWalletByUserID(ctx, tx, row.UserID)
	if err != nil {
		return err
	}
	if w.CreditsReserved < 1 {
		return fmt.Errorf("%w: reserved underflow for user %s", ErrInternal, row.UserID)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET credits_reserved = credits_reserved - 1,
		    credits_balance = credits_balance + 1,
		    updated_at = now()
		WHERE user_id = $1
	`, row.UserID); err != nil {
		return fmt.Errorf("%w: update wallet", ErrInternal)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE usage_logs
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1
	`, row.ID, errorMessage); err != nil {
		return fmt.Errorf("%w: update usage log", ErrInternal)
	}

	return nil
}

// ExpirePending rolls back every pending reservation created before the
// cutoff. Each row is released in its own transaction, re-checking the
// pending state under lock so a concurrent finalize wins cleanly.
func (r *Repository) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	var requestIDs []string
	err := r.db.SelectContext(ctx, &requestIDs, `
		SELECT request_id FROM usage_logs
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: list expired reservations", ErrInternal)
	}

	expired := 0
	for _, requestID := range requestIDs {
		ok, err := r.expireOne(ctx, requestID, cutoff)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

func (r *Repository) expireOne(ctx context.Context, requestID string, cutoff time.Time) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return false, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	row, err := r.lockUsage(ctx2, tx, requestID)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return false, nil
		}
		return false, err
	}
	if row.Status != UsagePending {
		// Finalized or rolled back between the scan and the lock.
		return false, nil
	}

	if err := r.releaseLocked(ctx2, tx, row, "reservation expired"); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return true, nil
}

// Grant credits a wallet from a purchase or subscription renewal,
// idempotent per (user, type, reference): redelivering the same external
// transaction id is a no-op, while reusing it with a different amount is
// rejected.
func (r *Repository) Grant(ctx context.Context, userID uuid.UUID, amount int, txType TransactionType, referenceID, description string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: grant amount must be positive", ErrInternal)
	}
	if txType != TxTypePurchase && txType != TxTypeSubscriptionRenewal {
		return fmt.Errorf("%w: grant type %q", ErrInternal, txType)
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.beginTx(ctx2)
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if _, err := r.lockWalletByUserID(ctx2, tx, userID); err != nil {
		return err
	}

	existing, exists, err := r.transactionAmountByRef(ctx2, tx, userID, txType, referenceID)
	if err != nil {
		return err
	}
	if exists {
		if existing != amount {
			return ErrReferenceConflict
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE wallets
		SET credits_balance = credits_balance + $2,
		    lifetime_credits = lifetime_credits + $2,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, amount); err != nil {
		return fmt.Errorf("%w: update wallet", ErrInternal)
	}

	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO transactions (id, user_id, amount, type, reference_id, description)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
	`, userID, amount, string(txType), referenceID, description); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Lost a race on the unique reference index; treat the
			// winner's identical grant as ours.
			existing, exists, checkErr := r.transactionAmountByRef(ctx2, tx, userID, txType, referenceID)
			if checkErr != nil {
				return checkErr
			}
			if !exists || existing != amount {
				return ErrReferenceConflict
			}
			return nil
		}
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return nil
}

func (r *Repository) transactionAmountByRef(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, txType TransactionType, referenceID string) (int, bool, error) {
	if referenceID == "" {
		return 0, false, nil
	}

	var amount int
	err := tx.GetContext(ctx, &amount, `
		SELECT amount FROM transactions
		WHERE user_id = $1 AND type = $2 AND reference_id = $3
		LIMIT 1
	`, userID, string(txType), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: get transaction by reference", ErrInternal)
	}
	return amount, true, nil
}

// ListTransactions returns the user's ledger history, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, amount, type, reference_id, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}

	return transactions, nil
}

// ListPurchases returns recent credit-granting transactions.
func (r *Repository) ListPurchases(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, amount, type, reference_id, description, created_at
		FROM transactions
		WHERE user_id = $1 AND type IN ('purchase', 'subscription_renewal')
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list purchases", ErrInternal)
	}

	return transactions, nil
}

// CountCompleted returns the user's all-time completed usage count.
func (r *Repository) CountCompleted(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx2, &count, `
		SELECT COUNT(*) FROM usage_logs WHERE user_id = $1 AND status = 'completed'
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count completed usage", ErrInternal)
	}

	return count, nil
}

// GetWallet returns the wallet without locking it.
func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx2, &w, `
		SELECT user_id, credits_balance, credits_reserved, lifetime_credits, updated_at
		FROM wallets WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: get wallet", ErrInternal)
	}

	return &w, nil
}

// GetUsageLog returns a usage row by request id.
func (r *Repository) GetUsageLog(ctx context.Context, requestID string) (*UsageLog, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ul UsageLog
	err := r.db.GetContext(ctx2, &ul, `
		SELECT id, user_id, request_id, status, project_type, country_code,
		       latency_ms, response_size, estimated_cost_usd, error_message,
		       created_at, updated_at
		FROM usage_logs WHERE request_id = $1
	`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("%w: get usage log", ErrInternal)
	}

	return &ul, nil
}
