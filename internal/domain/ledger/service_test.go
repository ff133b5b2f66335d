package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/estimax/estimax-api/internal/domain/ledger"
	"github.com/estimax/estimax-api/internal/domain/sysconfig"
)

func TestReserveBlockedByMaintenanceMode(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)
	defer resetSystemConfig(db)

	svc := newTestService(db)
	deviceID := testDeviceID()
	seedUser(t, ledger.NewRepository(db), deviceID, 5)

	setSystemConfig(t, db, true, 10, true)

	_, err := svc.Reserve(context.Background(), deviceID, ledger.ReserveRequest{})
	if !errors.Is(err, ledger.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable in maintenance mode, got %v", err)
	}
}

func TestReserveBlockedWhenAIDisabled(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)
	defer resetSystemConfig(db)

	svc := newTestService(db)
	deviceID := testDeviceID()
	seedUser(t, ledger.NewRepository(db), deviceID, 5)

	setSystemConfig(t, db, false, 10, false)

	_, err := svc.Reserve(context.Background(), deviceID, ledger.ReserveRequest{})
	if !errors.Is(err, ledger.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable with AI disabled, got %v", err)
	}
}

func TestInitUserReportsNewAndExisting(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)
	defer resetSystemConfig(db)

	svc := newTestService(db)
	deviceID := testDeviceID()

	setSystemConfig(t, db, true, 10, false)

	status, err := svc.InitUser(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !status.IsNewUser {
		t.Fatalf("expected isNewUser on first init")
	}
	if status.CreditsBalance != 0 {
		t.Fatalf("expected zero starting balance, got %d", status.CreditsBalance)
	}
	if !status.CanUseAI {
		t.Fatalf("expected canUseAi for fresh user under limit")
	}

	status, err = svc.InitUser(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if status.IsNewUser {
		t.Fatalf("expected isNewUser=false on repeat init")
	}
}

func TestStatusCanUseAIDerivation(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)
	defer resetSystemConfig(db)

	svc := newTestService(db)
	repo := ledger.NewRepository(db)
	deviceID := testDeviceID()
	seedUser(t, repo, deviceID, 5)

	setSystemConfig(t, db, true, 1, false)

	status, err := svc.GetStatus(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.CanUseAI {
		t.Fatalf("expected canUseAi before limit is hit")
	}

	res, err := svc.Reserve(context.Background(), deviceID, ledger.ReserveRequest{})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := svc.Finalize(context.Background(), deviceID, ledger.FinalizeRequest{RequestID: res.RequestID}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	status, err = svc.GetStatus(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CanUseAI {
		t.Fatalf("expected canUseAi=false once daily limit consumed")
	}
	if status.DailyUsage != 1 {
		t.Fatalf("expected dailyUsage=1, got %d", status.DailyUsage)
	}
}

func newTestService(db *sqlx.DB) *ledger.Service {
	cfgSvc := sysconfig.NewService(sysconfig.NewRepository(db), nil)
	return ledger.NewService(ledger.NewRepository(db), cfgSvc)
}

func setSystemConfig(t *testing.T, db *sqlx.DB, aiEnabled bool, dailyLimit int, maintenance bool) {
	t.Helper()
	_, err := db.Exec(`
		UPDATE system_config
		SET ai_enabled = $1, daily_limit_per_user = $2, maintenance_mode = $3, updated_at = now()
		WHERE id = 1
	`, aiEnabled, dailyLimit, maintenance)
	if err != nil {
		t.Fatalf("set system config failed: %v", err)
	}
}

func resetSystemConfig(db *sqlx.DB) {
	if db == nil {
		return
	}
	db.Exec(`UPDATE system_config SET ai_enabled = TRUE, daily_limit_per_user = 10, maintenance_mode = FALSE WHERE id = 1`)
}
