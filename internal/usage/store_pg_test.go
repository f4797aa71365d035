package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*pgStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

func entitlementColumns() []string {
	return []string{"plan", "max_documents", "ai_credits", "ai_credits_used", "resets_at"}
}

func TestPGStoreEnsureInsertsDefaultsForNewUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, max_documents").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementColumns()))
	mock.ExpectExec("INSERT INTO entitlements").
		WithArgs("user-1", "Free", 2, 0, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	e, err := store.EnsurePeriod(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EnsurePeriod: %v", err)
	}
	if e.Plan != "Free" || e.MaxDocuments != 2 {
		t.Fatalf("unexpected defaults: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreEnsureRollsExpiredWindow(t *testing.T) {
	store, mock := newMockStore(t)

	expired := time.Now().UTC().Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, max_documents").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementColumns()).
			AddRow("Pro", -1, 200, 150, expired))
	mock.ExpectExec("UPDATE entitlements SET ai_credits_used").
		WithArgs(0, sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := store.EnsurePeriod(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EnsurePeriod: %v", err)
	}
	if e.AICreditsUsed != 0 {
		t.Fatalf("expired window not rolled: %+v", e)
	}
	if !e.ResetsAt.After(time.Now().UTC()) {
		t.Fatalf("window not advanced: %v", e.ResetsAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreConsumeSpendsWithinLimit(t *testing.T) {
	store, mock := newMockStore(t)

	resetsAt := time.Now().UTC().Add(creditPeriod)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, max_documents").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementColumns()).
			AddRow("Pro", -1, 200, 10, resetsAt))
	mock.ExpectExec("UPDATE entitlements SET ai_credits_used").
		WithArgs(13, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e, err := store.Consume(context.Background(), "user-1", 3)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if e.AICreditsUsed != 13 {
		t.Fatalf("expected 13 used, got %d", e.AICreditsUsed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreConsumeRollsBackOnLimit(t *testing.T) {
	store, mock := newMockStore(t)

	resetsAt := time.Now().UTC().Add(creditPeriod)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, max_documents").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(entitlementColumns()).
			AddRow("Pro", -1, 200, 199, resetsAt))
	mock.ExpectRollback()

	_, err := store.Consume(context.Background(), "user-1", 5)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreSetPlanUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO entitlements").
		WithArgs("user-1", "Pro", -1, 200, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e, err := store.SetPlan(context.Background(), "user-1", "Pro")
	if err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	if e.Plan != "Pro" || e.AICredits != 200 {
		t.Fatalf("unexpected entitlements: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreSetPlanRejectsUnknown(t *testing.T) {
	store, _ := newMockStore(t)
	if _, err := store.SetPlan(context.Background(), "user-1", "Platinum"); err == nil {
		t.Fatal("expected an error for an unknown plan")
	}
}
