package user

import (
	"context"
	"testing"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/data/repos/testutil"
	types "github.com/VictorGoic0/SpendSense/internal/domain"
	"github.com/VictorGoic0/SpendSense/internal/platform/dbctx"
)

func TestUserRepoUpsertAndGet(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	n, err := repo.UpsertBatch(dbc, []*types.User{
		{UserID: "usr_repo_1", FullName: "First User", Email: "usr_repo_1@example.com", UserType: types.UserTypeCustomer},
		{UserID: "usr_repo_2", FullName: "Second User", Email: "usr_repo_2@example.com", UserType: types.UserTypeOperator},
	})
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows affected, got %d", n)
	}

	// Re-upsert with a changed name updates in place instead of duplicating.
	if _, err := repo.UpsertBatch(dbc, []*types.User{
		{UserID: "usr_repo_1", FullName: "Renamed User", Email: "usr_repo_1@example.com", UserType: types.UserTypeCustomer},
	}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := repo.GetByID(dbc, "usr_repo_1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.FullName != "Renamed User" {
		t.Fatalf("expected renamed user, got %+v", got)
	}

	count, err := repo.Count(dbc, UserFilter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 users, got %d", count)
	}

	missing, err := repo.GetByID(dbc, "usr_missing")
	if err != nil {
		t.Fatalf("GetByID missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown user, got %+v", missing)
	}
}

func TestUserRepoListFilters(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	testutil.SeedUser(t, dbc.Ctx, tx, "usr_filter_a", true)
	testutil.SeedUser(t, dbc.Ctx, tx, "usr_filter_b", false)
	op := testutil.SeedUser(t, dbc.Ctx, tx, "usr_filter_op", false)
	if err := tx.Model(op).Update("user_type", types.UserTypeOperator).Error; err != nil {
		t.Fatalf("promote operator: %v", err)
	}

	consented := true
	rows, err := repo.List(dbc, UserFilter{ConsentStatus: &consented}, 10, 0)
	if err != nil {
		t.Fatalf("List consented: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != "usr_filter_a" {
		t.Fatalf("expected only usr_filter_a, got %d rows", len(rows))
	}

	rows, err = repo.List(dbc, UserFilter{UserType: types.UserTypeCustomer}, 10, 0)
	if err != nil {
		t.Fatalf("List customers: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(rows))
	}
}

func TestUserRepoSetConsent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	testutil.SeedUser(t, dbc.Ctx, tx, "usr_consent_flip", false)

	grantAt := time.Now().UTC()
	if err := repo.SetConsent(dbc, "usr_consent_flip", true, grantAt); err != nil {
		t.Fatalf("grant: %v", err)
	}
	got, err := repo.GetByID(dbc, "usr_consent_flip")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.ConsentStatus || got.ConsentGrantedAt == nil || got.ConsentRevokedAt != nil {
		t.Fatalf("grant did not stamp correctly: %+v", got)
	}

	revokeAt := grantAt.Add(time.Hour)
	if err := repo.SetConsent(dbc, "usr_consent_flip", false, revokeAt); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, err = repo.GetByID(dbc, "usr_consent_flip")
	if err != nil {
		t.Fatalf("GetByID after revoke: %v", err)
	}
	if got.ConsentStatus || got.ConsentRevokedAt == nil {
		t.Fatalf("revoke did not stamp correctly: %+v", got)
	}
	// The grant stamp survives revocation for the audit trail.
	if got.ConsentGrantedAt == nil {
		t.Fatalf("expected grant stamp to survive revocation")
	}
}
