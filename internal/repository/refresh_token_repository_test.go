package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/storekit/storefront-backend/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Customer{}, &domain.Role{}, &domain.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTokenRow(customerID uint, suffix string) *domain.RefreshToken {
	return &domain.RefreshToken{
		CustomerID: customerID,
		TokenHash:  "hash-" + suffix,
		FamilyID:   "fam-" + suffix,
		ExpiresAt:  time.Now().Add(2 * time.Hour),
	}
}

func TestRefreshTokenCreateAndFindByHash(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	row := newTokenRow(1, "a")
	if err := repo.Create(row); err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := repo.FindByHash("hash-a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.CustomerID != 1 || found.FamilyID != "fam-a" {
		t.Fatalf("unexpected row: %+v", found)
	}
	if _, err := repo.FindByHash("absent"); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", err)
	}
}

func TestRotateRevokesOldAndCreatesNew(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	old := newTokenRow(1, "old")
	if err := repo.Create(old); err != nil {
		t.Fatalf("create: %v", err)
	}
	next := newTokenRow(1, "new")
	next.FamilyID = old.FamilyID

	rotated, err := repo.Rotate("hash-old", next)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !rotated.Revoked || rotated.RevokedReason == nil || *rotated.RevokedReason != RevokedReasonRotated {
		t.Fatalf("old row not marked rotated: %+v", rotated)
	}

	stored, err := repo.FindByHash("hash-old")
	if err != nil {
		t.Fatalf("find old: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("old row must be revoked after rotation")
	}
	fresh, err := repo.FindByHash("hash-new")
	if err != nil {
		t.Fatalf("find new: %v", err)
	}
	if fresh.Revoked || fresh.FamilyID != old.FamilyID {
		t.Fatalf("new row wrong: %+v", fresh)
	}
}

func TestRotateSpentTokenFails(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	old := newTokenRow(1, "old")
	if err := repo.Create(old); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Rotate("hash-old", newTokenRow(1, "n1")); err != nil {
		t.Fatalf("first rotate: %v", err)
	}
	// Second rotation of the same hash must lose.
	if _, err := repo.Rotate("hash-old", newTokenRow(1, "n2")); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", err)
	}
	// And the loser's candidate row must not exist.
	if _, err := repo.FindByHash("hash-n2"); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("loser row must not be created, got %v", err)
	}
}

func TestRotateExpiredTokenFails(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	expired := newTokenRow(1, "exp")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := repo.Create(expired); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Rotate("hash-exp", newTokenRow(1, "n")); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound for expired row, got %v", err)
	}
}

func TestRevokeByHashIsIdempotent(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	if err := repo.Create(newTokenRow(1, "a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.RevokeByHash("hash-a", RevokedReasonLogout); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	first, err := repo.FindByHash("hash-a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !first.Revoked || first.RevokedAt == nil {
		t.Fatalf("row not revoked: %+v", first)
	}
	firstRevokedAt := *first.RevokedAt

	time.Sleep(10 * time.Millisecond)
	if err := repo.RevokeByHash("hash-a", RevokedReasonUserRevoked); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	second, err := repo.FindByHash("hash-a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !second.RevokedAt.Equal(firstRevokedAt) {
		t.Fatalf("revoked_at changed on repeat revoke: %v -> %v", firstRevokedAt, second.RevokedAt)
	}
	if *second.RevokedReason != RevokedReasonLogout {
		t.Fatalf("revoked_reason overwritten: %v", *second.RevokedReason)
	}
}

func TestRevokeByFamilyID(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	for i := 0; i < 3; i++ {
		row := newTokenRow(1, fmt.Sprintf("f%d", i))
		row.FamilyID = "family-x"
		if err := repo.Create(row); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := newTokenRow(1, "other")
	if err := repo.Create(other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	n, err := repo.RevokeByFamilyID("family-x", RevokedReasonReuse)
	if err != nil {
		t.Fatalf("revoke family: %v", err)
	}
	if n != 3 {
		t.Fatalf("revoked %d rows, want 3", n)
	}
	kept, err := repo.FindByHash("hash-other")
	if err != nil {
		t.Fatalf("find other: %v", err)
	}
	if kept.Revoked {
		t.Fatal("unrelated family must stay usable")
	}
}

func TestRevokeOthersByCustomerKeepsCurrent(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	current := newTokenRow(1, "cur")
	if err := repo.Create(current); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(newTokenRow(1, "b")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(newTokenRow(2, "c")); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := repo.RevokeOthersByCustomer(1, current.ID, RevokedReasonRevokeOthers)
	if err != nil {
		t.Fatalf("revoke others: %v", err)
	}
	if n != 1 {
		t.Fatalf("revoked %d rows, want 1", n)
	}
	active, err := repo.ListActiveByCustomerID(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != current.ID {
		t.Fatalf("expected only current session active, got %+v", active)
	}
}

func TestRevokeByIDForCustomerScopesOwner(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	row := newTokenRow(1, "a")
	if err := repo.Create(row); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.RevokeByIDForCustomer(2, row.ID, RevokedReasonUserRevoked); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("other customer's revoke must miss, got %v", err)
	}
	changed, err := repo.RevokeByIDForCustomer(1, row.ID, RevokedReasonUserRevoked)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !changed {
		t.Fatal("expected first revoke to change the row")
	}
	changed, err = repo.RevokeByIDForCustomer(1, row.ID, RevokedReasonUserRevoked)
	if err != nil {
		t.Fatalf("repeat revoke: %v", err)
	}
	if changed {
		t.Fatal("repeat revoke must be a no-op")
	}
}

func TestDeleteExpiredRemovesOnlyPastRows(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	gone := newTokenRow(1, "gone")
	gone.ExpiresAt = time.Now().Add(-time.Hour)
	if err := repo.Create(gone); err != nil {
		t.Fatalf("create: %v", err)
	}
	goneRevoked := newTokenRow(1, "gone-revoked")
	goneRevoked.ExpiresAt = time.Now().Add(-time.Hour)
	goneRevoked.Revoked = true
	if err := repo.Create(goneRevoked); err != nil {
		t.Fatalf("create: %v", err)
	}
	live := newTokenRow(1, "live")
	if err := repo.Create(live); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := repo.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d rows, want 2", n)
	}
	if _, err := repo.FindByHash("hash-live"); err != nil {
		t.Fatalf("live row must survive the sweep: %v", err)
	}
}

func TestRevokedRowStaysRevokedAfterExpiryAndSweep(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	row := newTokenRow(1, "a")
	if err := repo.Create(row); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.RevokeByHash("hash-a", RevokedReasonLogout); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := repo.DeleteExpired(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// Not expired yet, so the row survives; it must still be revoked.
	found, err := repo.FindByHash("hash-a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Usable(time.Now()) {
		t.Fatal("revoked token must never become usable again")
	}
}
