package testutil_test

import (
	"testing"

	"github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "categories", "cards", "obligations", "statements", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_isolated(t *testing.T) {
	first := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, first)
	second := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, second)

	testutil.CreateTestUser(t, first)

	var count int64
	second.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("expected an empty second database, found %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}

	category := testutil.CreateTestCategory(t, db, user.ID)
	card := testutil.CreateTestCard(t, db, user.ID, 25, 1)
	if card.ClosingDay != 25 || card.DueDay != 1 {
		t.Errorf("unexpected card days %d/%d", card.ClosingDay, card.DueDay)
	}

	purchase := testutil.CreateTestPurchase(t, db, user.ID, category.ID, card.ID, "150.40", testutil.Day(t, "2025-09-10"))
	if !purchase.IsCardPurchase() {
		t.Error("expected a card purchase")
	}

	stmt := testutil.CreateTestStatement(t, db, card, testutil.Day(t, "2025-09-26"), "150.40")
	if !stmt.Covers(purchase.DueDate) {
		t.Errorf("statement %s..%s should cover %s", stmt.PeriodStart, stmt.PeriodEnd, purchase.DueDate)
	}
	if stmt.Status != models.StatementStatusPending {
		t.Errorf("expected pending statement, got %s", stmt.Status)
	}
}

func TestAssertAppError(t *testing.T) {
	testutil.AssertAppError(t, errors.ErrObligationNotFound, "OBLIGATION_NOT_FOUND")
	testutil.AssertAppError(t, errors.WithMessage(errors.ErrInvalidInput, "bad"), "INVALID_INPUT")
}
