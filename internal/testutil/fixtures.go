package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/uuid"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Day parses a YYYY-MM-DD date as UTC midnight.
func Day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatalf("invalid date %q: %v", s, err)
	}
	return d
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     "Test User",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Category %d", nextID()),
		Color:  "#3B82F6",
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestCard creates an active card with the given closing and due days.
func CreateTestCard(t *testing.T, db *gorm.DB, userID string, closingDay, dueDay int) *models.Card {
	t.Helper()

	card := &models.Card{
		UserID:     userID,
		Name:       fmt.Sprintf("Card %d", nextID()),
		Brand:      "Visa",
		ClosingDay: closingDay,
		DueDay:     dueDay,
		IsActive:   true,
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("failed to create test card: %v", err)
	}
	return card
}

// CreateTestObligation creates a pending simple obligation.
func CreateTestObligation(t *testing.T, db *gorm.DB, userID, categoryID string, amount string, due time.Time) *models.Obligation {
	t.Helper()

	o := &models.Obligation{
		UserID:      userID,
		Kind:        models.ObligationKindOrdinary,
		Description: fmt.Sprintf("Obligation %d", nextID()),
		Amount:      decimal.RequireFromString(amount),
		DueDate:     billing.DayOf(due),
		CategoryID:  categoryID,
		Status:      models.ObligationStatusPending,
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("failed to create test obligation: %v", err)
	}
	return o
}

// CreateTestPurchase creates a pending purchase charged to a card.
func CreateTestPurchase(t *testing.T, db *gorm.DB, userID, categoryID, cardID string, amount string, due time.Time) *models.Obligation {
	t.Helper()

	card := cardID
	o := &models.Obligation{
		UserID:        userID,
		Kind:          models.ObligationKindOrdinary,
		Description:   fmt.Sprintf("Purchase %d", nextID()),
		Amount:        decimal.RequireFromString(amount),
		DueDate:       billing.DayOf(due),
		CategoryID:    categoryID,
		CardID:        &card,
		PaymentMethod: "credit_card",
		Status:        models.ObligationStatusPending,
	}
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("failed to create test purchase: %v", err)
	}
	return o
}

// CreateTestStatement creates the pending statement of the card's cycle
// closed on or before ref.
func CreateTestStatement(t *testing.T, db *gorm.DB, card *models.Card, ref time.Time, predicted string) *models.Statement {
	t.Helper()

	cycle := billing.ComputeCycle(ref, card.ClosingDay, card.DueDay)
	stmt := billing.NewStatement(uuid.New(), card.UserID, card.ID, cycle, decimal.RequireFromString(predicted))
	if err := db.Create(&stmt).Error; err != nil {
		t.Fatalf("failed to create test statement: %v", err)
	}
	return &stmt
}
