package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
)

// maxEstimateMonths bounds EstimateStatements.
const maxEstimateMonths = 24

// cardService handles card-related business logic.
type cardService struct {
	db    *gorm.DB
	clock billing.Clock
}

// NewCardService creates a new CardServicer.
func NewCardService(db *gorm.DB, opts BillingOptions) CardServicer {
	opts = opts.withDefaults()
	return &cardService{db: db, clock: opts.Clock}
}

func validateCardDay(field string, day int) error {
	if day < 1 || day > 31 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("%s must be between 1 and 31", field))
	}
	return nil
}

func (s *cardService) checkDuplicateName(userID, name, exceptID string) error {
	q := s.db.Model(&models.Card{}).Where("user_id = ? AND LOWER(name) = ?", userID, strings.ToLower(name))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCard
	}
	return nil
}

// CreateCard creates a new card
func (s *cardService) CreateCard(userID string, in CardInput) (*models.Card, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "card name is required")
	}
	if in.ClosingDay == nil || in.DueDay == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "closing_day and due_day are required")
	}
	if err := validateCardDay("closing_day", *in.ClosingDay); err != nil {
		return nil, err
	}
	if err := validateCardDay("due_day", *in.DueDay); err != nil {
		return nil, err
	}
	if in.CreditLimit.Valid && in.CreditLimit.Decimal.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "credit_limit cannot be negative")
	}

	name := strings.TrimSpace(*in.Name)
	if err := s.checkDuplicateName(userID, name, ""); err != nil {
		return nil, err
	}

	card := &models.Card{
		UserID:      userID,
		Name:        name,
		CreditLimit: in.CreditLimit,
		ClosingDay:  *in.ClosingDay,
		DueDay:      *in.DueDay,
		IsActive:    true,
	}
	if in.Brand != nil {
		card.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.IsActive != nil {
		card.IsActive = *in.IsActive
	}

	if err := s.db.Create(card).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	// gorm skips zero values that carry a default tag on insert
	if !card.IsActive {
		if err := s.db.Model(card).Update("is_active", false).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return card, nil
}

// GetUserCards retrieves a paginated list of cards for a user.
func (s *cardService) GetUserCards(userID string, page pagination.PageRequest, activeOnly bool) (*pagination.PageResponse[models.Card], error) {
	page.Defaults()

	base := s.db.Model(&models.Card{}).Where("user_id = ?", userID)
	if activeOnly {
		base = base.Where("is_active = ?", true)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var cards []models.Card
	if err := base.Scopes(pagination.Paginate(page)).Order("name ASC").Find(&cards).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(cards, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCardByID retrieves a card by ID for a specific user
func (s *cardService) GetCardByID(userID, cardID string) (*models.Card, error) {
	var card models.Card
	if err := s.db.Where("id = ? AND user_id = ?", cardID, userID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCardNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &card, nil
}

// UpdateCard updates the fields set in in. Changing the closing or due day
// only affects statements detected afterwards.
func (s *cardService) UpdateCard(userID, cardID string, in CardInput) (*models.Card, error) {
	card, err := s.GetCardByID(userID, cardID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "card name cannot be empty")
		}
		if name != card.Name {
			if err := s.checkDuplicateName(userID, name, cardID); err != nil {
				return nil, err
			}
			updates["name"] = name
		}
	}
	if in.Brand != nil {
		updates["brand"] = strings.TrimSpace(*in.Brand)
	}
	if in.CreditLimit.Valid {
		if in.CreditLimit.Decimal.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "credit_limit cannot be negative")
		}
		updates["credit_limit"] = in.CreditLimit
	}
	if in.ClosingDay != nil {
		if err := validateCardDay("closing_day", *in.ClosingDay); err != nil {
			return nil, err
		}
		updates["closing_day"] = *in.ClosingDay
	}
	if in.DueDay != nil {
		if err := validateCardDay("due_day", *in.DueDay); err != nil {
			return nil, err
		}
		updates["due_day"] = *in.DueDay
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(card).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetCardByID(userID, cardID)
}

// DeleteCard deletes a card that has no purchases and no statements.
func (s *cardService) DeleteCard(userID, cardID string) error {
	card, err := s.GetCardByID(userID, cardID)
	if err != nil {
		return err
	}

	var purchases, statements int64
	if err := s.db.Model(&models.Obligation{}).Where("card_id = ?", cardID).Count(&purchases).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.Statement{}).Where("card_id = ?", cardID).Count(&statements).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if purchases > 0 || statements > 0 {
		return apperrors.ErrCardInUse
	}

	if err := s.db.Delete(card).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// EstimateStatements projects the card's next months cycles, starting with
// the one still open today, and the amount already charged to each.
func (s *cardService) EstimateStatements(userID, cardID string, months int) ([]CardEstimate, error) {
	card, err := s.GetCardByID(userID, cardID)
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		months = 3
	}
	if months > maxEstimateMonths {
		months = maxEstimateMonths
	}

	cycles := billing.UpcomingCycles(s.clock.Today(), card.ClosingDay, card.DueDay, months)
	if len(cycles) == 0 {
		return []CardEstimate{}, nil
	}

	var purchases []models.Obligation
	if err := s.db.Where("user_id = ? AND card_id = ? AND kind = ? AND due_date BETWEEN ? AND ?",
		userID, cardID, models.ObligationKindOrdinary, cycles[0].PeriodStart, cycles[len(cycles)-1].PeriodEnd).
		Find(&purchases).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	estimates := make([]CardEstimate, 0, len(cycles))
	for _, c := range cycles {
		count := 0
		for i := range purchases {
			if c.Covers(purchases[i].DueDate) {
				count++
			}
		}
		estimates = append(estimates, CardEstimate{
			Cycle:           c,
			PredictedAmount: billing.PredictedAmount(c, cardID, purchases),
			PurchaseCount:   count,
		})
	}
	return estimates, nil
}
