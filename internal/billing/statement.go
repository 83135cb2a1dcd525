package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

// SettlementState is what a consumer sees of a statement: its own status
// combined with the payment status of its payable.
type SettlementState string

const (
	// SettlementOpen: the statement has not been confirmed.
	SettlementOpen SettlementState = "open"
	// SettlementAwaitingPayment: confirmed, payable still unpaid.
	SettlementAwaitingPayment SettlementState = "awaiting_payment"
	// SettlementSettled: confirmed and the payable is paid.
	SettlementSettled SettlementState = "settled"
)

// NewStatement builds the pending statement for a freshly detected cycle.
func NewStatement(id, userID, cardID string, c Cycle, predicted decimal.Decimal) models.Statement {
	s := models.Statement{
		UserID:          userID,
		CardID:          cardID,
		PredictedAmount: predicted,
		Status:          models.StatementStatusPending,
	}
	s.ID = id
	ApplyCycle(&s, c)
	return s
}

// ApplyCycle refreshes the boundary dates of a statement.
func ApplyCycle(s *models.Statement, c Cycle) {
	s.PeriodStart = c.PeriodStart
	s.PeriodEnd = c.PeriodEnd
	s.ClosingDate = c.ClosingDate
	s.DueDate = c.DueDate
}

// PredictedAmount sums the card purchases due inside the cycle.
func PredictedAmount(c Cycle, cardID string, purchases []models.Obligation) decimal.Decimal {
	total := decimal.Zero
	for i := range purchases {
		p := &purchases[i]
		if p.IsCardPurchase() && *p.CardID == cardID && c.Covers(p.DueDate) {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// StatementDescription is the description of a statement's payable.
func StatementDescription(card *models.Card, s *models.Statement) string {
	name := "Card"
	if card != nil && strings.TrimSpace(card.Name) != "" {
		name = card.Name
	}
	return fmt.Sprintf("%s statement - %02d/%d", name, int(s.DueDate.Month()), s.DueDate.Year())
}

// ConfirmStatement accepts actual as the statement's amount and returns the
// payable obligation to persist alongside it. It returns nil without
// touching the statement when it is already confirmed.
//
// reuse, when not nil, is the payable left behind by an earlier confirmation
// that was reopened. It is reset to the new amount and linked again instead
// of creating a second payable.
func ConfirmStatement(s *models.Statement, card *models.Card, actual decimal.Decimal, categoryID string, ids IDGenerator, reuse *models.Obligation) (*models.Obligation, error) {
	if s.IsConfirmed() {
		return nil, nil
	}
	if actual.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "actual_amount cannot be negative")
	}
	if categoryID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "statement category is required")
	}
	if card != nil && card.ID != s.CardID {
		return nil, apperrors.WithMessage(apperrors.ErrConsistencyViolation,
			fmt.Sprintf("statement %q does not belong to card %q", s.ID, card.ID))
	}

	payable := reuse
	if payable == nil {
		payable = &models.Obligation{UserID: s.UserID}
		payable.ID = ids.NewID()
	} else if !payable.IsStatementPayable() || payable.IsPaid() || payable.UserID != s.UserID ||
		payable.CardID == nil || *payable.CardID != s.CardID {
		return nil, apperrors.WithMessage(apperrors.ErrConsistencyViolation,
			fmt.Sprintf("obligation %q cannot be reused as the payable of statement %q", payable.ID, s.ID))
	}

	cardID := s.CardID
	payable.Kind = models.ObligationKindCardStatement
	payable.Description = StatementDescription(card, s)
	payable.Amount = actual
	payable.DueDate = DayOf(s.DueDate)
	payable.CategoryID = categoryID
	payable.CardID = &cardID
	payable.PaymentMethod = "card_statement"
	payable.Status = models.ObligationStatusPending
	payable.PaymentDate = nil
	payable.PaidAmount = decimal.NullDecimal{}
	payable.PredictedAmount = decimal.NewNullDecimal(actual)

	s.ActualAmount = decimal.NewNullDecimal(actual)
	s.Status = models.StatementStatusConfirmed
	s.ObligationID = &payable.ID
	return payable, nil
}

// RevertStatement returns a statement to pending, dropping its actual amount
// and payable link. It reports whether anything changed.
func RevertStatement(s *models.Statement) bool {
	if !s.IsConfirmed() && s.ObligationID == nil && !s.ActualAmount.Valid {
		return false
	}
	s.Status = models.StatementStatusPending
	s.ActualAmount = decimal.NullDecimal{}
	s.ObligationID = nil
	return true
}

// IsLinked reports whether payable is the confirmed link of s.
func IsLinked(s *models.Statement, payable *models.Obligation) bool {
	return s.IsConfirmed() && s.ObligationID != nil && *s.ObligationID == payable.ID
}

// Settlement derives the settlement state of s. payable may be nil when the
// statement has no link or the link could not be loaded.
func Settlement(s *models.Statement, payable *models.Obligation) SettlementState {
	if !s.IsConfirmed() {
		return SettlementOpen
	}
	if payable != nil && IsLinked(s, payable) && payable.IsPaid() {
		return SettlementSettled
	}
	return SettlementAwaitingPayment
}
