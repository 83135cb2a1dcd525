package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

// Payment is what the user records when paying an obligation.
type Payment struct {
	Date time.Time
	// Amount is the amount actually paid. When unset the obligation's
	// current amount is taken as paid.
	Amount decimal.NullDecimal
}

// MarkPaid records a payment on o. The first payment preserves the
// predicted amount; later edits never overwrite it. Card purchases are
// rejected: they are settled through their statement.
func MarkPaid(o *models.Obligation, p Payment) error {
	if o.IsCardPurchase() {
		return apperrors.ErrCardPurchaseNotPayable
	}
	if p.Date.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "payment_date is required")
	}
	if p.Amount.Valid && p.Amount.Decimal.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "paid_amount cannot be negative")
	}
	applyPayment(o, p.Date, p.Amount)
	return nil
}

// UnmarkPaid returns o to pending and restores its predicted amount.
func UnmarkPaid(o *models.Obligation) error {
	if o.IsCardPurchase() {
		return apperrors.ErrCardPurchaseNotPayable
	}
	revertPayment(o)
	return nil
}

// CascadePaid settles every unpaid purchase of the statement's period after
// its payable was paid. It returns the purchases it changed, which point
// into purchases.
func CascadePaid(payable *models.Obligation, s *models.Statement, purchases []models.Obligation) ([]*models.Obligation, error) {
	if err := checkLink(payable, s); err != nil {
		return nil, err
	}
	if !payable.IsPaid() || payable.PaymentDate == nil {
		return nil, apperrors.WithMessage(apperrors.ErrConsistencyViolation,
			fmt.Sprintf("statement payable %q is not paid", payable.ID))
	}

	var changed []*models.Obligation
	for i := range purchases {
		p := &purchases[i]
		if !coveredPurchase(s, p) || p.IsPaid() {
			continue
		}
		applyPayment(p, *payable.PaymentDate, decimal.NullDecimal{})
		changed = append(changed, p)
	}
	return changed, nil
}

// CascadeUnpaid reopens every paid purchase of the statement's period. It
// does not check the link, so it also serves a payable that is being
// deleted.
func CascadeUnpaid(s *models.Statement, purchases []models.Obligation) []*models.Obligation {
	var changed []*models.Obligation
	for i := range purchases {
		p := &purchases[i]
		if !coveredPurchase(s, p) || !p.IsPaid() {
			continue
		}
		revertPayment(p)
		changed = append(changed, p)
	}
	return changed
}

// ReopenStatement handles unmarking the payment of a statement payable: the
// payable returns to pending, the paid purchases of the period are reopened
// and the statement returns to pending so it is confirmed again. The payable
// itself is kept for the next confirmation to reuse. It returns the purchases
// it changed.
func ReopenStatement(payable *models.Obligation, s *models.Statement, purchases []models.Obligation) ([]*models.Obligation, error) {
	if err := checkLink(payable, s); err != nil {
		return nil, err
	}
	revertPayment(payable)
	changed := CascadeUnpaid(s, purchases)
	RevertStatement(s)
	return changed, nil
}

// DetachPayable handles the deletion of a statement payable: the statement
// returns to pending and, when the payable was paid, the purchases it settled
// are reopened. It returns the purchases it changed.
func DetachPayable(payable *models.Obligation, s *models.Statement, purchases []models.Obligation) ([]*models.Obligation, error) {
	if err := checkLink(payable, s); err != nil {
		return nil, err
	}
	var changed []*models.Obligation
	if payable.IsPaid() {
		changed = CascadeUnpaid(s, purchases)
	}
	RevertStatement(s)
	return changed, nil
}

func checkLink(payable *models.Obligation, s *models.Statement) error {
	if !payable.IsStatementPayable() || !IsLinked(s, payable) {
		return apperrors.WithMessage(apperrors.ErrConsistencyViolation,
			fmt.Sprintf("obligation %q is not the payable of statement %q", payable.ID, s.ID))
	}
	return nil
}

func coveredPurchase(s *models.Statement, p *models.Obligation) bool {
	return p.IsCardPurchase() && *p.CardID == s.CardID && s.Covers(DayOf(p.DueDate))
}

func applyPayment(o *models.Obligation, date time.Time, amount decimal.NullDecimal) {
	if !o.PredictedAmount.Valid {
		o.PredictedAmount = decimal.NewNullDecimal(o.Amount)
	}
	if amount.Valid {
		o.Amount = amount.Decimal
	}
	day := DayOf(date)
	o.Status = models.ObligationStatusPaid
	o.PaymentDate = &day
	o.PaidAmount = decimal.NewNullDecimal(o.Amount)
}

func revertPayment(o *models.Obligation) {
	if o.PredictedAmount.Valid {
		o.Amount = o.PredictedAmount.Decimal
	}
	o.Status = models.ObligationStatusPending
	o.PaymentDate = nil
	o.PaidAmount = decimal.NullDecimal{}
}
