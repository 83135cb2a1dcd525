package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/uuid"
)

// withDefaults fills unset collaborators: the UTC system clock, UUIDv7 ids
// and the default alert policy.
func (o BillingOptions) withDefaults() BillingOptions {
	if o.Clock == nil {
		o.Clock = billing.SystemClock{}
	}
	if o.IDs == nil {
		o.IDs = uuid.Generator{}
	}
	if o.Alerts.LookbackCycles == 0 {
		cutoff := o.Alerts.Cutoff
		o.Alerts = billing.DefaultPolicy()
		o.Alerts.Cutoff = cutoff
	}
	if o.SeriesLength <= 0 {
		o.SeriesLength = billing.DefaultSeriesLength
	}
	return o
}

// settledLookup answers whether the card's statement due in the month of
// due is confirmed and its payable paid. It reads through tx so it can run
// inside the transaction that persists the series.
func settledLookup(tx *gorm.DB, userID string) billing.SettledLookup {
	return func(cardID string, due time.Time) (bool, error) {
		first, last := billing.MonthBounds(due)

		var statements []models.Statement
		if err := tx.Where("user_id = ? AND card_id = ? AND status = ? AND due_date BETWEEN ? AND ?",
			userID, cardID, models.StatementStatusConfirmed, first, last).
			Find(&statements).Error; err != nil {
			return false, err
		}

		for _, s := range statements {
			if s.ObligationID == nil {
				continue
			}
			var payable models.Obligation
			err := tx.Where("id = ?", *s.ObligationID).First(&payable).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return false, err
			}
			if err == nil && billing.Settlement(&s, &payable) == billing.SettlementSettled {
				return true, nil
			}
		}
		return false, nil
	}
}

// purchasesInPeriod loads the card purchases whose due date falls inside
// the statement's period.
func purchasesInPeriod(tx *gorm.DB, s *models.Statement) ([]models.Obligation, error) {
	var purchases []models.Obligation
	err := tx.Where("user_id = ? AND card_id = ? AND kind = ? AND due_date BETWEEN ? AND ?",
		s.UserID, s.CardID, models.ObligationKindOrdinary, s.PeriodStart, s.PeriodEnd).
		Order("due_date ASC").
		Find(&purchases).Error
	return purchases, err
}
