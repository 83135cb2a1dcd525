package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
	"github.com/carlosmourajunior/minhasfinancas/internal/metrics"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
)

// obligationService handles obligation-related business logic.
type obligationService struct {
	db        *gorm.DB
	clock     billing.Clock
	generator *billing.Generator
}

// NewObligationService creates a new ObligationServicer.
func NewObligationService(db *gorm.DB, opts BillingOptions) ObligationServicer {
	opts = opts.withDefaults()
	return &obligationService{
		db:        db,
		clock:     opts.Clock,
		generator: billing.NewGenerator(opts.IDs, opts.Clock, opts.SeriesLength),
	}
}

// checkReferences verifies that the category and card belong to the user.
func checkReferences(tx *gorm.DB, userID, categoryID string, cardID *string) error {
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ? AND user_id = ?", categoryID, userID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrCategoryNotFound
	}
	if cardID == nil {
		return nil
	}
	if err := tx.Model(&models.Card{}).Where("id = ? AND user_id = ?", *cardID, userID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrCardNotFound
	}
	return nil
}

// findObligation loads an obligation without its relations, for mutation.
func findObligation(tx *gorm.DB, userID, obligationID string) (*models.Obligation, error) {
	var o models.Obligation
	if err := tx.Where("id = ? AND user_id = ?", obligationID, userID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrObligationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &o, nil
}

// saveObligations writes every column of the given records.
func saveObligations(tx *gorm.DB, obligations ...*models.Obligation) error {
	for _, o := range obligations {
		if err := tx.Omit(clause.Associations).Save(o).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// linkedStatement returns the confirmed statement whose payable is o, or nil.
func linkedStatement(tx *gorm.DB, o *models.Obligation) (*models.Statement, error) {
	if !o.IsStatementPayable() {
		return nil, nil
	}
	var s models.Statement
	err := tx.Where("user_id = ? AND obligation_id = ?", o.UserID, o.ID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &s, nil
}

// CreateObligation expands req into its series and persists every record in
// one transaction.
func (s *obligationService) CreateObligation(req billing.SeriesRequest) ([]models.Obligation, error) {
	var series []models.Obligation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, req.UserID, req.CategoryID, req.CardID); err != nil {
			return err
		}

		var err error
		series, err = s.generator.Generate(req, settledLookup(tx, req.UserID))
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&series).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AddObligationsGenerated(string(req.Mode()), len(series))
	if len(series) > 1 {
		logger.Get().Infow("obligation series generated",
			"user_id", req.UserID,
			"mode", req.Mode(),
			"group_id", series[0].GroupID(),
			"count", len(series),
		)
	}
	return series, nil
}

// UpdateObligation applies upd. When upd carries installment or recurring
// parameters the obligation is converted in place into the anchor of a new
// series and the siblings are created; the result then lists the anchor
// first.
func (s *obligationService) UpdateObligation(userID, obligationID string, upd ObligationUpdate) ([]models.Obligation, error) {
	var result []models.Obligation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		o, err := findObligation(tx, userID, obligationID)
		if err != nil {
			return err
		}

		if upd.converts() {
			result, err = s.convert(tx, o, upd)
			return err
		}

		if err := s.applyFields(tx, o, upd); err != nil {
			return err
		}
		if err := saveObligations(tx, o); err != nil {
			return err
		}
		result = []models.Obligation{*o}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *obligationService) applyFields(tx *gorm.DB, o *models.Obligation, upd ObligationUpdate) error {
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		if desc == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "description cannot be empty")
		}
		o.Description = desc
	}
	if upd.DueDate != nil {
		o.DueDate = billing.DayOf(*upd.DueDate)
	}
	if upd.PaymentMethod != nil {
		o.PaymentMethod = *upd.PaymentMethod
	}
	if upd.Notes != nil {
		o.Notes = *upd.Notes
	}

	if o.IsStatementPayable() {
		if upd.CardID != nil || upd.ClearCard || upd.CategoryID != nil {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "the card and category of a statement payment cannot be changed")
		}
		if upd.Amount != nil {
			if upd.Amount.IsNegative() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount cannot be negative")
			}
			o.Amount = *upd.Amount
			return s.syncStatementAmount(tx, o)
		}
		return nil
	}

	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		o.Amount = *upd.Amount
	}
	if upd.CategoryID != nil {
		o.CategoryID = *upd.CategoryID
	}
	switch {
	case upd.ClearCard:
		o.CardID = nil
	case upd.CardID != nil:
		cardID := *upd.CardID
		o.CardID = &cardID
	}
	return checkReferences(tx, o.UserID, o.CategoryID, o.CardID)
}

// syncStatementAmount keeps the actual amount of a confirmed statement equal
// to its payable, whether the payable was edited or paid a different amount.
func (s *obligationService) syncStatementAmount(tx *gorm.DB, payable *models.Obligation) error {
	stmt, err := linkedStatement(tx, payable)
	if err != nil || stmt == nil || !billing.IsLinked(stmt, payable) {
		return err
	}
	if stmt.ActualAmount.Valid && stmt.ActualAmount.Decimal.Equal(payable.Amount) {
		return nil
	}
	if err := tx.Model(stmt).Update("actual_amount", decimal.NewNullDecimal(payable.Amount)).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *obligationService) convert(tx *gorm.DB, o *models.Obligation, upd ObligationUpdate) ([]models.Obligation, error) {
	req := billing.SeriesRequest{
		UserID:                o.UserID,
		Description:           o.Description,
		Amount:                o.Amount,
		DueDate:               o.DueDate,
		CategoryID:            o.CategoryID,
		CardID:                o.CardID,
		PaymentMethod:         o.PaymentMethod,
		Notes:                 o.Notes,
		IsRecurring:           upd.IsRecurring,
		IsInstallment:         upd.IsInstallment,
		TotalInstallments:     upd.TotalInstallments,
		RemainingInstallments: upd.RemainingInstallments,
		TotalAmount:           upd.TotalAmount,
	}
	if upd.Description != nil {
		req.Description = *upd.Description
	}
	if upd.Amount != nil {
		req.Amount = *upd.Amount
	}
	if upd.DueDate != nil {
		req.DueDate = *upd.DueDate
	}
	if upd.CategoryID != nil {
		req.CategoryID = *upd.CategoryID
	}
	switch {
	case upd.ClearCard:
		req.CardID = nil
	case upd.CardID != nil:
		cardID := *upd.CardID
		req.CardID = &cardID
	}
	if upd.PaymentMethod != nil {
		req.PaymentMethod = *upd.PaymentMethod
	}
	if upd.Notes != nil {
		req.Notes = *upd.Notes
	}

	if err := checkReferences(tx, req.UserID, req.CategoryID, req.CardID); err != nil {
		return nil, err
	}

	siblings, err := s.generator.Convert(o, req, settledLookup(tx, o.UserID))
	if err != nil {
		return nil, err
	}

	if err := saveObligations(tx, o); err != nil {
		return nil, err
	}
	if len(siblings) > 0 {
		if err := tx.Omit(clause.Associations).Create(&siblings).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	metrics.AddObligationsGenerated(string(req.Mode()), len(siblings))
	logger.Get().Infow("obligation converted into series",
		"user_id", o.UserID,
		"obligation_id", o.ID,
		"mode", req.Mode(),
		"group_id", o.GroupID(),
		"siblings", len(siblings),
	)

	return append([]models.Obligation{*o}, siblings...), nil
}

// GetObligationByID retrieves an obligation with its category and card.
func (s *obligationService) GetObligationByID(userID, obligationID string) (*models.Obligation, error) {
	var o models.Obligation
	if err := s.db.Preload("Category").Preload("Card").
		Where("id = ? AND user_id = ?", obligationID, userID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrObligationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &o, nil
}

// GetUserObligations retrieves a paginated, filtered list of obligations.
func (s *obligationService) GetUserObligations(userID string, page pagination.PageRequest, filter ObligationFilter) (*pagination.PageResponse[models.Obligation], error) {
	page.Defaults()

	base := s.db.Model(&models.Obligation{}).Where("user_id = ?", userID)
	base = applyObligationFilters(base, filter, s.clock.Today())

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var obligations []models.Obligation
	if err := base.Preload("Category").Preload("Card").
		Scopes(pagination.Paginate(page)).
		Order("due_date ASC").Order("installment_index ASC").
		Find(&obligations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(obligations, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListObligations returns every obligation matching filter.
func (s *obligationService) ListObligations(userID string, filter ObligationFilter) ([]models.Obligation, error) {
	q := applyObligationFilters(s.db.Where("user_id = ?", userID), filter, s.clock.Today())

	var obligations []models.Obligation
	if err := q.Preload("Category").Preload("Card").
		Order("due_date ASC").Order("installment_index ASC").
		Find(&obligations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return obligations, nil
}

// GetDueToday returns the unpaid obligations due today.
func (s *obligationService) GetDueToday(userID string) ([]models.Obligation, error) {
	var obligations []models.Obligation
	if err := s.db.Preload("Category").Preload("Card").
		Where("user_id = ? AND status = ? AND due_date = ?", userID, models.ObligationStatusPending, s.clock.Today()).
		Order("description ASC").
		Find(&obligations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return obligations, nil
}

// applyObligationFilters narrows q. The pending filter matches every stored
// pending record, overdue ones included; overdue matches only those due
// before today.
func applyObligationFilters(q *gorm.DB, f ObligationFilter, today time.Time) *gorm.DB {
	if f.Status != nil {
		switch *f.Status {
		case models.ObligationStatusOverdue:
			q = q.Where("status = ? AND due_date < ?", models.ObligationStatusPending, today)
		default:
			q = q.Where("status = ?", *f.Status)
		}
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.CardID != nil {
		q = q.Where("card_id = ?", *f.CardID)
	}
	if f.GroupID != nil {
		q = q.Where("(installment_group_id = ? OR recurrence_group_id = ?)", *f.GroupID, *f.GroupID)
	}
	if f.Month != nil || f.Year != nil {
		year := today.Year()
		if f.Year != nil {
			year = *f.Year
		}
		first, last := billing.Date(year, time.January, 1), billing.Date(year, time.December, 31)
		if f.Month != nil {
			first, last = billing.MonthBounds(billing.Date(year, time.Month(*f.Month), 1))
		}
		q = q.Where("due_date BETWEEN ? AND ?", first, last)
	}
	if f.FromDate != nil {
		q = q.Where("due_date >= ?", billing.DayOf(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("due_date <= ?", billing.DayOf(*f.ToDate))
	}
	return q
}

// MarkPaid records a payment. Paying the payable of a confirmed statement
// settles every unpaid purchase of the statement's period in the same
// transaction, and a paid amount different from the confirmed one becomes
// the statement's actual amount.
func (s *obligationService) MarkPaid(userID, obligationID string, paymentDate *time.Time, paidAmount decimal.NullDecimal) (*models.Obligation, error) {
	payment := billing.Payment{Date: s.clock.Today(), Amount: paidAmount}
	if paymentDate != nil {
		payment.Date = *paymentDate
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		o, err := findObligation(tx, userID, obligationID)
		if err != nil {
			return err
		}
		stmt, err := linkedStatement(tx, o)
		if err != nil {
			return err
		}
		linked := stmt != nil && billing.IsLinked(stmt, o)
		if o.IsStatementPayable() && !linked {
			return apperrors.ErrStatementNotConfirmed
		}

		if err := billing.MarkPaid(o, payment); err != nil {
			return err
		}
		if err := saveObligations(tx, o); err != nil {
			return err
		}
		if !linked {
			return nil
		}

		if err := s.syncStatementAmount(tx, o); err != nil {
			return err
		}
		purchases, err := purchasesInPeriod(tx, stmt)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		changed, err := billing.CascadePaid(o, stmt, purchases)
		if err != nil {
			return err
		}
		if err := saveObligations(tx, changed...); err != nil {
			return err
		}

		metrics.ObserveCascade(metrics.DirectionPaid, len(changed))
		logger.Get().Infow("statement settled",
			"user_id", userID,
			"statement_id", stmt.ID,
			"obligation_id", o.ID,
			"paid_amount", o.Amount.String(),
			"purchases_paid", len(changed),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetObligationByID(userID, obligationID)
}

// UnmarkPaid reverts a payment. Unpaying the payable of a confirmed
// statement reopens every paid purchase of its period and returns the
// statement to pending; the payable is kept and reused when the statement is
// confirmed again.
func (s *obligationService) UnmarkPaid(userID, obligationID string) (*models.Obligation, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		o, err := findObligation(tx, userID, obligationID)
		if err != nil {
			return err
		}

		stmt, err := linkedStatement(tx, o)
		if err != nil {
			return err
		}
		if stmt == nil || !billing.IsLinked(stmt, o) {
			if err := billing.UnmarkPaid(o); err != nil {
				return err
			}
			return saveObligations(tx, o)
		}

		purchases, err := purchasesInPeriod(tx, stmt)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		changed, err := billing.ReopenStatement(o, stmt, purchases)
		if err != nil {
			return err
		}
		if err := saveObligations(tx, append(changed, o)...); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(stmt).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		metrics.IncStatementReverted()
		metrics.ObserveCascade(metrics.DirectionUnpaid, len(changed))
		logger.Get().Infow("statement payment reverted",
			"user_id", userID,
			"statement_id", stmt.ID,
			"obligation_id", o.ID,
			"purchases_reopened", len(changed),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetObligationByID(userID, obligationID)
}

// DeleteObligation deletes one obligation or, with wholeGroup, every record
// of its installment plan or recurring series. Deleting a statement payable
// returns its statement to pending. It returns how many records were
// deleted.
func (s *obligationService) DeleteObligation(userID, obligationID string, wholeGroup bool) (int, error) {
	deleted := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		o, err := findObligation(tx, userID, obligationID)
		if err != nil {
			return err
		}

		targets := []models.Obligation{*o}
		if group := o.GroupID(); wholeGroup && group != "" {
			targets = nil
			if err := tx.Where("user_id = ? AND (installment_group_id = ? OR recurrence_group_id = ?)", userID, group, group).
				Find(&targets).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		ids := make([]string, 0, len(targets))
		for i := range targets {
			if err := s.detachPayable(tx, &targets[i]); err != nil {
				return err
			}
			ids = append(ids, targets[i].ID)
		}

		result := tx.Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.Obligation{})
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if int(result.RowsAffected) != len(ids) {
			return apperrors.WithMessage(apperrors.ErrConsistencyViolation, "obligation group changed while it was being deleted")
		}
		deleted = len(ids)

		if len(ids) > 1 {
			logger.Get().Infow("obligation group deleted",
				"user_id", userID,
				"group_id", o.GroupID(),
				"count", len(ids),
			)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// detachPayable reverts the statement of a payable about to be deleted.
func (s *obligationService) detachPayable(tx *gorm.DB, o *models.Obligation) error {
	stmt, err := linkedStatement(tx, o)
	if err != nil || stmt == nil {
		return err
	}
	if !billing.IsLinked(stmt, o) {
		// stale link on a pending statement
		if err := tx.Model(stmt).Update("obligation_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	}

	purchases, err := purchasesInPeriod(tx, stmt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	changed, err := billing.DetachPayable(o, stmt, purchases)
	if err != nil {
		return err
	}
	if err := saveObligations(tx, changed...); err != nil {
		return err
	}
	if err := tx.Omit(clause.Associations).Save(stmt).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	metrics.IncStatementReverted()
	if len(changed) > 0 {
		metrics.ObserveCascade(metrics.DirectionUnpaid, len(changed))
	}
	logger.Get().Infow("statement reverted to pending",
		"user_id", o.UserID,
		"statement_id", stmt.ID,
		"obligation_id", o.ID,
		"purchases_reopened", len(changed),
	)
	return nil
}

// GetInstallmentInfo describes the installment plan obligationID belongs to.
func (s *obligationService) GetInstallmentInfo(userID, obligationID string) (*InstallmentInfo, error) {
	o, err := findObligation(s.db, userID, obligationID)
	if err != nil {
		return nil, err
	}
	if !o.IsInstallment || o.InstallmentGroupID == nil {
		return nil, apperrors.ErrNotInstallment
	}

	var siblings []models.Obligation
	if err := s.db.Where("user_id = ? AND installment_group_id = ?", userID, *o.InstallmentGroupID).
		Order("installment_index ASC").
		Find(&siblings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	info := &InstallmentInfo{
		GroupID:         *o.InstallmentGroupID,
		Total:           o.InstallmentCount,
		PaidAmount:      decimal.Zero,
		RemainingAmount: decimal.Zero,
		Installments:    siblings,
	}
	sum := decimal.Zero
	for i := range siblings {
		sib := &siblings[i]
		sum = sum.Add(sib.Amount)
		if sib.IsPaid() {
			info.Paid++
			info.PaidAmount = info.PaidAmount.Add(sib.Amount)
			continue
		}
		info.Pending++
		info.RemainingAmount = info.RemainingAmount.Add(sib.Amount)
		if info.NextDueDate == nil {
			due := sib.DueDate
			info.NextDueDate = &due
		}
	}
	info.TotalAmount = sum
	if o.TotalAmount.Valid {
		info.TotalAmount = o.TotalAmount.Decimal
	}
	return info, nil
}
