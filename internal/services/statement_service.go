package services

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/export"
	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
	"github.com/carlosmourajunior/minhasfinancas/internal/metrics"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
)

// maxSummaryMonths bounds GetStatementSummary.
const maxSummaryMonths = 24

// statementService handles the card statement lifecycle.
type statementService struct {
	db              *gorm.DB
	categoryService CategoryServicer
	clock           billing.Clock
	ids             billing.IDGenerator
	alerts          billing.Policy
}

// NewStatementService creates a new StatementServicer.
func NewStatementService(db *gorm.DB, categoryService CategoryServicer, opts BillingOptions) StatementServicer {
	opts = opts.withDefaults()
	return &statementService{
		db:              db,
		categoryService: categoryService,
		clock:           opts.Clock,
		ids:             opts.IDs,
		alerts:          opts.Alerts,
	}
}

// GetPendingStatements detects the active cycles of every active card,
// creating or refreshing their statements, and returns the ones still
// awaiting confirmation ordered by due date.
func (s *statementService) GetPendingStatements(userID string) ([]StatementView, error) {
	today := s.clock.Today()

	var cards []models.Card
	if err := s.db.Where("user_id = ? AND is_active = ?", userID, true).Order("name ASC").Find(&cards).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var pending []StatementView
	err := s.db.Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]bool)
		for i := range cards {
			card := &cards[i]
			for _, c := range s.alerts.ActiveCycles(today, card.ClosingDay, card.DueDay) {
				stmt, count, err := s.upsertStatement(tx, card, c)
				if err != nil {
					return err
				}
				if seen[stmt.ID] || stmt.IsConfirmed() {
					continue
				}
				seen[stmt.ID] = true
				stmt.Card = card
				pending = append(pending, StatementView{
					Statement:     *stmt,
					Settlement:    billing.SettlementOpen,
					PurchaseCount: count,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].DueDate.Before(pending[j].DueDate)
	})
	if pending == nil {
		pending = []StatementView{}
	}
	return pending, nil
}

// upsertStatement creates the statement of cycle c or refreshes the predicted
// amount and dates of the existing one. It also returns how many purchases
// the cycle holds.
func (s *statementService) upsertStatement(tx *gorm.DB, card *models.Card, c billing.Cycle) (*models.Statement, int, error) {
	var purchases []models.Obligation
	if err := tx.Where("user_id = ? AND card_id = ? AND kind = ? AND due_date BETWEEN ? AND ?",
		card.UserID, card.ID, models.ObligationKindOrdinary, c.PeriodStart, c.PeriodEnd).
		Find(&purchases).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	predicted := billing.PredictedAmount(c, card.ID, purchases)

	existing, err := findCycleStatement(tx, card.ID, c)
	if err != nil {
		return nil, 0, err
	}
	if existing != nil {
		billing.ApplyCycle(existing, c)
		existing.PredictedAmount = predicted
		if err := tx.Omit(clause.Associations).Save(existing).Error; err != nil {
			return nil, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return existing, len(purchases), nil
	}

	stmt := billing.NewStatement(s.ids.NewID(), card.UserID, card.ID, c, predicted)
	if err := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "card_id"}, {Name: "period_start"}, {Name: "period_end"}},
			DoNothing: true,
		}).
		Create(&stmt).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// A concurrent request may have won the insert.
	created, err := findCycleStatement(tx, card.ID, c)
	if err != nil {
		return nil, 0, err
	}
	if created == nil {
		return nil, 0, apperrors.WithMessage(apperrors.ErrConsistencyViolation, "statement vanished after insert")
	}
	return created, len(purchases), nil
}

// findCycleStatement returns the statement of the card's cycle, nil when
// there is none.
func findCycleStatement(tx *gorm.DB, cardID string, c billing.Cycle) (*models.Statement, error) {
	var found []models.Statement
	if err := tx.Where("card_id = ? AND period_start = ? AND period_end = ?", cardID, c.PeriodStart, c.PeriodEnd).
		Limit(2).Find(&found).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	}
	return nil, apperrors.WithMessage(apperrors.ErrConsistencyViolation,
		"more than one statement exists for card "+cardID+" cycle "+c.Key())
}

// ConfirmStatement accepts actualAmount as the statement amount and creates
// its payable in the card statement category. A payable left behind when an
// earlier payment was unmarked is reused. Confirming an already confirmed
// statement changes nothing.
func (s *statementService) ConfirmStatement(userID, statementID string, actualAmount decimal.Decimal) (*StatementView, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		stmt, err := findStatement(tx, userID, statementID)
		if err != nil {
			return err
		}
		if stmt.IsConfirmed() {
			return nil
		}

		var card models.Card
		if err := tx.Where("id = ? AND user_id = ?", stmt.CardID, userID).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrCardNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		category, err := s.categoryService.EnsureStatementCategory(tx, userID)
		if err != nil {
			return err
		}

		reopened, err := unlinkedPayable(tx, stmt)
		if err != nil {
			return err
		}
		payable, err := billing.ConfirmStatement(stmt, &card, actualAmount, category.ID, s.ids, reopened)
		if err != nil {
			return err
		}
		save := tx.Omit(clause.Associations)
		if reopened != nil {
			err = save.Save(payable).Error
		} else {
			err = save.Create(payable).Error
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Omit(clause.Associations).Save(stmt).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		metrics.IncStatementConfirmed()
		logger.Get().Infow("statement confirmed",
			"user_id", userID,
			"statement_id", stmt.ID,
			"card_id", stmt.CardID,
			"obligation_id", payable.ID,
			"reused_payable", reopened != nil,
			"predicted_amount", stmt.PredictedAmount.String(),
			"actual_amount", actualAmount.String(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetStatementByID(userID, statementID)
}

// unlinkedPayable returns the pending payable of the statement's card and due
// date that no statement links to, nil when there is none. It is what an
// unmarked payment leaves behind.
func unlinkedPayable(tx *gorm.DB, stmt *models.Statement) (*models.Obligation, error) {
	var found []models.Obligation
	if err := tx.Where("user_id = ? AND kind = ? AND card_id = ? AND due_date = ? AND status = ?",
		stmt.UserID, models.ObligationKindCardStatement, stmt.CardID, billing.DayOf(stmt.DueDate), models.ObligationStatusPending).
		Where("NOT EXISTS (SELECT 1 FROM statements WHERE statements.obligation_id = obligations.id AND statements.deleted_at IS NULL)").
		Order("created_at ASC").
		Limit(1).
		Find(&found).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func findStatement(tx *gorm.DB, userID, statementID string) (*models.Statement, error) {
	var stmt models.Statement
	if err := tx.Where("id = ? AND user_id = ?", statementID, userID).First(&stmt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStatementNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &stmt, nil
}

// GetStatementByID returns a statement with its card, payable and
// settlement state.
func (s *statementService) GetStatementByID(userID, statementID string) (*StatementView, error) {
	var stmt models.Statement
	if err := s.db.Preload("Card").Where("id = ? AND user_id = ?", statementID, userID).First(&stmt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStatementNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	view := &StatementView{Statement: stmt}
	if stmt.ObligationID != nil {
		var payable models.Obligation
		err := s.db.Where("id = ?", *stmt.ObligationID).First(&payable).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err == nil {
			view.Payable = &payable
		}
	}
	view.Settlement = billing.Settlement(&view.Statement, view.Payable)

	purchases, err := purchasesInPeriod(s.db, &stmt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	view.PurchaseCount = len(purchases)
	return view, nil
}

// GetCardStatements lists the statements of a card, most recent first.
func (s *statementService) GetCardStatements(userID, cardID string, page pagination.PageRequest) (*pagination.PageResponse[models.Statement], error) {
	if err := s.requireCard(userID, cardID); err != nil {
		return nil, err
	}

	page.Defaults()

	base := s.db.Model(&models.Statement{}).Where("user_id = ? AND card_id = ?", userID, cardID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var statements []models.Statement
	if err := base.Scopes(pagination.Paginate(page)).Order("period_start DESC").Find(&statements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(statements, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func (s *statementService) requireCard(userID, cardID string) error {
	var count int64
	if err := s.db.Model(&models.Card{}).Where("id = ? AND user_id = ?", cardID, userID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrCardNotFound
	}
	return nil
}

// GetStatementSummary totals the statements of every card by due month.
// The window holds months months and ends with the month after today, where
// the statement of the current cycle is due.
func (s *statementService) GetStatementSummary(userID string, months int) ([]StatementMonth, error) {
	return s.summarize(userID, nil, months)
}

// GetCardStatementSummary is GetStatementSummary for a single card.
func (s *statementService) GetCardStatementSummary(userID, cardID string, months int) ([]StatementMonth, error) {
	if err := s.requireCard(userID, cardID); err != nil {
		return nil, err
	}
	return s.summarize(userID, &cardID, months)
}

func (s *statementService) summarize(userID string, cardID *string, months int) ([]StatementMonth, error) {
	if months <= 0 {
		months = 6
	}
	if months > maxSummaryMonths {
		months = maxSummaryMonths
	}

	today := s.clock.Today()
	first, _ := billing.MonthBounds(billing.AddMonths(today, 2-months))
	_, last := billing.MonthBounds(billing.AddMonths(today, 1))

	q := s.db.Where("user_id = ? AND due_date BETWEEN ? AND ?", userID, first, last)
	if cardID != nil {
		q = q.Where("card_id = ?", *cardID)
	}
	var statements []models.Statement
	if err := q.Find(&statements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	payables := make(map[string]*models.Obligation)
	var ids []string
	for _, stmt := range statements {
		if stmt.ObligationID != nil {
			ids = append(ids, *stmt.ObligationID)
		}
	}
	if len(ids) > 0 {
		var found []models.Obligation
		if err := s.db.Where("id IN ?", ids).Find(&found).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for i := range found {
			payables[found[i].ID] = &found[i]
		}
	}

	summary := make([]StatementMonth, months)
	index := make(map[string]int, months)
	for i := range summary {
		key := billing.AddMonths(first, i).Format("2006-01")
		summary[i] = StatementMonth{Month: key, PredictedAmount: decimal.Zero, ActualAmount: decimal.Zero}
		index[key] = i
	}

	for i := range statements {
		stmt := &statements[i]
		pos, ok := index[stmt.DueDate.Format("2006-01")]
		if !ok {
			continue
		}
		m := &summary[pos]
		m.Statements++
		m.PredictedAmount = m.PredictedAmount.Add(stmt.PredictedAmount)
		if !stmt.IsConfirmed() {
			continue
		}
		m.Confirmed++
		if stmt.ActualAmount.Valid {
			m.ActualAmount = m.ActualAmount.Add(stmt.ActualAmount.Decimal)
		}
		var payable *models.Obligation
		if stmt.ObligationID != nil {
			payable = payables[*stmt.ObligationID]
		}
		if billing.Settlement(stmt, payable) == billing.SettlementSettled {
			m.Settled++
		}
	}
	return summary, nil
}

// ExportStatement renders a statement and the purchases of its period. It
// returns the file content and its download name.
func (s *statementService) ExportStatement(userID, statementID string, format export.Format) ([]byte, string, error) {
	if format != export.FormatPDF && format != export.FormatXLSX {
		return nil, "", apperrors.WithMessage(apperrors.ErrInvalidInput, "format must be pdf or xlsx")
	}

	view, err := s.GetStatementByID(userID, statementID)
	if err != nil {
		return nil, "", err
	}

	var purchases []models.Obligation
	if err := s.db.Preload("Category").
		Where("user_id = ? AND card_id = ? AND kind = ? AND due_date BETWEEN ? AND ?",
			userID, view.CardID, models.ObligationKindOrdinary, view.PeriodStart, view.PeriodEnd).
		Order("due_date ASC").
		Find(&purchases).Error; err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	doc := export.StatementDocument{
		Statement:  &view.Statement,
		Card:       view.Card,
		Purchases:  purchases,
		Settlement: string(view.Settlement),
	}

	start := time.Now()
	data, err := export.Render(doc, format)
	if err != nil {
		metrics.ObserveStatementExport(string(format), metrics.ResultError, time.Since(start))
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	metrics.ObserveStatementExport(string(format), metrics.ResultSuccess, time.Since(start))

	return data, doc.Filename(format), nil
}
