package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

// maxEvolutionMonths bounds GetEvolution.
const maxEvolutionMonths = 36

// reportService aggregates obligations for reports.
type reportService struct {
	db    *gorm.DB
	clock billing.Clock
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB, opts BillingOptions) ReportServicer {
	opts = opts.withDefaults()
	return &reportService{db: db, clock: opts.Clock}
}

func (s *reportService) load(userID string, month, year *int, preload bool) ([]models.Obligation, error) {
	q := applyObligationFilters(s.db.Where("user_id = ?", userID),
		ObligationFilter{Month: month, Year: year}, s.clock.Today())
	if preload {
		q = q.Preload("Category")
	}
	var obligations []models.Obligation
	if err := q.Find(&obligations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return obligations, nil
}

func (t *StatusTotal) add(amount decimal.Decimal) {
	t.Count++
	t.Amount = t.Amount.Add(amount)
}

// GetSummary counts and totals obligations by status. Pending includes the
// overdue ones, which are also reported on their own.
func (s *reportService) GetSummary(userID string, month, year *int) (*ObligationSummary, error) {
	obligations, err := s.load(userID, month, year, false)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	summary := &ObligationSummary{
		Pending: StatusTotal{Amount: decimal.Zero},
		Paid:    StatusTotal{Amount: decimal.Zero},
		Overdue: StatusTotal{Amount: decimal.Zero},
		Total:   StatusTotal{Amount: decimal.Zero},
	}
	for i := range obligations {
		o := &obligations[i]
		summary.Total.add(o.Amount)
		if o.IsPaid() {
			summary.Paid.add(o.Amount)
			continue
		}
		summary.Pending.add(o.Amount)
		if o.IsOverdue(today) {
			summary.Overdue.add(o.Amount)
		}
	}
	return summary, nil
}

// GetCategoryBreakdown totals obligations per category, largest first.
func (s *reportService) GetCategoryBreakdown(userID string, month, year *int) ([]CategoryTotal, error) {
	obligations, err := s.load(userID, month, year, true)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*CategoryTotal)
	for i := range obligations {
		o := &obligations[i]
		ct, ok := byCategory[o.CategoryID]
		if !ok {
			ct = &CategoryTotal{CategoryID: o.CategoryID, Total: decimal.Zero, Paid: decimal.Zero, Pending: decimal.Zero}
			if o.Category != nil {
				ct.CategoryName = o.Category.Name
				ct.Color = o.Category.Color
			}
			byCategory[o.CategoryID] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(o.Amount)
		if o.IsPaid() {
			ct.Paid = ct.Paid.Add(o.Amount)
		} else {
			ct.Pending = ct.Pending.Add(o.Amount)
		}
	}

	totals := make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		totals = append(totals, *ct)
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		return totals[i].CategoryName < totals[j].CategoryName
	})
	return totals, nil
}

// GetEvolution totals paid and pending obligations for each of the last
// months months, the current one included, oldest first.
func (s *reportService) GetEvolution(userID string, months int) ([]MonthTotal, error) {
	if months <= 0 {
		months = 6
	}
	if months > maxEvolutionMonths {
		months = maxEvolutionMonths
	}

	today := s.clock.Today()
	first, _ := billing.MonthBounds(billing.AddMonths(today, 1-months))
	_, last := billing.MonthBounds(today)

	obligations, err := s.loadRange(userID, first, last)
	if err != nil {
		return nil, err
	}

	evolution := make([]MonthTotal, months)
	index := make(map[string]int, months)
	for i := range evolution {
		key := billing.AddMonths(first, i).Format("2006-01")
		evolution[i] = MonthTotal{Month: key, Paid: decimal.Zero, Pending: decimal.Zero, Total: decimal.Zero}
		index[key] = i
	}
	for i := range obligations {
		o := &obligations[i]
		pos, ok := index[o.DueDate.Format("2006-01")]
		if !ok {
			continue
		}
		m := &evolution[pos]
		m.Total = m.Total.Add(o.Amount)
		if o.IsPaid() {
			m.Paid = m.Paid.Add(o.Amount)
		} else {
			m.Pending = m.Pending.Add(o.Amount)
		}
	}
	return evolution, nil
}

func (s *reportService) loadRange(userID string, from, to time.Time) ([]models.Obligation, error) {
	var obligations []models.Obligation
	if err := applyObligationFilters(s.db.Where("user_id = ?", userID),
		ObligationFilter{FromDate: &from, ToDate: &to}, s.clock.Today()).
		Find(&obligations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return obligations, nil
}
