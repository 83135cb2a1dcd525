package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

// DefaultSeriesLength is how many obligations a recurring request expands to.
const DefaultSeriesLength = 6

// MaxInstallments bounds installment plans.
const MaxInstallments = 360

// Mode is the expansion a request resolves to.
type Mode string

const (
	ModeSimple      Mode = "simple"
	ModeInstallment Mode = "installment"
	ModeRecurring   Mode = "recurring"
)

// SeriesRequest is a user-entered obligation before expansion.
type SeriesRequest struct {
	UserID        string
	Description   string
	Amount        decimal.Decimal
	DueDate       time.Time
	CategoryID    string
	CardID        *string
	PaymentMethod string
	Notes         string

	IsRecurring bool

	IsInstallment         bool
	TotalInstallments     int
	RemainingInstallments int
	// TotalAmount overrides Amount x TotalInstallments when valid.
	TotalAmount decimal.NullDecimal
}

// Mode resolves the expansion. An installment request without both counts
// degrades to a simple obligation.
func (r SeriesRequest) Mode() Mode {
	switch {
	case r.IsInstallment && r.TotalInstallments != 0 && r.RemainingInstallments != 0:
		return ModeInstallment
	case r.IsRecurring && !r.IsInstallment:
		return ModeRecurring
	}
	return ModeSimple
}

// CurrentInstallment is the index of the installment due on the request's
// due date.
func (r SeriesRequest) CurrentInstallment() int {
	return r.TotalInstallments - r.RemainingInstallments + 1
}

// SettledLookup reports whether the card's statement due in the month of due
// is confirmed and its payable already paid.
type SettledLookup func(cardID string, due time.Time) (bool, error)

// Generator expands obligation requests.
type Generator struct {
	ids          IDGenerator
	clock        Clock
	seriesLength int
}

// NewGenerator creates a Generator. A non-positive seriesLength falls back
// to DefaultSeriesLength.
func NewGenerator(ids IDGenerator, clock Clock, seriesLength int) *Generator {
	if seriesLength <= 0 {
		seriesLength = DefaultSeriesLength
	}
	return &Generator{ids: ids, clock: clock, seriesLength: seriesLength}
}

// Generate expands req into one (simple), N (installment plan) or
// seriesLength (recurring) pending obligations sharing a fresh group id.
// Every record has its id assigned. settled may be nil when req has no card.
func (g *Generator) Generate(req SeriesRequest, settled SettledLookup) ([]models.Obligation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var series []models.Obligation
	var err error
	switch req.Mode() {
	case ModeInstallment:
		series, err = g.installments(req, settled)
	case ModeRecurring:
		series = g.recurring(req)
	default:
		series = []models.Obligation{g.base(req, req.DueDate)}
		series[0].ID = g.ids.NewID()
	}
	if err != nil {
		return nil, err
	}

	if err := CheckSeries(series); err != nil {
		return nil, err
	}
	return series, nil
}

// Convert turns an existing simple obligation into the anchor of a new
// installment plan (the current installment) or recurring series (the first
// month), mutating it in place. It returns only the sibling records that
// must be created; the anchor keeps its id and, if already paid, its payment.
func (g *Generator) Convert(existing *models.Obligation, req SeriesRequest, settled SettledLookup) ([]models.Obligation, error) {
	if !existing.IsSimple() || existing.IsStatementPayable() {
		return nil, apperrors.ErrAlreadyInSeries
	}
	if req.IsInstallment && (req.TotalInstallments == 0 || req.RemainingInstallments == 0) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInstallmentPlan,
			"converting to an installment plan requires both total_installments and remaining_installments")
	}
	if req.Mode() == ModeSimple {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "conversion needs is_installment or is_recurring")
	}

	series, err := g.Generate(req, settled)
	if err != nil {
		return nil, err
	}

	anchor := 0
	if req.Mode() == ModeInstallment {
		anchor = req.CurrentInstallment() - 1
	}

	converted := series[anchor]
	converted.Base = existing.Base
	if existing.IsPaid() {
		converted.Amount = existing.Amount
		converted.Status = existing.Status
		converted.PaymentDate = existing.PaymentDate
		converted.PaidAmount = existing.PaidAmount
		if existing.PredictedAmount.Valid {
			converted.PredictedAmount = existing.PredictedAmount
		}
	}
	*existing = converted

	siblings := make([]models.Obligation, 0, len(series)-1)
	siblings = append(siblings, series[:anchor]...)
	siblings = append(siblings, series[anchor+1:]...)
	return siblings, nil
}

func (g *Generator) base(req SeriesRequest, due time.Time) models.Obligation {
	return models.Obligation{
		UserID:        req.UserID,
		Kind:          models.ObligationKindOrdinary,
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
		DueDate:       DayOf(due),
		CategoryID:    req.CategoryID,
		CardID:        req.CardID,
		PaymentMethod: req.PaymentMethod,
		Status:        models.ObligationStatusPending,
		Notes:         req.Notes,
	}
}

func (g *Generator) recurring(req SeriesRequest) []models.Obligation {
	groupID := g.ids.NewID()
	series := make([]models.Obligation, 0, g.seriesLength)
	for i := 0; i < g.seriesLength; i++ {
		due := AddMonths(req.DueDate, i)
		o := g.base(req, due)
		o.ID = g.ids.NewID()
		o.Description = fmt.Sprintf("%s - %02d/%d", o.Description, int(due.Month()), due.Year())
		o.IsRecurring = true
		o.RecurrenceGroupID = &groupID
		o.PredictedAmount = decimal.NewNullDecimal(req.Amount)
		series = append(series, o)
	}
	return series
}

func (g *Generator) installments(req SeriesRequest, settled SettledLookup) ([]models.Obligation, error) {
	total := req.TotalInstallments
	current := req.CurrentInstallment()

	totalAmount := req.Amount.Mul(decimal.NewFromInt(int64(total)))
	if req.TotalAmount.Valid {
		totalAmount = req.TotalAmount.Decimal
	}

	groupID := g.ids.NewID()
	series := make([]models.Obligation, 0, total)
	for index := 1; index <= total; index++ {
		due := AddMonths(req.DueDate, index-current)
		o := g.base(req, due)
		o.ID = g.ids.NewID()
		o.Description = fmt.Sprintf("%s - Installment %d/%d", o.Description, index, total)
		o.IsInstallment = true
		o.InstallmentIndex = index
		o.InstallmentCount = total
		o.TotalAmount = decimal.NewNullDecimal(totalAmount)
		o.InstallmentGroupID = &groupID
		o.PredictedAmount = decimal.NewNullDecimal(req.Amount)

		switch {
		case index < current:
			markSettled(&o, o.DueDate)
		case index == current && req.CardID != nil && settled != nil:
			ok, err := settled(*req.CardID, o.DueDate)
			if err != nil {
				return nil, err
			}
			if ok {
				markSettled(&o, g.clock.Today())
			}
		}
		series = append(series, o)
	}
	return series, nil
}

func markSettled(o *models.Obligation, paidOn time.Time) {
	day := DayOf(paidOn)
	o.Status = models.ObligationStatusPaid
	o.PaymentDate = &day
	o.PaidAmount = decimal.NewNullDecimal(o.Amount)
}

func validateRequest(req SeriesRequest) error {
	switch {
	case strings.TrimSpace(req.Description) == "":
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
	case req.CategoryID == "":
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "category_id is required")
	case req.UserID == "":
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "user id is required")
	case !req.Amount.IsPositive():
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	case req.DueDate.IsZero():
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "due_date is required")
	case req.IsInstallment && req.IsRecurring:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "an obligation cannot be both an installment plan and a recurring series")
	}

	if !req.IsInstallment {
		return nil
	}
	if req.TotalInstallments < 0 || req.RemainingInstallments < 0 {
		return apperrors.ErrInvalidInstallmentPlan
	}
	if req.Mode() != ModeInstallment {
		return nil
	}
	if req.RemainingInstallments > req.TotalInstallments {
		return apperrors.WithMessage(apperrors.ErrInvalidInstallmentPlan,
			fmt.Sprintf("remaining_installments (%d) cannot exceed total_installments (%d)", req.RemainingInstallments, req.TotalInstallments))
	}
	if req.TotalInstallments > MaxInstallments {
		return apperrors.WithMessage(apperrors.ErrInvalidInstallmentPlan,
			fmt.Sprintf("total_installments cannot exceed %d", MaxInstallments))
	}
	if req.TotalAmount.Valid && !req.TotalAmount.Decimal.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInstallmentPlan, "total_amount must be greater than zero")
	}
	return nil
}

// CheckObligation verifies the mode invariants of a single record: each
// family of series fields only appears with its flag, group ids are present
// iff the flag is set, and an installment index never exceeds its count.
func CheckObligation(o *models.Obligation) error {
	violation := func(msg string) error {
		return apperrors.WithMessage(apperrors.ErrConsistencyViolation,
			fmt.Sprintf("obligation %q: %s", o.ID, msg))
	}

	if o.IsInstallment && o.IsRecurring {
		return violation("installment and recurring are mutually exclusive")
	}
	if o.IsInstallment {
		if o.InstallmentGroupID == nil {
			return violation("installment without group id")
		}
		if o.InstallmentIndex < 1 || o.InstallmentIndex > o.InstallmentCount {
			return violation(fmt.Sprintf("installment index %d outside 1..%d", o.InstallmentIndex, o.InstallmentCount))
		}
	} else if o.InstallmentGroupID != nil || o.InstallmentIndex != 0 || o.InstallmentCount != 0 {
		return violation("installment fields on a non-installment obligation")
	}
	if o.IsRecurring != (o.RecurrenceGroupID != nil) {
		return violation("recurrence group id must be present iff recurring")
	}
	return nil
}

// CheckSeries verifies every record and that installment siblings carry
// distinct indices 1..N under one group id.
func CheckSeries(series []models.Obligation) error {
	seen := make(map[int]bool, len(series))
	group := ""
	for i := range series {
		o := &series[i]
		if err := CheckObligation(o); err != nil {
			return err
		}
		if g := o.GroupID(); g != "" {
			if group != "" && g != group {
				return apperrors.WithMessage(apperrors.ErrConsistencyViolation, "series spans more than one group")
			}
			group = g
		}
		if !o.IsInstallment {
			continue
		}
		if seen[o.InstallmentIndex] {
			return apperrors.WithMessage(apperrors.ErrConsistencyViolation,
				fmt.Sprintf("installment index %d generated twice", o.InstallmentIndex))
		}
		seen[o.InstallmentIndex] = true
	}
	return nil
}
