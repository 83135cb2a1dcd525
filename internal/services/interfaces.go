package services

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	"github.com/carlosmourajunior/minhasfinancas/internal/export"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
)

// BillingOptions carries the billing engine collaborators shared by the
// services: the clock deciding "today", the id generator used to assign
// identifiers before records are built, and the policy knobs.
type BillingOptions struct {
	Clock        billing.Clock
	IDs          billing.IDGenerator
	Alerts       billing.Policy
	SeriesLength int
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, name string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name, description, color string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID, name, description, color string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
	EnsureStatementCategory(tx *gorm.DB, userID string) (*models.Category, error)
}

// CardInput holds the fields of a card create or update. Nil pointers are
// left untouched on update.
type CardInput struct {
	Name        *string
	Brand       *string
	CreditLimit decimal.NullDecimal
	ClosingDay  *int
	DueDay      *int
	IsActive    *bool
}

// CardEstimate is the predicted statement of one upcoming cycle.
type CardEstimate struct {
	billing.Cycle
	PredictedAmount decimal.Decimal `json:"predicted_amount"`
	PurchaseCount   int             `json:"purchase_count"`
}

// CardServicer defines the contract for card-related business logic.
type CardServicer interface {
	CreateCard(userID string, in CardInput) (*models.Card, error)
	GetUserCards(userID string, page pagination.PageRequest, activeOnly bool) (*pagination.PageResponse[models.Card], error)
	GetCardByID(userID, cardID string) (*models.Card, error)
	UpdateCard(userID, cardID string, in CardInput) (*models.Card, error)
	DeleteCard(userID, cardID string) error
	EstimateStatements(userID, cardID string, months int) ([]CardEstimate, error)
}

// ObligationFilter holds optional filter parameters for listing obligations.
type ObligationFilter struct {
	Status     *models.ObligationStatus
	CategoryID *string
	CardID     *string
	GroupID    *string
	Month      *int
	Year       *int
	FromDate   *time.Time
	ToDate     *time.Time
}

// ObligationUpdate holds the editable fields of an obligation. Setting
// IsInstallment or IsRecurring on a simple obligation converts it in place.
type ObligationUpdate struct {
	Description   *string
	Amount        *decimal.Decimal
	DueDate       *time.Time
	CategoryID    *string
	CardID        *string
	ClearCard     bool
	PaymentMethod *string
	Notes         *string

	IsInstallment         bool
	IsRecurring           bool
	TotalInstallments     int
	RemainingInstallments int
	TotalAmount           decimal.NullDecimal
}

// converts reports whether the update asks for a series conversion.
func (u ObligationUpdate) converts() bool {
	return u.IsInstallment || u.IsRecurring
}

// InstallmentInfo describes the installment plan an obligation belongs to.
type InstallmentInfo struct {
	GroupID         string              `json:"group_id"`
	Total           int                 `json:"total"`
	Paid            int                 `json:"paid"`
	Pending         int                 `json:"pending"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	PaidAmount      decimal.Decimal     `json:"paid_amount"`
	RemainingAmount decimal.Decimal     `json:"remaining_amount"`
	NextDueDate     *time.Time          `json:"next_due_date,omitempty"`
	Installments    []models.Obligation `json:"installments"`
}

// ObligationServicer defines the contract for obligation-related business logic.
type ObligationServicer interface {
	CreateObligation(req billing.SeriesRequest) ([]models.Obligation, error)
	UpdateObligation(userID, obligationID string, upd ObligationUpdate) ([]models.Obligation, error)
	GetObligationByID(userID, obligationID string) (*models.Obligation, error)
	GetUserObligations(userID string, page pagination.PageRequest, filter ObligationFilter) (*pagination.PageResponse[models.Obligation], error)
	ListObligations(userID string, filter ObligationFilter) ([]models.Obligation, error)
	GetDueToday(userID string) ([]models.Obligation, error)
	MarkPaid(userID, obligationID string, paymentDate *time.Time, paidAmount decimal.NullDecimal) (*models.Obligation, error)
	UnmarkPaid(userID, obligationID string) (*models.Obligation, error)
	DeleteObligation(userID, obligationID string, wholeGroup bool) (int, error)
	GetInstallmentInfo(userID, obligationID string) (*InstallmentInfo, error)
}

// StatementView is a statement together with what consumers need to act on
// it: the card, the payable and the settlement state.
type StatementView struct {
	models.Statement
	Payable       *models.Obligation      `json:"payable,omitempty"`
	Settlement    billing.SettlementState `json:"settlement"`
	PurchaseCount int                     `json:"purchase_count"`
}

// StatementMonth aggregates the statements due in one month.
type StatementMonth struct {
	Month           string          `json:"month"`
	Statements      int             `json:"statements"`
	Confirmed       int             `json:"confirmed"`
	Settled         int             `json:"settled"`
	PredictedAmount decimal.Decimal `json:"predicted_amount"`
	ActualAmount    decimal.Decimal `json:"actual_amount"`
}

// StatementServicer defines the contract for statement-related business logic.
type StatementServicer interface {
	GetPendingStatements(userID string) ([]StatementView, error)
	ConfirmStatement(userID, statementID string, actualAmount decimal.Decimal) (*StatementView, error)
	GetStatementByID(userID, statementID string) (*StatementView, error)
	GetCardStatements(userID, cardID string, page pagination.PageRequest) (*pagination.PageResponse[models.Statement], error)
	GetStatementSummary(userID string, months int) ([]StatementMonth, error)
	GetCardStatementSummary(userID, cardID string, months int) ([]StatementMonth, error)
	ExportStatement(userID, statementID string, format export.Format) ([]byte, string, error)
}

// StatusTotal is a count and sum of obligations.
type StatusTotal struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ObligationSummary totals obligations by effective status.
type ObligationSummary struct {
	Pending StatusTotal `json:"pending"`
	Paid    StatusTotal `json:"paid"`
	Overdue StatusTotal `json:"overdue"`
	Total   StatusTotal `json:"total"`
}

// CategoryTotal totals obligations of one category.
type CategoryTotal struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Color        string          `json:"color"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Pending      decimal.Decimal `json:"pending"`
	Count        int             `json:"count"`
}

// MonthTotal totals obligations due in one month.
type MonthTotal struct {
	Month   string          `json:"month"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
	Total   decimal.Decimal `json:"total"`
}

// ReportServicer defines the contract for obligation reports.
type ReportServicer interface {
	GetSummary(userID string, month, year *int) (*ObligationSummary, error)
	GetCategoryBreakdown(userID string, month, year *int) ([]CategoryTotal, error)
	GetEvolution(userID string, months int) ([]MonthTotal, error)
}

// ImportResult reports a spreadsheet import.
type ImportResult struct {
	Imported          int               `json:"imported"`
	CreatedCategories []string          `json:"created_categories"`
	Errors            []export.RowError `json:"errors"`
}

// ImportServicer defines the contract for spreadsheet import and CSV export.
type ImportServicer interface {
	ImportXLSX(userID string, r io.Reader) (*ImportResult, error)
	ExportCSV(userID string, filter ObligationFilter, w io.Writer) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
