package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

// ObligationHandler handles obligation-related requests.
type ObligationHandler struct {
	obligationService services.ObligationServicer
	importService     services.ImportServicer
	auditService      services.AuditServicer
}

// NewObligationHandler creates a new ObligationHandler.
func NewObligationHandler(obligationService services.ObligationServicer, importService services.ImportServicer, auditService services.AuditServicer) *ObligationHandler {
	return &ObligationHandler{
		obligationService: obligationService,
		importService:     importService,
		auditService:      auditService,
	}
}

// CreateObligationRequest represents the request payload for creating an
// obligation. Setting is_installment with both counts expands it into an
// installment plan; is_recurring expands it into a monthly series.
type CreateObligationRequest struct {
	Description   string          `json:"description" binding:"required,min=1,max=255"`
	Amount        decimal.Decimal `json:"amount" binding:"required" swaggertype:"number"`
	DueDate       string          `json:"due_date" binding:"required,datetime=2006-01-02"`
	CategoryID    string          `json:"category_id" binding:"required,uuid"`
	CardID        *string         `json:"card_id" binding:"omitempty,uuid"`
	PaymentMethod string          `json:"payment_method" binding:"max=50"`
	Notes         string          `json:"notes" binding:"max=1000"`

	IsRecurring           bool                `json:"is_recurring"`
	IsInstallment         bool                `json:"is_installment"`
	TotalInstallments     int                 `json:"total_installments" binding:"omitempty,min=1,max=360"`
	RemainingInstallments int                 `json:"remaining_installments" binding:"omitempty,min=1,max=360"`
	TotalAmount           decimal.NullDecimal `json:"total_amount" swaggertype:"number"`
}

// UpdateObligationRequest represents the request payload for updating an
// obligation. Omitted fields are left unchanged. Setting is_installment or
// is_recurring on a simple obligation converts it in place.
type UpdateObligationRequest struct {
	Description   *string          `json:"description" binding:"omitempty,min=1,max=255"`
	Amount        *decimal.Decimal `json:"amount" swaggertype:"number"`
	DueDate       *string          `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	CategoryID    *string          `json:"category_id" binding:"omitempty,uuid"`
	CardID        *string          `json:"card_id" binding:"omitempty,uuid"`
	ClearCard     bool             `json:"clear_card"`
	PaymentMethod *string          `json:"payment_method" binding:"omitempty,max=50"`
	Notes         *string          `json:"notes" binding:"omitempty,max=1000"`

	IsRecurring           bool                `json:"is_recurring"`
	IsInstallment         bool                `json:"is_installment"`
	TotalInstallments     int                 `json:"total_installments" binding:"omitempty,min=1,max=360"`
	RemainingInstallments int                 `json:"remaining_installments" binding:"omitempty,min=1,max=360"`
	TotalAmount           decimal.NullDecimal `json:"total_amount" swaggertype:"number"`
}

// PayObligationRequest represents the optional payload of a payment. The
// payment date defaults to today and the paid amount to the current amount.
type PayObligationRequest struct {
	PaymentDate string              `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
	PaidAmount  decimal.NullDecimal `json:"paid_amount" swaggertype:"number"`
}

// ObligationQuery holds the list filters accepted as query parameters.
type ObligationQuery struct {
	Status     string `form:"status" binding:"omitempty,obligation_status"`
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	CardID     string `form:"card_id" binding:"omitempty,uuid"`
	GroupID    string `form:"group_id" binding:"omitempty,uuid"`
	Month      int    `form:"month" binding:"omitempty,min=1,max=12"`
	Year       int    `form:"year" binding:"omitempty,min=1900,max=9999"`
	From       string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

func bindObligationFilter(c *gin.Context) (services.ObligationFilter, error) {
	var q ObligationQuery
	var f services.ObligationFilter
	if err := c.ShouldBindQuery(&q); err != nil {
		return f, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	if q.Status != "" {
		status := models.ObligationStatus(q.Status)
		f.Status = &status
	}
	if q.CategoryID != "" {
		f.CategoryID = &q.CategoryID
	}
	if q.CardID != "" {
		f.CardID = &q.CardID
	}
	if q.GroupID != "" {
		f.GroupID = &q.GroupID
	}
	if q.Month != 0 {
		f.Month = &q.Month
	}
	if q.Year != 0 {
		f.Year = &q.Year
	}

	var err error
	if f.FromDate, err = parseDate("from", q.From); err != nil {
		return f, err
	}
	if f.ToDate, err = parseDate("to", q.To); err != nil {
		return f, err
	}
	if f.FromDate != nil && f.ToDate != nil && f.ToDate.Before(*f.FromDate) {
		return f, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from")
	}
	return f, nil
}

// CreateObligation handles the creation of an obligation or series.
// @Summary     Create an obligation
// @Description Create a simple obligation, an installment plan or a recurring series. All generated records are returned.
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateObligationRequest true "Obligation details"
// @Success     201 {array}  models.Obligation "Obligations created"
// @Failure     400 {object} ErrorResponse "Invalid input or installment plan"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category or card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations [post]
func (h *ObligationHandler) CreateObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligations, err := h.obligationService.CreateObligation(billing.SeriesRequest{
		UserID:                userID,
		Description:           req.Description,
		Amount:                req.Amount,
		DueDate:               *due,
		CategoryID:            req.CategoryID,
		CardID:                req.CardID,
		PaymentMethod:         req.PaymentMethod,
		Notes:                 req.Notes,
		IsRecurring:           req.IsRecurring,
		IsInstallment:         req.IsInstallment,
		TotalInstallments:     req.TotalInstallments,
		RemainingInstallments: req.RemainingInstallments,
		TotalAmount:           req.TotalAmount,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"obligations": obligations})
}

// GetObligations handles listing obligations.
// @Summary     Get obligations
// @Description Get a paginated, filtered list of obligations ordered by due date
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       status      query string false "pending, paid or overdue"
// @Param       category_id query string false "Category ID"
// @Param       card_id     query string false "Card ID"
// @Param       group_id    query string false "Installment or recurrence group ID"
// @Param       month       query int    false "Due month (1-12)"
// @Param       year        query int    false "Due year"
// @Param       from        query string false "Due on or after (YYYY-MM-DD)"
// @Param       to          query string false "Due on or before (YYYY-MM-DD)"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Obligation] "Paginated obligations"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations [get]
func (h *ObligationHandler) GetObligations(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := bindObligationFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.obligationService.GetUserObligations(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDueToday handles listing the obligations due today.
// @Summary     Obligations due today
// @Description Unpaid obligations whose due date is today
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  models.Obligation "Obligations due today"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/due-today [get]
func (h *ObligationHandler) GetDueToday(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligations, err := h.obligationService.GetDueToday(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"obligations": obligations})
}

// ExportCSV handles exporting obligations as CSV.
// @Summary     Export obligations
// @Description Download the filtered obligations as CSV
// @Tags        obligations
// @Produce     text/csv
// @Security    BearerAuth
// @Param       status      query string false "pending, paid or overdue"
// @Param       category_id query string false "Category ID"
// @Param       card_id     query string false "Card ID"
// @Param       month       query int    false "Due month (1-12)"
// @Param       year        query int    false "Due year"
// @Success     200 {file}   file "CSV file"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/export [get]
func (h *ObligationHandler) ExportCSV(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := bindObligationFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.importService.ExportCSV(userID, filter, &buf); err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="obligations.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// GetObligation handles retrieving a specific obligation.
// @Summary     Get obligation by ID
// @Description Get a specific obligation with its category and card
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} models.Obligation "Obligation details"
// @Failure     400 {object} ErrorResponse "Invalid obligation ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id} [get]
func (h *ObligationHandler) GetObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligation, err := h.obligationService.GetObligationByID(userID, obligationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"obligation": obligation})
}

// UpdateObligation handles updating or converting an obligation.
// @Summary     Update obligation
// @Description Update an obligation's fields, or convert a simple obligation into an installment plan or recurring series
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Obligation ID"
// @Param       request body UpdateObligationRequest true "Updated fields"
// @Success     200 {array}  models.Obligation "Updated obligation, followed by any generated siblings"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id} [put]
func (h *ObligationHandler) UpdateObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	upd := services.ObligationUpdate{
		Description:           req.Description,
		Amount:                req.Amount,
		CategoryID:            req.CategoryID,
		CardID:                req.CardID,
		ClearCard:             req.ClearCard,
		PaymentMethod:         req.PaymentMethod,
		Notes:                 req.Notes,
		IsInstallment:         req.IsInstallment,
		IsRecurring:           req.IsRecurring,
		TotalInstallments:     req.TotalInstallments,
		RemainingInstallments: req.RemainingInstallments,
		TotalAmount:           req.TotalAmount,
	}
	if req.DueDate != nil {
		if upd.DueDate, err = parseDate("due_date", *req.DueDate); err != nil {
			respondWithError(c, err)
			return
		}
	}

	obligations, err := h.obligationService.UpdateObligation(userID, obligationID, upd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if len(obligations) > 1 {
		h.auditService.Log(userID, "CONVERT_OBLIGATION", "obligation", obligationID, c.ClientIP(),
			map[string]interface{}{"generated": len(obligations) - 1, "group_id": obligations[0].GroupID()})
	}

	c.JSON(http.StatusOK, gin.H{"obligations": obligations})
}

// PayObligation handles marking an obligation as paid.
// @Summary     Pay obligation
// @Description Mark an obligation paid. Paying a card statement payable also marks the statement's purchases paid. Card purchases cannot be paid directly.
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true  "Obligation ID"
// @Param       request body PayObligationRequest false "Payment details"
// @Success     200 {object} models.Obligation "Paid obligation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     409 {object} ErrorResponse "Card purchase must be paid through its statement, or the statement must be confirmed again"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id}/pay [post]
func (h *ObligationHandler) PayObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PayObligationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	paymentDate, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligation, err := h.obligationService.MarkPaid(userID, obligationID, paymentDate, req.PaidAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "PAY_OBLIGATION", "obligation", obligationID, c.ClientIP(),
		map[string]interface{}{"amount": obligation.Amount.String(), "payment_date": obligation.PaymentDate})

	c.JSON(http.StatusOK, gin.H{"obligation": obligation})
}

// UnpayObligation handles reverting a payment.
// @Summary     Unpay obligation
// @Description Revert a payment, restoring the predicted amount. Unpaying a statement payable also reverts its purchases.
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} models.Obligation "Pending obligation"
// @Failure     400 {object} ErrorResponse "Invalid obligation ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     409 {object} ErrorResponse "Card purchase must be reverted through its statement"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id}/unpay [post]
func (h *ObligationHandler) UnpayObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligation, err := h.obligationService.UnmarkPaid(userID, obligationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UNPAY_OBLIGATION", "obligation", obligationID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"obligation": obligation})
}

// DeleteObligation handles deleting an obligation or its whole group.
// @Summary     Delete obligation
// @Description Delete an obligation. With whole_group=true every member of its installment plan or recurring series is deleted. Deleting a statement payable reverts the statement.
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id          path  string true  "Obligation ID"
// @Param       whole_group query bool   false "Delete the whole installment plan or series"
// @Success     200 {object} map[string]int "Number of deleted obligations"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id} [delete]
func (h *ObligationHandler) DeleteObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	wholeGroup, err := parseBoolQuery(c, "whole_group")
	if err != nil {
		respondWithError(c, err)
		return
	}

	deleted, err := h.obligationService.DeleteObligation(userID, obligationID, wholeGroup)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_OBLIGATION", "obligation", obligationID, c.ClientIP(),
		map[string]interface{}{"whole_group": wholeGroup, "deleted": deleted})

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// GetInstallmentInfo handles describing the installment plan of an obligation.
// @Summary     Installment plan
// @Description Counts, amounts and members of the installment plan the obligation belongs to
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} services.InstallmentInfo "Installment plan"
// @Failure     400 {object} ErrorResponse "Not an installment"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /obligations/{id}/installments [get]
func (h *ObligationHandler) GetInstallmentInfo(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	obligationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	info, err := h.obligationService.GetInstallmentInfo(userID, obligationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"installments": info})
}
