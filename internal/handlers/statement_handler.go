package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/export"
	"github.com/carlosmourajunior/minhasfinancas/internal/pagination"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

// StatementHandler handles card statement requests.
type StatementHandler struct {
	statementService services.StatementServicer
	auditService     services.AuditServicer
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(statementService services.StatementServicer, auditService services.AuditServicer) *StatementHandler {
	return &StatementHandler{statementService: statementService, auditService: auditService}
}

// ConfirmStatementRequest carries the amount printed on the card statement.
type ConfirmStatementRequest struct {
	ActualAmount *decimal.Decimal `json:"actual_amount" binding:"required" swaggertype:"number"`
}

// ExportStatementQuery selects the export format.
type ExportStatementQuery struct {
	Format string `form:"format" binding:"omitempty,export_format"`
}

// GetPendingStatements handles listing the statements awaiting confirmation.
// @Summary     Pending statements
// @Description Statements of active cards inside the alert window that still need their actual amount confirmed. Missing statements are created and predicted amounts refreshed.
// @Tags        statements
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.StatementView "Pending statements ordered by due date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements/pending [get]
func (h *StatementHandler) GetPendingStatements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	statements, err := h.statementService.GetPendingStatements(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statements": statements})
}

// GetStatementSummary handles the per-month statement summary.
// @Summary     Statement summary
// @Description Statement totals per due month across all cards
// @Tags        statements
// @Produce     json
// @Security    BearerAuth
// @Param       months query int false "Number of months (default 6, max 24)"
// @Success     200 {array}  services.StatementMonth "Monthly totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements/summary [get]
func (h *StatementHandler) GetStatementSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	months, err := summaryMonths(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.statementService.GetStatementSummary(userID, months)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": summary})
}

// GetCardStatementSummary handles the per-month summary of one card.
// @Summary     Card statement summary
// @Description Statement totals per due month for one card
// @Tags        cards
// @Produce     json
// @Security    BearerAuth
// @Param       id     path  string true  "Card ID"
// @Param       months query int    false "Number of months (default 6, max 24)"
// @Success     200 {array}  services.StatementMonth "Monthly totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id}/statements/summary [get]
func (h *StatementHandler) GetCardStatementSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	months, err := summaryMonths(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.statementService.GetCardStatementSummary(userID, cardID, months)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": summary})
}

// summaryMonths reads the optional months query; 0 selects the default.
func summaryMonths(c *gin.Context) (int, error) {
	months, err := parseIntQuery(c, "months", 1, 24)
	if err != nil || months == nil {
		return 0, err
	}
	return *months, nil
}

// GetStatement handles retrieving a statement.
// @Summary     Get statement by ID
// @Description Get a statement with its card, payable and settlement state
// @Tags        statements
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Statement ID"
// @Success     200 {object} services.StatementView "Statement details"
// @Failure     400 {object} ErrorResponse "Invalid statement ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Statement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements/{id} [get]
func (h *StatementHandler) GetStatement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	statementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	statement, err := h.statementService.GetStatementByID(userID, statementID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statement": statement})
}

// ConfirmStatement handles confirming a statement's actual amount.
// @Summary     Confirm statement
// @Description Record the actual statement amount and create the payable obligation due on the statement's due date. Confirming twice is a no-op.
// @Tags        statements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Statement ID"
// @Param       request body ConfirmStatementRequest true "Actual amount"
// @Success     200 {object} services.StatementView "Confirmed statement"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Statement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements/{id}/confirm [post]
func (h *StatementHandler) ConfirmStatement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	statementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ConfirmStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	statement, err := h.statementService.ConfirmStatement(userID, statementID, *req.ActualAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{"actual_amount": req.ActualAmount.String()}
	if statement.ObligationID != nil {
		changes["obligation_id"] = *statement.ObligationID
	}
	h.auditService.Log(userID, "CONFIRM_STATEMENT", "statement", statementID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"statement": statement})
}

// ExportStatement handles downloading a statement document.
// @Summary     Export statement
// @Description Download the statement with its purchases as PDF or XLSX
// @Tags        statements
// @Produce     application/pdf
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       id     path  string true  "Statement ID"
// @Param       format query string false "pdf (default) or xlsx"
// @Success     200 {file}   file "Statement document"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Statement not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statements/{id}/export [get]
func (h *StatementHandler) ExportStatement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	statementID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ExportStatementQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	format := export.FormatPDF
	if q.Format != "" {
		format = export.Format(q.Format)
	}

	data, filename, err := h.statementService.ExportStatement(userID, statementID, format)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, format.ContentType(), data)
}

// GetCardStatements handles listing a card's statements.
// @Summary     Card statements
// @Description Statements of one card, newest period first
// @Tags        cards
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Card ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Statement] "Paginated statements"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Card not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /cards/{id}/statements [get]
func (h *StatementHandler) GetCardStatements(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cardID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.statementService.GetCardStatements(userID, cardID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
