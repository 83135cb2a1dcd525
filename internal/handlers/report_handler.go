package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

// ReportHandler handles obligation report requests.
type ReportHandler struct {
	reportService services.ReportServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func parsePeriod(c *gin.Context) (*int, *int, error) {
	month, err := parseIntQuery(c, "month", 1, 12)
	if err != nil {
		return nil, nil, err
	}
	year, err := parseIntQuery(c, "year", 1900, 9999)
	if err != nil {
		return nil, nil, err
	}
	return month, year, nil
}

// GetSummary handles the status summary report.
// @Summary     Obligation summary
// @Description Counts and totals of pending, paid and overdue obligations. Pending includes overdue.
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       month query int false "Due month (1-12)"
// @Param       year  query int false "Due year"
// @Success     200 {object} services.ObligationSummary "Summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/summary [get]
func (h *ReportHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, year, err := parsePeriod(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.reportService.GetSummary(userID, month, year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetCategoryBreakdown handles the per-category report.
// @Summary     Totals by category
// @Description Total, paid and pending amounts per category, largest first
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       month query int false "Due month (1-12)"
// @Param       year  query int false "Due year"
// @Success     200 {array}  services.CategoryTotal "Category totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/categories [get]
func (h *ReportHandler) GetCategoryBreakdown(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, year, err := parsePeriod(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	totals, err := h.reportService.GetCategoryBreakdown(userID, month, year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": totals})
}

// GetEvolution handles the monthly evolution report.
// @Summary     Monthly evolution
// @Description Paid and pending totals for each of the last months, the current one included
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       months query int false "Number of months (default 6, max 36)"
// @Success     200 {array}  services.MonthTotal "Monthly totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/evolution [get]
func (h *ReportHandler) GetEvolution(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	months, err := parseIntQuery(c, "months", 1, 36)
	if err != nil {
		respondWithError(c, err)
		return
	}
	n := 0
	if months != nil {
		n = *months
	}

	evolution, err := h.reportService.GetEvolution(userID, n)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"months": evolution})
}
