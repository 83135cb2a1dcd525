package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/services"
)

// maxImportSize bounds uploaded spreadsheets.
const maxImportSize = 5 << 20

// ImportHandler handles spreadsheet imports.
type ImportHandler struct {
	importService services.ImportServicer
	auditService  services.AuditServicer
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(importService services.ImportServicer, auditService services.AuditServicer) *ImportHandler {
	return &ImportHandler{importService: importService, auditService: auditService}
}

// ImportXLSX handles importing obligations from a spreadsheet.
// @Summary     Import obligations
// @Description Import one simple obligation per row of the first sheet (columns description, amount, due_date, category, card, notes). Nothing is imported when any row fails; the failing lines are returned with status 422.
// @Tags        import
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file formData file true "XLSX file"
// @Success     201 {object} services.ImportResult "Import result"
// @Failure     400 {object} ErrorResponse "Invalid file"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} services.ImportResult "Rows rejected"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /import/xlsx [post]
func (h *ImportHandler) ImportXLSX(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file is required"))
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file must be an .xlsx spreadsheet"))
		return
	}
	if header.Size > maxImportSize {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file must be at most 5MB"))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer file.Close()

	result, err := h.importService.ImportXLSX(userID, file)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if len(result.Errors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}

	h.auditService.Log(userID, "IMPORT_OBLIGATIONS", "obligation", "", c.ClientIP(),
		map[string]interface{}{"file": header.Filename, "imported": result.Imported})

	c.JSON(http.StatusCreated, result)
}
