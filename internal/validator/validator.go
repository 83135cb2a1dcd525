// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/carlosmourajunior/minhasfinancas/internal/export"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("hex_color", validateHexColor)
	_ = v.RegisterValidation("card_day", validateCardDay)
	_ = v.RegisterValidation("obligation_status", validateObligationStatus)
	_ = v.RegisterValidation("export_format", validateExportFormat)
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

// validateCardDay accepts a day of month between 1 and 31; days past the end
// of a short month are clamped by the cycle calculator.
func validateCardDay(fl validator.FieldLevel) bool {
	day := fl.Field().Int()
	return day >= 1 && day <= 31
}

func validateObligationStatus(fl validator.FieldLevel) bool {
	switch models.ObligationStatus(fl.Field().String()) {
	case models.ObligationStatusPending, models.ObligationStatusPaid, models.ObligationStatusOverdue:
		return true
	}
	return false
}

func validateExportFormat(fl validator.FieldLevel) bool {
	switch export.Format(fl.Field().String()) {
	case export.FormatPDF, export.FormatXLSX:
		return true
	}
	return false
}
