package models

import "github.com/shopspring/decimal"

// Card is a credit instrument. ClosingDay and DueDay are 1-31 and are clamped
// to the last day of shorter months by the cycle calculator.
type Card struct {
	Base
	UserID      string              `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string              `gorm:"not null" json:"name"`
	Brand       string              `json:"brand"`
	CreditLimit decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"credit_limit"`
	ClosingDay  int                 `gorm:"not null;check:closing_day >= 1 AND closing_day <= 31" json:"closing_day"`
	DueDay      int                 `gorm:"not null;check:due_day >= 1 AND due_day <= 31" json:"due_day"`
	IsActive    bool                `gorm:"default:true" json:"is_active"`
}
