package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementStatus is the lifecycle state of a card statement.
type StatementStatus string

const (
	StatementStatusPending   StatementStatus = "pending"
	StatementStatusConfirmed StatementStatus = "confirmed"
)

// Statement is one billing cycle of a card. There is at most one statement
// per (card, period start, period end).
type Statement struct {
	Base
	UserID          string              `gorm:"type:uuid;not null;index" json:"user_id"`
	CardID          string              `gorm:"type:uuid;not null;uniqueIndex:idx_statements_cycle" json:"card_id"`
	PeriodStart     time.Time           `gorm:"type:date;not null;uniqueIndex:idx_statements_cycle" json:"period_start"`
	PeriodEnd       time.Time           `gorm:"type:date;not null;uniqueIndex:idx_statements_cycle" json:"period_end"`
	ClosingDate     time.Time           `gorm:"type:date;not null" json:"closing_date"`
	DueDate         time.Time           `gorm:"type:date;not null;index" json:"due_date"`
	PredictedAmount decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"predicted_amount"`
	ActualAmount    decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"actual_amount"`
	Status          StatementStatus     `gorm:"not null;default:'pending'" json:"status"`
	ObligationID    *string             `gorm:"type:uuid;index" json:"obligation_id,omitempty"`

	// Relationships
	Card *Card `gorm:"foreignKey:CardID" json:"card,omitempty"`
}

// IsConfirmed reports whether the user has accepted an actual amount.
func (s *Statement) IsConfirmed() bool {
	return s.Status == StatementStatusConfirmed
}

// Covers reports whether a purchase due on day belongs to this statement.
func (s *Statement) Covers(day time.Time) bool {
	return !day.Before(s.PeriodStart) && !day.After(s.PeriodEnd)
}
