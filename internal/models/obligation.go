package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationStatus is the stored payment status of an obligation.
type ObligationStatus string

const (
	ObligationStatusPending ObligationStatus = "pending"
	ObligationStatusPaid    ObligationStatus = "paid"

	// ObligationStatusOverdue is a derived view (pending and past due). It is
	// accepted as a list filter and reported in responses but never stored.
	ObligationStatusOverdue ObligationStatus = "overdue"
)

// ObligationKind tags what an obligation represents. It is decided when the
// record is created and never changes.
type ObligationKind string

const (
	ObligationKindOrdinary      ObligationKind = "ordinary"
	ObligationKindCardStatement ObligationKind = "card_statement"
)

// Obligation is a single payable item: a bill, a card purchase, one
// installment of a parceled purchase, one month of a recurring bill, or the
// payable that settles a card statement.
type Obligation struct {
	Base
	UserID        string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind          ObligationKind   `gorm:"not null;default:'ordinary'" json:"kind"`
	Description   string           `gorm:"not null" json:"description"`
	Amount        decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"amount"`
	DueDate       time.Time        `gorm:"type:date;not null;index" json:"due_date"`
	PaymentDate   *time.Time       `gorm:"type:date" json:"payment_date,omitempty"`
	CategoryID    string           `gorm:"type:uuid;not null;index" json:"category_id"`
	CardID        *string          `gorm:"type:uuid;index" json:"card_id,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	Status        ObligationStatus `gorm:"not null;default:'pending';index" json:"status"`
	Notes         string           `json:"notes,omitempty"`

	// Installment plan
	IsInstallment      bool                `gorm:"not null;default:false" json:"is_installment"`
	InstallmentIndex   int                 `json:"installment_index,omitempty"`
	InstallmentCount   int                 `json:"installment_count,omitempty"`
	TotalAmount        decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"total_amount"`
	InstallmentGroupID *string             `gorm:"type:uuid;index" json:"installment_group_id,omitempty"`

	// Recurring series
	IsRecurring       bool    `gorm:"not null;default:false" json:"is_recurring"`
	RecurrenceGroupID *string `gorm:"type:uuid;index" json:"recurrence_group_id,omitempty"`

	// PredictedAmount preserves the amount expected before the first payment;
	// PaidAmount is what was actually paid.
	PredictedAmount decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"predicted_amount"`
	PaidAmount      decimal.NullDecimal `gorm:"type:decimal(18,4)" json:"paid_amount"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Card     *Card     `gorm:"foreignKey:CardID" json:"card,omitempty"`
}

// IsPaid reports whether the obligation has been paid.
func (o *Obligation) IsPaid() bool {
	return o.Status == ObligationStatusPaid
}

// IsOverdue reports whether the obligation is unpaid and its due date is
// before today.
func (o *Obligation) IsOverdue(today time.Time) bool {
	return !o.IsPaid() && o.DueDate.Before(today)
}

// EffectiveStatus returns the status as shown to users, overdue included.
func (o *Obligation) EffectiveStatus(today time.Time) ObligationStatus {
	if o.IsOverdue(today) {
		return ObligationStatusOverdue
	}
	return o.Status
}

// IsCardPurchase reports whether the obligation is a purchase charged to a
// card, which is only ever settled through that card's statement.
func (o *Obligation) IsCardPurchase() bool {
	return o.CardID != nil && o.Kind != ObligationKindCardStatement
}

// IsStatementPayable reports whether the obligation is the payable created by
// confirming a card statement.
func (o *Obligation) IsStatementPayable() bool {
	return o.Kind == ObligationKindCardStatement
}

// IsSimple reports whether the obligation belongs to neither an installment
// plan nor a recurring series.
func (o *Obligation) IsSimple() bool {
	return !o.IsInstallment && !o.IsRecurring
}

// GroupID returns the installment or recurrence group id, if any.
func (o *Obligation) GroupID() string {
	switch {
	case o.InstallmentGroupID != nil:
		return *o.InstallmentGroupID
	case o.RecurrenceGroupID != nil:
		return *o.RecurrenceGroupID
	}
	return ""
}
