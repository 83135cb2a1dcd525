package models

// DefaultStatementCategoryName is the display name of the category that holds
// card statement payables. The category is located through IsStatementCategory,
// never through its name.
const DefaultStatementCategoryName = "Card Statement"

// Category is a named classification; every obligation belongs to exactly one.
type Category struct {
	Base
	UserID              string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name                string `gorm:"not null" json:"name"`
	Description         string `json:"description"`
	Color               string `json:"color"`
	IsStatementCategory bool   `gorm:"not null;default:false" json:"is_statement_category"`
}
