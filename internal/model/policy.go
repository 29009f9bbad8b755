package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is an admin-defined maximum reimbursable amount for a category.
// Exceeding the limit flags the claim as over-limit but never blocks it.
type Policy struct {
	ID          int             `gorm:"primaryKey" json:"id"`
	Category    string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"category"`
	AmountLimit decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_limit"`
	Description string          `gorm:"type:varchar(200)" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
