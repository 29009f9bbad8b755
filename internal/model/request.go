package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request status constants. Rejected and Paid are terminal.
const (
	StatusPending         = "Pending"
	StatusManagerApproved = "Manager Approved"
	StatusAwaitingFinance = "Awaiting Finance"
	StatusRejected        = "Rejected"
	StatusPaid            = "Paid"
)

// Request represents a single expense claim submitted by an employee.
// It is created as Pending (or Awaiting Finance for a manager's own claim)
// and mutated only through workflow transitions.
type Request struct {
	ReqID       int             `gorm:"column:req_id;primaryKey" json:"req_id"`
	EmpID       int             `gorm:"column:emp_id;not null;index" json:"emp_id"`
	Employee    *User           `gorm:"foreignKey:EmpID;references:EmpID" json:"employee,omitempty"`
	Category    string          `gorm:"type:varchar(50);not null;index" json:"category"`
	Description string          `gorm:"type:varchar(200)" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	ImagePath   *string         `gorm:"type:varchar(255)" json:"image_path"`
	Status      string          `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
