package model

import (
	"time"

	"github.com/google/uuid"
)

// Role enum constants
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleFinance  = "finance"
	RoleAudit    = "audit"
	RoleAdmin    = "admin"
)

// SystemOwnerID is the protected root account. It is seeded at startup,
// can never be deleted, and is the default manager for top-level roles.
const SystemOwnerID = 1

// SystemOwnerName is the display name used when manager_id resolves to the owner record
const SystemOwnerName = "System Owner"

// User represents an employee account. EmpID is assigned by the admin
// (badge number), not generated by the database.
type User struct {
	EmpID     int       `gorm:"column:emp_id;primaryKey;autoIncrement:false" json:"emp_id"`
	Name      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"` // Omit password hash from JSON requests/responses
	Role      string    `gorm:"type:varchar(20);not null" json:"role"`
	ManagerID *int      `gorm:"column:manager_id;index" json:"manager_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EmpID     int       `gorm:"column:emp_id;not null;index" json:"emp_id"`
	User      User      `gorm:"foreignKey:EmpID;references:EmpID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
