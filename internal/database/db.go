package database

import (
	"log"
	"os"

	"reimburse/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.Request{},
		&model.Policy{},
		&model.RefreshToken{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// SeedSystemOwner ensures the protected emp_id=1 record exists. All
// top-level roles report to this account by default.
func SeedSystemOwner(db *gorm.DB) error {
	var owner model.User
	err := db.First(&owner, "emp_id = ?", model.SystemOwnerID).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	password := os.Getenv("SYSTEM_OWNER_PASSWORD")
	if password == "" {
		password = "changeme" // Development fallback only — set SYSTEM_OWNER_PASSWORD in production
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	owner = model.User{
		EmpID:    model.SystemOwnerID,
		Name:     model.SystemOwnerName,
		Password: string(hashed),
		Role:     model.RoleAdmin,
	}
	if err := db.Create(&owner).Error; err != nil {
		return err
	}
	log.Println("System Owner (emp_id=1) initialized.")
	return nil
}
