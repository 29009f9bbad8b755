package repository

import (
	"context"

	"reimburse/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PolicyRepository defines data access for per-category spending policies.
type PolicyRepository interface {
	Upsert(ctx context.Context, policy *model.Policy) error
	FindByCategory(ctx context.Context, category string) (*model.Policy, error)
	List(ctx context.Context) ([]model.Policy, error)
}

type policyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

// Upsert inserts the policy or, when the category already exists, refreshes
// its limit and description in place. Category is the natural key.
func (r *policyRepository) Upsert(ctx context.Context, policy *model.Policy) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount_limit", "description", "updated_at"}),
	}).Create(policy).Error
}

func (r *policyRepository) FindByCategory(ctx context.Context, category string) (*model.Policy, error) {
	var policy model.Policy
	if err := GetDB(ctx, r.db).First(&policy, "category = ?", category).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepository) List(ctx context.Context) ([]model.Policy, error) {
	var policies []model.Policy
	if err := GetDB(ctx, r.db).Order("category").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}
