package repository

import (
	"context"

	"reimburse/internal/model"

	"gorm.io/gorm"
)

// RequestRepository defines data access for reimbursement requests.
type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, reqID int) (*model.Request, error)
	ListByOwner(ctx context.Context, empID int) ([]model.Request, error)
	ListByOwners(ctx context.Context, empIDs []int) ([]model.Request, error)
	ListByStatuses(ctx context.Context, statuses []string) ([]model.Request, error)
	ListAll(ctx context.Context, page, limit int) ([]model.Request, int64, error)
	Update(ctx context.Context, req *model.Request) error
	Delete(ctx context.Context, reqID int) error
	DeleteByOwner(ctx context.Context, empID int) error
	// UpdateStatusWhere performs the atomic conditional transition:
	// the status column is set to `to` only if the row still holds one of
	// the `from` statuses. Returns false when zero rows matched, which is
	// how a lost race or an already-terminal request surfaces.
	UpdateStatusWhere(ctx context.Context, reqID int, from []string, to string) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, reqID int) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).Preload("Employee").First(&req, "req_id = ?", reqID).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) ListByOwner(ctx context.Context, empID int) ([]model.Request, error) {
	var requests []model.Request
	if err := GetDB(ctx, r.db).
		Where("emp_id = ?", empID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) ListByOwners(ctx context.Context, empIDs []int) ([]model.Request, error) {
	if len(empIDs) == 0 {
		return []model.Request{}, nil
	}
	var requests []model.Request
	if err := GetDB(ctx, r.db).
		Preload("Employee").
		Where("emp_id IN ?", empIDs).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) ListByStatuses(ctx context.Context, statuses []string) ([]model.Request, error) {
	var requests []model.Request
	if err := GetDB(ctx, r.db).
		Preload("Employee").
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) ListAll(ctx context.Context, page, limit int) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Request{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Employee").Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) Update(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *requestRepository) Delete(ctx context.Context, reqID int) error {
	return GetDB(ctx, r.db).Where("req_id = ?", reqID).Delete(&model.Request{}).Error
}

func (r *requestRepository) DeleteByOwner(ctx context.Context, empID int) error {
	return GetDB(ctx, r.db).Where("emp_id = ?", empID).Delete(&model.Request{}).Error
}

func (r *requestRepository) UpdateStatusWhere(ctx context.Context, reqID int, from []string, to string) (bool, error) {
	res := GetDB(ctx, r.db).
		Model(&model.Request{}).
		Where("req_id = ? AND status IN ?", reqID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *requestRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := GetDB(ctx, r.db).Model(&model.Request{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *requestRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var total int64
	if err := GetDB(ctx, r.db).Model(&model.Request{}).Where("status = ?", status).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
