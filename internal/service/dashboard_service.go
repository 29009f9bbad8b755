package service

import (
	"context"

	"reimburse/internal/model"
	"reimburse/internal/repository"
	"reimburse/pkg/apperr"
)

// AdminStats aggregates the counters shown on the admin dashboard.
type AdminStats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalRequests int64 `json:"total_requests"`
	Pending       int64 `json:"pending"`
	Paid          int64 `json:"paid"`
}

// DashboardResponse bundles the identity header with the role-scoped
// request slices and, for admins, the global counters.
type DashboardResponse struct {
	EmpID int    `json:"emp_id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	VisibleRequests
	Stats *AdminStats `json:"stats,omitempty"`
}

type DashboardService interface {
	Dashboard(ctx context.Context, actor Actor) (*DashboardResponse, error)
}

type dashboardService struct {
	userRepo    repository.UserRepository
	requestRepo repository.RequestRepository
	requests    RequestService
}

func NewDashboardService(userRepo repository.UserRepository, requestRepo repository.RequestRepository, requests RequestService) DashboardService {
	return &dashboardService{userRepo: userRepo, requestRepo: requestRepo, requests: requests}
}

func (s *dashboardService) Dashboard(ctx context.Context, actor Actor) (*DashboardResponse, error) {
	user, err := s.userRepo.GetByEmpID(ctx, actor.EmpID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}

	visible, err := s.requests.ListVisible(ctx, actor, 1, 100)
	if err != nil {
		return nil, err
	}

	resp := &DashboardResponse{
		EmpID:           user.EmpID,
		Name:            user.Name,
		Role:            user.Role,
		VisibleRequests: *visible,
	}

	if user.Role == model.RoleAdmin {
		stats, statsErr := s.collectStats(ctx)
		if statsErr != nil {
			return nil, statsErr
		}
		resp.Stats = stats
	}
	return resp, nil
}

func (s *dashboardService) collectStats(ctx context.Context) (*AdminStats, error) {
	totalUsers, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to count users", err)
	}
	totalRequests, err := s.requestRepo.Count(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to count requests", err)
	}
	pending, err := s.requestRepo.CountByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, apperr.Storage("failed to count pending requests", err)
	}
	paid, err := s.requestRepo.CountByStatus(ctx, model.StatusPaid)
	if err != nil {
		return nil, apperr.Storage("failed to count paid requests", err)
	}
	return &AdminStats{
		TotalUsers:    totalUsers,
		TotalRequests: totalRequests,
		Pending:       pending,
		Paid:          paid,
	}, nil
}
