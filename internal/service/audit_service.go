package service

import (
	"context"

	"reimburse/internal/repository"
	"reimburse/pkg/apperr"
)

type AuditLogResponse struct {
	ID        string `json:"id"`
	EmpID     *int   `json:"emp_id"`
	Name      string `json:"name"`
	Action    string `json:"action"`
	EntityID  string `json:"entity_id"`
	Entity    string `json:"entity_name"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) GetAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, apperr.Storage("failed to fetch audit logs", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		name := "System"
		if l.User != nil {
			name = l.User.Name
		}
		res = append(res, AuditLogResponse{
			ID:        l.ID.String(),
			EmpID:     l.EmpID,
			Name:      name,
			Action:    l.Action,
			EntityID:  l.EntityID,
			Entity:    l.EntityName,
			Details:   l.Details,
			CreatedAt: l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return res, total, nil
}
