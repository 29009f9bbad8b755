package service

import (
	"context"
	"encoding/json"
	"time"

	"reimburse/internal/model"
	"reimburse/internal/repository"
	"reimburse/pkg/apperr"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type UpsertPolicyRequest struct {
	Category    string `json:"category" binding:"required"`
	AmountLimit string `json:"amount_limit" binding:"required"`
	Description string `json:"description"`
}

type PolicyResponse struct {
	ID          int             `json:"id"`
	Category    string          `json:"category"`
	AmountLimit decimal.Decimal `json:"amount_limit"`
	Description string          `json:"description"`
	UpdatedAt   string          `json:"updated_at"`
}

// PolicyService manages per-category spending ceilings.
type PolicyService interface {
	Upsert(ctx context.Context, actor Actor, req UpsertPolicyRequest) (*PolicyResponse, error)
	List(ctx context.Context) ([]PolicyResponse, error)
}

type policyService struct {
	policyRepo repository.PolicyRepository
	auditRepo  repository.AuditRepository
}

func NewPolicyService(policyRepo repository.PolicyRepository, auditRepo repository.AuditRepository) PolicyService {
	return &policyService{policyRepo: policyRepo, auditRepo: auditRepo}
}

func (s *policyService) Upsert(ctx context.Context, actor Actor, req UpsertPolicyRequest) (*PolicyResponse, error) {
	limit, err := decimal.NewFromString(req.AmountLimit)
	if err != nil || limit.IsNegative() {
		return nil, apperr.Validation("amount_limit must be a non-negative number")
	}

	policy := model.Policy{
		Category:    req.Category,
		AmountLimit: limit,
		Description: req.Description,
	}
	if err := s.policyRepo.Upsert(ctx, &policy); err != nil {
		return nil, apperr.Storage("failed to save policy", err)
	}

	details, _ := json.Marshal(map[string]interface{}{"amount_limit": limit.String()})
	_ = s.auditRepo.Log(ctx, &model.AuditLog{
		EmpID:      &actor.EmpID,
		Action:     model.ActionUpsertPolicy,
		EntityID:   req.Category,
		EntityName: req.Category,
		Details:    string(details),
	})

	resp := mapPolicy(policy)
	return &resp, nil
}

func (s *policyService) List(ctx context.Context) ([]PolicyResponse, error) {
	policies, err := s.policyRepo.List(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to list policies", err)
	}
	result := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		result = append(result, mapPolicy(p))
	}
	return result, nil
}

func mapPolicy(p model.Policy) PolicyResponse {
	return PolicyResponse{
		ID:          p.ID,
		Category:    p.Category,
		AmountLimit: p.AmountLimit,
		Description: p.Description,
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}
