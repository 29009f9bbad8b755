package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"reimburse/internal/model"
	"reimburse/internal/repository"
	"reimburse/internal/storage"
	"reimburse/internal/workflow"
	"reimburse/pkg/apperr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRequestDTO struct {
	Category    string
	Description string
	Amount      string
	FileName    string
	FileData    []byte
}

type UpdateRequestDTO struct {
	Category    string `json:"category" binding:"required"`
	Description string `json:"description" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

type RequestResponse struct {
	ReqID        int             `json:"req_id"`
	EmpID        int             `json:"emp_id"`
	EmployeeName string          `json:"employee_name,omitempty"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	ImagePath    *string         `json:"image_path"`
	Status       string          `json:"status"`
	OverLimit    bool            `json:"over_limit"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// VisibleRequests groups the request slices a role is allowed to see.
type VisibleRequests struct {
	Mine  []RequestResponse `json:"my_requests,omitempty"`
	Team  []RequestResponse `json:"team_requests,omitempty"`
	Queue []RequestResponse `json:"finance_queue,omitempty"`
	All   []RequestResponse `json:"all_requests,omitempty"`
	Total int64             `json:"total,omitempty"`
}

// StatusNotifier receives request status-change events (websocket hub).
type StatusNotifier interface {
	NotifyStatus(reqID, empID int, status string)
}

// --- Interface ---

type RequestService interface {
	CreateRequest(ctx context.Context, actor Actor, req CreateRequestDTO) (*RequestResponse, error)
	UpdateRequest(ctx context.Context, actor Actor, reqID int, req UpdateRequestDTO) (*RequestResponse, error)
	DeleteRequest(ctx context.Context, actor Actor, reqID int) error
	Transition(ctx context.Context, actor Actor, reqID int, action string) (*RequestResponse, error)
	ListVisible(ctx context.Context, actor Actor, page, limit int) (*VisibleRequests, error)
}

type requestService struct {
	requestRepo repository.RequestRepository
	userRepo    repository.UserRepository
	policyRepo  repository.PolicyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	receipts    storage.ReceiptStore
	notifier    StatusNotifier
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	policyRepo repository.PolicyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	receipts storage.ReceiptStore,
	notifier StatusNotifier,
) RequestService {
	return &requestService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		policyRepo:  policyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		receipts:    receipts,
		notifier:    notifier,
	}
}

// --- Implementation ---

func (s *requestService) CreateRequest(ctx context.Context, actor Actor, req CreateRequestDTO) (*RequestResponse, error) {
	if req.Category == "" {
		return nil, apperr.Validation("category is required")
	}
	if req.Description == "" {
		return nil, apperr.Validation("description is required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("amount must be a positive number")
	}

	owner, err := s.userRepo.GetByEmpID(ctx, actor.EmpID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}

	// Attach-then-create: if the upload fails nothing is persisted.
	var imagePath *string
	if len(req.FileData) > 0 {
		location, upErr := s.receipts.Save(ctx, req.FileName, req.FileData)
		if upErr != nil {
			return nil, apperr.Storage("failed to store receipt", upErr)
		}
		imagePath = &location
	}

	request := model.Request{
		EmpID:       owner.EmpID,
		Category:    req.Category,
		Description: req.Description,
		Amount:      amount,
		ImagePath:   imagePath,
		Status:      workflow.InitialStatus(owner.Role),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.requestRepo.Create(txCtx, &request); createErr != nil {
			return apperr.Storage("failed to create request", createErr)
		}
		s.audit(txCtx, &actor.EmpID, model.ActionCreateRequest, strconv.Itoa(request.ReqID), req.Category, map[string]interface{}{
			"amount": amount.String(),
			"status": request.Status,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(request.ReqID, request.EmpID, request.Status)

	resp := s.toResponse(ctx, request)
	resp.EmployeeName = owner.Name
	return resp, nil
}

func (s *requestService) UpdateRequest(ctx context.Context, actor Actor, reqID int, req UpdateRequestDTO) (*RequestResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.Validation("amount must be a positive number")
	}

	var request *model.Request
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		request, findErr = s.requestRepo.FindByID(txCtx, reqID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request not found")
			}
			return apperr.Storage("failed to load request", findErr)
		}
		if request.EmpID != actor.EmpID {
			s.auditDenied(txCtx, actor, "edit", reqID, "not the owner")
			return apperr.Authorization("only the owner may edit a request")
		}
		if !workflow.CanEdit(request.Status) {
			return apperr.StateConflict("request already processed")
		}

		request.Category = req.Category
		request.Description = req.Description
		request.Amount = amount
		if saveErr := s.requestRepo.Update(txCtx, request); saveErr != nil {
			return apperr.Storage("failed to update request", saveErr)
		}
		s.audit(txCtx, &actor.EmpID, model.ActionUpdateRequest, strconv.Itoa(reqID), req.Category, map[string]interface{}{
			"amount": amount.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(ctx, *request), nil
}

func (s *requestService) DeleteRequest(ctx context.Context, actor Actor, reqID int) error {
	var imagePath *string
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, findErr := s.requestRepo.FindByID(txCtx, reqID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request not found")
			}
			return apperr.Storage("failed to load request", findErr)
		}
		if request.EmpID != actor.EmpID {
			s.auditDenied(txCtx, actor, "delete", reqID, "not the owner")
			return apperr.Authorization("only the owner may delete a request")
		}
		if !workflow.CanDelete(request.Status) {
			return apperr.StateConflict("request already processed")
		}
		imagePath = request.ImagePath
		if delErr := s.requestRepo.Delete(txCtx, reqID); delErr != nil {
			return apperr.Storage("failed to delete request", delErr)
		}
		s.audit(txCtx, &actor.EmpID, model.ActionDeleteRequest, strconv.Itoa(reqID), request.Category, nil)
		return nil
	})
	if err != nil {
		return err
	}

	// Best effort: the request row is already gone.
	if imagePath != nil {
		_ = s.receipts.Delete(ctx, *imagePath)
	}
	return nil
}

// Transition applies approve/reject/pay. The status write is a conditional
// UPDATE guarded by the transition table's source statuses, so at most one
// of any number of concurrent duplicate calls succeeds.
func (s *requestService) Transition(ctx context.Context, actor Actor, reqID int, action string) (*RequestResponse, error) {
	t, ok := workflow.Lookup(actor.Role, action)
	if !ok {
		s.auditDenied(ctx, actor, action, reqID, "action not permitted for role")
		return nil, apperr.Authorization("role " + actor.Role + " may not " + action + " requests")
	}

	request, err := s.requestRepo.FindByID(ctx, reqID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("request not found")
		}
		return nil, apperr.Storage("failed to load request", err)
	}

	// Managers act only on their direct reports' claims.
	if actor.Role == model.RoleManager {
		owner, ownerErr := s.userRepo.GetByEmpID(ctx, request.EmpID)
		if ownerErr != nil {
			return nil, apperr.NotFound("request owner not found")
		}
		if owner.ManagerID == nil || *owner.ManagerID != actor.EmpID {
			s.auditDenied(ctx, actor, action, reqID, "owner does not report to this manager")
			return nil, apperr.Authorization("request owner does not report to you")
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		moved, updErr := s.requestRepo.UpdateStatusWhere(txCtx, reqID, t.From, t.To)
		if updErr != nil {
			return apperr.Storage("failed to update request status", updErr)
		}
		if !moved {
			return apperr.StateConflict("request already processed")
		}
		s.audit(txCtx, &actor.EmpID, transitionAuditAction(action), strconv.Itoa(reqID), request.Category, map[string]interface{}{
			"from": request.Status,
			"to":   t.To,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = t.To
	s.notify(request.ReqID, request.EmpID, t.To)

	return s.toResponse(ctx, *request), nil
}

func (s *requestService) ListVisible(ctx context.Context, actor Actor, page, limit int) (*VisibleRequests, error) {
	limits, err := s.policyLimits(ctx)
	if err != nil {
		return nil, apperr.Storage("failed to load policies", err)
	}

	result := &VisibleRequests{}
	switch workflow.VisibleScope(actor.Role) {
	case workflow.ScopeOwn:
		mine, listErr := s.requestRepo.ListByOwner(ctx, actor.EmpID)
		if listErr != nil {
			return nil, apperr.Storage("failed to list requests", listErr)
		}
		result.Mine = s.toResponses(mine, limits)

	case workflow.ScopeTeam:
		team, listErr := s.userRepo.ListByManager(ctx, actor.EmpID)
		if listErr != nil {
			return nil, apperr.Storage("failed to resolve team", listErr)
		}
		ids := make([]int, 0, len(team))
		for _, member := range team {
			ids = append(ids, member.EmpID)
		}
		teamReqs, listErr := s.requestRepo.ListByOwners(ctx, ids)
		if listErr != nil {
			return nil, apperr.Storage("failed to list team requests", listErr)
		}
		mine, listErr := s.requestRepo.ListByOwner(ctx, actor.EmpID)
		if listErr != nil {
			return nil, apperr.Storage("failed to list requests", listErr)
		}
		result.Team = s.toResponses(teamReqs, limits)
		result.Mine = s.toResponses(mine, limits)

	case workflow.ScopeFinanceQueue:
		queue, listErr := s.requestRepo.ListByStatuses(ctx, workflow.FinanceQueueStatuses())
		if listErr != nil {
			return nil, apperr.Storage("failed to list finance queue", listErr)
		}
		result.Queue = s.toResponses(queue, limits)

	case workflow.ScopeAll:
		all, total, listErr := s.requestRepo.ListAll(ctx, page, limit)
		if listErr != nil {
			return nil, apperr.Storage("failed to list requests", listErr)
		}
		result.All = s.toResponses(all, limits)
		result.Total = total

	default:
		return nil, apperr.Authorization("unknown role")
	}

	return result, nil
}

// --- Helpers ---

func transitionAuditAction(action string) string {
	switch action {
	case workflow.ActionApprove:
		return model.ActionApproveRequest
	case workflow.ActionReject:
		return model.ActionRejectRequest
	default:
		return model.ActionReleasePayment
	}
}

// policyLimits loads the policy table into a category -> limit map.
func (s *requestService) policyLimits(ctx context.Context) (map[string]decimal.Decimal, error) {
	policies, err := s.policyRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	limits := make(map[string]decimal.Decimal, len(policies))
	for _, p := range policies {
		if _, seen := limits[p.Category]; !seen {
			limits[p.Category] = p.AmountLimit
		}
	}
	return limits, nil
}

// overLimit applies the advisory policy check: exact category match, flag
// only when the amount exceeds the limit; absent policy means no limit.
func overLimit(limits map[string]decimal.Decimal, category string, amount decimal.Decimal) bool {
	limit, ok := limits[category]
	if !ok {
		return false
	}
	return amount.GreaterThan(limit)
}

// toResponse maps a single request, checking only its own category's policy.
func (s *requestService) toResponse(ctx context.Context, r model.Request) *RequestResponse {
	resp := mapRequest(r, nil)
	resp.OverLimit = s.overLimitFor(ctx, r.Category, r.Amount)
	return &resp
}

func (s *requestService) overLimitFor(ctx context.Context, category string, amount decimal.Decimal) bool {
	policy, err := s.policyRepo.FindByCategory(ctx, category)
	if err != nil {
		return false
	}
	return amount.GreaterThan(policy.AmountLimit)
}

func (s *requestService) toResponses(requests []model.Request, limits map[string]decimal.Decimal) []RequestResponse {
	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, mapRequest(r, limits))
	}
	return result
}

func mapRequest(r model.Request, limits map[string]decimal.Decimal) RequestResponse {
	resp := RequestResponse{
		ReqID:       r.ReqID,
		EmpID:       r.EmpID,
		Category:    r.Category,
		Description: r.Description,
		Amount:      r.Amount,
		ImagePath:   r.ImagePath,
		Status:      r.Status,
		OverLimit:   overLimit(limits, r.Category, r.Amount),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Employee != nil {
		resp.EmployeeName = r.Employee.Name
	}
	return resp
}

func (s *requestService) notify(reqID, empID int, status string) {
	if s.notifier != nil {
		s.notifier.NotifyStatus(reqID, empID, status)
	}
}

func (s *requestService) audit(ctx context.Context, empID *int, action, entityID, entityName string, details map[string]interface{}) {
	payload := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}
	entry := model.AuditLog{
		EmpID:      empID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	}
	_ = s.auditRepo.Log(ctx, &entry)
}

// auditDenied records a denied-action event; the denial itself is returned
// to the caller as an AuthorizationError.
func (s *requestService) auditDenied(ctx context.Context, actor Actor, action string, reqID int, reason string) {
	s.audit(ctx, &actor.EmpID, model.ActionDeniedAction, strconv.Itoa(reqID), action, map[string]interface{}{
		"role":   actor.Role,
		"reason": reason,
	})
}
