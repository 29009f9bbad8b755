package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"reimburse/internal/model"
	"reimburse/internal/repository"
	"reimburse/internal/workflow"
	"reimburse/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	EmpID     int    `json:"emp_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Password  string `json:"password" binding:"required,min=6"`
	Role      string `json:"role" binding:"required"`
	ManagerID *int   `json:"manager_id"`
}

type LoginUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// UserResponse returns a User without exposing the password hash.
type UserResponse struct {
	EmpID       int    `json:"emp_id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ManagerID   *int   `json:"manager_id"`
	ManagerName string `json:"manager_name,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByEmpID(ctx context.Context, empID int) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	DeleteUser(ctx context.Context, actor Actor, empID int) error
}

type userService struct {
	userRepo    repository.UserRepository
	requestRepo repository.RequestRepository
	tokenRepo   repository.TokenRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

// NewUserService returns a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	requestRepo repository.RequestRepository,
	tokenRepo repository.TokenRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) UserService {
	return &userService{
		userRepo:    userRepo,
		requestRepo: requestRepo,
		tokenRepo:   tokenRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func (s *userService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error) {
	if !workflow.ValidRole(req.Role) {
		return nil, apperr.Validation("invalid role: must be employee, manager, finance, audit, or admin")
	}
	if req.EmpID <= 0 {
		return nil, apperr.Validation("emp_id must be positive")
	}

	if _, err := s.userRepo.GetByEmpID(ctx, req.EmpID); err == nil {
		return nil, apperr.Validation("employee ID already exists")
	}
	if _, err := s.userRepo.GetByName(ctx, req.Name); err == nil {
		return nil, apperr.Validation("name already exists")
	}

	managerID := req.ManagerID
	if managerID == nil && workflow.DefaultsToSystemOwner(req.Role) {
		// Top-level roles report to the System Owner by default.
		owner := model.SystemOwnerID
		managerID = &owner
	}
	if managerID != nil && *managerID != model.SystemOwnerID {
		if _, err := s.userRepo.GetByEmpID(ctx, *managerID); err != nil {
			return nil, apperr.Validation("manager ID " + strconv.Itoa(*managerID) + " not found")
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Storage("failed to hash password", err)
	}

	user := &model.User{
		EmpID:     req.EmpID,
		Name:      req.Name,
		Password:  string(hashed),
		Role:      req.Role,
		ManagerID: managerID,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.userRepo.Create(txCtx, user); createErr != nil {
			return apperr.Storage("failed to create user", createErr)
		}
		s.auditUser(txCtx, actor, model.ActionCreateUser, user.EmpID, user.Name, map[string]interface{}{
			"role": user.Role,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.mapToResponse(ctx, user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByName(ctx, req.Name)
	if err != nil {
		return nil, apperr.Authorization("invalid name or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Authorization("invalid name or password")
	}
	return s.issueTokens(ctx, user)
}

func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.tokenRepo.GetByToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, apperr.Authorization("invalid refresh token")
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.tokenRepo.Delete(ctx, stored.Token)
		return nil, apperr.Authorization("refresh token expired")
	}
	user, err := s.userRepo.GetByEmpID(ctx, stored.EmpID)
	if err != nil {
		return nil, apperr.Authorization("user no longer exists")
	}

	// Rotate: the old token is single-use. Expired leftovers from other
	// sessions are purged on the same occasion.
	_ = s.tokenRepo.Delete(ctx, stored.Token)
	_ = s.tokenRepo.DeleteExpired(ctx)
	return s.issueTokens(ctx, user)
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokenRepo.Delete(ctx, refreshToken)
}

func (s *userService) GetUserByEmpID(ctx context.Context, empID int) (*UserResponse, error) {
	user, err := s.userRepo.GetByEmpID(ctx, empID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	return s.mapToResponse(ctx, user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.userRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, apperr.Storage("failed to list users", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *s.mapToResponse(ctx, &users[i]))
	}
	return responses, total, nil
}

// DeleteUser removes a user and cascades to their requests and refresh
// tokens in one transaction. The System Owner record is protected.
func (s *userService) DeleteUser(ctx context.Context, actor Actor, empID int) error {
	if empID == model.SystemOwnerID {
		s.auditUser(ctx, actor, model.ActionDeniedAction, empID, model.SystemOwnerName, map[string]interface{}{
			"reason": "system owner is protected",
		})
		return apperr.Authorization("cannot delete the System Owner")
	}

	user, err := s.userRepo.GetByEmpID(ctx, empID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Storage("failed to load user", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if delErr := s.requestRepo.DeleteByOwner(txCtx, empID); delErr != nil {
			return apperr.Storage("failed to delete user's requests", delErr)
		}
		if delErr := s.tokenRepo.DeleteByEmpID(txCtx, empID); delErr != nil {
			return apperr.Storage("failed to delete user's tokens", delErr)
		}
		if delErr := s.userRepo.Delete(txCtx, empID); delErr != nil {
			return apperr.Storage("failed to delete user", delErr)
		}
		s.auditUser(txCtx, actor, model.ActionDeleteUser, empID, user.Name, nil)
		return nil
	})
}

// --- Helpers ---

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.Itoa(user.EmpID),
		"name": user.Name,
		"role": user.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, apperr.Storage("failed to generate token", err)
	}

	refresh := model.RefreshToken{
		EmpID:     user.EmpID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := s.tokenRepo.Create(ctx, &refresh); err != nil {
		return nil, apperr.Storage("failed to persist refresh token", err)
	}

	return &TokenResponse{Token: signed, RefreshToken: refresh.Token}, nil
}

// mapToResponse resolves the manager display name alongside the user fields.
func (s *userService) mapToResponse(ctx context.Context, user *model.User) *UserResponse {
	return &UserResponse{
		EmpID:       user.EmpID,
		Name:        user.Name,
		Role:        user.Role,
		ManagerID:   user.ManagerID,
		ManagerName: s.resolveManagerName(ctx, user.ManagerID),
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
}

// resolveManagerName maps a manager_id to display info. ID 1 is always the
// System Owner even if the row is somehow absent; other unknown ids resolve
// to a placeholder rather than failing the whole lookup.
func (s *userService) resolveManagerName(ctx context.Context, managerID *int) string {
	if managerID == nil {
		return ""
	}
	if *managerID == model.SystemOwnerID {
		return model.SystemOwnerName
	}
	manager, err := s.userRepo.GetByEmpID(ctx, *managerID)
	if err != nil {
		return "Unknown"
	}
	return manager.Name
}

func (s *userService) auditUser(ctx context.Context, actor Actor, action string, empID int, name string, details map[string]interface{}) {
	payload := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}
	entry := model.AuditLog{
		EmpID:      &actor.EmpID,
		Action:     action,
		EntityID:   strconv.Itoa(empID),
		EntityName: name,
		Details:    payload,
	}
	_ = s.auditRepo.Log(ctx, &entry)
}
