package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"reimburse/internal/model"

	"gorm.io/gorm"
)

// In-memory repository fakes backing the service tests. They honor the same
// contracts as the gorm implementations, including ErrRecordNotFound on
// missing rows and the conditional status update.

type memTx struct{}

func (memTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- users ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[int]*model.User
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	r := &memUserRepo{users: make(map[int]*model.User)}
	for _, u := range users {
		copied := *u
		r.users[u.EmpID] = &copied
	}
	return r
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.EmpID] = &copied
	return nil
}

func (r *memUserRepo) GetByEmpID(ctx context.Context, empID int) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[empID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByName(ctx context.Context, name string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Name == name {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]model.User, 0, len(r.users))
	for _, user := range r.users {
		all = append(all, *user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EmpID < all[j].EmpID })
	total := int64(len(all))

	start := (page - 1) * limit
	if start >= len(all) {
		return []model.User{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memUserRepo) ListByManager(ctx context.Context, managerID int) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var team []model.User
	for _, user := range r.users {
		if user.ManagerID != nil && *user.ManagerID == managerID {
			team = append(team, *user)
		}
	}
	sort.Slice(team, func(i, j int) bool { return team[i].EmpID < team[j].EmpID })
	return team, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.EmpID] = &copied
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, empID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, empID)
	return nil
}

func (r *memUserRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

// --- requests ---

type memRequestRepo struct {
	mu       sync.Mutex
	nextID   int
	requests map[int]*model.Request
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{nextID: 1, requests: make(map[int]*model.Request)}
}

func (r *memRequestRepo) Create(ctx context.Context, req *model.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ReqID == 0 {
		req.ReqID = r.nextID
		r.nextID++
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	copied := *req
	r.requests[req.ReqID] = &copied
	return nil
}

func (r *memRequestRepo) FindByID(ctx context.Context, reqID int) (*model.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[reqID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *memRequestRepo) ListByOwner(ctx context.Context, empID int) ([]model.Request, error) {
	return r.filter(func(req *model.Request) bool { return req.EmpID == empID }), nil
}

func (r *memRequestRepo) ListByOwners(ctx context.Context, empIDs []int) ([]model.Request, error) {
	ids := make(map[int]bool, len(empIDs))
	for _, id := range empIDs {
		ids[id] = true
	}
	return r.filter(func(req *model.Request) bool { return ids[req.EmpID] }), nil
}

func (r *memRequestRepo) ListByStatuses(ctx context.Context, statuses []string) ([]model.Request, error) {
	wanted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	return r.filter(func(req *model.Request) bool { return wanted[req.Status] }), nil
}

func (r *memRequestRepo) ListAll(ctx context.Context, page, limit int) ([]model.Request, int64, error) {
	all := r.filter(func(*model.Request) bool { return true })
	total := int64(len(all))

	start := (page - 1) * limit
	if start >= len(all) {
		return []model.Request{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memRequestRepo) Update(ctx context.Context, req *model.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.UpdatedAt = time.Now()
	copied := *req
	r.requests[req.ReqID] = &copied
	return nil
}

func (r *memRequestRepo) Delete(ctx context.Context, reqID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, reqID)
	return nil
}

func (r *memRequestRepo) DeleteByOwner(ctx context.Context, empID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, req := range r.requests {
		if req.EmpID == empID {
			delete(r.requests, id)
		}
	}
	return nil
}

func (r *memRequestRepo) UpdateStatusWhere(ctx context.Context, reqID int, from []string, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[reqID]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if req.Status == status {
			req.Status = to
			req.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r *memRequestRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.requests)), nil
}

func (r *memRequestRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, req := range r.requests {
		if req.Status == status {
			total++
		}
	}
	return total, nil
}

func (r *memRequestRepo) filter(keep func(*model.Request) bool) []model.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.Request
	for _, req := range r.requests {
		if keep(req) {
			result = append(result, *req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReqID < result[j].ReqID })
	return result
}

// --- policies ---

type memPolicyRepo struct {
	mu       sync.Mutex
	nextID   int
	policies map[string]*model.Policy
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{nextID: 1, policies: make(map[string]*model.Policy)}
}

func (r *memPolicyRepo) Upsert(ctx context.Context, policy *model.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.policies[policy.Category]; ok {
		policy.ID = existing.ID
	} else {
		policy.ID = r.nextID
		r.nextID++
	}
	policy.UpdatedAt = time.Now()
	copied := *policy
	r.policies[policy.Category] = &copied
	return nil
}

func (r *memPolicyRepo) FindByCategory(ctx context.Context, category string) (*model.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	policy, ok := r.policies[category]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *policy
	return &copied, nil
}

func (r *memPolicyRepo) List(ctx context.Context) ([]model.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]model.Policy, 0, len(r.policies))
	for _, policy := range r.policies {
		result = append(result, *policy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Category < result[j].Category })
	return result, nil
}

// --- audit ---

type memAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *memAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := make([]model.AuditLog, len(r.entries))
	copy(logs, r.entries)
	return logs, int64(len(logs)), nil
}

func (r *memAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.Action)
	}
	return result
}

// --- refresh tokens ---

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (r *memTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *token
	r.tokens[token.Token] = &copied
	return nil
}

func (r *memTokenRepo) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tokens[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memTokenRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *memTokenRepo) DeleteByEmpID(ctx context.Context, empID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, token := range r.tokens {
		if token.EmpID == empID {
			delete(r.tokens, key)
		}
	}
	return nil
}

func (r *memTokenRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for key, token := range r.tokens {
		if token.ExpiresAt.Before(now) {
			delete(r.tokens, key)
		}
	}
	return nil
}

func (r *memTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// --- receipts ---

type memReceipts struct {
	mu       sync.Mutex
	nextID   int
	failSave error
	saved    map[string][]byte
	deleted  []string
}

func newMemReceipts() *memReceipts {
	return &memReceipts{nextID: 1, saved: make(map[string][]byte)}
}

func (r *memReceipts) Save(ctx context.Context, filename string, data []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return "", r.failSave
	}
	location := "mem://receipts/" + strconv.Itoa(r.nextID) + "-" + filename
	r.nextID++
	r.saved[location] = data
	return location, nil
}

func (r *memReceipts) Delete(ctx context.Context, location string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, location)
	r.deleted = append(r.deleted, location)
	return nil
}

// --- notifier ---

type statusEvent struct {
	ReqID  int
	EmpID  int
	Status string
}

type memNotifier struct {
	mu     sync.Mutex
	events []statusEvent
}

func (n *memNotifier) NotifyStatus(reqID, empID int, status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, statusEvent{ReqID: reqID, EmpID: empID, Status: status})
}

func (n *memNotifier) last() (statusEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return statusEvent{}, false
	}
	return n.events[len(n.events)-1], true
}

func intPtr(v int) *int { return &v }
