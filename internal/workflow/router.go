package workflow

import (
	"reimburse/internal/model"
)

// Scope describes which slice of the request table a role may query.
type Scope int

const (
	ScopeNone         Scope = iota
	ScopeOwn                // employee: own requests only
	ScopeTeam               // manager: own + direct reports
	ScopeFinanceQueue       // finance: requests awaiting payment
	ScopeAll                // audit/admin: everything
)

var scopeByRole = map[string]Scope{
	model.RoleEmployee: ScopeOwn,
	model.RoleManager:  ScopeTeam,
	model.RoleFinance:  ScopeFinanceQueue,
	model.RoleAudit:    ScopeAll,
	model.RoleAdmin:    ScopeAll,
}

// VisibleScope maps a role to its query filter. Unknown roles see nothing.
func VisibleScope(role string) Scope {
	return scopeByRole[role]
}

// Allowed reports whether the role may attempt the transition action at
// all. Handlers consult this before touching the request so that an
// out-of-role attempt is denied at the boundary, not merely hidden.
func Allowed(role, action string) bool {
	_, ok := Lookup(role, action)
	return ok
}

// FinanceQueueStatuses lists the statuses that appear in the finance queue.
func FinanceQueueStatuses() []string {
	return []string{model.StatusManagerApproved, model.StatusAwaitingFinance}
}

// ValidRole reports whether the role is one of the five known roles.
func ValidRole(role string) bool {
	switch role {
	case model.RoleEmployee, model.RoleManager, model.RoleFinance, model.RoleAudit, model.RoleAdmin:
		return true
	}
	return false
}

// DefaultsToSystemOwner reports whether the role reports to the System
// Owner when no manager is given (top-level roles have no peer manager).
func DefaultsToSystemOwner(role string) bool {
	switch role {
	case model.RoleManager, model.RoleFinance, model.RoleAudit:
		return true
	}
	return false
}
