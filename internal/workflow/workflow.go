package workflow

import (
	"reimburse/internal/model"
)

// Action identifiers for request transitions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionPay     = "pay"
)

// Transition describes one legal move through the approval lifecycle:
// a (role, action) pair may fire only while the request sits in one of
// the From statuses and always lands it in the single To status.
type Transition struct {
	Role   string
	Action string
	From   []string
	To     string
}

// The full transition table. Everything outside this table is denied.
//
//	Pending -> Manager Approved -> Paid        (employee claim)
//	Awaiting Finance -> Paid                   (manager's own claim)
//	Pending / Awaiting Finance -> Rejected
var transitions = []Transition{
	{model.RoleManager, ActionApprove, []string{model.StatusPending}, model.StatusManagerApproved},
	{model.RoleManager, ActionReject, []string{model.StatusPending}, model.StatusRejected},
	{model.RoleFinance, ActionPay, []string{model.StatusManagerApproved, model.StatusAwaitingFinance}, model.StatusPaid},
	{model.RoleFinance, ActionReject, []string{model.StatusAwaitingFinance}, model.StatusRejected},
}

// Lookup returns the transition for a (role, action) pair. The From
// statuses feed the conditional UPDATE so that a concurrent duplicate
// call matches zero rows and fails instead of double-applying.
func Lookup(role, action string) (Transition, bool) {
	for _, t := range transitions {
		if t.Role == role && t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// Next resolves the target status for a request currently in the given
// status, or reports that the move is not permitted.
func Next(status, role, action string) (string, bool) {
	t, ok := Lookup(role, action)
	if !ok {
		return "", false
	}
	for _, from := range t.From {
		if from == status {
			return t.To, true
		}
	}
	return "", false
}

// InitialStatus determines where a freshly submitted claim enters the
// lifecycle. A manager's own claim skips peer approval and goes straight
// to the finance queue; everyone else starts Pending.
func InitialStatus(role string) string {
	if role == model.RoleManager {
		return model.StatusAwaitingFinance
	}
	return model.StatusPending
}

// Terminal reports whether a status accepts no further transitions.
func Terminal(status string) bool {
	return status == model.StatusPaid || status == model.StatusRejected
}

// CanEdit reports whether the owner may still change amount/category/description.
func CanEdit(status string) bool {
	return status == model.StatusPending
}

// CanDelete reports whether the owner may still withdraw the claim.
func CanDelete(status string) bool {
	return status == model.StatusPending
}
