package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"reimburse/internal/model"
	"reimburse/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestFixture struct {
	users    *memUserRepo
	requests *memRequestRepo
	policies *memPolicyRepo
	audits   *memAuditRepo
	receipts *memReceipts
	notifier *memNotifier
	svc      RequestService
}

// newRequestFixture seeds a small org chart: Mai and Khoa manage one
// employee each, Phuong handles finance, and the System Owner is admin.
func newRequestFixture() *requestFixture {
	f := &requestFixture{
		users: newMemUserRepo(
			&model.User{EmpID: 1, Name: model.SystemOwnerName, Role: model.RoleAdmin},
			&model.User{EmpID: 2, Name: "Mai", Role: model.RoleManager, ManagerID: intPtr(1)},
			&model.User{EmpID: 3, Name: "An", Role: model.RoleEmployee, ManagerID: intPtr(2)},
			&model.User{EmpID: 4, Name: "Phuong", Role: model.RoleFinance, ManagerID: intPtr(1)},
			&model.User{EmpID: 5, Name: "Khoa", Role: model.RoleManager, ManagerID: intPtr(1)},
			&model.User{EmpID: 6, Name: "Binh", Role: model.RoleEmployee, ManagerID: intPtr(5)},
		),
		requests: newMemRequestRepo(),
		policies: newMemPolicyRepo(),
		audits:   &memAuditRepo{},
		receipts: newMemReceipts(),
		notifier: &memNotifier{},
	}
	f.svc = NewRequestService(f.requests, f.users, f.policies, f.audits, memTx{}, f.receipts, f.notifier)
	return f
}

func (f *requestFixture) setPolicy(t *testing.T, category string, limit int64) {
	t.Helper()
	err := f.policies.Upsert(context.Background(), &model.Policy{
		Category:    category,
		AmountLimit: decimal.NewFromInt(limit),
	})
	require.NoError(t, err)
}

var (
	actorEmployee = Actor{EmpID: 3, Role: model.RoleEmployee}
	actorManager  = Actor{EmpID: 2, Role: model.RoleManager}
	actorFinance  = Actor{EmpID: 4, Role: model.RoleFinance}
	actorAdmin    = Actor{EmpID: 1, Role: model.RoleAdmin}
)

func TestRequestLifecycle(t *testing.T) {
	f := newRequestFixture()
	f.setPolicy(t, "Travel", 1000)
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "client visit taxi",
		Amount:      "500",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.False(t, created.OverLimit)
	assert.Equal(t, "An", created.EmployeeName)
	assert.True(t, created.Amount.Equal(decimal.NewFromInt(500)))

	approved, err := f.svc.Transition(ctx, actorManager, created.ReqID, "approve")
	require.NoError(t, err)
	assert.Equal(t, model.StatusManagerApproved, approved.Status)

	paid, err := f.svc.Transition(ctx, actorFinance, created.ReqID, "pay")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, paid.Status)

	// Paid is terminal, a second pay matches zero rows.
	_, err = f.svc.Transition(ctx, actorFinance, created.ReqID, "pay")
	assert.True(t, apperr.IsKind(err, apperr.KindStateConflict))

	assert.Equal(t, []string{
		model.ActionCreateRequest,
		model.ActionApproveRequest,
		model.ActionReleasePayment,
	}, f.audits.actions())

	last, ok := f.notifier.last()
	require.True(t, ok)
	assert.Equal(t, statusEvent{ReqID: created.ReqID, EmpID: 3, Status: model.StatusPaid}, last)
}

func TestOverLimitIsAdvisoryOnly(t *testing.T) {
	f := newRequestFixture()
	f.setPolicy(t, "Food", 1000)
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Food",
		Description: "team dinner",
		Amount:      "2000",
	})
	require.NoError(t, err)
	assert.True(t, created.OverLimit)
	assert.Equal(t, model.StatusPending, created.Status)

	// The flag never blocks the workflow and sticks to later responses.
	approved, err := f.svc.Transition(ctx, actorManager, created.ReqID, "approve")
	require.NoError(t, err)
	assert.Equal(t, model.StatusManagerApproved, approved.Status)
	assert.True(t, approved.OverLimit)
}

func TestOverLimitWithoutPolicy(t *testing.T) {
	f := newRequestFixture()
	created, err := f.svc.CreateRequest(context.Background(), actorEmployee, CreateRequestDTO{
		Category:    "Equipment",
		Description: "monitor",
		Amount:      "99999",
	})
	require.NoError(t, err)
	assert.False(t, created.OverLimit)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		dto  CreateRequestDTO
	}{
		{"missing category", CreateRequestDTO{Description: "x", Amount: "10"}},
		{"missing description", CreateRequestDTO{Category: "Travel", Amount: "10"}},
		{"zero amount", CreateRequestDTO{Category: "Travel", Description: "x", Amount: "0"}},
		{"negative amount", CreateRequestDTO{Category: "Travel", Description: "x", Amount: "-5"}},
		{"malformed amount", CreateRequestDTO{Category: "Travel", Description: "x", Amount: "ten"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateRequest(ctx, actorEmployee, tc.dto)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}

	count, _ := f.requests.Count(ctx)
	assert.Zero(t, count)
}

func TestManagerOwnClaimSkipsPeerApproval(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorManager, CreateRequestDTO{
		Category:    "Travel",
		Description: "conference flight",
		Amount:      "800",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingFinance, created.Status)

	paid, err := f.svc.Transition(ctx, actorFinance, created.ReqID, "pay")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, paid.Status)
}

func TestFinanceRejectsAwaitingFinance(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorManager, CreateRequestDTO{
		Category:    "Travel",
		Description: "hotel upgrade",
		Amount:      "1200",
	})
	require.NoError(t, err)

	rejected, err := f.svc.Transition(ctx, actorFinance, created.ReqID, "reject")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)

	// Finance may not reject requests still waiting on the manager.
	pending, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "50",
	})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, actorFinance, pending.ReqID, "reject")
	assert.True(t, apperr.IsKind(err, apperr.KindStateConflict))
}

func TestCreateRequestWithReceipt(t *testing.T) {
	f := newRequestFixture()

	created, err := f.svc.CreateRequest(context.Background(), actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "45.50",
		FileName:    "taxi.jpg",
		FileData:    []byte("jpeg"),
	})
	require.NoError(t, err)
	require.NotNil(t, created.ImagePath)
	assert.Equal(t, []byte("jpeg"), f.receipts.saved[*created.ImagePath])
}

func TestCreateRequestReceiptFailureAbortsCreate(t *testing.T) {
	f := newRequestFixture()
	f.receipts.failSave = errors.New("bucket unavailable")

	_, err := f.svc.CreateRequest(context.Background(), actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "45",
		FileName:    "taxi.jpg",
		FileData:    []byte("jpeg"),
	})
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))

	count, _ := f.requests.Count(context.Background())
	assert.Zero(t, count)
}

func TestTransitionDeniedForRole(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "50",
	})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, actorEmployee, created.ReqID, "approve")
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	_, err = f.svc.Transition(ctx, actorAdmin, created.ReqID, "pay")
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	assert.Contains(t, f.audits.actions(), model.ActionDeniedAction)

	// Nothing moved.
	stored, err := f.requests.FindByID(ctx, created.ReqID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestManagerCannotApproveOtherTeams(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	// Binh reports to Khoa, not Mai.
	created, err := f.svc.CreateRequest(ctx, Actor{EmpID: 6, Role: model.RoleEmployee}, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "50",
	})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, actorManager, created.ReqID, "approve")
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
	assert.Contains(t, f.audits.actions(), model.ActionDeniedAction)

	// The actual manager succeeds.
	approved, err := f.svc.Transition(ctx, Actor{EmpID: 5, Role: model.RoleManager}, created.ReqID, "approve")
	require.NoError(t, err)
	assert.Equal(t, model.StatusManagerApproved, approved.Status)
}

func TestTransitionNotFound(t *testing.T) {
	f := newRequestFixture()
	_, err := f.svc.Transition(context.Background(), actorManager, 404, "approve")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestConcurrentPaySingleWinner(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "50",
	})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, actorManager, created.ReqID, "approve")
	require.NoError(t, err)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, payErr := f.svc.Transition(ctx, actorFinance, created.ReqID, "pay")
			results <- payErr
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case apperr.IsKind(err, apperr.KindStateConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicted)

	stored, err := f.requests.FindByID(ctx, created.ReqID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, stored.Status)
}

func TestUpdateRequest(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "50",
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateRequest(ctx, actorEmployee, created.ReqID, UpdateRequestDTO{
		Category:    "Travel",
		Description: "taxi both ways",
		Amount:      "95",
	})
	require.NoError(t, err)
	assert.Equal(t, "taxi both ways", updated.Description)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(95)))

	// Only the owner may edit.
	_, err = f.svc.UpdateRequest(ctx, Actor{EmpID: 6, Role: model.RoleEmployee}, created.ReqID, UpdateRequestDTO{
		Category:    "Travel",
		Description: "x",
		Amount:      "1",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	// Editing stops once the manager has acted.
	_, err = f.svc.Transition(ctx, actorManager, created.ReqID, "approve")
	require.NoError(t, err)
	_, err = f.svc.UpdateRequest(ctx, actorEmployee, created.ReqID, UpdateRequestDTO{
		Category:    "Travel",
		Description: "x",
		Amount:      "1",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindStateConflict))
}

func TestDeleteRequest(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "50",
		FileName:    "taxi.jpg",
		FileData:    []byte("jpeg"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteRequest(ctx, actorEmployee, created.ReqID))

	_, err = f.requests.FindByID(ctx, created.ReqID)
	assert.Error(t, err)
	assert.Equal(t, []string{*created.ImagePath}, f.receipts.deleted)
}

func TestDeleteRequestAfterApproval(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	created, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category:    "Travel",
		Description: "taxi",
		Amount:      "50",
	})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, actorManager, created.ReqID, "approve")
	require.NoError(t, err)

	err = f.svc.DeleteRequest(ctx, actorEmployee, created.ReqID)
	assert.True(t, apperr.IsKind(err, apperr.KindStateConflict))
}

func TestListVisibleScopes(t *testing.T) {
	f := newRequestFixture()
	ctx := context.Background()

	mine, err := f.svc.CreateRequest(ctx, actorEmployee, CreateRequestDTO{
		Category: "Travel", Description: "taxi", Amount: "50",
	})
	require.NoError(t, err)
	other, err := f.svc.CreateRequest(ctx, Actor{EmpID: 6, Role: model.RoleEmployee}, CreateRequestDTO{
		Category: "Food", Description: "dinner", Amount: "80",
	})
	require.NoError(t, err)
	managerOwn, err := f.svc.CreateRequest(ctx, actorManager, CreateRequestDTO{
		Category: "Travel", Description: "flight", Amount: "900",
	})
	require.NoError(t, err)

	// Employee: own requests only.
	visible, err := f.svc.ListVisible(ctx, actorEmployee, 1, 20)
	require.NoError(t, err)
	require.Len(t, visible.Mine, 1)
	assert.Equal(t, mine.ReqID, visible.Mine[0].ReqID)
	assert.Empty(t, visible.Team)
	assert.Empty(t, visible.All)

	// Manager: direct reports' requests plus their own.
	visible, err = f.svc.ListVisible(ctx, actorManager, 1, 20)
	require.NoError(t, err)
	require.Len(t, visible.Team, 1)
	assert.Equal(t, mine.ReqID, visible.Team[0].ReqID)
	require.Len(t, visible.Mine, 1)
	assert.Equal(t, managerOwn.ReqID, visible.Mine[0].ReqID)

	// Finance: only requests waiting on payment.
	visible, err = f.svc.ListVisible(ctx, actorFinance, 1, 20)
	require.NoError(t, err)
	require.Len(t, visible.Queue, 1)
	assert.Equal(t, managerOwn.ReqID, visible.Queue[0].ReqID)

	_, err = f.svc.Transition(ctx, Actor{EmpID: 5, Role: model.RoleManager}, other.ReqID, "approve")
	require.NoError(t, err)
	visible, err = f.svc.ListVisible(ctx, actorFinance, 1, 20)
	require.NoError(t, err)
	assert.Len(t, visible.Queue, 2)

	// Admin and audit: everything, paginated.
	for _, actor := range []Actor{actorAdmin, {EmpID: 1, Role: model.RoleAudit}} {
		visible, err = f.svc.ListVisible(ctx, actor, 1, 20)
		require.NoError(t, err)
		assert.Len(t, visible.All, 3)
		assert.Equal(t, int64(3), visible.Total)
	}

	// Unknown roles see nothing.
	_, err = f.svc.ListVisible(ctx, Actor{EmpID: 3, Role: "intern"}, 1, 20)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
}
