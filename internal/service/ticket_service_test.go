package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ilondustries/inventario/internal/domain"
	"github.com/ilondustries/inventario/internal/events"
	"github.com/ilondustries/inventario/pkg/apperrors"
)

var (
	admin      = domain.Actor{ID: "u-admin", Name: "Alicia", Role: domain.RoleAdmin}
	supervisor = domain.Actor{ID: "u-sup", Name: "Bruno", Role: domain.RoleSupervisor}
	operator   = domain.Actor{ID: "u-op", Name: "Carla", Role: domain.RoleOperator}
)

func newTestEngine(t *testing.T) (*TicketService, *memStore) {
	t.Helper()
	store := newMemStore()
	logger := zap.NewNop()
	svc := NewTicketService(TicketDependencies{
		Store:      store,
		Auditor:    NewAuditRecorder(store, logger),
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     logger,
	})
	return svc, store
}

func createTicket(t *testing.T, svc *TicketService, actor domain.Actor, productID int64, qty int) *domain.Ticket {
	t.Helper()
	ticket, err := svc.CreateTicket(context.Background(), actor, TicketCreateInput{
		ProductionOrder: "OP-1001",
		Justification:   "milling fixture setup",
		Items:           []TicketItemInput{{ProductID: productID, QuantityRequested: qty}},
	})
	require.NoError(t, err)
	return ticket
}

func approveAndDeliver(t *testing.T, svc *TicketService, ticket *domain.Ticket, qty int) *domain.Ticket {
	t.Helper()
	_, err := svc.ApproveOrReject(context.Background(), admin, ticket.ID, DecisionApprove, "ok")
	require.NoError(t, err)
	delivered, err := svc.Deliver(context.Background(), admin, ticket.ID, []DeliveryLine{
		{ItemID: ticket.Items[0].ID, QuantityDelivered: qty},
	})
	require.NoError(t, err)
	return delivered
}

func TestCreateTicketStartsPending(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)

	ticket := createTicket(t, svc, operator, 7, 5)

	assert.Equal(t, domain.TicketStatePending, ticket.State)
	assert.Equal(t, "TICK-000001", ticket.Number)
	require.Len(t, ticket.Items, 1)
	assert.Equal(t, 0, ticket.Items[0].QuantityDelivered)
	assert.Equal(t, "drill bit", ticket.Items[0].ProductName)
	assert.Equal(t, operator.ID, ticket.RequesterID)
	assert.Equal(t, 10, store.data.products[7].QuantityOnHand)

	audits, err := store.Audit().ListByTicket(context.Background(), ticket.ID, 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, domain.AuditActionRequested, audits[0].Action)
}

func TestCreateTicketValidation(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	cases := []struct {
		name  string
		actor domain.Actor
		input TicketCreateInput
		code  string
	}{
		{
			name:  "admins cannot request",
			actor: admin,
			input: TicketCreateInput{ProductionOrder: "OP-1", Justification: "x", Items: []TicketItemInput{{ProductID: 7, QuantityRequested: 1}}},
			code:  apperrors.CodeForbidden,
		},
		{
			name:  "empty production order",
			actor: operator,
			input: TicketCreateInput{ProductionOrder: "  ", Justification: "x", Items: []TicketItemInput{{ProductID: 7, QuantityRequested: 1}}},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "empty justification",
			actor: operator,
			input: TicketCreateInput{ProductionOrder: "OP-1", Justification: "", Items: []TicketItemInput{{ProductID: 7, QuantityRequested: 1}}},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "no items",
			actor: operator,
			input: TicketCreateInput{ProductionOrder: "OP-1", Justification: "x"},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "non-positive quantity",
			actor: operator,
			input: TicketCreateInput{ProductionOrder: "OP-1", Justification: "x", Items: []TicketItemInput{{ProductID: 7, QuantityRequested: 0}}},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "duplicate product",
			actor: operator,
			input: TicketCreateInput{ProductionOrder: "OP-1", Justification: "x", Items: []TicketItemInput{{ProductID: 7, QuantityRequested: 1}, {ProductID: 7, QuantityRequested: 2}}},
			code:  apperrors.CodeValidation,
		},
		{
			name:  "unknown product",
			actor: operator,
			input: TicketCreateInput{ProductionOrder: "OP-1", Justification: "x", Items: []TicketItemInput{{ProductID: 7, QuantityRequested: 1}, {ProductID: 99, QuantityRequested: 1}}},
			code:  apperrors.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTicket(ctx, tc.actor, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	// all-or-nothing: the unknown-product case must not leave a partial ticket
	assert.Empty(t, store.data.tickets)
	assert.Empty(t, store.data.items)
}

func TestApproveAndReject(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)

	_, err := svc.ApproveOrReject(ctx, supervisor, ticket.ID, DecisionApprove, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	approved, err := svc.ApproveOrReject(ctx, admin, ticket.ID, DecisionApprove, "go ahead")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateApproved, approved.State)
	require.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.ApproverName)
	assert.Equal(t, admin.Name, *approved.ApproverName)

	// deciding twice is an invalid transition
	_, err = svc.ApproveOrReject(ctx, admin, ticket.ID, DecisionReject, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))

	rejected := createTicket(t, svc, operator, 7, 2)
	decided, err := svc.ApproveOrReject(ctx, admin, rejected.ID, DecisionReject, "no budget")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateRejected, decided.State)
	assert.Nil(t, decided.ApprovedAt)
}

func TestDeliverFullTicket(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)

	ticket := createTicket(t, svc, operator, 7, 5)
	delivered := approveAndDeliver(t, svc, ticket, 5)

	assert.Equal(t, domain.TicketStateDelivered, delivered.State)
	assert.Equal(t, 5, store.data.products[7].QuantityOnHand)
	assert.Equal(t, 5, delivered.Items[0].QuantityDelivered)
	require.NotNil(t, delivered.DeliveredAt)
	require.NotNil(t, delivered.DelivererName)
	assert.Equal(t, admin.Name, *delivered.DelivererName)

	audits, err := store.Audit().ListByTicket(context.Background(), ticket.ID, 10)
	require.NoError(t, err)
	var deliveredEntry *domain.AuditEntry
	for i := range audits {
		if audits[i].Action == domain.AuditActionDelivered {
			deliveredEntry = &audits[i]
		}
	}
	require.NotNil(t, deliveredEntry)
	require.NotNil(t, deliveredEntry.BeforeQty)
	require.NotNil(t, deliveredEntry.AfterQty)
	assert.Equal(t, 10, *deliveredEntry.BeforeQty)
	assert.Equal(t, 5, *deliveredEntry.AfterQty)
}

func TestDeliverPartialStaysApproved(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	partial := approveAndDeliver(t, svc, ticket, 3)

	assert.Equal(t, domain.TicketStateApproved, partial.State)
	assert.Equal(t, 7, store.data.products[7].QuantityOnHand)
	assert.Nil(t, partial.DeliveredAt)

	// second delivery tops up to the full cumulative amount
	full, err := svc.Deliver(ctx, admin, ticket.ID, []DeliveryLine{
		{ItemID: ticket.Items[0].ID, QuantityDelivered: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateDelivered, full.State)
	assert.Equal(t, 5, store.data.products[7].QuantityOnHand)
}

func TestDeliverOverDelivery(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	_, err := svc.ApproveOrReject(ctx, admin, ticket.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, admin, ticket.ID, []DeliveryLine{
		{ItemID: ticket.Items[0].ID, QuantityDelivered: 6},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeOverDelivery))
	assert.Equal(t, 10, store.data.products[7].QuantityOnHand)
	assert.Equal(t, 0, store.data.items[ticket.Items[0].ID].QuantityDelivered)
}

func TestDeliverInsufficientStock(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 3, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	_, err := svc.ApproveOrReject(ctx, admin, ticket.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, admin, ticket.ID, []DeliveryLine{
		{ItemID: ticket.Items[0].ID, QuantityDelivered: 5},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientStock))
	assert.Equal(t, 3, store.data.products[7].QuantityOnHand)
	assert.Equal(t, 0, store.data.items[ticket.Items[0].ID].QuantityDelivered)
}

func TestDeliverAllOrNothingAcrossLines(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	store.seedProduct(8, "end mill", 1, 0)
	ctx := context.Background()

	ticket, err := svc.CreateTicket(ctx, operator, TicketCreateInput{
		ProductionOrder: "OP-1001",
		Justification:   "fixture setup",
		Items: []TicketItemInput{
			{ProductID: 7, QuantityRequested: 4},
			{ProductID: 8, QuantityRequested: 3},
		},
	})
	require.NoError(t, err)
	_, err = svc.ApproveOrReject(ctx, admin, ticket.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, admin, ticket.ID, []DeliveryLine{
		{ItemID: ticket.Items[0].ID, QuantityDelivered: 4},
		{ItemID: ticket.Items[1].ID, QuantityDelivered: 3},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientStock))

	// the first line must have been rolled back with the failing one
	assert.Equal(t, 10, store.data.products[7].QuantityOnHand)
	assert.Equal(t, 1, store.data.products[8].QuantityOnHand)
	assert.Equal(t, 0, store.data.items[ticket.Items[0].ID].QuantityDelivered)
}

func TestDeliverRequiresApprovedState(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	_, err := svc.Deliver(ctx, admin, ticket.ID, []DeliveryLine{
		{ItemID: ticket.Items[0].ID, QuantityDelivered: 5},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))

	_, err = svc.Deliver(ctx, supervisor, ticket.ID, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestReturnGoodRestocks(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	approveAndDeliver(t, svc, ticket, 5)
	require.Equal(t, 5, store.data.products[7].QuantityOnHand)

	returned, err := svc.ReturnItem(ctx, operator, ticket.ID, 7, 3, domain.ReturnConditionGood)
	require.NoError(t, err)
	assert.Equal(t, 8, store.data.products[7].QuantityOnHand)
	assert.Equal(t, 3, returned.Items[0].QuantityReturned)
	assert.Equal(t, domain.TicketStateDelivered, returned.State)
}

func TestReturnDamagedScrapsAndCompletes(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	approveAndDeliver(t, svc, ticket, 5)
	_, err := svc.ReturnItem(ctx, operator, ticket.ID, 7, 3, domain.ReturnConditionGood)
	require.NoError(t, err)

	final, err := svc.ReturnItem(ctx, operator, ticket.ID, 7, 2, domain.ReturnConditionDamaged)
	require.NoError(t, err)
	// damaged units are scrapped, stock untouched
	assert.Equal(t, 8, store.data.products[7].QuantityOnHand)
	assert.Equal(t, 5, final.Items[0].QuantityReturned)
	assert.Equal(t, domain.TicketStateReturned, final.State)

	audits, err := store.Audit().ListByTicket(ctx, ticket.ID, 20)
	require.NoError(t, err)
	var good, damaged bool
	for _, entry := range audits {
		switch entry.Action {
		case domain.AuditActionReturnedGood:
			good = true
		case domain.AuditActionReturnedDamaged:
			damaged = true
		}
	}
	assert.True(t, good)
	assert.True(t, damaged)
}

func TestReturnValidation(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	approveAndDeliver(t, svc, ticket, 5)

	_, err := svc.ReturnItem(ctx, operator, ticket.ID, 7, 6, domain.ReturnConditionGood)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeOverReturn))

	_, err = svc.ReturnItem(ctx, operator, ticket.ID, 7, 0, domain.ReturnConditionGood)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = svc.ReturnItem(ctx, operator, ticket.ID, 7, 1, domain.ReturnCondition("mangled"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = svc.ReturnItem(ctx, operator, ticket.ID, 99, 1, domain.ReturnConditionGood)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	assert.Equal(t, 5, store.data.products[7].QuantityOnHand)
}

func TestReturnRoleScoping(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)
	approveAndDeliver(t, svc, ticket, 5)

	otherOperator := domain.Actor{ID: "u-op2", Name: "Dario", Role: domain.RoleOperator}
	_, err := svc.ReturnItem(ctx, otherOperator, ticket.ID, 7, 1, domain.ReturnConditionGood)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = svc.ReturnItem(ctx, admin, ticket.ID, 7, 1, domain.ReturnConditionGood)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	// supervisors may return on behalf of any requester
	_, err = svc.ReturnItem(ctx, supervisor, ticket.ID, 7, 1, domain.ReturnConditionGood)
	require.NoError(t, err)
}

func TestListTicketsVisibility(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 100, 2)
	ctx := context.Background()

	first := createTicket(t, svc, operator, 7, 1)
	second := createTicket(t, svc, supervisor, 7, 2)
	third := createTicket(t, svc, operator, 7, 3)

	all, err := svc.ListTickets(ctx, admin, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Equal(t, first.ID, all[2].ID)
	require.Len(t, all[0].Items, 1)

	mine, err := svc.ListTickets(ctx, operator, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, ticket := range mine {
		assert.Equal(t, operator.ID, ticket.RequesterID)
	}

	pending := domain.TicketStatePending
	_, err = svc.ApproveOrReject(ctx, admin, first.ID, DecisionReject, "")
	require.NoError(t, err)
	filtered, err := svc.ListTickets(ctx, admin, TicketListFilter{State: &pending})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestGetTicketAccess(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)

	got, err := svc.GetTicket(ctx, operator, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Number, got.Number)

	_, err = svc.GetTicket(ctx, supervisor, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = svc.GetTicket(ctx, admin, ticket.ID)
	require.NoError(t, err)

	_, err = svc.GetTicket(ctx, admin, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestDeleteTicketRemovesDependents(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)
	ctx := context.Background()

	ticket := createTicket(t, svc, operator, 7, 5)

	err := svc.DeleteTicket(ctx, supervisor, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	require.NoError(t, svc.DeleteTicket(ctx, admin, ticket.ID))
	assert.Empty(t, store.data.tickets)
	assert.Empty(t, store.data.items)
	audits, err := store.Audit().ListByTicket(ctx, ticket.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, audits)

	err = svc.DeleteTicket(ctx, admin, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestRecomputeStateIdempotent(t *testing.T) {
	items := []domain.TicketItem{
		{QuantityRequested: 5, QuantityDelivered: 5, QuantityReturned: 3},
	}
	first := recomputeState(domain.TicketStateDelivered, items)
	second := recomputeState(first, items)
	assert.Equal(t, first, second)
	assert.Equal(t, domain.TicketStateDelivered, second)

	items[0].QuantityReturned = 5
	assert.Equal(t, domain.TicketStateReturned, recomputeState(second, items))

	// nothing delivered yet: state untouched
	fresh := []domain.TicketItem{{QuantityRequested: 5}}
	assert.Equal(t, domain.TicketStateApproved, recomputeState(domain.TicketStateApproved, fresh))
}

func TestConcurrentTicketNumbersDistinct(t *testing.T) {
	svc, store := newTestEngine(t)
	store.seedProduct(7, "drill bit", 10, 2)

	const workers = 1000
	numbers := make([]string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			ticket, err := svc.CreateTicket(context.Background(), operator, TicketCreateInput{
				ProductionOrder: fmt.Sprintf("OP-%d", idx),
				Justification:   "load test",
				Items:           []TicketItemInput{{ProductID: 7, QuantityRequested: 1}},
			})
			if err == nil {
				numbers[idx] = ticket.Number
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers)
	for _, number := range numbers {
		require.NotEmpty(t, number)
		_, dup := seen[number]
		require.False(t, dup, "duplicate ticket number %s", number)
		seen[number] = struct{}{}
	}
	assert.Len(t, seen, workers)
}
