package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ilondustries/inventario/internal/domain"
	"github.com/ilondustries/inventario/internal/events"
	"github.com/ilondustries/inventario/internal/repository"
	"github.com/ilondustries/inventario/pkg/apperrors"
)

// TicketService is the requisition workflow engine. Every operation runs its
// mutations inside one store transaction; audit entries are buffered during
// the operation and flushed best-effort after commit.
type TicketService struct {
	store      repository.Store
	auditor    *AuditRecorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the workflow engine.
type TicketDependencies struct {
	Store      repository.Store
	Auditor    *AuditRecorder
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the engine.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		auditor:    deps.Auditor,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// TicketItemInput describes one requested product line.
type TicketItemInput struct {
	ProductID         int64
	QuantityRequested int
	UnitPrice         *float64
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ProductionOrder string
	Justification   string
	Items           []TicketItemInput
}

// DeliveryLine carries the new cumulative delivered quantity for one item.
type DeliveryLine struct {
	ItemID            string
	QuantityDelivered int
}

// TicketListFilter describes listing parameters.
type TicketListFilter struct {
	State *domain.TicketState
	Limit int
}

// Decision enumerates the approval verdicts.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// CreateTicket registers a new requisition in pending state, all items at
// once. Every product must resolve against the catalog or nothing persists.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleSupervisor && actor.Role != domain.RoleOperator {
		return nil, apperrors.NewForbidden("only supervisors and operators may create tickets")
	}
	if strings.TrimSpace(input.ProductionOrder) == "" {
		return nil, apperrors.NewValidationError("production_order is required", nil)
	}
	if strings.TrimSpace(input.Justification) == "" {
		return nil, apperrors.NewValidationError("justification is required", nil)
	}
	if len(input.Items) == 0 {
		return nil, apperrors.NewValidationError("at least one item is required", nil)
	}
	seen := make(map[int64]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.QuantityRequested <= 0 {
			return nil, apperrors.NewValidationError("quantity_requested must be positive",
				map[string]any{"product_id": item.ProductID})
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, apperrors.NewValidationError("duplicate product in ticket",
				map[string]any{"product_id": item.ProductID})
		}
		seen[item.ProductID] = struct{}{}
	}

	var (
		ticket *domain.Ticket
		audits []domain.AuditEntry
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		number, err := tx.NextTicketNumber(ctx)
		if err != nil {
			return apperrors.NewStoreError(err)
		}

		ticket = &domain.Ticket{
			Number:          number,
			ProductionOrder: strings.TrimSpace(input.ProductionOrder),
			Justification:   strings.TrimSpace(input.Justification),
			RequesterID:     actor.ID,
			RequesterName:   actor.Name,
			RequesterRole:   actor.Role,
			State:           domain.TicketStatePending,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return apperrors.NewStoreError(err)
		}

		for _, in := range input.Items {
			product, err := tx.Products().GetByID(ctx, in.ProductID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewValidationError("unknown product",
						map[string]any{"product_id": in.ProductID})
				}
				return apperrors.NewStoreError(err)
			}

			unitPrice := in.UnitPrice
			if unitPrice == nil {
				price := product.UnitPrice
				unitPrice = &price
			}
			item := domain.TicketItem{
				TicketID:          ticket.ID,
				ProductID:         product.ID,
				ProductName:       product.Name,
				QuantityRequested: in.QuantityRequested,
				UnitPrice:         unitPrice,
			}
			if err := tx.Tickets().CreateItem(ctx, &item); err != nil {
				return apperrors.NewStoreError(err)
			}
			ticket.Items = append(ticket.Items, item)

			audits = append(audits, domain.AuditEntry{
				Action:    domain.AuditActionRequested,
				TicketID:  &ticket.ID,
				ProductID: &item.ProductID,
				ActorID:   actor.ID,
				ActorName: actor.Name,
				Details:   fmt.Sprintf("requested %d x %s on %s", item.QuantityRequested, item.ProductName, ticket.Number),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Flush(ctx, audits)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketCreatedPayload{
			Number:          ticket.Number,
			ProductionOrder: ticket.ProductionOrder,
			ItemCount:       len(ticket.Items),
		},
	})
	return ticket, nil
}

// ApproveOrReject decides a pending ticket. Approval stamps approved_at and
// the approver snapshot; rejection is terminal.
func (s *TicketService) ApproveOrReject(ctx context.Context, actor domain.Actor, ticketID string, decision Decision, comments string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may decide tickets")
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperrors.NewValidationError("decision must be approve or reject", nil)
	}

	var (
		ticket *domain.Ticket
		audits []domain.AuditEntry
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.State != domain.TicketStatePending {
			return apperrors.NewInvalidTransition("only pending tickets can be decided",
				map[string]any{"state": ticket.State})
		}

		action := domain.AuditActionRejected
		ticket.State = domain.TicketStateRejected
		if decision == DecisionApprove {
			now := time.Now()
			ticket.State = domain.TicketStateApproved
			ticket.ApprovedAt = &now
			action = domain.AuditActionApproved
		}
		ticket.ApproverID = &actor.ID
		ticket.ApproverName = &actor.Name
		if trimmed := strings.TrimSpace(comments); trimmed != "" {
			ticket.ApprovalComments = &trimmed
		}

		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return apperrors.NewStoreError(err)
		}
		audits = append(audits, domain.AuditEntry{
			Action:    action,
			TicketID:  &ticket.ID,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Details:   fmt.Sprintf("%s %s: %s", action, ticket.Number, strings.TrimSpace(comments)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Flush(ctx, audits)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketDecided,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketDecidedPayload{
			NewState: ticket.State,
			Comments: comments,
		},
	})
	return ticket, nil
}

// Deliver hands stock out against an approved ticket. Each line carries the
// new cumulative delivered quantity for one item; stock is decremented by
// the increment over what was already delivered. All lines apply atomically
// or none do.
func (s *TicketService) Deliver(ctx context.Context, actor domain.Actor, ticketID string, lines []DeliveryLine) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may deliver stock")
	}
	if len(lines) == 0 {
		return nil, apperrors.NewValidationError("at least one delivery line is required", nil)
	}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, dup := seen[line.ItemID]; dup {
			return nil, apperrors.NewValidationError("duplicate item in delivery",
				map[string]any{"item_id": line.ItemID})
		}
		seen[line.ItemID] = struct{}{}
	}

	var (
		ticket    *domain.Ticket
		audits    []domain.AuditEntry
		movements []events.StockMovement
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if ticket.State != domain.TicketStateApproved {
			return apperrors.NewInvalidTransition("only approved tickets can be delivered",
				map[string]any{"state": ticket.State})
		}

		for _, line := range lines {
			item := findItemByID(ticket.Items, line.ItemID)
			if item == nil {
				return apperrors.NewNotFound("ticket item", map[string]any{"item_id": line.ItemID})
			}
			increment := line.QuantityDelivered - item.QuantityDelivered
			if increment <= 0 {
				return apperrors.NewValidationError("quantity_delivered must exceed the quantity already delivered",
					map[string]any{"item_id": item.ID, "current": item.QuantityDelivered})
			}
			if line.QuantityDelivered > item.QuantityRequested {
				return apperrors.NewOverDelivery("delivery exceeds requested quantity",
					map[string]any{"item_id": item.ID, "requested": item.QuantityRequested, "delivered": line.QuantityDelivered})
			}

			before, after, err := tx.Products().CheckAndAdjust(ctx, item.ProductID, -increment, 0)
			if err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return apperrors.NewInsufficientStock("not enough stock on hand",
						map[string]any{"product_id": item.ProductID, "on_hand": before, "increment": increment})
				}
				return apperrors.NewStoreError(err)
			}

			item.QuantityDelivered = line.QuantityDelivered
			if err := tx.Tickets().UpdateItemQuantities(ctx, item); err != nil {
				return apperrors.NewStoreError(err)
			}

			product, err := tx.Products().GetByID(ctx, item.ProductID)
			if err != nil {
				return apperrors.NewStoreError(err)
			}
			movements = append(movements, events.StockMovement{
				ProductID: item.ProductID,
				Before:    before,
				After:     after,
				LowStock:  product.BelowMinimum(),
				Name:      item.ProductName,
			})
			beforeQty, afterQty := before, after
			audits = append(audits, domain.AuditEntry{
				Action:    domain.AuditActionDelivered,
				TicketID:  &ticket.ID,
				ProductID: &item.ProductID,
				ActorID:   actor.ID,
				ActorName: actor.Name,
				BeforeQty: &beforeQty,
				AfterQty:  &afterQty,
				Details:   fmt.Sprintf("delivered %d x %s on %s", increment, item.ProductName, ticket.Number),
			})
		}

		next := recomputeState(ticket.State, ticket.Items)
		if next == domain.TicketStateDelivered && ticket.State != domain.TicketStateDelivered {
			now := time.Now()
			ticket.DeliveredAt = &now
			ticket.DelivererID = &actor.ID
			ticket.DelivererName = &actor.Name
		}
		ticket.State = next
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return apperrors.NewStoreError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Flush(ctx, audits)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketDelivered,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketDeliveredPayload{
			NewState:  ticket.State,
			Movements: movements,
		},
	})
	return ticket, nil
}

// ReturnItem brings delivered stock back. Good-condition units restock the
// product; damaged units are scrapped and leave stock untouched. The
// asymmetry is deliberate.
func (s *TicketService) ReturnItem(ctx context.Context, actor domain.Actor, ticketID string, productID int64, quantity int, condition domain.ReturnCondition) (*domain.Ticket, error) {
	if actor.Role != domain.RoleSupervisor && actor.Role != domain.RoleOperator {
		return nil, apperrors.NewForbidden("only supervisors and operators may return stock")
	}
	if condition != domain.ReturnConditionGood && condition != domain.ReturnConditionDamaged {
		return nil, apperrors.NewValidationError("condition must be good or damaged", nil)
	}
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive", nil)
	}

	var (
		ticket    *domain.Ticket
		audits    []domain.AuditEntry
		movements []events.StockMovement
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = s.getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleOperator && ticket.RequesterID != actor.ID {
			return apperrors.NewForbidden("operators may only return against their own tickets")
		}
		if ticket.State != domain.TicketStateDelivered {
			return apperrors.NewInvalidTransition("only delivered tickets accept returns",
				map[string]any{"state": ticket.State})
		}

		item := findItemByProduct(ticket.Items, productID)
		if item == nil {
			return apperrors.NewNotFound("ticket item", map[string]any{"product_id": productID})
		}
		if quantity > item.Outstanding() {
			return apperrors.NewOverReturn("return exceeds outstanding delivered quantity",
				map[string]any{"product_id": productID, "outstanding": item.Outstanding(), "quantity": quantity})
		}

		item.QuantityReturned += quantity
		if err := tx.Tickets().UpdateItemQuantities(ctx, item); err != nil {
			return apperrors.NewStoreError(err)
		}

		action := domain.AuditActionReturnedDamaged
		entry := domain.AuditEntry{
			TicketID:  &ticket.ID,
			ProductID: &item.ProductID,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Details:   fmt.Sprintf("returned %d x %s (%s) on %s", quantity, item.ProductName, condition, ticket.Number),
		}
		if condition == domain.ReturnConditionGood {
			before, after, err := tx.Products().CheckAndAdjust(ctx, item.ProductID, quantity, 0)
			if err != nil {
				return apperrors.NewStoreError(err)
			}
			action = domain.AuditActionReturnedGood
			beforeQty, afterQty := before, after
			entry.BeforeQty = &beforeQty
			entry.AfterQty = &afterQty
			movements = append(movements, events.StockMovement{
				ProductID: item.ProductID,
				Before:    before,
				After:     after,
				Name:      item.ProductName,
			})
		}
		entry.Action = action
		audits = append(audits, entry)

		ticket.State = recomputeState(ticket.State, ticket.Items)
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return apperrors.NewStoreError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Flush(ctx, audits)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketReturned,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketReturnedPayload{
			NewState:  ticket.State,
			ProductID: productID,
			Quantity:  quantity,
			Condition: condition,
			Movements: movements,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets visible to the caller, newest first. Admins
// see everything; supervisors and operators see only their own requests.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		State: filter.State,
		Limit: filter.Limit,
	}
	if actor.Role != domain.RoleAdmin {
		requesterID := actor.ID
		repoFilter.RequesterID = &requesterID
	}
	tickets, err := s.store.Tickets().List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return tickets, nil
}

// GetTicket fetches one ticket with its items, restricted to the requester
// or an admin.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, s.store, ticketID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && ticket.RequesterID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// DeleteTicket removes a ticket administratively: audit entries referencing
// it first, then its items, then the ticket row, in one transaction.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID string) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("only admins may delete tickets")
	}

	var (
		number string
		audits []domain.AuditEntry
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		number = ticket.Number

		if err := tx.Audit().DeleteByTicket(ctx, ticketID); err != nil {
			return apperrors.NewStoreError(err)
		}
		if err := tx.Tickets().DeleteItems(ctx, ticketID); err != nil {
			return apperrors.NewStoreError(err)
		}
		if err := tx.Tickets().Delete(ctx, ticketID); err != nil {
			return apperrors.NewStoreError(err)
		}
		audits = append(audits, domain.AuditEntry{
			Action:    domain.AuditActionTicketDeleted,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Details:   fmt.Sprintf("deleted ticket %s", number),
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID), zap.String("number", number))
	s.auditor.Flush(ctx, audits)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    eventActor(actor),
		Payload:  events.TicketDeletedPayload{Number: number},
	})
	return nil
}

func (s *TicketService) getTicket(ctx context.Context, store repository.Store, ticketID string) (*domain.Ticket, error) {
	ticket, err := store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStoreError(err)
	}
	return ticket, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, stampEvent(event))
}

func stampEvent(event events.Event) events.Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}
}

func findItemByID(items []domain.TicketItem, itemID string) *domain.TicketItem {
	for i := range items {
		if items[i].ID == itemID {
			return &items[i]
		}
	}
	return nil
}

func findItemByProduct(items []domain.TicketItem, productID int64) *domain.TicketItem {
	for i := range items {
		if items[i].ProductID == productID {
			return &items[i]
		}
	}
	return nil
}

// recomputeState derives the fulfillment state from cumulative item
// quantities. It is a pure function of its inputs: recomputing without an
// intervening mutation yields the same state.
func recomputeState(current domain.TicketState, items []domain.TicketItem) domain.TicketState {
	var requested, delivered, returned int
	for _, item := range items {
		requested += item.QuantityRequested
		delivered += item.QuantityDelivered
		returned += item.QuantityReturned
	}
	if delivered > 0 && returned >= delivered {
		return domain.TicketStateReturned
	}
	if delivered > 0 && delivered >= requested {
		return domain.TicketStateDelivered
	}
	return current
}
