package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ilondustries/inventario/internal/api/dto"
	"github.com/ilondustries/inventario/internal/auth"
	"github.com/ilondustries/inventario/internal/domain"
	"github.com/ilondustries/inventario/internal/service"
	"github.com/ilondustries/inventario/pkg/apperrors"
)

// TicketsHandler maps HTTP requests onto workflow engine operations.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	items := make([]service.TicketItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.TicketItemInput{
			ProductID:         item.ProductID,
			QuantityRequested: item.QuantityRequested,
			UnitPrice:         item.UnitPrice,
		})
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), *actor, service.TicketCreateInput{
		ProductionOrder: req.ProductionOrder,
		Justification:   req.Justification,
		Items:           items,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		ID:        ticket.ID,
		Number:    ticket.Number,
		ItemCount: len(ticket.Items),
	}})
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := service.TicketListFilter{Limit: parseInt(c.Query("limit"), 50)}
	if stateStr := c.Query("state"); stateStr != "" {
		state := domain.TicketState(stateStr)
		filter.State = &state
	}

	tickets, err := h.service.ListTickets(c.UserContext(), *actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.service.GetTicket(c.UserContext(), *actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Decide POST /tickets/:id/decision.
func (h *TicketsHandler) Decide(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ApproveOrReject(c.UserContext(), *actor, c.Params("id"), service.Decision(req.Decision), req.Comments)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Deliver POST /tickets/:id/deliver.
func (h *TicketsHandler) Deliver(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.DeliverRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	lines := make([]service.DeliveryLine, 0, len(req.Items))
	for _, line := range req.Items {
		lines = append(lines, service.DeliveryLine{
			ItemID:            line.ItemID,
			QuantityDelivered: line.QuantityDelivered,
		})
	}
	ticket, err := h.service.Deliver(c.UserContext(), *actor, c.Params("id"), lines)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Return POST /tickets/:id/return.
func (h *TicketsHandler) Return(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ReturnItem(c.UserContext(), *actor, c.Params("id"),
		req.ProductID, req.Quantity, domain.ReturnCondition(req.Condition))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Delete DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.DeleteTicket(c.UserContext(), *actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	items := make([]dto.TicketItemResponse, 0, len(ticket.Items))
	for _, item := range ticket.Items {
		items = append(items, dto.TicketItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			QuantityRequested: item.QuantityRequested,
			QuantityDelivered: item.QuantityDelivered,
			QuantityReturned:  item.QuantityReturned,
			UnitPrice:         item.UnitPrice,
		})
	}
	return dto.TicketResponse{
		ID:               ticket.ID,
		Number:           ticket.Number,
		ProductionOrder:  ticket.ProductionOrder,
		Justification:    ticket.Justification,
		RequesterID:      ticket.RequesterID,
		RequesterName:    ticket.RequesterName,
		RequesterRole:    ticket.RequesterRole,
		State:            ticket.State,
		RequestedAt:      ticket.RequestedAt,
		ApprovedAt:       ticket.ApprovedAt,
		ApproverName:     ticket.ApproverName,
		ApprovalComments: ticket.ApprovalComments,
		DeliveredAt:      ticket.DeliveredAt,
		DelivererName:    ticket.DelivererName,
		Items:            items,
	}
}
