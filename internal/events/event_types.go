package events

import (
	"time"

	"github.com/ilondustries/inventario/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketDecided   EventType = "ticket_decided"
	EventTicketDelivered EventType = "ticket_delivered"
	EventTicketReturned  EventType = "ticket_returned"
	EventTicketDeleted   EventType = "ticket_deleted"
)

// Actor identifies who triggered the event.
type Actor struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by the workflow engine after a
// successful commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number          string `json:"number"`
	ProductionOrder string `json:"production_order"`
	ItemCount       int    `json:"item_count"`
}

// TicketDecidedPayload payload.
type TicketDecidedPayload struct {
	NewState domain.TicketState `json:"new_state"`
	Comments string             `json:"comments,omitempty"`
}

// StockMovement records one product-level quantity change applied by a
// delivery or a good-condition return.
type StockMovement struct {
	ProductID int64  `json:"product_id"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
	LowStock  bool   `json:"low_stock"`
	Name      string `json:"name"`
}

// TicketDeliveredPayload payload.
type TicketDeliveredPayload struct {
	NewState  domain.TicketState `json:"new_state"`
	Movements []StockMovement    `json:"movements"`
}

// TicketReturnedPayload payload.
type TicketReturnedPayload struct {
	NewState  domain.TicketState     `json:"new_state"`
	ProductID int64                  `json:"product_id"`
	Quantity  int                    `json:"quantity"`
	Condition domain.ReturnCondition `json:"condition"`
	Movements []StockMovement        `json:"movements"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Number string `json:"number"`
}
