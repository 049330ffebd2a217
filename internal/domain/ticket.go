package domain

import "time"

// TicketState enumerates requisition lifecycle states.
type TicketState string

const (
	TicketStatePending   TicketState = "pending"
	TicketStateApproved  TicketState = "approved"
	TicketStateRejected  TicketState = "rejected"
	TicketStateDelivered TicketState = "delivered"
	TicketStateReturned  TicketState = "returned"
)

// ReturnCondition describes the physical state of returned stock.
type ReturnCondition string

const (
	ReturnConditionGood    ReturnCondition = "good"
	ReturnConditionDamaged ReturnCondition = "damaged"
)

// Ticket is the aggregate for a tool requisition against a production order.
type Ticket struct {
	ID               string
	Number           string
	ProductionOrder  string
	Justification    string
	RequesterID      string
	RequesterName    string
	RequesterRole    Role
	State            TicketState
	RequestedAt      time.Time
	ApprovedAt       *time.Time
	ApproverID       *string
	ApproverName     *string
	ApprovalComments *string
	DeliveredAt      *time.Time
	DelivererID      *string
	DelivererName    *string
	Items            []TicketItem
}

// TicketItem is one product line within a ticket. Quantities are cumulative
// and only ever increase: 0 <= returned <= delivered <= requested.
type TicketItem struct {
	ID                string
	TicketID          string
	ProductID         int64
	ProductName       string
	QuantityRequested int
	QuantityDelivered int
	QuantityReturned  int
	UnitPrice         *float64
}

// Outstanding reports units delivered but not yet returned.
func (i TicketItem) Outstanding() int {
	return i.QuantityDelivered - i.QuantityReturned
}
