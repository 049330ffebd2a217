package dto

import (
	"time"

	"github.com/ilondustries/inventario/internal/domain"
)

// TicketItemRequest describes one requested product line.
type TicketItemRequest struct {
	ProductID         int64    `json:"product_id"`
	QuantityRequested int      `json:"quantity_requested"`
	UnitPrice         *float64 `json:"unit_price,omitempty"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ProductionOrder string              `json:"production_order"`
	Justification   string              `json:"justification"`
	Items           []TicketItemRequest `json:"items"`
}

// CreateTicketResponse confirms the new requisition.
type CreateTicketResponse struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	ItemCount int    `json:"item_count"`
}

// DecisionRequest payload for approve/reject.
type DecisionRequest struct {
	Decision string `json:"decision"`
	Comments string `json:"comments"`
}

// DeliveryLineRequest carries the new cumulative delivered quantity.
type DeliveryLineRequest struct {
	ItemID            string `json:"item_id"`
	QuantityDelivered int    `json:"quantity_delivered"`
}

// DeliverRequest payload.
type DeliverRequest struct {
	Items []DeliveryLineRequest `json:"items"`
}

// ReturnRequest payload.
type ReturnRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Condition string `json:"condition"`
}

// TicketItemResponse represents one line.
type TicketItemResponse struct {
	ID                string   `json:"id"`
	ProductID         int64    `json:"product_id"`
	ProductName       string   `json:"product_name"`
	QuantityRequested int      `json:"quantity_requested"`
	QuantityDelivered int      `json:"quantity_delivered"`
	QuantityReturned  int      `json:"quantity_returned"`
	UnitPrice         *float64 `json:"unit_price,omitempty"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID               string               `json:"id"`
	Number           string               `json:"number"`
	ProductionOrder  string               `json:"production_order"`
	Justification    string               `json:"justification"`
	RequesterID      string               `json:"requester_id"`
	RequesterName    string               `json:"requester_name"`
	RequesterRole    domain.Role          `json:"requester_role"`
	State            domain.TicketState   `json:"state"`
	RequestedAt      time.Time            `json:"requested_at"`
	ApprovedAt       *time.Time           `json:"approved_at,omitempty"`
	ApproverName     *string              `json:"approver_name,omitempty"`
	ApprovalComments *string              `json:"approval_comments,omitempty"`
	DeliveredAt      *time.Time           `json:"delivered_at,omitempty"`
	DelivererName    *string              `json:"deliverer_name,omitempty"`
	Items            []TicketItemResponse `json:"items"`
}

// ProductResponse exposes the catalog read model.
type ProductResponse struct {
	ID             int64   `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	UnitPrice      float64 `json:"unit_price"`
	QuantityOnHand int     `json:"quantity_on_hand"`
	StockMinimum   int     `json:"stock_minimum"`
	Location       string  `json:"location"`
}
