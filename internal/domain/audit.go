package domain

import "time"

// AuditAction enumerates recorded state-changing actions.
type AuditAction string

const (
	AuditActionRequested       AuditAction = "requested"
	AuditActionApproved        AuditAction = "approved"
	AuditActionRejected        AuditAction = "rejected"
	AuditActionDelivered       AuditAction = "delivered"
	AuditActionReturnedGood    AuditAction = "returned_good"
	AuditActionReturnedDamaged AuditAction = "returned_damaged"
	AuditActionTicketDeleted   AuditAction = "ticket_deleted"
)

// AuditEntry is one immutable record of a state-changing action. Entries are
// append-only; nothing in the engine updates or deletes them except the
// administrative ticket deletion, which removes the entries referencing the
// ticket before the ticket row itself.
type AuditEntry struct {
	ID        int64
	Action    AuditAction
	TicketID  *string
	ProductID *int64
	ActorID   string
	ActorName string
	BeforeQty *int
	AfterQty  *int
	Details   string
	CreatedAt time.Time
}
