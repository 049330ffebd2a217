package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ilondustries/inventario/internal/domain"
)

// TicketFilter captures listing parameters. A nil RequesterID lists all
// tickets; results are ordered newest-first by requested_at.
type TicketFilter struct {
	RequesterID *string
	State       *domain.TicketState
	Limit       int
}

// TicketRepository encapsulates ticket and ticket-item persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	CreateItem(ctx context.Context, item *domain.TicketItem) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	UpdateItemQuantities(ctx context.Context, item *domain.TicketItem) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListItems(ctx context.Context, ticketID string) ([]domain.TicketItem, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	DeleteItems(ctx context.Context, ticketID string) error
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	q Querier
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (number, production_order, justification, requester_id, requester_name, requester_role, state)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, requested_at`
	return r.q.QueryRow(ctx, query,
		ticket.Number,
		ticket.ProductionOrder,
		ticket.Justification,
		ticket.RequesterID,
		ticket.RequesterName,
		ticket.RequesterRole,
		ticket.State,
	).Scan(&ticket.ID, &ticket.RequestedAt)
}

func (r *ticketRepository) CreateItem(ctx context.Context, item *domain.TicketItem) error {
	const query = `
        INSERT INTO ticket_items (ticket_id, product_id, product_name, quantity_requested, unit_price)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, quantity_delivered, quantity_returned`
	return r.q.QueryRow(ctx, query,
		item.TicketID,
		item.ProductID,
		item.ProductName,
		item.QuantityRequested,
		item.UnitPrice,
	).Scan(&item.ID, &item.QuantityDelivered, &item.QuantityReturned)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET state=$1, approved_at=$2, approver_id=$3, approver_name=$4, approval_comments=$5,
            delivered_at=$6, deliverer_id=$7, deliverer_name=$8
        WHERE id=$9`
	cmd, err := r.q.Exec(ctx, query,
		ticket.State,
		ticket.ApprovedAt,
		ticket.ApproverID,
		ticket.ApproverName,
		ticket.ApprovalComments,
		ticket.DeliveredAt,
		ticket.DelivererID,
		ticket.DelivererName,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateItemQuantities(ctx context.Context, item *domain.TicketItem) error {
	const query = `
        UPDATE ticket_items SET quantity_delivered=$1, quantity_returned=$2
        WHERE id=$3`
	cmd, err := r.q.Exec(ctx, query, item.QuantityDelivered, item.QuantityReturned, item.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const ticketColumns = `id, number, production_order, justification, requester_id, requester_name, requester_role,
               state, requested_at, approved_at, approver_id, approver_name, approval_comments,
               delivered_at, deliverer_id, deliverer_name`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.q.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Items = items
	return &ticket, nil
}

func (r *ticketRepository) ListItems(ctx context.Context, ticketID string) ([]domain.TicketItem, error) {
	const query = `
        SELECT id, ticket_id, product_id, product_name, quantity_requested, quantity_delivered, quantity_returned, unit_price
        FROM ticket_items WHERE ticket_id=$1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.TicketItem
	for rows.Next() {
		var item domain.TicketItem
		if err := rows.Scan(
			&item.ID,
			&item.TicketID,
			&item.ProductID,
			&item.ProductName,
			&item.QuantityRequested,
			&item.QuantityDelivered,
			&item.QuantityReturned,
			&item.UnitPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.State != nil {
		args = append(args, *filter.State)
		clauses = append(clauses, fmt.Sprintf("state=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY requested_at DESC LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tickets {
		items, err := r.ListItems(ctx, tickets[i].ID)
		if err != nil {
			return nil, err
		}
		tickets[i].Items = items
	}
	return tickets, nil
}

func (r *ticketRepository) DeleteItems(ctx context.Context, ticketID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM ticket_items WHERE ticket_id=$1`, ticketID)
	return err
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.ProductionOrder,
		&ticket.Justification,
		&ticket.RequesterID,
		&ticket.RequesterName,
		&ticket.RequesterRole,
		&ticket.State,
		&ticket.RequestedAt,
		&ticket.ApprovedAt,
		&ticket.ApproverID,
		&ticket.ApproverName,
		&ticket.ApprovalComments,
		&ticket.DeliveredAt,
		&ticket.DelivererID,
		&ticket.DelivererName,
	)
}
