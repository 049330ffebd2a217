package repository

import (
	"context"

	"github.com/ilondustries/inventario/internal/domain"
)

// AuditRepository appends immutable audit rows. Entries are never updated;
// DeleteByTicket exists only for the administrative ticket deletion, which
// removes referencing entries before the ticket row.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.AuditEntry, error)
	DeleteByTicket(ctx context.Context, ticketID string) error
}

type auditRepository struct {
	q Querier
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (action, ticket_id, product_id, actor_id, actor_name, before_qty, after_qty, details)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.q.QueryRow(ctx, query,
		entry.Action,
		entry.TicketID,
		entry.ProductID,
		entry.ActorID,
		entry.ActorName,
		entry.BeforeQty,
		entry.AfterQty,
		entry.Details,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, action, ticket_id, product_id, actor_id, actor_name, before_qty, after_qty, details, created_at
        FROM audit_entries WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.q.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.TicketID,
			&entry.ProductID,
			&entry.ActorID,
			&entry.ActorName,
			&entry.BeforeQty,
			&entry.AfterQty,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *auditRepository) DeleteByTicket(ctx context.Context, ticketID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM audit_entries WHERE ticket_id=$1`, ticketID)
	return err
}
