package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier abstracts over a pgx pool or an open transaction so repositories
// can run inside or outside a transaction without knowing which.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the repositories sharing one querier. WithinTx yields a Store
// bound to a single transaction: every mutation made through it commits or
// rolls back as a unit.
type Store interface {
	Tickets() TicketRepository
	Products() ProductRepository
	Audit() AuditRepository
	NextTicketNumber(ctx context.Context) (string, error)
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type pgStore struct {
	q    Querier
	pool *pgxpool.Pool
}

// NewStore builds a pool-backed store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{q: pool, pool: pool}
}

func (s *pgStore) Tickets() TicketRepository {
	return &ticketRepository{q: s.q}
}

func (s *pgStore) Products() ProductRepository {
	return &productRepository{q: s.q}
}

func (s *pgStore) Audit() AuditRepository {
	return &auditRepository{q: s.q}
}

// NextTicketNumber pulls the next value from the ticket number sequence and
// formats it. The sequence is atomic under concurrent callers; numbers are
// never reused, including for tickets later deleted.
func (s *pgStore) NextTicketNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT nextval('ticket_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("allocate ticket number: %w", err)
	}
	return FormatTicketNumber(n), nil
}

// FormatTicketNumber renders the canonical human-readable ticket identifier.
func FormatTicketNumber(n int64) string {
	return fmt.Sprintf("TICK-%06d", n)
}

// WithinTx runs fn against a transaction-bound store. A nested call reuses
// the already-open transaction.
func (s *pgStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	txStore := &pgStore{q: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
