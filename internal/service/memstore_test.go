package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ilondustries/inventario/internal/domain"
	"github.com/ilondustries/inventario/internal/repository"
)

// memStore is an in-memory repository.Store used to exercise the workflow
// engine without a database. WithinTx snapshots state and restores it when
// fn fails, so all-or-nothing behavior can be asserted.
type memStore struct {
	mu     *sync.Mutex
	data   *memData
	seq    *int64
	nextID *int64
	inTx   bool
}

type memData struct {
	tickets  map[string]*domain.Ticket
	items    map[string]*domain.TicketItem
	products map[int64]*domain.Product
	audits   []domain.AuditEntry
}

func newMemStore() *memStore {
	var seq, nextID int64
	return &memStore{
		mu:     &sync.Mutex{},
		seq:    &seq,
		nextID: &nextID,
		data: &memData{
			tickets:  make(map[string]*domain.Ticket),
			items:    make(map[string]*domain.TicketItem),
			products: make(map[int64]*domain.Product),
		},
	}
}

func (s *memStore) seedProduct(id int64, name string, onHand, minimum int) {
	s.data.products[id] = &domain.Product{
		ID:             id,
		Code:           fmt.Sprintf("P-%04d", id),
		Name:           name,
		UnitPrice:      10,
		QuantityOnHand: onHand,
		StockMinimum:   minimum,
	}
}

func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) Tickets() repository.TicketRepository   { return &memTickets{s} }
func (s *memStore) Products() repository.ProductRepository { return &memProducts{s} }
func (s *memStore) Audit() repository.AuditRepository      { return &memAudit{s} }

func (s *memStore) NextTicketNumber(ctx context.Context) (string, error) {
	return repository.FormatTicketNumber(atomic.AddInt64(s.seq, 1)), nil
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &memStore{mu: s.mu, data: s.data, seq: s.seq, nextID: s.nextID, inTx: true}
	if err := fn(tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

func (d *memData) clone() *memData {
	out := &memData{
		tickets:  make(map[string]*domain.Ticket, len(d.tickets)),
		items:    make(map[string]*domain.TicketItem, len(d.items)),
		products: make(map[int64]*domain.Product, len(d.products)),
		audits:   append([]domain.AuditEntry{}, d.audits...),
	}
	for id, t := range d.tickets {
		c := *t
		out.tickets[id] = &c
	}
	for id, i := range d.items {
		c := *i
		out.items[id] = &c
	}
	for id, p := range d.products {
		c := *p
		out.products[id] = &c
	}
	return out
}

func (s *memStore) newID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(s.nextID, 1))
}

type memTickets struct{ s *memStore }

func (r *memTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	defer r.s.lock()()
	ticket.ID = r.s.newID("tick")
	// monotonically spaced timestamps keep newest-first ordering deterministic
	ticket.RequestedAt = time.Unix(0, atomic.LoadInt64(r.s.nextID)*int64(time.Millisecond))
	c := *ticket
	c.Items = nil
	r.s.data.tickets[ticket.ID] = &c
	return nil
}

func (r *memTickets) CreateItem(ctx context.Context, item *domain.TicketItem) error {
	defer r.s.lock()()
	item.ID = r.s.newID("item")
	c := *item
	r.s.data.items[item.ID] = &c
	return nil
}

func (r *memTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	defer r.s.lock()()
	stored, ok := r.s.data.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	c := *ticket
	c.Items = nil
	c.RequestedAt = stored.RequestedAt
	r.s.data.tickets[ticket.ID] = &c
	return nil
}

func (r *memTickets) UpdateItemQuantities(ctx context.Context, item *domain.TicketItem) error {
	defer r.s.lock()()
	stored, ok := r.s.data.items[item.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.QuantityDelivered = item.QuantityDelivered
	stored.QuantityReturned = item.QuantityReturned
	return nil
}

func (r *memTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	defer r.s.lock()()
	stored, ok := r.s.data.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *stored
	c.Items = r.itemsFor(id)
	return &c, nil
}

func (r *memTickets) ListItems(ctx context.Context, ticketID string) ([]domain.TicketItem, error) {
	defer r.s.lock()()
	return r.itemsFor(ticketID), nil
}

func (r *memTickets) itemsFor(ticketID string) []domain.TicketItem {
	var items []domain.TicketItem
	for _, item := range r.s.data.items {
		if item.TicketID == ticketID {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (r *memTickets) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	defer r.s.lock()()
	var tickets []domain.Ticket
	for _, t := range r.s.data.tickets {
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.State != nil && t.State != *filter.State {
			continue
		}
		c := *t
		c.Items = r.itemsFor(t.ID)
		tickets = append(tickets, c)
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].RequestedAt.After(tickets[j].RequestedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

func (r *memTickets) DeleteItems(ctx context.Context, ticketID string) error {
	defer r.s.lock()()
	for id, item := range r.s.data.items {
		if item.TicketID == ticketID {
			delete(r.s.data.items, id)
		}
	}
	return nil
}

func (r *memTickets) Delete(ctx context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.data.tickets, id)
	return nil
}

type memProducts struct{ s *memStore }

func (r *memProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	defer r.s.lock()()
	stored, ok := r.s.data.products[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *stored
	return &c, nil
}

func (r *memProducts) CheckAndAdjust(ctx context.Context, id int64, delta int, expectedMin int) (int, int, error) {
	defer r.s.lock()()
	stored, ok := r.s.data.products[id]
	if !ok {
		return 0, 0, pgx.ErrNoRows
	}
	current := stored.QuantityOnHand
	next := current + delta
	if next < expectedMin {
		return current, current, repository.ErrInsufficientStock
	}
	stored.QuantityOnHand = next
	return current, next, nil
}

type memAudit struct{ s *memStore }

func (r *memAudit) Append(ctx context.Context, entry *domain.AuditEntry) error {
	defer r.s.lock()()
	entry.ID = atomic.AddInt64(r.s.nextID, 1)
	entry.CreatedAt = time.Now()
	r.s.data.audits = append(r.s.data.audits, *entry)
	return nil
}

func (r *memAudit) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.AuditEntry, error) {
	defer r.s.lock()()
	var entries []domain.AuditEntry
	for _, entry := range r.s.data.audits {
		if entry.TicketID != nil && *entry.TicketID == ticketID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (r *memAudit) DeleteByTicket(ctx context.Context, ticketID string) error {
	defer r.s.lock()()
	kept := r.s.data.audits[:0]
	for _, entry := range r.s.data.audits {
		if entry.TicketID == nil || *entry.TicketID != ticketID {
			kept = append(kept, entry)
		}
	}
	r.s.data.audits = kept
	return nil
}
