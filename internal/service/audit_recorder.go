package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ilondustries/inventario/internal/domain"
	"github.com/ilondustries/inventario/internal/repository"
)

// AuditRecorder appends audit entries best-effort. Entries are flushed after
// the owning transaction has committed, on the pool connection: a failed
// append is logged and dropped, never allowed to undo the real work it
// describes.
type AuditRecorder struct {
	store  repository.Store
	logger *zap.Logger
}

// NewAuditRecorder constructs the recorder.
func NewAuditRecorder(store repository.Store, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{store: store, logger: logger}
}

// Flush writes the buffered entries, swallowing failures.
func (a *AuditRecorder) Flush(ctx context.Context, entries []domain.AuditEntry) {
	if a == nil || a.store == nil {
		return
	}
	for i := range entries {
		if err := a.store.Audit().Append(ctx, &entries[i]); err != nil {
			a.logger.Warn("audit append failed",
				zap.String("action", string(entries[i].Action)),
				zap.Error(err))
		}
	}
}

// ListByTicket exposes the trail for one ticket.
func (a *AuditRecorder) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.AuditEntry, error) {
	return a.store.Audit().ListByTicket(ctx, ticketID, limit)
}
