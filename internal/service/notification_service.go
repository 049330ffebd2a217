package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ilondustries/inventario/internal/events"
)

// NotificationService logs noteworthy workflow events, in particular
// products dropping to or below their stock floor after a delivery.
// Outbound alerting (mail, webhooks) lives in a separate collaborator.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	return &NotificationService{logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketDecided, n.handleTicketDecided)
	dispatcher.Subscribe(events.EventTicketDelivered, n.handleTicketDelivered)
	dispatcher.Subscribe(events.EventTicketReturned, n.handleTicketReturned)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketDecided(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDecided", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketDelivered(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDelivered", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.TicketDeliveredPayload); ok {
		for _, movement := range payload.Movements {
			if movement.LowStock {
				n.logger.Warn("product at or below stock floor",
					zap.Int64("product_id", movement.ProductID),
					zap.String("name", movement.Name),
					zap.Int("on_hand", movement.After))
			}
		}
	}
	return nil
}

func (n *NotificationService) handleTicketReturned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketReturned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}
