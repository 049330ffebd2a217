package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ilondustries/inventario/internal/domain"
	"github.com/ilondustries/inventario/internal/events"
	"github.com/ilondustries/inventario/internal/repository"
)

// CatalogCache is a read-through cache over catalog rows. Deliveries and
// returns mutate stock, so it subscribes to those events and drops the
// affected keys; a cold or unreachable Redis degrades to database reads.
type CatalogCache struct {
	client *redis.Client
	store  repository.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogCache constructs the cache.
func NewCatalogCache(client *redis.Client, store repository.Store, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	return &CatalogCache{client: client, store: store, ttl: ttl, logger: logger}
}

// RegisterHandlers subscribes cache invalidation to stock-mutating events.
func (c *CatalogCache) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketDelivered, c.handleStockMutation)
	dispatcher.Subscribe(events.EventTicketReturned, c.handleStockMutation)
}

// GetProduct returns the cached product, falling back to the store on miss.
func (c *CatalogCache) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var product domain.Product
			if jsonErr := json.Unmarshal(raw, &product); jsonErr == nil {
				return &product, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	product, err := c.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.client != nil {
		if raw, err := json.Marshal(product); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return product, nil
}

// Invalidate drops cached entries for the given products.
func (c *CatalogCache) Invalidate(ctx context.Context, productIDs ...int64) {
	if c.client == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

func (c *CatalogCache) handleStockMutation(ctx context.Context, event events.Event) error {
	var ids []int64
	switch payload := event.Payload.(type) {
	case events.TicketDeliveredPayload:
		for _, m := range payload.Movements {
			ids = append(ids, m.ProductID)
		}
	case events.TicketReturnedPayload:
		ids = append(ids, payload.ProductID)
	}
	c.Invalidate(ctx, ids...)
	return nil
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
