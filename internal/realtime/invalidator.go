package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/cache"
)

// Invalidator drops cached product and order views whenever their rows change.
type Invalidator struct {
	hub    *Hub
	store  cache.Store
	logger *zap.Logger

	release func()
	wg      sync.WaitGroup
}

// NewInvalidator builds a cache invalidator over the hub.
func NewInvalidator(hub *Hub, store cache.Store, logger *zap.Logger) *Invalidator {
	return &Invalidator{hub: hub, store: store, logger: logger}
}

// Start subscribes across tenants and processes changes until Stop.
func (i *Invalidator) Start(context.Context) error {
	ch, release := i.hub.Subscribe(Filter{Tables: []string{TableProducts, TableOrders}}, 256)
	i.release = release
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		for c := range ch {
			i.invalidate(c)
		}
	}()
	return nil
}

// Stop releases the subscription and waits for the loop to drain.
func (i *Invalidator) Stop(context.Context) error {
	if i.release != nil {
		i.release()
	}
	i.wg.Wait()
	return nil
}

func (i *Invalidator) invalidate(c Change) {
	var key string
	switch c.Table {
	case TableProducts:
		key = cache.ProductKey(c.TenantID, c.RecordID)
	case TableOrders:
		key = cache.OrderKey(c.TenantID, c.RecordID)
	default:
		return
	}
	if err := i.store.Delete(context.Background(), key); err != nil {
		i.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
