package store

import (
	"context"
	"sync"

	"github.com/example/furniture-market/internal/domain/order"
)

// MemoryOrderRepository is used when no database is configured.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]order.Order)}
}

func (r *MemoryOrderRepository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *o
	stored.Items = append([]order.OrderItem(nil), o.Items...)
	r.orders[o.ID] = stored
	return nil
}

func (r *MemoryOrderRepository) Get(_ context.Context, orderID string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o.Items = append([]order.OrderItem(nil), o.Items...)
	return &o, nil
}
