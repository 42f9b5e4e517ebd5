package store

import (
	"context"
	"sync"

	"github.com/example/furniture-market/internal/domain/cart"
)

// MemoryCartRepository keeps carts in process memory. It honours the same
// version contract as the database-backed repositories.
type MemoryCartRepository struct {
	mu    sync.RWMutex
	carts map[string]*cart.Cart
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{carts: make(map[string]*cart.Cart)}
}

func (r *MemoryCartRepository) Get(_ context.Context, userID string) (*cart.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryCartRepository) Save(_ context.Context, c *cart.Cart, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.carts[c.UserID]
	switch {
	case !ok && expectedVersion != 0:
		return cart.ErrVersionConflict
	case ok && current.Version != expectedVersion:
		return cart.ErrVersionConflict
	}
	r.carts[c.UserID] = c.Clone()
	return nil
}
