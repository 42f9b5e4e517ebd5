package mocks

import (
	"context"
	"sync"

	"github.com/example/furniture-market/internal/domain/order"
)

type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*order.Order

	CreateErr   error
	CreateCalls []*order.Order
	// OnCreate runs before the order is stored.
	OnCreate func(o *order.Order)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*order.Order)}
}

func (m *MockOrderRepository) Create(_ context.Context, o *order.Order) error {
	if m.OnCreate != nil {
		m.OnCreate(o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *o
	m.CreateCalls = append(m.CreateCalls, &cp)
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.orders[o.ID] = &cp
	return nil
}

func (m *MockOrderRepository) Get(_ context.Context, orderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}
