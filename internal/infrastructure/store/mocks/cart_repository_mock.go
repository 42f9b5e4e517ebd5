package mocks

import (
	"context"
	"sync"

	"github.com/example/furniture-market/internal/domain/cart"
)

// MockCartRepository is an in-memory cart.Repository that records calls and
// can inject failures.
type MockCartRepository struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart

	GetErr  error
	SaveErr error
	// ConflictsToInject makes the next N saves fail with ErrVersionConflict.
	ConflictsToInject int

	GetCalls  int
	SaveCalls []SaveCall
}

type SaveCall struct {
	Cart            *cart.Cart
	ExpectedVersion int64
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{carts: make(map[string]*cart.Cart)}
}

func (m *MockCartRepository) Get(_ context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *MockCartRepository) Save(_ context.Context, c *cart.Cart, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, SaveCall{Cart: c.Clone(), ExpectedVersion: expectedVersion})
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.ConflictsToInject > 0 {
		m.ConflictsToInject--
		return cart.ErrVersionConflict
	}

	current, ok := m.carts[c.UserID]
	if (!ok && expectedVersion != 0) || (ok && current.Version != expectedVersion) {
		return cart.ErrVersionConflict
	}
	m.carts[c.UserID] = c.Clone()
	return nil
}

// Put stores c directly, bypassing version checks.
func (m *MockCartRepository) Put(c *cart.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
}

func (m *MockCartRepository) Stored(userID string) (*cart.Cart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}
