package mocks

import (
	"context"
	"sync"

	"github.com/example/furniture-market/internal/catalog"
)

// MockCatalog serves products from a map.
type MockCatalog struct {
	mu       sync.Mutex
	products map[string]*catalog.Product

	Err              error
	GetProductCalls  []string
	GetProductsCalls [][]string
}

func NewMockCatalog(products ...*catalog.Product) *MockCatalog {
	m := &MockCatalog{products: make(map[string]*catalog.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetProductCalls = append(m.GetProductCalls, id)
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalog) GetProducts(_ context.Context, ids []string) (map[string]*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetProductsCalls = append(m.GetProductsCalls, append([]string(nil), ids...))
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]*catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}
