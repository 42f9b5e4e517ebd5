package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/example/furniture-market/internal/geo"
)

// MockGeocoder resolves cities from a fixed table, case-insensitively.
type MockGeocoder struct {
	mu     sync.Mutex
	cities map[string]geo.Coordinates

	Calls []string
}

func NewMockGeocoder(cities map[string]geo.Coordinates) *MockGeocoder {
	m := &MockGeocoder{cities: make(map[string]geo.Coordinates, len(cities))}
	for name, c := range cities {
		m.cities[strings.ToLower(name)] = c
	}
	return m
}

func (m *MockGeocoder) Geocode(_ context.Context, city string) (geo.Coordinates, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, city)
	c, ok := m.cities[strings.ToLower(strings.TrimSpace(city))]
	return c, ok
}
