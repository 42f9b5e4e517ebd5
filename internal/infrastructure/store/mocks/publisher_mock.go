package mocks

import (
	"context"
	"sync"

	"github.com/example/furniture-market/internal/event"
)

// MockPublisher records every published event.
type MockPublisher struct {
	mu sync.Mutex

	PublishCalls []PublishCall
	PublishErr   error
}

type PublishCall struct {
	Key   string
	Event interface{}
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, key string, evt interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCalls = append(m.PublishCalls, PublishCall{Key: key, Event: evt})
	return m.PublishErr
}

// EventTypes lists the types of all recorded envelopes in publish order.
func (m *MockPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, 0, len(m.PublishCalls))
	for _, call := range m.PublishCalls {
		if e, ok := call.Event.(*event.Event); ok {
			types = append(types, e.EventType)
		}
	}
	return types
}

func (m *MockPublisher) Calls() []PublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishCall(nil), m.PublishCalls...)
}
