package memory

import (
	"context"
	"sync"

	"vigil/pkg/platform/events"
)

// InMemoryStore keeps events in append order. It backs the compliance
// publisher in tests and in deployments without Postgres.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByTransaction returns events for a specific transaction in append order.
func (s *InMemoryStore) ListByTransaction(_ context.Context, transactionID string) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []events.Event
	for _, event := range s.events {
		if event.TransactionID == transactionID {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

// ListAll returns every stored event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events...), nil
}

// ListRecent returns the most recent N events by append order.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	return append([]events.Event{}, s.events[start:]...), nil
}
