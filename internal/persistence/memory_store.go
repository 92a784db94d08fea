package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

// InMemoryEventStore is a goroutine-safe EventStore backed by a map.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]api.RunnerEvent
}

// Ensure InMemoryEventStore implements EventStore.
var _ EventStore = (*InMemoryEventStore)(nil)

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[string][]api.RunnerEvent),
	}
}

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, ev api.RunnerEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.RunnerID] = append(s.events[ev.RunnerID], ev)
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, runnerID string) ([]api.RunnerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.RunnerEvent(nil), s.events[runnerID]...), nil
}

func (s *InMemoryEventStore) ListRunners(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
