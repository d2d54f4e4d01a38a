package usage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used as a test double.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]Counters)}
}

func (s *MemoryStore) Increment(ctx context.Context, userID string, d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counters[userID]
	c.VideosProcessed += d.VideosProcessed
	c.ClipsCreated += d.ClipsCreated
	s.counters[userID] = c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[userID], nil
}
