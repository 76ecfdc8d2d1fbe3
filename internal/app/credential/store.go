// Package credential holds the process-wide slot for the bearer credential.
package credential

import (
	"context"
	"sync"
)

// Store is a single-value slot. Get returns "" when the slot is empty, and
// Clear on an empty slot is not an error.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, value string) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	value string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, value string) error {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	return s.Set(ctx, "")
}
