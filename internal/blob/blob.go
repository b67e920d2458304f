// Package blob stores named byte payloads grouped in containers.
package blob

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes whole blobs.
type Store interface {
	Download(ctx context.Context, container, name string) ([]byte, error)
	Upload(ctx context.Context, container, name string, data []byte) error
}

// MemoryStore implements Store with an in-memory map.
// Intended for demos and testing.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Download(_ context.Context, container, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[container+"/"+name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *MemoryStore) Upload(_ context.Context, container, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[container+"/"+name] = append([]byte(nil), data...)
	return nil
}
