// Package store provides a generic map-backed dao.Service used by the
// in-memory catalog, directory and workflow store implementations.
package store

import (
	"context"
	"sync"

	"github.com/gearmill/stagegate/service/dao"
)

// MemoryStore keeps entities of type *T mapped by a comparable key K.  A
// keyOf selector extracts the map key from the entity, so concrete services
// stay declarative about identity.
//
// The store applies no parameter filtering on List; services layering domain
// criteria (state, subject, kind) filter on top of the raw listing.
type MemoryStore[K comparable, T any] struct {
	mu       sync.RWMutex
	entities map[K]*T
	keyOf    func(*T) K
}

// NewMemoryStore creates an empty store around a key selector.
func NewMemoryStore[K comparable, T any](keyOf func(*T) K) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		entities: make(map[K]*T),
		keyOf:    keyOf,
	}
}

// Save stores or replaces an entity.  Nil entities are rejected by the
// owning service before they reach the store.
func (s *MemoryStore[K, T]) Save(_ context.Context, entity *T) error {
	if entity == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[s.keyOf(entity)] = entity
	return nil
}

// Load returns an entity by key, nil when absent.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities[key], nil
}

// Delete removes an entity by key.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, key)
	return nil
}

// List returns all entities in map order.
func (s *MemoryStore[K, T]) List(_ context.Context, _ ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.entities))
	for _, entity := range s.entities {
		out = append(out, entity)
	}
	return out, nil
}
