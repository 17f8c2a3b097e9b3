// Package store provides the in-memory key-value registries shared by
// the acknowledgment and notification-batch services. Stores are plain
// injectable objects so each test can run against its own instance.
package store

import "sync"

// Store is a mutex-guarded string-keyed map.
type Store[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New creates an empty Store.
func New[V any]() *Store[V] {
	return &Store[V]{items: make(map[string]V)}
}

// Get returns the value for key and whether it exists.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Set stores value under key, overwriting any previous value.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// SetIfAbsent stores value under key only if the key is unused and
// reports whether it stored anything.
func (s *Store[V]) SetIfAbsent(key string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[key]; exists {
		return false
	}
	s.items[key] = value
	return true
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.items[key]
	delete(s.items, key)
	return existed
}

// Len returns the number of stored entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Range calls fn for each entry until fn returns false. The snapshot is
// taken under the read lock; fn runs outside it so it may call back
// into the store.
func (s *Store[V]) Range(fn func(key string, value V) bool) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	values := make([]V, 0, len(s.items))
	for k, v := range s.items {
		keys = append(keys, k)
		values = append(values, v)
	}
	s.mu.RUnlock()

	for i := range keys {
		if !fn(keys[i], values[i]) {
			return
		}
	}
}
