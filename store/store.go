package store

import (
	"sync"
)

// Repository holds entities of one kind keyed by id. Values are copied in and
// out, so callers never share state with the store.
type Repository[K comparable, V any] interface {
	Get(id K) (V, bool)
	Has(id K) bool
	Put(id K, value V)
	Delete(id K) bool
	List() []V
	Len() int
}

// Memory is an in-memory Repository that keeps insertion order
type Memory[K comparable, V any] struct {
	items map[K]V
	keys  []K
	mutex sync.RWMutex
}

// NewMemory creates an empty in-memory repository
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{
		items: make(map[K]V),
	}
}

// Get retrieves a value by ID
func (s *Memory[K, V]) Get(id K) (V, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, exists := s.items[id]
	return value, exists
}

// Has reports whether a value is stored under ID
func (s *Memory[K, V]) Has(id K) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.items[id]
	return exists
}

// Put adds a value or replaces the existing one in place
func (s *Memory[K, V]) Put(id K, value V) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.items[id]; !exists {
		s.keys = append(s.keys, id)
	}
	s.items[id] = value
}

// Delete removes a value, reporting whether it existed
func (s *Memory[K, V]) Delete(id K) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	for i, key := range s.keys {
		if key == id {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// List returns all values in insertion order
func (s *Memory[K, V]) List() []V {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	values := make([]V, 0, len(s.keys))
	for _, key := range s.keys {
		values = append(values, s.items[key])
	}
	return values
}

// Len returns the number of stored values
func (s *Memory[K, V]) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.items)
}
