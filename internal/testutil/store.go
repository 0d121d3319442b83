package testutil

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/telecare/billingcore/internal/errors"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// InMemoryStore implements a generic in-memory store
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	err   error
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items: make(map[string]T),
	}
}

// FailWith makes every following call return err until it is reset with nil
func (s *InMemoryStore[T]) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *InMemoryStore[T]) fault() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Create adds a new item to the store. conflict reports whether an existing
// item violates a unique constraint of the new one.
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T, conflict func(existing T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if _, exists := s.items[id]; exists {
		return ierr.NewError("item already exists").Mark(ierr.ErrAlreadyExists)
	}
	if conflict != nil {
		for _, existing := range s.items {
			if conflict(existing) {
				return ierr.NewError("unique constraint violated").Mark(ierr.ErrAlreadyExists)
			}
		}
	}

	s.items[id] = item
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if s.err != nil {
		return zero, s.err
	}
	if item, exists := s.items[id]; exists {
		return item, nil
	}
	return zero, ierr.NewError("item not found").Mark(ierr.ErrNotFound)
}

// List retrieves items matching filterFn, ordered by sortFn
func (s *InMemoryStore[T]) List(ctx context.Context, filterFn FilterFunc[T], sortFn SortFunc[T]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}

	var result []T
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item) {
			result = append(result, item)
		}
	}

	if sortFn != nil {
		sort.Slice(result, func(i, j int) bool {
			return sortFn(result[i], result[j])
		})
	}
	return result, nil
}

// UpdateWhere applies fn to every item matching filterFn under a single lock
// and returns how many items changed
func (s *InMemoryStore[T]) UpdateWhere(ctx context.Context, filterFn FilterFunc[T], fn func(item T) T) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	var n int64
	for id, item := range s.items {
		if filterFn(ctx, item) {
			s.items[id] = fn(item)
			n++
		}
	}
	return n, nil
}

// Snapshot captures the current items and returns a func that restores them.
// Stored values are never mutated in place, so a shallow copy is enough.
func (s *InMemoryStore[T]) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[string]T, len(s.items))
	for id, item := range s.items {
		saved[id] = item
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items = saved
	}
}

// Count returns the number of items in the store
func (s *InMemoryStore[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.err = nil
}
