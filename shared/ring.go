package shared

import "sync"

// Ring is a fixed-capacity, most-recent-first event log. Pushing beyond
// capacity evicts the oldest entry. Safe for concurrent use.
type Ring[T any] struct {
	mu    sync.RWMutex
	cap   int
	items []T
}

// NewRing returns a Ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{cap: capacity}
}

// Push prepends v as the most recent entry.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == r.cap {
		copy(r.items[1:], r.items)
		r.items[0] = v
		return
	}
	r.items = append(r.items, v)
	copy(r.items[1:], r.items)
	r.items[0] = v
}

// Items returns a copy of the log, most recent first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear empties the log.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
