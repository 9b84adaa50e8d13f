// Package dedup is a bounded idempotency-key store used to suppress
// duplicate notification deliveries. Keys are evicted in insertion order
// once the capacity is reached, so memory stays bounded for the process
// lifetime.
package dedup

import (
	"fmt"
	"sync"
)

type Key struct {
	Kind      string
	StationId int
	UserId    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Kind, k.StationId, k.UserId)
}

type Store struct {
	mu       sync.Mutex
	seen     map[Key]struct{}
	order    []Key
	capacity int
}

func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}

	return &Store{
		seen:     make(map[Key]struct{}, capacity),
		order:    make([]Key, 0, capacity),
		capacity: capacity,
	}
}

// Seen records the key and reports whether it was already present.
func (s *Store) Seen(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return true
	}

	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}

	s.seen[key] = struct{}{}
	s.order = append(s.order, key)

	return false
}

// Forget removes the key so a later identical notification is delivered
// again, used when the suppressed condition has been reset.
func (s *Store) Forget(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; !ok {
		return
	}

	delete(s.seen, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.seen)
}
