package book

import (
	"sync"

	"feedstate/internal/adapter"
)

// Store maps book keys to the latest published book. Writers replace whole values;
// readers get a pointer they can keep using without locks.
type Store struct {
	mu    sync.RWMutex
	books map[adapter.BookKey]*OrderBook
}

func NewStore() *Store {
	return &Store{books: make(map[adapter.BookKey]*OrderBook)}
}

// Get returns the current book, or nil before the key was seeded.
func (s *Store) Get(key adapter.BookKey) *OrderBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[key]
}

// Put publishes b as the current book for key.
func (s *Store) Put(key adapter.BookKey, b *OrderBook) {
	s.mu.Lock()
	s.books[key] = b
	s.mu.Unlock()
}

// Keys returns the keys of every seeded book.
func (s *Store) Keys() []adapter.BookKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]adapter.BookKey, 0, len(s.books))
	for k := range s.books {
		keys = append(keys, k)
	}
	return keys
}
