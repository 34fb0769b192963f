package library

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps the library in process memory. Used in tests and as a
// throwaway backend when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	books  map[int64]Book
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{books: make(map[int64]Book), nextID: 1}
}

func (s *MemoryStore) Add(_ context.Context, b Book) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextID
	s.nextID++
	s.books[b.ID] = b
	return b.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	books := make([]Book, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].AddedAt != books[j].AddedAt {
			return books[i].AddedAt > books[j].AddedAt
		}
		return books[i].ID > books[j].ID
	})
	return books, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, p Patch) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	p.Apply(&b)
	s.books[id] = b
	return b, nil
}

func (s *MemoryStore) Remove(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return false, nil
	}
	delete(s.books, id)
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
