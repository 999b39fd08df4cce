package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	html     string
	storedAt time.Time
}

// MemoryStore is the process-local cache backend. Expiry is checked
// lazily at read time.
type MemoryStore struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an in-process store with the given entry TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	if s.now().Sub(entry.storedAt) >= s.ttl {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := s.entries[key]; ok && s.now().Sub(cur.storedAt) >= s.ttl {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}

	return entry.html, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, html string) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{html: html, storedAt: s.now()}
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
