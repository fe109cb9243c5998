package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in-process. Standalone deployments without
// Redis use it; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	data      TokenData
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(_ context.Context, tokenHash string, data TokenData, expiresAt time.Time) error {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.sessions[tokenHash] = memoryEntry{data: data, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, tokenHash string) (TokenData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[tokenHash]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.sessions, tokenHash)
		return TokenData{}, ErrNotFound
	}
	return entry.data, nil
}

func (s *MemoryStore) Revoke(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	delete(s.sessions, tokenHash)
	s.mu.Unlock()
	return nil
}
