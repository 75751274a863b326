package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sphere/internal/publication/models"
	"sphere/pkg/platform/sentinel"
)

// MemoryStore is the dev-mode session store. Lapsed sessions read as missing
// and are dropped lazily.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.VerificationSession
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.VerificationSession), now: time.Now}
}

// NewMemoryStoreWithClock lets tests control expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

func (s *MemoryStore) Save(_ context.Context, session *models.VerificationSession) error {
	if session.Expired(s.now()) {
		return fmt.Errorf("save session %s: %w", session.Token, sentinel.ErrExpired)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = *session
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (*models.VerificationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.Expired(s.now()) {
		delete(s.sessions, token)
		return nil, sentinel.ErrNotFound
	}
	return &session, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Len reports how many sessions are stored, lapsed ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
