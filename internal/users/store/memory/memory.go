package memory

import (
	"context"
	"fmt"
	"sync"

	"sphere/internal/users/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	byID     map[id.UserID]*models.User
	byWallet map[string]id.UserID
}

func New() *Store {
	return &Store{
		byID:     make(map[id.UserID]*models.User),
		byWallet: make(map[string]id.UserID),
	}
}

// GetOrCreate returns the user already holding candidate's wallet address,
// or stores candidate.
func (s *Store) GetOrCreate(_ context.Context, candidate *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byWallet[candidate.WalletAddress]; ok {
		cp := *s.byID[existing]
		return &cp, nil
	}
	cp := *candidate
	s.byID[cp.ID] = &cp
	s.byWallet[cp.WalletAddress] = cp.ID
	out := cp
	return &out, nil
}

func (s *Store) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}
