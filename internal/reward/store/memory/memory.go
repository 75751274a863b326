package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	pubmodels "sphere/internal/publication/models"
	"sphere/internal/reward/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
)

// Store keeps rewards in memory and enforces the once-per-post rule for
// first-commenter rewards like the Postgres partial index does.
type Store struct {
	mu      sync.RWMutex
	rewards map[id.RewardID]*models.Reward
}

func New() *Store {
	return &Store{rewards: make(map[id.RewardID]*models.Reward)}
}

func (s *Store) Create(_ context.Context, reward *models.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rewards[reward.ID]; ok {
		return fmt.Errorf("reward %s: %w", reward.ID, sentinel.ErrConflict)
	}
	if reward.Type == pubmodels.RewardFirstCommenter {
		for _, r := range s.rewards {
			if r.PostID == reward.PostID && r.Type == pubmodels.RewardFirstCommenter {
				return fmt.Errorf("first commenter reward for post %s: %w", reward.PostID, sentinel.ErrConflict)
			}
		}
	}
	cp := *reward
	s.rewards[reward.ID] = &cp
	return nil
}

func (s *Store) ExistsForPost(_ context.Context, postID id.PostID, rewardType pubmodels.RewardType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rewards {
		if r.PostID == postID && r.Type == rewardType {
			return true, nil
		}
	}
	return false, nil
}

// ListByUser returns the user's rewards, newest first.
func (s *Store) ListByUser(_ context.Context, userID id.UserID) ([]*models.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Reward
	for _, r := range s.rewards {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
