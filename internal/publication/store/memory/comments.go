package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"sphere/internal/publication/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
)

type CommentStore struct {
	mu       sync.RWMutex
	comments map[id.CommentID]*models.Comment
}

func NewCommentStore() *CommentStore {
	return &CommentStore{comments: make(map[id.CommentID]*models.Comment)}
}

func (s *CommentStore) Create(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[comment.ID]; ok {
		return sentinel.ErrConflict
	}
	if comment.Status == models.StatusPending {
		for _, c := range s.comments {
			if c.PostID == comment.PostID && c.AuthorID == comment.AuthorID && c.Status == models.StatusPending {
				return sentinel.ErrConflict
			}
		}
	}
	c := *comment
	s.comments[comment.ID] = &c
	return nil
}

func (s *CommentStore) FindByID(_ context.Context, commentID id.CommentID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[commentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *CommentStore) FailPendingByAuthor(_ context.Context, postID id.PostID, authorID id.UserID, reason string, at time.Time) ([]id.CommentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []id.CommentID
	for _, c := range s.comments {
		if c.PostID != postID || c.AuthorID != authorID || c.Status != models.StatusPending {
			continue
		}
		if err := c.Apply(models.Failed(reason, at)); err != nil {
			return nil, err
		}
		failed = append(failed, c.ID)
	}
	return failed, nil
}

func (s *CommentStore) Transition(_ context.Context, commentID id.CommentID, t models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status != models.StatusPending {
		return sentinel.ErrInvalidState
	}
	return c.Apply(t)
}

func (s *CommentStore) ListPostedByPost(_ context.Context, postID id.PostID) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Comment
	for _, c := range s.comments {
		if c.PostID == postID && c.Status == models.StatusPosted {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *CommentStore) ExpirePending(_ context.Context, olderThan, at time.Time) ([]id.CommentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []id.CommentID
	for _, c := range s.comments {
		if c.Status != models.StatusPending || !c.CreatedAt.Before(olderThan) {
			continue
		}
		if err := c.Apply(models.Failed(models.FailureExpired, at)); err != nil {
			return nil, err
		}
		expired = append(expired, c.ID)
	}
	return expired, nil
}

// Count returns the number of stored comments in any status.
func (s *CommentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.comments)
}
