// Package memory holds in-memory publication stores for tests and dev mode.
// They honor the same compare-and-swap and single-pending contracts as the
// Postgres stores.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"sphere/internal/publication/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
)

type likeKey struct {
	post id.PostID
	user id.UserID
}

type PostStore struct {
	mu    sync.RWMutex
	posts map[id.PostID]*models.Post
	likes map[likeKey]time.Time
}

func NewPostStore() *PostStore {
	return &PostStore{
		posts: make(map[id.PostID]*models.Post),
		likes: make(map[likeKey]time.Time),
	}
}

func (s *PostStore) Create(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; ok {
		return sentinel.ErrConflict
	}
	if post.Status == models.StatusPending {
		for _, p := range s.posts {
			if p.AuthorID == post.AuthorID && p.Status == models.StatusPending {
				return sentinel.ErrConflict
			}
		}
	}
	s.posts[post.ID] = copyPost(post)
	return nil
}

func (s *PostStore) FindByID(_ context.Context, postID id.PostID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyPost(p), nil
}

func (s *PostStore) FailPendingByAuthor(_ context.Context, authorID id.UserID, reason string, at time.Time) ([]id.PostID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []id.PostID
	for _, p := range s.posts {
		if p.AuthorID != authorID || p.Status != models.StatusPending {
			continue
		}
		if err := p.Apply(models.Failed(reason, at)); err != nil {
			return nil, err
		}
		failed = append(failed, p.ID)
	}
	return failed, nil
}

func (s *PostStore) Transition(_ context.Context, postID id.PostID, t models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Status != models.StatusPending {
		return sentinel.ErrInvalidState
	}
	t.DisclosedAttributes = maps.Clone(t.DisclosedAttributes)
	return p.Apply(t)
}

func (s *PostStore) ListPosted(_ context.Context, limit int, before time.Time) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Post
	for _, p := range s.posts {
		if p.Status == models.StatusPosted && p.CreatedAt.Before(before) {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PostStore) ExpirePending(_ context.Context, olderThan, at time.Time) ([]id.PostID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []id.PostID
	for _, p := range s.posts {
		if p.Status != models.StatusPending || !p.CreatedAt.Before(olderThan) {
			continue
		}
		if err := p.Apply(models.Failed(models.FailureExpired, at)); err != nil {
			return nil, err
		}
		expired = append(expired, p.ID)
	}
	return expired, nil
}

func (s *PostStore) AddLike(_ context.Context, postID id.PostID, userID id.UserID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	key := likeKey{post: postID, user: userID}
	if _, liked := s.likes[key]; !liked {
		s.likes[key] = at
		p.LikesCount++
	}
	return p.LikesCount, nil
}

func (s *PostStore) RemoveLike(_ context.Context, postID id.PostID, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	key := likeKey{post: postID, user: userID}
	if _, liked := s.likes[key]; liked {
		delete(s.likes, key)
		p.LikesCount--
	}
	return p.LikesCount, nil
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.DisclosurePreferences = maps.Clone(p.DisclosurePreferences)
	c.DisclosedAttributes = maps.Clone(p.DisclosedAttributes)
	if p.Restriction != nil {
		r := *p.Restriction
		if r.Nationality != nil {
			n := *r.Nationality
			n.Countries = append([]string(nil), n.Countries...)
			r.Nationality = &n
		}
		c.Restriction = &r
	}
	c.VerifierOptions.ExcludedCountries = append([]string(nil), p.VerifierOptions.ExcludedCountries...)
	return &c
}
