// Package session stores verification sessions between pending creation and
// the verifier callback.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sphere/internal/publication/models"
	"sphere/pkg/platform/sentinel"
)

const keyPrefix = "verify:session:"

// RedisStore keeps each session under verify:session:<token> with a TTL
// ending at the session's ExpiresAt.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, session *models.VerificationSession) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("save session %s: %w", session.Token, sentinel.ErrExpired)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+session.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*models.VerificationSession, error) {
	payload, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	var session models.VerificationSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
