// Package postgres persists rewards in the rewards table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	pgplatform "sphere/internal/platform/postgres"
	pubmodels "sphere/internal/publication/models"
	"sphere/internal/reward/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
	txcontext "sphere/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a pending reward. A second first-commenter reward for the
// same post violates rewards_first_commenter_idx and yields
// sentinel.ErrConflict.
func (s *Store) Create(ctx context.Context, reward *models.Reward) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO rewards (id, post_id, user_id, reward_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(reward.ID), uuid.UUID(reward.PostID), uuid.UUID(reward.UserID),
		int(reward.Type), string(reward.Status), reward.CreatedAt,
	)
	if err != nil {
		switch {
		case pgplatform.IsUniqueViolation(err, ""):
			return fmt.Errorf("insert reward: %w", sentinel.ErrConflict)
		case pgplatform.IsForeignKeyViolation(err):
			return fmt.Errorf("insert reward: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

func (s *Store) ExistsForPost(ctx context.Context, postID id.PostID, rewardType pubmodels.RewardType) (bool, error) {
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rewards WHERE post_id = $1 AND reward_type = $2)`,
		uuid.UUID(postID), int(rewardType),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rewards for post: %w", err)
	}
	return exists, nil
}

func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Reward, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, post_id, user_id, reward_type, status, created_at
		FROM rewards
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		uuid.UUID(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var out []*models.Reward
	for rows.Next() {
		var (
			r                    models.Reward
			rewardID, post, user uuid.UUID
			rewardType           int
			status               string
		)
		if err := rows.Scan(&rewardID, &post, &user, &rewardType, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		r.ID = id.RewardID(rewardID)
		r.PostID = id.PostID(post)
		r.UserID = id.UserID(user)
		r.Type = pubmodels.RewardType(rewardType)
		r.Status = models.Status(status)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return out, nil
}
