// Package postgres holds the Postgres publication stores. Terminal writes
// are compare-and-swap on status = 'pending'; partial unique indexes back
// the one-pending-attempt rules.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sphere/internal/identity"
	pgplatform "sphere/internal/platform/postgres"
	"sphere/internal/publication/models"
	"sphere/internal/restriction"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
	txcontext "sphere/pkg/platform/tx"
)

const postColumns = `id, author_id, title, content, status, failure_reason,
	disclosure_preferences, allowed_commenters, verifier_options,
	reward_enabled, reward_type, disclosed_attributes, likes_count,
	created_at, updated_at`

// sweepBatch bounds how many rows one ExpirePending call fails.
const sweepBatch = 500

type PostStore struct {
	db *sql.DB
}

func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

func (s *PostStore) Create(ctx context.Context, post *models.Post) error {
	prefs, err := json.Marshal(post.DisclosurePreferences.Map())
	if err != nil {
		return fmt.Errorf("marshal disclosure preferences: %w", err)
	}
	rules, err := restriction.Encode(post.Restriction)
	if err != nil {
		return fmt.Errorf("encode restriction: %w", err)
	}
	opts, err := json.Marshal(post.VerifierOptions)
	if err != nil {
		return fmt.Errorf("marshal verifier options: %w", err)
	}

	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, $12, $13, $14)`,
		uuid.UUID(post.ID), uuid.UUID(post.AuthorID), post.Title, post.Content,
		string(post.Status), post.FailureReason,
		string(prefs), nullableJSON(rules), string(opts),
		post.Reward.Enabled, int(post.Reward.Type), post.LikesCount,
		post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		switch {
		case pgplatform.IsUniqueViolation(err, ""):
			return fmt.Errorf("insert post: %w", sentinel.ErrConflict)
		case pgplatform.IsForeignKeyViolation(err):
			return fmt.Errorf("insert post: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostStore) FindByID(ctx context.Context, postID id.PostID) (*models.Post, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, uuid.UUID(postID))
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return post, nil
}

// FailPendingByAuthor locks the author's pending posts and fails them. Call
// it inside a transaction so the locks are held until the new post is in.
func (s *PostStore) FailPendingByAuthor(ctx context.Context, authorID id.UserID, reason string, at time.Time) ([]id.PostID, error) {
	exec := txcontext.Exec(ctx, s.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT id FROM posts WHERE author_id = $1 AND status = 'pending' FOR UPDATE`,
		uuid.UUID(authorID))
	if err != nil {
		return nil, fmt.Errorf("lock pending posts: %w", err)
	}
	locked, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("lock pending posts: %w", err)
	}
	if len(locked) == 0 {
		return nil, nil
	}

	rows, err = exec.QueryContext(ctx, `
		UPDATE posts SET status = 'failed', failure_reason = $2, updated_at = $3
		WHERE id = ANY($1) AND status = 'pending'
		RETURNING id`,
		pq.Array(uuidStrings(locked)), reason, at)
	if err != nil {
		return nil, fmt.Errorf("fail pending posts: %w", err)
	}
	failed, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("fail pending posts: %w", err)
	}
	out := make([]id.PostID, len(failed))
	for i, u := range failed {
		out[i] = id.PostID(u)
	}
	return out, nil
}

func (s *PostStore) Transition(ctx context.Context, postID id.PostID, t models.Transition) error {
	if err := t.Validate(models.StatusPending); err != nil {
		return err
	}
	var attrs any
	if t.To == models.StatusPosted && t.DisclosedAttributes != nil {
		b, err := json.Marshal(t.DisclosedAttributes)
		if err != nil {
			return fmt.Errorf("marshal disclosed attributes: %w", err)
		}
		attrs = string(b)
	}

	exec := txcontext.Exec(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE posts
		SET status = $2, failure_reason = $3, disclosed_attributes = $4, updated_at = $5
		WHERE id = $1 AND status = 'pending'`,
		uuid.UUID(postID), string(t.To), t.FailureReason, attrs, t.At)
	if err != nil {
		return fmt.Errorf("transition post: %w", err)
	}
	return casOutcome(ctx, exec, res, "posts", uuid.UUID(postID))
}

func (s *PostStore) ListPosted(ctx context.Context, limit int, before time.Time) ([]*models.Post, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE status = 'posted' AND created_at < $1
		ORDER BY created_at DESC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return out, nil
}

// ExpirePending fails up to sweepBatch pending posts created before
// olderThan. Rows locked by an in-flight callback are skipped and picked up
// by a later sweep if still pending.
func (s *PostStore) ExpirePending(ctx context.Context, olderThan, at time.Time) ([]id.PostID, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		WITH stale AS (
			SELECT id FROM posts
			WHERE status = 'pending' AND created_at < $1
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE posts p
		SET status = 'failed', failure_reason = $2, updated_at = $3
		FROM stale
		WHERE p.id = stale.id
		RETURNING p.id`,
		olderThan, models.FailureExpired, at, sweepBatch)
	if err != nil {
		return nil, fmt.Errorf("expire pending posts: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("expire pending posts: %w", err)
	}
	out := make([]id.PostID, len(ids))
	for i, u := range ids {
		out[i] = id.PostID(u)
	}
	return out, nil
}

// AddLike must run inside a transaction so the like row and the counter
// move together.
func (s *PostStore) AddLike(ctx context.Context, postID id.PostID, userID id.UserID, at time.Time) (int, error) {
	exec := txcontext.Exec(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		INSERT INTO likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO NOTHING`,
		uuid.UUID(postID), uuid.UUID(userID), at)
	if err != nil {
		if pgplatform.IsForeignKeyViolation(err) {
			return 0, fmt.Errorf("add like: %w", sentinel.ErrNotFound)
		}
		return 0, fmt.Errorf("add like: %w", err)
	}
	return s.adjustLikes(ctx, exec, postID, res, 1)
}

func (s *PostStore) RemoveLike(ctx context.Context, postID id.PostID, userID id.UserID) (int, error) {
	exec := txcontext.Exec(ctx, s.db)
	res, err := exec.ExecContext(ctx,
		`DELETE FROM likes WHERE post_id = $1 AND user_id = $2`,
		uuid.UUID(postID), uuid.UUID(userID))
	if err != nil {
		return 0, fmt.Errorf("remove like: %w", err)
	}
	return s.adjustLikes(ctx, exec, postID, res, -1)
}

func (s *PostStore) adjustLikes(ctx context.Context, exec txcontext.Executor, postID id.PostID, res sql.Result, delta int) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("likes rows affected: %w", err)
	}
	if n == 0 {
		delta = 0
	}
	var count int
	err = exec.QueryRowContext(ctx,
		`UPDATE posts SET likes_count = likes_count + $2 WHERE id = $1 RETURNING likes_count`,
		uuid.UUID(postID), delta).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("update likes count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		p                     models.Post
		status                string
		prefsRaw, rulesRaw    []byte
		optsRaw, disclosedRaw []byte
		rewardType            int
	)
	err := row.Scan(
		(*uuid.UUID)(&p.ID), (*uuid.UUID)(&p.AuthorID), &p.Title, &p.Content,
		&status, &p.FailureReason,
		&prefsRaw, &rulesRaw, &optsRaw,
		&p.Reward.Enabled, &rewardType, &disclosedRaw, &p.LikesCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	p.Reward.Type = models.RewardType(rewardType)

	var prefs map[string]bool
	if err := json.Unmarshal(prefsRaw, &prefs); err != nil {
		return nil, fmt.Errorf("decode disclosure preferences: %w", err)
	}
	if p.DisclosurePreferences, err = identity.ParseDisclosurePreferences(prefs); err != nil {
		return nil, err
	}
	if p.Restriction, err = restriction.Decode(rulesRaw); err != nil {
		return nil, fmt.Errorf("decode allowed commenters: %w", err)
	}
	if err := json.Unmarshal(optsRaw, &p.VerifierOptions); err != nil {
		return nil, fmt.Errorf("decode verifier options: %w", err)
	}
	if len(disclosedRaw) > 0 {
		if err := json.Unmarshal(disclosedRaw, &p.DisclosedAttributes); err != nil {
			return nil, fmt.Errorf("decode disclosed attributes: %w", err)
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// casOutcome turns a zero-row compare-and-swap into the matching sentinel.
func casOutcome(ctx context.Context, exec txcontext.Executor, res sql.Result, table string, rowID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", table, err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	err = exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, rowID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func scanIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, u := range ids {
		out[i] = u.String()
	}
	return out
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
