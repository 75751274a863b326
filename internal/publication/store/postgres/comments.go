package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pgplatform "sphere/internal/platform/postgres"
	"sphere/internal/publication/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
	txcontext "sphere/pkg/platform/tx"
)

const commentColumns = `id, post_id, author_id, content, status, failure_reason, created_at, updated_at`

type CommentStore struct {
	db *sql.DB
}

func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

func (s *CommentStore) Create(ctx context.Context, c *models.Comment) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(c.ID), uuid.UUID(c.PostID), uuid.UUID(c.AuthorID), c.Content,
		string(c.Status), c.FailureReason, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		switch {
		case pgplatform.IsUniqueViolation(err, ""):
			return fmt.Errorf("insert comment: %w", sentinel.ErrConflict)
		case pgplatform.IsForeignKeyViolation(err):
			return fmt.Errorf("insert comment: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *CommentStore) FindByID(ctx context.Context, commentID id.CommentID) (*models.Comment, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, uuid.UUID(commentID))
	c, err := scanComment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

// FailPendingByAuthor locks the author's pending comments on the post and
// fails them. Call it inside the transaction that inserts the replacement.
func (s *CommentStore) FailPendingByAuthor(ctx context.Context, postID id.PostID, authorID id.UserID, reason string, at time.Time) ([]id.CommentID, error) {
	exec := txcontext.Exec(ctx, s.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id FROM comments
		WHERE post_id = $1 AND author_id = $2 AND status = 'pending'
		FOR UPDATE`,
		uuid.UUID(postID), uuid.UUID(authorID))
	if err != nil {
		return nil, fmt.Errorf("lock pending comments: %w", err)
	}
	locked, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("lock pending comments: %w", err)
	}
	if len(locked) == 0 {
		return nil, nil
	}

	rows, err = exec.QueryContext(ctx, `
		UPDATE comments SET status = 'failed', failure_reason = $2, updated_at = $3
		WHERE id = ANY($1) AND status = 'pending'
		RETURNING id`,
		pq.Array(uuidStrings(locked)), reason, at)
	if err != nil {
		return nil, fmt.Errorf("fail pending comments: %w", err)
	}
	failed, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("fail pending comments: %w", err)
	}
	out := make([]id.CommentID, len(failed))
	for i, u := range failed {
		out[i] = id.CommentID(u)
	}
	return out, nil
}

func (s *CommentStore) Transition(ctx context.Context, commentID id.CommentID, t models.Transition) error {
	if err := t.Validate(models.StatusPending); err != nil {
		return err
	}
	exec := txcontext.Exec(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE comments SET status = $2, failure_reason = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending'`,
		uuid.UUID(commentID), string(t.To), t.FailureReason, t.At)
	if err != nil {
		return fmt.Errorf("transition comment: %w", err)
	}
	return casOutcome(ctx, exec, res, "comments", uuid.UUID(commentID))
}

func (s *CommentStore) ListPostedByPost(ctx context.Context, postID id.PostID) ([]*models.Comment, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+commentColumns+` FROM comments
		WHERE post_id = $1 AND status = 'posted'
		ORDER BY created_at`, uuid.UUID(postID))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}

func (s *CommentStore) ExpirePending(ctx context.Context, olderThan, at time.Time) ([]id.CommentID, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		WITH stale AS (
			SELECT id FROM comments
			WHERE status = 'pending' AND created_at < $1
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE comments c
		SET status = 'failed', failure_reason = $2, updated_at = $3
		FROM stale
		WHERE c.id = stale.id
		RETURNING c.id`,
		olderThan, models.FailureExpired, at, sweepBatch)
	if err != nil {
		return nil, fmt.Errorf("expire pending comments: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("expire pending comments: %w", err)
	}
	out := make([]id.CommentID, len(ids))
	for i, u := range ids {
		out[i] = id.CommentID(u)
	}
	return out, nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var (
		c      models.Comment
		status string
	)
	err := row.Scan(
		(*uuid.UUID)(&c.ID), (*uuid.UUID)(&c.PostID), (*uuid.UUID)(&c.AuthorID),
		&c.Content, &status, &c.FailureReason, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
