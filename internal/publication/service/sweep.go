package service

import (
	"context"
	"time"

	"sphere/internal/publication/models"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/requestcontext"
)

type SweepResult struct {
	Posts    []id.PostID
	Comments []id.CommentID
}

func (r *SweepResult) Total() int {
	return len(r.Posts) + len(r.Comments)
}

// SweepExpired fails every entity still pending since before olderThan and
// drops its session.
func (s *Service) SweepExpired(ctx context.Context, olderThan time.Time) (*SweepResult, error) {
	now := requestcontext.Now(ctx)

	posts, err := s.posts.ExpirePending(ctx, olderThan, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire pending posts")
	}
	for _, postID := range posts {
		s.dropSession(ctx, postID.String())
		s.incrementTransition(models.KindPost, models.StatusFailed)
		s.logAudit(ctx, audit.EventPendingExpired,
			"post_id", postID,
			"status", models.StatusFailed,
			"reason", models.FailureExpired,
		)
	}

	comments, err := s.comments.ExpirePending(ctx, olderThan, now)
	if err != nil {
		return &SweepResult{Posts: posts}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire pending comments")
	}
	for _, commentID := range comments {
		s.dropSession(ctx, commentID.String())
		s.incrementTransition(models.KindComment, models.StatusFailed)
		s.logAudit(ctx, audit.EventPendingExpired,
			"comment_id", commentID,
			"status", models.StatusFailed,
			"reason", models.FailureExpired,
		)
	}

	result := &SweepResult{Posts: posts, Comments: comments}
	if s.metrics != nil {
		s.metrics.AddExpired(result.Total())
	}
	return result, nil
}
