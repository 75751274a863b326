package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"sphere/internal/publication/models"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/sentinel"
	"sphere/pkg/requestcontext"
)

// PostDetails is a posted post with its posted comments.
type PostDetails struct {
	Post     *models.Post
	Comments []*models.Comment
}

// SessionStatus reports where a verification stands, for clients polling
// after showing the QR code.
type SessionStatus struct {
	Token         string
	Kind          models.Kind
	PostID        id.PostID
	CommentID     id.CommentID
	Status        models.Status
	FailureReason string
	ExpiresAt     time.Time
}

// GetPost returns a posted post and its posted comments. Pending and failed
// posts are reported as not found.
func (s *Service) GetPost(ctx context.Context, postID id.PostID) (*PostDetails, error) {
	var (
		post     *models.Post
		comments []*models.Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		post, err = s.visiblePost(gctx, postID)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = s.comments.ListPostedByPost(gctx, postID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load comments")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &PostDetails{Post: post, Comments: comments}, nil
}

// ListFeed returns posted posts newest first, created strictly before
// before (zero means now).
func (s *Service) ListFeed(ctx context.Context, limit int, before time.Time) ([]*models.Post, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	if before.IsZero() {
		before = requestcontext.Now(ctx).Add(time.Nanosecond)
	}
	posts, err := s.posts.ListPosted(ctx, limit, before)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list posts")
	}
	return posts, nil
}

// ListComments returns the posted comments of a posted post, oldest first.
func (s *Service) ListComments(ctx context.Context, postID id.PostID) ([]*models.Comment, error) {
	if _, err := s.visiblePost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListPostedByPost(ctx, postID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load comments")
	}
	return comments, nil
}

// SessionStatus resolves a correlation token. Once the session is gone the
// entity's own status answers.
func (s *Service) SessionStatus(ctx context.Context, token string) (*SessionStatus, error) {
	session, err := s.sessions.Get(ctx, token)
	switch {
	case err == nil:
		return s.statusFromSession(ctx, session)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification session store unavailable")
	}

	if postID, perr := id.ParsePostID(token); perr == nil {
		post, err := s.posts.FindByID(ctx, postID)
		if err == nil {
			return &SessionStatus{Token: token, Kind: models.KindPost, PostID: post.ID, Status: post.Status, FailureReason: post.FailureReason}, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load post")
		}
	}
	if commentID, cerr := id.ParseCommentID(token); cerr == nil {
		comment, err := s.comments.FindByID(ctx, commentID)
		if err == nil {
			return &SessionStatus{Token: token, Kind: models.KindComment, PostID: comment.PostID, CommentID: comment.ID, Status: comment.Status, FailureReason: comment.FailureReason}, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load comment")
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
}

func (s *Service) statusFromSession(ctx context.Context, session *models.VerificationSession) (*SessionStatus, error) {
	out := &SessionStatus{
		Token:     session.Token,
		Kind:      session.Kind,
		PostID:    session.PostID,
		CommentID: session.CommentID,
		ExpiresAt: session.ExpiresAt,
	}
	if session.Kind == models.KindComment {
		comment, err := s.loadComment(ctx, session.CommentID)
		if err != nil {
			return nil, err
		}
		out.Status, out.FailureReason = comment.Status, comment.FailureReason
		return out, nil
	}
	post, err := s.loadPost(ctx, session.PostID)
	if err != nil {
		return nil, err
	}
	out.Status, out.FailureReason = post.Status, post.FailureReason
	return out, nil
}

func (s *Service) loadPost(ctx context.Context, postID id.PostID) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "post not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load post")
	}
	return post, nil
}

func (s *Service) loadComment(ctx context.Context, commentID id.CommentID) (*models.Comment, error) {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "comment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load comment")
	}
	return comment, nil
}

// visiblePost loads a post readers may see.
func (s *Service) visiblePost(ctx context.Context, postID id.PostID) (*models.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsVisible() {
		return nil, dErrors.New(dErrors.CodeNotFound, "post not found")
	}
	return post, nil
}
