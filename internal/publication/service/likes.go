package service

import (
	"context"

	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/requestcontext"
)

type LikeResult struct {
	PostID     id.PostID
	Liked      bool
	LikesCount int
}

// LikePost records one like per (user, post). Repeating it is a no-op.
func (s *Service) LikePost(ctx context.Context, userID id.UserID, postID id.PostID) (*LikeResult, error) {
	return s.setLike(ctx, userID, postID, true)
}

// UnlikePost removes the user's like, if any.
func (s *Service) UnlikePost(ctx context.Context, userID id.UserID, postID id.PostID) (*LikeResult, error) {
	return s.setLike(ctx, userID, postID, false)
}

func (s *Service) setLike(ctx context.Context, userID id.UserID, postID id.PostID, liked bool) (*LikeResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := s.visiblePost(ctx, postID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var count int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if liked {
			count, err = s.posts.AddLike(ctx, postID, userID, now)
		} else {
			count, err = s.posts.RemoveLike(ctx, postID, userID)
		}
		return err
	})
	if err != nil {
		return nil, translateCreateError(err, "post not found", "failed to update like")
	}

	event := audit.EventPostLiked
	if !liked {
		event = audit.EventPostUnliked
	}
	s.logAudit(ctx, event,
		"user_id", userID,
		"post_id", postID,
	)
	return &LikeResult{PostID: postID, Liked: liked, LikesCount: count}, nil
}
