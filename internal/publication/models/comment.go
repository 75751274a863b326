package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
)

const MaxCommentLength = 10000

// Comment is a reply to a post, gated on the commenter proving they meet the
// post's restriction.
type Comment struct {
	ID            id.CommentID
	PostID        id.PostID
	AuthorID      id.UserID
	Content       string
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPendingComment(commentID id.CommentID, postID id.PostID, authorID id.UserID, content string, now time.Time) (*Comment, error) {
	if commentID.IsNil() || postID.IsNil() || authorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "comment, post and author IDs are required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, dErrors.New(dErrors.CodeValidation, "content is too long")
	}
	return &Comment{
		ID:        commentID,
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Comment) IsVisible() bool {
	return c.Status == StatusPosted
}

func (c *Comment) Apply(t Transition) error {
	if err := t.Validate(c.Status); err != nil {
		return err
	}
	c.Status = t.To
	c.FailureReason = t.FailureReason
	c.UpdatedAt = t.At
	return nil
}
