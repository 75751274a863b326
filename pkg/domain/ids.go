package domain

import (
	"github.com/google/uuid"

	dErrors "sphere/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a PostID can never be passed where a
// CommentID is expected.
type (
	UserID    uuid.UUID
	PostID    uuid.UUID
	CommentID uuid.UUID
	RewardID  uuid.UUID
)

// parseUUID is the single trust-boundary parser for every ID type.
// Invariant: the result is a well-formed, non-nil UUID.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParsePostID(s string) (PostID, error) {
	u, err := parseUUID(s, "post ID")
	return PostID(u), err
}

func ParseCommentID(s string) (CommentID, error) {
	u, err := parseUUID(s, "comment ID")
	return CommentID(u), err
}

func ParseRewardID(s string) (RewardID, error) {
	u, err := parseUUID(s, "reward ID")
	return RewardID(u), err
}

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewPostID() PostID       { return PostID(uuid.New()) }
func NewCommentID() CommentID { return CommentID(uuid.New()) }
func NewRewardID() RewardID   { return RewardID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id PostID) String() string    { return uuid.UUID(id).String() }
func (id CommentID) String() string { return uuid.UUID(id).String() }
func (id RewardID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PostID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CommentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RewardID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps IDs as canonical UUID strings in JSON and Redis.

func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id PostID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id CommentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id RewardID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error    { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *PostID) UnmarshalText(b []byte) error    { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *CommentID) UnmarshalText(b []byte) error { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *RewardID) UnmarshalText(b []byte) error  { return unmarshalUUID(b, (*uuid.UUID)(id)) }

func unmarshalUUID(b []byte, dst *uuid.UUID) error {
	if len(b) == 0 {
		*dst = uuid.Nil
		return nil
	}
	return dst.UnmarshalText(b)
}
