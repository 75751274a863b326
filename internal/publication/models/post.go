package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"sphere/internal/identity"
	"sphere/internal/restriction"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
)

const (
	MaxTitleLength   = 300
	MaxContentLength = 40000
	maxVerifierAge   = 150
)

// RewardType selects how commenters on a post are rewarded.
type RewardType int

const (
	RewardNone RewardType = 0
	// RewardFirstCommenter pays only the first verified commenter.
	RewardFirstCommenter RewardType = 1
	// RewardParticipation pays every verified comment.
	RewardParticipation RewardType = 2
)

func (t RewardType) Valid() bool {
	return t == RewardFirstCommenter || t == RewardParticipation
}

type RewardConfig struct {
	Enabled bool       `json:"enabled"`
	Type    RewardType `json:"type"`
}

// VerifierOptions are the author's own constraints on the proof that
// publishes the post.
type VerifierOptions struct {
	MinimumAge        int      `json:"minimumAge,omitempty"`
	ExcludedCountries []string `json:"excludedCountries,omitempty"`
	OFAC              bool     `json:"ofac,omitempty"`
}

func (o VerifierOptions) Validate() error {
	if o.MinimumAge < 0 || o.MinimumAge > maxVerifierAge {
		return dErrors.New(dErrors.CodeValidation, "verifier minimum age out of range")
	}
	for _, c := range o.ExcludedCountries {
		if len(c) != 3 || strings.ToUpper(c) != c {
			return dErrors.New(dErrors.CodeValidation, "excluded countries must be ISO 3166 alpha-3 codes")
		}
	}
	return nil
}

// AsRestriction expresses the options as restriction predicates so the
// verifier's answer can be re-checked locally. Nil when no option applies.
func (o VerifierOptions) AsRestriction() *restriction.CommentRestriction {
	r := restriction.CommentRestriction{MinimumAge: o.MinimumAge}
	if len(o.ExcludedCountries) > 0 {
		r.Nationality = &restriction.NationalityRule{
			Mode:      restriction.NationalityExclude,
			Countries: append([]string(nil), o.ExcludedCountries...),
		}
	}
	if r.IsEmpty() {
		return nil
	}
	return &r
}

// Post is a forum post whose publication waits on identity verification.
//
// Invariants:
//   - Title and Content are non-empty and bounded
//   - Restriction, when set, passed restriction.ValidateForCreate
//   - DisclosedAttributes is only set on posted posts and only holds
//     attributes both disclosed by preference and present in the claim
type Post struct {
	ID                    id.PostID
	AuthorID              id.UserID
	Title                 string
	Content               string
	Status                Status
	FailureReason         string
	DisclosurePreferences identity.DisclosurePreferences
	Restriction           *restriction.CommentRestriction
	VerifierOptions       VerifierOptions
	Reward                RewardConfig
	DisclosedAttributes   map[string]any
	LikesCount            int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewPendingPost validates input and returns a post awaiting verification.
func NewPendingPost(
	postID id.PostID,
	authorID id.UserID,
	title, content string,
	prefs identity.DisclosurePreferences,
	rules *restriction.CommentRestriction,
	opts VerifierOptions,
	reward RewardConfig,
	now time.Time,
) (*Post, error) {
	if postID.IsNil() || authorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "post and author IDs are required")
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if content == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, dErrors.New(dErrors.CodeValidation, "content is too long")
	}
	if rules != nil {
		if err := rules.ValidateForCreate(); err != nil {
			return nil, err
		}
		if rules.IsEmpty() {
			rules = nil
		}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if reward.Enabled && !reward.Type.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "reward type must be 1 (first commenter) or 2 (participation)")
	}
	if !reward.Enabled {
		reward.Type = RewardNone
	}
	if prefs == nil {
		prefs = identity.DefaultDisclosurePreferences()
	}

	return &Post{
		ID:                    postID,
		AuthorID:              authorID,
		Title:                 title,
		Content:               content,
		Status:                StatusPending,
		DisclosurePreferences: prefs,
		Restriction:           rules,
		VerifierOptions:       opts,
		Reward:                reward,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// IsVisible reports whether readers may see the post.
func (p *Post) IsVisible() bool {
	return p.Status == StatusPosted
}

// Apply performs t on an in-memory copy of the post. Stores call it after
// their own compare-and-swap on the pending status.
func (p *Post) Apply(t Transition) error {
	if err := t.Validate(p.Status); err != nil {
		return err
	}
	p.Status = t.To
	p.FailureReason = t.FailureReason
	if t.To == StatusPosted {
		p.DisclosedAttributes = t.DisclosedAttributes
	}
	p.UpdatedAt = t.At
	return nil
}
