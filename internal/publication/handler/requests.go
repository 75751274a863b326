package handler

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"sphere/internal/publication/models"
	"sphere/internal/restriction"
	dErrors "sphere/pkg/domain-errors"
	platformstrings "sphere/pkg/platform/strings"
)

// maxPublicSignals bounds the callback payload; real proofs carry a few dozen.
const maxPublicSignals = 64

// CreatePostRequest is the HTTP request body for POST /posts.
type CreatePostRequest struct {
	Title               string                 `json:"title"`
	Content             string                 `json:"content"`
	DisclosedAttributes map[string]bool        `json:"disclosed_attributes"`
	AllowedCommenters   json.RawMessage        `json:"allowed_commenters"`
	VerifierOptions     VerifierOptionsRequest `json:"verifier_options"`
	RewardEnabled       bool                   `json:"reward_enabled"`
	RewardType          int                    `json:"reward_type"`

	restriction *restriction.CommentRestriction
}

type VerifierOptionsRequest struct {
	MinimumAge        int      `json:"minimumAge"`
	ExcludedCountries []string `json:"excludedCountries"`
	OFAC              bool     `json:"ofac"`
}

// Validate implements httputil.Validatable.
func (r *CreatePostRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if utf8.RuneCountInString(r.Title) > models.MaxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if utf8.RuneCountInString(r.Content) > models.MaxContentLength {
		return dErrors.New(dErrors.CodeValidation, "content is too long")
	}

	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}

	rules, err := restriction.Decode(r.AllowedCommenters)
	if err != nil {
		if de, ok := dErrors.As(err); ok {
			return dErrors.New(dErrors.CodeValidation, "allowed_commenters: "+de.Message)
		}
		return dErrors.New(dErrors.CodeValidation, "allowed_commenters is malformed")
	}
	if rules != nil {
		if err := rules.ValidateForCreate(); err != nil {
			return err
		}
	}
	r.restriction = rules
	r.VerifierOptions.ExcludedCountries = platformstrings.DedupeAndTrim(r.VerifierOptions.ExcludedCountries)

	if r.RewardEnabled && !models.RewardType(r.RewardType).Valid() {
		return dErrors.New(dErrors.CodeValidation, "reward_type must be 1 (first commenter) or 2 (participation)")
	}
	return nil
}

func (r *CreatePostRequest) Restriction() *restriction.CommentRestriction {
	return r.restriction
}

func (r *CreatePostRequest) Options() models.VerifierOptions {
	return models.VerifierOptions{
		MinimumAge:        r.VerifierOptions.MinimumAge,
		ExcludedCountries: r.VerifierOptions.ExcludedCountries,
		OFAC:              r.VerifierOptions.OFAC,
	}
}

func (r *CreatePostRequest) Reward() models.RewardConfig {
	return models.RewardConfig{Enabled: r.RewardEnabled, Type: models.RewardType(r.RewardType)}
}

// CreateCommentRequest is the HTTP request body for POST /posts/{postID}/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

func (r *CreateCommentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if utf8.RuneCountInString(r.Content) > models.MaxCommentLength {
		return dErrors.New(dErrors.CodeValidation, "content is too long")
	}
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	return nil
}

// VerifyRequest is the verifier callback body for POST /verify/post and
// POST /verify/comment.
type VerifyRequest struct {
	Proof         json.RawMessage `json:"proof"`
	PublicSignals []string        `json:"publicSignals"`
}

func (r *VerifyRequest) Validate() error {
	if r == nil || len(r.Proof) == 0 || string(r.Proof) == "null" || len(r.PublicSignals) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "proof and publicSignals are required")
	}
	if len(r.PublicSignals) > maxPublicSignals {
		return dErrors.New(dErrors.CodeBadRequest, "too many public signals")
	}
	return nil
}

func (r *VerifyRequest) Callback() models.Callback {
	return models.Callback{Proof: r.Proof, PublicSignals: r.PublicSignals}
}
