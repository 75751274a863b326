package handler

import (
	"time"

	"sphere/internal/publication/models"
	"sphere/internal/publication/service"
	"sphere/internal/restriction"
)

// CreateResponse is the handoff returned by POST /posts and
// POST /posts/{postID}/comments. The client renders VerifierConfig as a QR
// code bound to Token.
type CreateResponse struct {
	Kind           string                `json:"kind"`
	PostID         string                `json:"post_id"`
	CommentID      string                `json:"comment_id,omitempty"`
	Status         string                `json:"status"`
	Token          string                `json:"token"`
	VerifierConfig models.VerifierConfig `json:"verifier_config"`
	ExpiresAt      time.Time             `json:"expires_at"`
}

func toCreateResponse(r *service.CreateResult) *CreateResponse {
	resp := &CreateResponse{
		Kind:           string(r.Kind),
		PostID:         r.PostID.String(),
		Status:         string(r.Status),
		Token:          r.Token,
		VerifierConfig: r.Config,
		ExpiresAt:      r.ExpiresAt,
	}
	if r.Kind == models.KindComment {
		resp.CommentID = r.CommentID.String()
	}
	return resp
}

type PostResponse struct {
	PostID              string                          `json:"post_id"`
	AuthorID            string                          `json:"user_id"`
	Title               string                          `json:"title"`
	Content             string                          `json:"content"`
	Status              string                          `json:"status"`
	DisclosedAttributes map[string]any                  `json:"disclosed_attributes"`
	AllowedCommenters   *restriction.CommentRestriction `json:"allowed_commenters"`
	RewardEnabled       bool                            `json:"reward_enabled"`
	RewardType          int                             `json:"reward_type,omitempty"`
	LikesCount          int                             `json:"likes_count"`
	CreatedAt           time.Time                       `json:"created_at"`
	Comments            []*CommentResponse              `json:"comments,omitempty"`
}

func toPostResponse(p *models.Post) *PostResponse {
	attrs := p.DisclosedAttributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &PostResponse{
		PostID:              p.ID.String(),
		AuthorID:            p.AuthorID.String(),
		Title:               p.Title,
		Content:             p.Content,
		Status:              string(p.Status),
		DisclosedAttributes: attrs,
		AllowedCommenters:   p.Restriction,
		RewardEnabled:       p.Reward.Enabled,
		RewardType:          int(p.Reward.Type),
		LikesCount:          p.LikesCount,
		CreatedAt:           p.CreatedAt,
	}
}

type CommentResponse struct {
	CommentID string    `json:"comment_id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentResponses(comments []*models.Comment) []*CommentResponse {
	out := make([]*CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, &CommentResponse{
			CommentID: c.ID.String(),
			PostID:    c.PostID.String(),
			AuthorID:  c.AuthorID.String(),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

type FeedResponse struct {
	Posts []*PostResponse `json:"posts"`
	// NextBefore is the cursor for the next page, empty on the last one.
	NextBefore string `json:"next_before,omitempty"`
}

type LikeResponse struct {
	PostID     string `json:"post_id"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likes_count"`
}

// VerifyResponse is returned to the verifier on a successful callback.
// VerificationOptions echoes the author's options for a post and the
// restriction enforced on a comment.
type VerifyResponse struct {
	Status              string                  `json:"status"`
	Result              bool                    `json:"result"`
	PostID              string                  `json:"post_id"`
	CommentID           string                  `json:"comment_id,omitempty"`
	CredentialSubject   map[string]string       `json:"credentialSubject,omitempty"`
	VerificationOptions *models.VerifierOptions `json:"verificationOptions,omitempty"`
}

func toVerifyResponse(o *service.VerifyOutcome) *VerifyResponse {
	resp := &VerifyResponse{
		Status: "success",
		Result: true,
		PostID: o.PostID.String(),
	}
	opts := o.VerifierOptions
	resp.VerificationOptions = &opts
	if o.Kind == models.KindComment {
		resp.CommentID = o.CommentID.String()
		return resp
	}
	resp.CredentialSubject = o.Subject
	return resp
}

type SessionStatusResponse struct {
	Token         string     `json:"token"`
	Kind          string     `json:"kind"`
	PostID        string     `json:"post_id"`
	CommentID     string     `json:"comment_id,omitempty"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func toSessionStatusResponse(s *service.SessionStatus) *SessionStatusResponse {
	resp := &SessionStatusResponse{
		Token:         s.Token,
		Kind:          string(s.Kind),
		PostID:        s.PostID.String(),
		Status:        string(s.Status),
		FailureReason: s.FailureReason,
	}
	if s.Kind == models.KindComment {
		resp.CommentID = s.CommentID.String()
	}
	if !s.ExpiresAt.IsZero() {
		expires := s.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}
