package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"sphere/internal/identity"
	"sphere/internal/publication/models"
	"sphere/internal/restriction"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/platform/sentinel"
	"sphere/pkg/requestcontext"
)

type CreatePostCommand struct {
	AuthorID        id.UserID
	Title           string
	Content         string
	Disclosures     map[string]bool
	Restriction     *restriction.CommentRestriction
	VerifierOptions models.VerifierOptions
	Reward          models.RewardConfig
}

type CreateCommentCommand struct {
	AuthorID id.UserID
	PostID   id.PostID
	Content  string
}

// CreateResult is the handoff the client needs to start verification: the
// token bound into the proof and the verifier config to render.
type CreateResult struct {
	Kind      models.Kind
	PostID    id.PostID
	CommentID id.CommentID
	Status    models.Status
	Token     string
	Config    models.VerifierConfig
	ExpiresAt time.Time
}

// CreatePost stores a pending post and mints its verification session. Any
// earlier pending post of the same author is failed as superseded in the
// same transaction.
func (s *Service) CreatePost(ctx context.Context, cmd CreatePostCommand) (*CreateResult, error) {
	if cmd.AuthorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	now := requestcontext.Now(ctx)

	prefs, err := identity.ParseDisclosurePreferences(cmd.Disclosures)
	if err != nil {
		return nil, err
	}
	post, err := models.NewPendingPost(id.NewPostID(), cmd.AuthorID, cmd.Title, cmd.Content,
		prefs, cmd.Restriction, cmd.VerifierOptions, cmd.Reward, now)
	if err != nil {
		return nil, asValidation(err)
	}

	var superseded []id.PostID
	err = s.createInTx(ctx, func(ctx context.Context) error {
		ids, err := s.posts.FailPendingByAuthor(ctx, post.AuthorID, models.FailureSuperseded, now)
		if err != nil {
			return err
		}
		if err := s.posts.Create(ctx, post); err != nil {
			return err
		}
		superseded = ids
		return nil
	})
	if err != nil {
		return nil, translateCreateError(err, "author not found", "failed to create post")
	}
	for _, prev := range superseded {
		s.dropSession(ctx, prev.String())
		s.incrementTransition(models.KindPost, models.StatusFailed)
		s.logAudit(ctx, audit.EventPendingSuperseded,
			"user_id", post.AuthorID,
			"post_id", prev,
			"status", models.StatusFailed,
			"reason", models.FailureSuperseded,
		)
	}
	s.incrementCreated(models.KindPost)
	s.logAudit(ctx, audit.EventPostCreated,
		"user_id", post.AuthorID,
		"post_id", post.ID,
		"status", post.Status,
	)

	session := s.newSession(models.KindPost, post.ID, id.CommentID{}, post.AuthorID, now, models.VerifierConfig{
		Scope:             s.cfg.PostScope,
		Endpoint:          s.callbackURL(models.KindPost),
		Token:             post.ID.String(),
		MinimumAge:        post.VerifierOptions.MinimumAge,
		ExcludedCountries: post.VerifierOptions.ExcludedCountries,
		OFAC:              post.VerifierOptions.OFAC,
		Disclosures:       post.DisclosurePreferences.Map(),
	})
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logError(ctx, "failed to save verification session",
			"post_id", post.ID,
			"error", err,
		)
		_ = s.transitionPost(ctx, post, models.Failed(models.FailureSessionStoreError, now), audit.EventPostFailed)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification is temporarily unavailable")
	}

	return &CreateResult{
		Kind:      models.KindPost,
		PostID:    post.ID,
		Status:    post.Status,
		Token:     session.Token,
		Config:    session.Config,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// CreateComment stores a pending comment on a posted post. The author's
// earlier pending comments on that post are failed as superseded in the same
// transaction, so at most one pending comment exists per (author, post).
func (s *Service) CreateComment(ctx context.Context, cmd CreateCommentCommand) (*CreateResult, error) {
	if cmd.AuthorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if cmd.PostID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "post id is required")
	}
	now := requestcontext.Now(ctx)

	post, err := s.visiblePost(ctx, cmd.PostID)
	if err != nil {
		return nil, err
	}
	comment, err := models.NewPendingComment(id.NewCommentID(), post.ID, cmd.AuthorID, cmd.Content, now)
	if err != nil {
		return nil, asValidation(err)
	}

	var superseded []id.CommentID
	err = s.createInTx(ctx, func(ctx context.Context) error {
		ids, err := s.comments.FailPendingByAuthor(ctx, post.ID, comment.AuthorID, models.FailureSuperseded, now)
		if err != nil {
			return err
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			return err
		}
		superseded = ids
		return nil
	})
	if err != nil {
		return nil, translateCreateError(err, "post not found", "failed to create comment")
	}
	for _, prev := range superseded {
		s.dropSession(ctx, prev.String())
		s.incrementTransition(models.KindComment, models.StatusFailed)
		s.logAudit(ctx, audit.EventPendingSuperseded,
			"user_id", comment.AuthorID,
			"post_id", post.ID,
			"comment_id", prev,
			"status", models.StatusFailed,
			"reason", models.FailureSuperseded,
		)
	}
	s.incrementCreated(models.KindComment)
	s.logAudit(ctx, audit.EventCommentCreated,
		"user_id", comment.AuthorID,
		"post_id", post.ID,
		"comment_id", comment.ID,
		"status", comment.Status,
	)

	session := s.newSession(models.KindComment, post.ID, comment.ID, comment.AuthorID, now, commentVerifierConfig(post.Restriction))
	session.Config.Scope = s.cfg.CommentScope
	session.Config.Endpoint = s.callbackURL(models.KindComment)
	session.Config.Token = comment.ID.String()
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logError(ctx, "failed to save verification session",
			"comment_id", comment.ID,
			"error", err,
		)
		_ = s.transitionComment(ctx, comment, models.Failed(models.FailureSessionStoreError, now), audit.EventCommentFailed)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification is temporarily unavailable")
	}

	return &CreateResult{
		Kind:      models.KindComment,
		PostID:    post.ID,
		CommentID: comment.ID,
		Status:    comment.Status,
		Token:     session.Token,
		Config:    session.Config,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// commentVerifierConfig asks the verifier to enforce what it can natively and
// to disclose every attribute the restriction checks, so the claim can be
// re-evaluated on callback.
func commentVerifierConfig(r *restriction.CommentRestriction) models.VerifierConfig {
	cfg := models.VerifierConfig{}
	need := identity.DisclosurePreferences{}
	if r != nil {
		if r.Nationality != nil {
			need[identity.AttrNationality] = true
			if country, ok := r.AllowedNationality(); ok {
				cfg.Nationality = country
			}
			cfg.ExcludedCountries = r.ExcludedCountries()
		}
		if r.Gender != "" {
			need[identity.AttrGender] = true
		}
		if r.MinimumAge > 0 {
			need[identity.AttrDateOfBirth] = true
			cfg.MinimumAge = r.MinimumAge
		}
		if r.IssuingState != "" {
			need[identity.AttrIssuingState] = true
		}
	}
	cfg.Disclosures = need.Map()
	return cfg
}

func (s *Service) newSession(kind models.Kind, postID id.PostID, commentID id.CommentID, authorID id.UserID, now time.Time, cfg models.VerifierConfig) *models.VerificationSession {
	token := postID.String()
	if kind == models.KindComment {
		token = commentID.String()
	}
	return &models.VerificationSession{
		Token:     token,
		Kind:      kind,
		PostID:    postID,
		CommentID: commentID,
		AuthorID:  authorID,
		Config:    cfg,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.PendingTTL),
	}
}

func (s *Service) callbackURL(kind models.Kind) string {
	return strings.TrimRight(s.cfg.PublicEndpoint, "/") + "/verify/" + string(kind)
}

// createInTx retries fn when a concurrent create for the same author won the
// race on the single-pending index.
func (s *Service) createInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		err = s.tx.RunInTx(ctx, fn)
		if !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
	}
	return err
}

func translateCreateError(err error, notFoundMsg, internalMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "another verification is being started; retry")
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

// asValidation converts constructor invariant violations into validation
// errors for the API response.
func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
