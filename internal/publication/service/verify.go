package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"sphere/internal/identity"
	"sphere/internal/publication/models"
	"sphere/internal/restriction"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/platform/sentinel"
	"sphere/pkg/requestcontext"
)

var (
	errAlreadyProcessed = dErrors.New(dErrors.CodeConflict, "verification already processed")
	errSessionMissing   = dErrors.New(dErrors.CodeNotFound, "verification session not found or expired")
	errNotEligible      = dErrors.New(dErrors.CodeNotEligible, "does not meet posting requirements")
)

// VerifyOutcome describes an entity that reached posted. Failed verifications
// are returned as errors instead.
type VerifyOutcome struct {
	Kind      models.Kind
	PostID    id.PostID
	CommentID id.CommentID
	Status    models.Status
	// Subject is the response view of the claim: every attribute, with
	// withheld ones replaced by identity.NotDisclosed. Posts only.
	Subject map[string]string
	// VerifierOptions are the author's options for a post and the enforced
	// comment restriction's minimum age for a comment.
	VerifierOptions models.VerifierOptions
}

// VerifyPost handles the verifier callback for a pending post.
func (s *Service) VerifyPost(ctx context.Context, cb models.Callback) (*VerifyOutcome, error) {
	return s.verify(ctx, models.KindPost, cb)
}

// VerifyComment handles the verifier callback for a pending comment and
// re-evaluates the post's restriction against the returned claim.
func (s *Service) VerifyComment(ctx context.Context, cb models.Callback) (*VerifyOutcome, error) {
	return s.verify(ctx, models.KindComment, cb)
}

func (s *Service) verify(ctx context.Context, kind models.Kind, cb models.Callback) (out *VerifyOutcome, err error) {
	ctx, span := s.tracer.Start(ctx, "publication.verify_"+string(kind))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}()

	if len(cb.Proof) == 0 || len(cb.PublicSignals) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "proof and publicSignals are required")
	}
	token, err := s.verifier.CorrelationToken(ctx, cb.PublicSignals)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "public signals carry no correlation token")
	}
	span.SetAttributes(
		attribute.String("sphere.kind", string(kind)),
		attribute.String("sphere.token", token),
	)
	now := requestcontext.Now(ctx)

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.failWithoutSession(ctx, kind, token, now)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification session store unavailable")
	}
	if session.Kind != kind {
		return nil, dErrors.New(dErrors.CodeBadRequest, "token belongs to a "+string(session.Kind)+" verification")
	}
	if session.Expired(now) {
		return nil, s.failWithoutSession(ctx, kind, token, now)
	}

	if kind == models.KindPost {
		return s.verifyPost(ctx, session, cb, now)
	}
	return s.verifyComment(ctx, session, cb, now)
}

func (s *Service) verifyPost(ctx context.Context, session *models.VerificationSession, cb models.Callback, now time.Time) (*VerifyOutcome, error) {
	post, err := s.loadPost(ctx, session.PostID)
	if err != nil {
		return nil, err
	}
	if post.Status.IsTerminal() {
		return nil, s.replayed(ctx, session, post.AuthorID, post.Status)
	}

	claim, reason, err := s.checkProof(ctx, session, cb)
	if err != nil {
		if terr := s.transitionPost(ctx, post, models.Failed(reason, now), audit.EventPostFailed); terr != nil {
			return nil, terr
		}
		s.dropSession(ctx, session.Token)
		return nil, err
	}

	// The verifier enforces the author's options; check them again locally.
	if decision := restriction.EvaluateOptional(post.VerifierOptions.AsRestriction(), claim, now, restriction.MissingClaimAllow); !decision.Allowed {
		s.incrementDenial(decision.Reason)
		if terr := s.transitionPost(ctx, post, models.Failed(string(decision.Reason), now), audit.EventPostFailed); terr != nil {
			return nil, terr
		}
		s.dropSession(ctx, session.Token)
		return nil, errNotEligible
	}

	public := identity.FilterForPublication(claim, post.DisclosurePreferences, now)
	if err := s.transitionPost(ctx, post, models.Posted(public.Persisted(), now), audit.EventPostPosted); err != nil {
		return nil, err
	}
	s.dropSession(ctx, session.Token)

	return &VerifyOutcome{
		Kind:            models.KindPost,
		PostID:          post.ID,
		Status:          post.Status,
		Subject:         identity.RedactForResponse(claim, post.DisclosurePreferences),
		VerifierOptions: post.VerifierOptions,
	}, nil
}

func (s *Service) verifyComment(ctx context.Context, session *models.VerificationSession, cb models.Callback, now time.Time) (*VerifyOutcome, error) {
	comment, err := s.loadComment(ctx, session.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.Status.IsTerminal() {
		return nil, s.replayed(ctx, session, comment.AuthorID, comment.Status)
	}
	post, err := s.loadPost(ctx, comment.PostID)
	if err != nil {
		return nil, err
	}

	claim, reason, err := s.checkProof(ctx, session, cb)
	if err != nil {
		if terr := s.transitionComment(ctx, comment, models.Failed(reason, now), audit.EventCommentFailed); terr != nil {
			return nil, terr
		}
		s.dropSession(ctx, session.Token)
		return nil, err
	}

	decision := restriction.EvaluateOptional(post.Restriction, claim, now, s.policy)
	if !decision.Allowed {
		s.incrementDenial(decision.Reason)
		if terr := s.transitionComment(ctx, comment, models.Failed(string(decision.Reason), now), audit.EventCommentDenied); terr != nil {
			return nil, terr
		}
		s.dropSession(ctx, session.Token)
		return nil, errNotEligible
	}

	if err := s.transitionComment(ctx, comment, models.Posted(nil, now), audit.EventCommentPosted); err != nil {
		return nil, err
	}
	s.dropSession(ctx, session.Token)
	s.notifyReward(ctx, post, comment)

	enforced := models.VerifierOptions{}
	if post.Restriction != nil {
		enforced.MinimumAge = post.Restriction.MinimumAge
	}
	return &VerifyOutcome{
		Kind:            models.KindComment,
		PostID:          post.ID,
		CommentID:       comment.ID,
		Status:          comment.Status,
		VerifierOptions: enforced,
	}, nil
}

// checkProof asks the verifier about the proof and validates the claim it
// returns. On failure it returns the failure reason to record on the entity
// and the error for the caller.
func (s *Service) checkProof(ctx context.Context, session *models.VerificationSession, cb models.Callback) (identity.Claim, string, error) {
	start := time.Now()
	result, err := s.verifier.Verify(ctx, models.VerifyRequest{
		Proof:         cb.Proof,
		PublicSignals: cb.PublicSignals,
		Config:        session.Config,
	})
	s.observeVerifier(start)
	if err != nil {
		s.logWarn(ctx, "verifier call failed",
			"token", session.Token,
			"kind", session.Kind,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return identity.Claim{}, models.FailureVerifierError, dErrors.Wrap(err, dErrors.CodeVerificationFailed, "proof verification failed")
	}
	if result == nil || !result.IsValid {
		return identity.Claim{}, models.FailureProofInvalid, dErrors.New(dErrors.CodeVerificationFailed, "proof is not valid")
	}
	if err := result.CredentialSubject.Validate(); err != nil {
		return identity.Claim{}, models.FailureInvalidClaim, dErrors.New(dErrors.CodeVerificationFailed, "verifier returned a malformed claim")
	}
	return result.CredentialSubject, "", nil
}

// failWithoutSession fails a still-pending entity whose session is gone, so a
// proof can never publish it later.
func (s *Service) failWithoutSession(ctx context.Context, kind models.Kind, token string, now time.Time) error {
	switch kind {
	case models.KindPost:
		postID, err := id.ParsePostID(token)
		if err != nil {
			return errSessionMissing
		}
		post, err := s.loadPost(ctx, postID)
		if err != nil {
			return err
		}
		if post.Status.IsTerminal() {
			return s.replayed(ctx, &models.VerificationSession{Token: token, Kind: kind, PostID: post.ID}, post.AuthorID, post.Status)
		}
		if err := s.transitionPost(ctx, post, models.Failed(models.FailureSessionMissing, now), audit.EventPostFailed); err != nil {
			return err
		}
	case models.KindComment:
		commentID, err := id.ParseCommentID(token)
		if err != nil {
			return errSessionMissing
		}
		comment, err := s.loadComment(ctx, commentID)
		if err != nil {
			return err
		}
		if comment.Status.IsTerminal() {
			return s.replayed(ctx, &models.VerificationSession{Token: token, Kind: kind, PostID: comment.PostID, CommentID: comment.ID}, comment.AuthorID, comment.Status)
		}
		if err := s.transitionComment(ctx, comment, models.Failed(models.FailureSessionMissing, now), audit.EventCommentFailed); err != nil {
			return err
		}
	}
	s.dropSession(ctx, token)
	return errSessionMissing
}

// replayed records a callback for an entity that is already terminal. The
// entity is left untouched.
func (s *Service) replayed(ctx context.Context, session *models.VerificationSession, authorID id.UserID, status models.Status) error {
	args := []any{
		"user_id", authorID,
		"post_id", session.PostID,
		"token", session.Token,
		"status", status,
	}
	if session.Kind == models.KindComment {
		args = append(args, "comment_id", session.CommentID)
	}
	s.logAudit(ctx, audit.EventVerificationReplayed, args...)
	s.dropSession(ctx, session.Token)
	return errAlreadyProcessed
}

// notifyReward runs detached from the callback request. Request values
// survive; the deadline is replaced by the reward timeout.
func (s *Service) notifyReward(ctx context.Context, post *models.Post, comment *models.Comment) {
	if s.rewards == nil || !post.Reward.Enabled {
		return
	}
	postID, authorID, rewardType := post.ID, comment.AuthorID, post.Reward.Type
	commentID := comment.ID
	s.background.Go(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rewardTimeout)
		defer cancel()
		if err := s.rewards.NotifyEligibleForReward(ctx, postID, authorID, rewardType); err != nil {
			s.logError(ctx, "reward notification failed",
				"post_id", postID,
				"comment_id", commentID,
				"user_id", authorID,
				"error", err,
			)
		}
	})
}

func (s *Service) transitionPost(ctx context.Context, post *models.Post, t models.Transition, event audit.AuditEvent) error {
	if err := s.posts.Transition(ctx, post.ID, t); err != nil {
		return translateTransitionError(err, "post not found", "failed to update post status")
	}
	_ = post.Apply(t)
	s.incrementTransition(models.KindPost, t.To)
	s.logAudit(ctx, event,
		"user_id", post.AuthorID,
		"post_id", post.ID,
		"status", t.To,
		"reason", t.FailureReason,
	)
	return nil
}

func (s *Service) transitionComment(ctx context.Context, comment *models.Comment, t models.Transition, event audit.AuditEvent) error {
	if err := s.comments.Transition(ctx, comment.ID, t); err != nil {
		return translateTransitionError(err, "comment not found", "failed to update comment status")
	}
	_ = comment.Apply(t)
	s.incrementTransition(models.KindComment, t.To)
	s.logAudit(ctx, event,
		"user_id", comment.AuthorID,
		"post_id", comment.PostID,
		"comment_id", comment.ID,
		"status", t.To,
		"reason", t.FailureReason,
	)
	return nil
}

func translateTransitionError(err error, notFoundMsg, internalMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		return errAlreadyProcessed
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

func (s *Service) dropSession(ctx context.Context, token string) {
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.logWarn(ctx, "failed to delete verification session",
			"token", token,
			"error", err,
		)
	}
}
