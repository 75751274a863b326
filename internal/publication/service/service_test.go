package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sphere/internal/identity"
	"sphere/internal/publication/metrics"
	"sphere/internal/publication/models"
	"sphere/internal/publication/ports/mocks"
	"sphere/internal/publication/store/memory"
	"sphere/internal/publication/store/session"
	"sphere/internal/restriction"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/platform/audit/publisher"
	auditmemory "sphere/pkg/platform/audit/store/memory"
	"sphere/pkg/platform/sentinel"
	"sphere/pkg/requestcontext"
)

// =============================================================================
// Publication Service Test Suite
// =============================================================================
// Runs the pipeline against in-memory stores with a mocked verifier. The
// verifier mock treats the first public signal as the correlation token.

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	verifier *mocks.MockVerifier
	rewards  *mocks.MockRewardNotifier
	posts    *memory.PostStore
	comments *memory.CommentStore
	sessions *session.MemoryStore
	audit    *auditmemory.InMemoryStore
	metrics  *metrics.Metrics
	now      time.Time
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockVerifier(s.ctrl)
	s.rewards = mocks.NewMockRewardNotifier(s.ctrl)
	s.posts = memory.NewPostStore()
	s.comments = memory.NewCommentStore()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.sessions = session.NewMemoryStoreWithClock(func() time.Time { return s.now })
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	s.verifier.EXPECT().CorrelationToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, signals []string) (string, error) {
			return signals[0], nil
		}).AnyTimes()

	s.service = New(s.posts, s.comments, s.sessions, s.verifier, NewShardedTx(), Config{
		PostScope:      "sphere-post",
		CommentScope:   "sphere-comment",
		PublicEndpoint: "https://api.sphere.test/",
		PendingTTL:     30 * time.Minute,
	},
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithMetrics(s.metrics),
		WithRewardNotifier(s.rewards),
	)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func callback(token string) models.Callback {
	return models.Callback{Proof: json.RawMessage(`{"pi_a":["1"]}`), PublicSignals: []string{token}}
}

func validResult(claim identity.Claim) *models.VerificationResult {
	return &models.VerificationResult{IsValid: true, CredentialSubject: claim}
}

func (s *ServiceSuite) expectVerify(claim identity.Claim) {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(validResult(claim), nil)
}

// postedPost creates and verifies a post, returning its ID.
func (s *ServiceSuite) postedPost(rules *restriction.CommentRestriction, reward models.RewardConfig) id.PostID {
	author := id.NewUserID()
	res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{
		AuthorID:    author,
		Title:       "Weekend hike",
		Content:     "Who is in?",
		Restriction: rules,
		Reward:      reward,
	})
	s.Require().NoError(err)
	s.expectVerify(identity.Claim{Nationality: identity.Str("FRA")})
	_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
	s.Require().NoError(err)
	return res.PostID
}

func (s *ServiceSuite) pendingComment(postID id.PostID) (*CreateResult, id.UserID) {
	author := id.NewUserID()
	res, err := s.service.CreateComment(s.ctx(), CreateCommentCommand{AuthorID: author, PostID: postID, Content: "count me in"})
	s.Require().NoError(err)
	return res, author
}

func (s *ServiceSuite) auditActions(userID id.UserID) []string {
	events, err := s.audit.ListByUser(context.Background(), userID)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

// =============================================================================
// Post creation
// =============================================================================

func (s *ServiceSuite) TestCreatePost() {
	s.Run("pending post gets a session keyed by its id", func() {
		author := id.NewUserID()
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{
			AuthorID:        author,
			Title:           "Hello",
			Content:         "World",
			Disclosures:     map[string]bool{"nationality": true, "gender": true},
			VerifierOptions: models.VerifierOptions{MinimumAge: 18, ExcludedCountries: []string{"PRK"}, OFAC: true},
		})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, res.Status)
		s.Equal(res.PostID.String(), res.Token)
		s.Equal(s.now.Add(30*time.Minute), res.ExpiresAt)
		s.Equal("sphere-post", res.Config.Scope)
		s.Equal("https://api.sphere.test/verify/post", res.Config.Endpoint)
		s.Equal(18, res.Config.MinimumAge)
		s.Equal([]string{"PRK"}, res.Config.ExcludedCountries)
		s.True(res.Config.OFAC)
		s.True(res.Config.Disclosures["gender"])
		s.False(res.Config.Disclosures["name"])

		stored, err := s.sessions.Get(context.Background(), res.Token)
		s.Require().NoError(err)
		s.Equal(models.KindPost, stored.Kind)
		s.Equal(author, stored.AuthorID)

		s.Equal([]string{string(audit.EventPostCreated)}, s.auditActions(author))
	})

	s.Run("anonymous author is rejected", func() {
		_, err := s.service.CreatePost(s.ctx(), CreatePostCommand{Title: "t", Content: "c"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("invalid input is a validation error", func() {
		_, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: " ", Content: "c"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown disclosure attribute is rejected", func() {
		_, err := s.service.CreatePost(s.ctx(), CreatePostCommand{
			AuthorID:    id.NewUserID(),
			Title:       "t",
			Content:     "c",
			Disclosures: map[string]bool{"shoe_size": true},
		})
		s.Error(err)
	})

	s.Run("a new post supersedes the author's pending one", func() {
		author := id.NewUserID()
		first, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: author, Title: "one", Content: "c"})
		s.Require().NoError(err)
		second, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: author, Title: "two", Content: "c"})
		s.Require().NoError(err)

		prev, err := s.posts.FindByID(context.Background(), first.PostID)
		s.Require().NoError(err)
		s.Equal(models.StatusFailed, prev.Status)
		s.Equal(models.FailureSuperseded, prev.FailureReason)

		_, err = s.sessions.Get(context.Background(), first.Token)
		s.ErrorIs(err, sentinel.ErrNotFound)

		current, err := s.posts.FindByID(context.Background(), second.PostID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, current.Status)
		s.Contains(s.auditActions(author), string(audit.EventPendingSuperseded))
	})
}

func (s *ServiceSuite) TestCreatePost_SessionStoreFailure() {
	sessions := mocks.NewMockSessionStore(s.ctrl)
	sessions.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
	svc := New(s.posts, s.comments, sessions, s.verifier, NewShardedTx(), Config{})

	author := id.NewUserID()
	_, err := svc.CreatePost(s.ctx(), CreatePostCommand{AuthorID: author, Title: "t", Content: "c"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// The failed post is no longer pending, so nothing is superseded next time.
	_, err = s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: author, Title: "t", Content: "c"})
	s.Require().NoError(err)
	s.Equal([]string{string(audit.EventPostCreated)}, s.auditActions(author))
}

// =============================================================================
// Post verification
// =============================================================================

func (s *ServiceSuite) TestVerifyPost() {
	s.Run("valid proof posts with only disclosed attributes", func() {
		author := id.NewUserID()
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{
			AuthorID:    author,
			Title:       "t",
			Content:     "c",
			Disclosures: map[string]bool{"nationality": true, "date_of_birth": true},
		})
		s.Require().NoError(err)

		s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req models.VerifyRequest) (*models.VerificationResult, error) {
				s.Equal(res.Token, req.Config.Token)
				return validResult(identity.Claim{
					Nationality: identity.Str("FRA"),
					DateOfBirth: identity.Str("15-06-90"),
					Gender:      identity.Str("F"),
				}), nil
			})

		out, err := s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.Require().NoError(err)
		s.Equal(models.StatusPosted, out.Status)
		s.Equal("FRA", out.Subject["nationality"])
		s.Equal(identity.NotDisclosed, out.Subject["gender"])

		post, err := s.posts.FindByID(context.Background(), res.PostID)
		s.Require().NoError(err)
		s.Equal(models.StatusPosted, post.Status)
		s.Equal("FRA", post.DisclosedAttributes["nationality"])
		s.Equal("15-06-90", post.DisclosedAttributes["date_of_birth"])
		s.Equal(35, post.DisclosedAttributes["age"])
		s.NotContains(post.DisclosedAttributes, "gender")

		s.Zero(s.sessions.Len())
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Transitions.WithLabelValues("post", "posted")))
	})

	s.Run("invalid proof fails the post", func() {
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
		s.Require().NoError(err)
		s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(&models.VerificationResult{IsValid: false}, nil)

		_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))

		post, err := s.posts.FindByID(context.Background(), res.PostID)
		s.Require().NoError(err)
		s.Equal(models.StatusFailed, post.Status)
		s.Equal(models.FailureProofInvalid, post.FailureReason)
	})

	s.Run("verifier error fails the post", func() {
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
		s.Require().NoError(err)
		s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

		_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))

		post, err := s.posts.FindByID(context.Background(), res.PostID)
		s.Require().NoError(err)
		s.Equal(models.FailureVerifierError, post.FailureReason)
	})

	s.Run("malformed claim fails the post", func() {
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
		s.Require().NoError(err)
		s.expectVerify(identity.Claim{Gender: identity.Str("Q")})

		_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))

		post, err := s.posts.FindByID(context.Background(), res.PostID)
		s.Require().NoError(err)
		s.Equal(models.FailureInvalidClaim, post.FailureReason)
	})

	s.Run("author below their own minimum age is not eligible", func() {
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{
			AuthorID:        id.NewUserID(),
			Title:           "t",
			Content:         "c",
			VerifierOptions: models.VerifierOptions{MinimumAge: 21},
		})
		s.Require().NoError(err)
		s.expectVerify(identity.Claim{DateOfBirth: identity.Str("01-01-10")})

		_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))

		post, err := s.posts.FindByID(context.Background(), res.PostID)
		s.Require().NoError(err)
		s.Equal(string(restriction.ReasonAgeBelowMinimum), post.FailureReason)
	})

	s.Run("missing proof is a bad request", func() {
		_, err := s.service.VerifyPost(s.ctx(), models.Callback{PublicSignals: []string{"x"}})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("comment token on the post callback is a bad request", func() {
		postID := s.postedPost(nil, models.RewardConfig{})
		res, _ := s.pendingComment(postID)

		_, err := s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestVerifyPost_Replay() {
	author := id.NewUserID()
	res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: author, Title: "t", Content: "c"})
	s.Require().NoError(err)
	s.expectVerify(identity.Claim{Nationality: identity.Str("FRA")})

	_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
	s.Require().NoError(err)
	before, err := s.posts.FindByID(context.Background(), res.PostID)
	s.Require().NoError(err)

	// No second Verify expectation: a replay must not reach the verifier.
	_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	after, err := s.posts.FindByID(context.Background(), res.PostID)
	s.Require().NoError(err)
	s.Equal(before, after)
	s.Contains(s.auditActions(author), string(audit.EventVerificationReplayed))
}

func (s *ServiceSuite) TestVerifyPost_SessionGone() {
	s.Run("deleted session fails the pending post", func() {
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
		s.Require().NoError(err)
		s.Require().NoError(s.sessions.Delete(context.Background(), res.Token))

		_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		post, err := s.posts.FindByID(context.Background(), res.PostID)
		s.Require().NoError(err)
		s.Equal(models.StatusFailed, post.Status)
		s.Equal(models.FailureSessionMissing, post.FailureReason)
	})

	s.Run("expired session fails the pending post", func() {
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
		s.Require().NoError(err)
		s.now = s.now.Add(31 * time.Minute)

		_, err = s.service.VerifyPost(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		post, err := s.posts.FindByID(context.Background(), res.PostID)
		s.Require().NoError(err)
		s.Equal(models.FailureSessionMissing, post.FailureReason)
	})

	s.Run("unknown token is not found", func() {
		_, err := s.service.VerifyPost(s.ctx(), callback(id.NewPostID().String()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Comments and eligibility
// =============================================================================

func (s *ServiceSuite) TestCreateComment() {
	s.Run("session config asks for what the restriction checks", func() {
		postID := s.postedPost(&restriction.CommentRestriction{
			Nationality: &restriction.NationalityRule{Mode: restriction.NationalityInclude, Countries: []string{"FRA"}},
			MinimumAge:  18,
		}, models.RewardConfig{})

		res, _ := s.pendingComment(postID)
		s.Equal(models.KindComment, res.Kind)
		s.Equal(res.CommentID.String(), res.Token)
		s.Equal("sphere-comment", res.Config.Scope)
		s.Equal("https://api.sphere.test/verify/comment", res.Config.Endpoint)
		s.Equal("FRA", res.Config.Nationality)
		s.Equal(18, res.Config.MinimumAge)
		s.True(res.Config.Disclosures["nationality"])
		s.True(res.Config.Disclosures["date_of_birth"])
		s.False(res.Config.Disclosures["gender"])
	})

	s.Run("pending post cannot be commented on", func() {
		res, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
		s.Require().NoError(err)
		_, err = s.service.CreateComment(s.ctx(), CreateCommentCommand{AuthorID: id.NewUserID(), PostID: res.PostID, Content: "hi"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("second comment on the same post supersedes the first", func() {
		postID := s.postedPost(nil, models.RewardConfig{})
		author := id.NewUserID()
		first, err := s.service.CreateComment(s.ctx(), CreateCommentCommand{AuthorID: author, PostID: postID, Content: "a"})
		s.Require().NoError(err)
		_, err = s.service.CreateComment(s.ctx(), CreateCommentCommand{AuthorID: author, PostID: postID, Content: "b"})
		s.Require().NoError(err)

		prev, err := s.comments.FindByID(context.Background(), first.CommentID)
		s.Require().NoError(err)
		s.Equal(models.FailureSuperseded, prev.FailureReason)
	})
}

func (s *ServiceSuite) TestVerifyComment_Eligibility() {
	franceOnly := &restriction.CommentRestriction{
		Nationality: &restriction.NationalityRule{Mode: restriction.NationalityInclude, Countries: []string{"FRA"}},
	}

	tests := []struct {
		name   string
		claim  identity.Claim
		status models.Status
		reason string
	}{
		{
			name:   "matching nationality posts",
			claim:  identity.Claim{Nationality: identity.Str("FRA")},
			status: models.StatusPosted,
		},
		{
			name:   "other nationality is denied",
			claim:  identity.Claim{Nationality: identity.Str("DEU")},
			status: models.StatusFailed,
			reason: string(restriction.ReasonNationalityNotAllowed),
		},
		{
			name:   "undisclosed nationality is denied",
			claim:  identity.Claim{Gender: identity.Str("M")},
			status: models.StatusFailed,
			reason: string(restriction.ReasonClaimNotDisclosed),
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			postID := s.postedPost(franceOnly, models.RewardConfig{})
			res, author := s.pendingComment(postID)
			s.expectVerify(tt.claim)

			out, err := s.service.VerifyComment(s.ctx(), callback(res.Token))
			if tt.status == models.StatusPosted {
				s.Require().NoError(err)
				s.Equal(models.StatusPosted, out.Status)
			} else {
				s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
				s.Contains(s.auditActions(author), string(audit.EventCommentDenied))
			}

			comment, err := s.comments.FindByID(context.Background(), res.CommentID)
			s.Require().NoError(err)
			s.Equal(tt.status, comment.Status)
			s.Equal(tt.reason, comment.FailureReason)
		})
	}

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Denials.WithLabelValues(string(restriction.ReasonNationalityNotAllowed))))
}

func (s *ServiceSuite) TestVerifyComment_MissingClaimPolicy() {
	s.service.policy = restriction.MissingClaimAllow
	postID := s.postedPost(&restriction.CommentRestriction{Gender: "F"}, models.RewardConfig{})
	res, _ := s.pendingComment(postID)
	s.expectVerify(identity.Claim{Nationality: identity.Str("FRA")})

	out, err := s.service.VerifyComment(s.ctx(), callback(res.Token))
	s.Require().NoError(err)
	s.Equal(models.StatusPosted, out.Status)
}

func (s *ServiceSuite) TestVerifyComment_Rewards() {
	s.Run("reward-enabled post notifies for the commenter", func() {
		postID := s.postedPost(nil, models.RewardConfig{Enabled: true, Type: models.RewardParticipation})
		res, author := s.pendingComment(postID)
		s.expectVerify(identity.Claim{})
		s.rewards.EXPECT().NotifyEligibleForReward(gomock.Any(), postID, author, models.RewardParticipation).Return(nil)

		_, err := s.service.VerifyComment(s.ctx(), callback(res.Token))
		s.Require().NoError(err)
		s.service.Wait()
	})

	s.Run("notification failure does not undo the comment", func() {
		postID := s.postedPost(nil, models.RewardConfig{Enabled: true, Type: models.RewardFirstCommenter})
		res, _ := s.pendingComment(postID)
		s.expectVerify(identity.Claim{})
		s.rewards.EXPECT().NotifyEligibleForReward(gomock.Any(), postID, gomock.Any(), models.RewardFirstCommenter).
			Return(errors.New("broker unavailable"))

		out, err := s.service.VerifyComment(s.ctx(), callback(res.Token))
		s.Require().NoError(err)
		s.Equal(models.StatusPosted, out.Status)
		s.service.Wait()
	})

	s.Run("stalled notifier does not hold the callback", func() {
		svc := New(s.posts, s.comments, s.sessions, s.verifier, NewShardedTx(), Config{
			PostScope:      "sphere-post",
			CommentScope:   "sphere-comment",
			PublicEndpoint: "https://api.sphere.test/",
			PendingTTL:     30 * time.Minute,
		},
			WithRewardNotifier(s.rewards),
			WithRewardTimeout(50*time.Millisecond),
		)
		postID := s.postedPost(nil, models.RewardConfig{Enabled: true, Type: models.RewardParticipation})
		res, author := s.pendingComment(postID)
		s.expectVerify(identity.Claim{})

		notifyErr := make(chan error, 1)
		s.rewards.EXPECT().NotifyEligibleForReward(gomock.Any(), postID, author, models.RewardParticipation).
			DoAndReturn(func(ctx context.Context, _ id.PostID, _ id.UserID, _ models.RewardType) error {
				select {
				case <-ctx.Done():
					notifyErr <- ctx.Err()
				case <-time.After(2 * time.Second):
					notifyErr <- nil
				}
				return errors.New("broker unreachable")
			})

		reqCtx, cancel := context.WithTimeout(s.ctx(), 100*time.Millisecond)
		defer cancel()
		start := time.Now()
		out, err := svc.VerifyComment(reqCtx, callback(res.Token))
		s.Require().NoError(err)
		s.Equal(models.StatusPosted, out.Status)
		s.Less(time.Since(start), time.Second)

		svc.Wait()
		s.ErrorIs(<-notifyErr, context.DeadlineExceeded)
	})

	s.Run("denied comment earns nothing", func() {
		postID := s.postedPost(&restriction.CommentRestriction{Gender: "F"}, models.RewardConfig{Enabled: true, Type: models.RewardParticipation})
		res, _ := s.pendingComment(postID)
		s.expectVerify(identity.Claim{Gender: identity.Str("M")})

		_, err := s.service.VerifyComment(s.ctx(), callback(res.Token))
		s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
	})
}

// =============================================================================
// Reads, likes and sweeping
// =============================================================================

func (s *ServiceSuite) TestReads() {
	postID := s.postedPost(nil, models.RewardConfig{})
	res, _ := s.pendingComment(postID)

	pending, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "draft", Content: "c"})
	s.Require().NoError(err)

	s.Run("feed only lists posted posts", func() {
		feed, err := s.service.ListFeed(s.ctx(), 0, time.Time{})
		s.Require().NoError(err)
		s.Require().Len(feed, 1)
		s.Equal(postID, feed[0].ID)
	})

	s.Run("pending post is not found", func() {
		_, err := s.service.GetPost(s.ctx(), pending.PostID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("pending comments are hidden", func() {
		details, err := s.service.GetPost(s.ctx(), postID)
		s.Require().NoError(err)
		s.Empty(details.Comments)

		s.expectVerify(identity.Claim{})
		_, err = s.service.VerifyComment(s.ctx(), callback(res.Token))
		s.Require().NoError(err)

		comments, err := s.service.ListComments(s.ctx(), postID)
		s.Require().NoError(err)
		s.Len(comments, 1)
	})

	s.Run("session status follows the entity", func() {
		status, err := s.service.SessionStatus(s.ctx(), pending.Token)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, status.Status)
		s.Equal(models.KindPost, status.Kind)

		status, err = s.service.SessionStatus(s.ctx(), res.Token)
		s.Require().NoError(err)
		s.Equal(models.StatusPosted, status.Status)
		s.Equal(models.KindComment, status.Kind)

		_, err = s.service.SessionStatus(s.ctx(), "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestLikes() {
	postID := s.postedPost(nil, models.RewardConfig{})
	user := id.NewUserID()

	res, err := s.service.LikePost(s.ctx(), user, postID)
	s.Require().NoError(err)
	s.Equal(1, res.LikesCount)

	res, err = s.service.LikePost(s.ctx(), user, postID)
	s.Require().NoError(err)
	s.Equal(1, res.LikesCount)

	res, err = s.service.UnlikePost(s.ctx(), user, postID)
	s.Require().NoError(err)
	s.Equal(0, res.LikesCount)
	s.False(res.Liked)

	_, err = s.service.LikePost(s.ctx(), id.UserID{}, postID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.LikePost(s.ctx(), user, id.NewPostID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Equal([]string{string(audit.EventPostLiked), string(audit.EventPostLiked), string(audit.EventPostUnliked)}, s.auditActions(user))
}

func (s *ServiceSuite) TestSweepExpired() {
	postID := s.postedPost(nil, models.RewardConfig{})
	comment, _ := s.pendingComment(postID)
	stale, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
	s.Require().NoError(err)

	s.now = s.now.Add(45 * time.Minute)
	fresh, err := s.service.CreatePost(s.ctx(), CreatePostCommand{AuthorID: id.NewUserID(), Title: "t", Content: "c"})
	s.Require().NoError(err)

	result, err := s.service.SweepExpired(s.ctx(), s.now.Add(-s.service.PendingTTL()))
	s.Require().NoError(err)
	s.Equal([]id.PostID{stale.PostID}, result.Posts)
	s.Equal([]id.CommentID{comment.CommentID}, result.Comments)
	s.Equal(2, result.Total())

	post, err := s.posts.FindByID(context.Background(), stale.PostID)
	s.Require().NoError(err)
	s.Equal(models.FailureExpired, post.FailureReason)

	post, err = s.posts.FindByID(context.Background(), fresh.PostID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, post.Status)

	s.Equal(float64(2), testutil.ToFloat64(s.metrics.SweepExpired))
}

func (s *ServiceSuite) TestShardedTx_Nested() {
	tx := NewShardedTx()
	ctx := requestcontext.WithUserID(context.Background(), id.NewUserID())
	calls := 0
	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		calls++
		return tx.RunInTx(ctx, func(context.Context) error {
			calls++
			return nil
		})
	})
	s.Require().NoError(err)
	s.Equal(2, calls)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = tx.RunInTx(cancelled, func(context.Context) error { return nil })
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
