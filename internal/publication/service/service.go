package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"sphere/internal/publication/metrics"
	"sphere/internal/publication/models"
	"sphere/internal/publication/ports"
	"sphere/internal/restriction"
	"sphere/pkg/attrs"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/audit"
	"sphere/pkg/requestcontext"
)

// PostStore persists posts. Terminal writes are compare-and-swap on the
// pending status: a post that is no longer pending yields
// sentinel.ErrInvalidState.
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, postID id.PostID) (*models.Post, error)
	// FailPendingByAuthor fails every pending post of the author and returns
	// their IDs. Inside a transaction the rows stay locked until commit.
	FailPendingByAuthor(ctx context.Context, authorID id.UserID, reason string, at time.Time) ([]id.PostID, error)
	Transition(ctx context.Context, postID id.PostID, t models.Transition) error
	ListPosted(ctx context.Context, limit int, before time.Time) ([]*models.Post, error)
	ExpirePending(ctx context.Context, olderThan, at time.Time) ([]id.PostID, error)
	// AddLike and RemoveLike are idempotent and return the resulting count.
	AddLike(ctx context.Context, postID id.PostID, userID id.UserID, at time.Time) (int, error)
	RemoveLike(ctx context.Context, postID id.PostID, userID id.UserID) (int, error)
}

// CommentStore persists comments with the same compare-and-swap contract as
// PostStore.
type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, commentID id.CommentID) (*models.Comment, error)
	FailPendingByAuthor(ctx context.Context, postID id.PostID, authorID id.UserID, reason string, at time.Time) ([]id.CommentID, error)
	Transition(ctx context.Context, commentID id.CommentID, t models.Transition) error
	ListPostedByPost(ctx context.Context, postID id.PostID) ([]*models.Comment, error)
	ExpirePending(ctx context.Context, olderThan, at time.Time) ([]id.CommentID, error)
}

// TxRunner runs fn atomically. Stores called with the derived context join
// the transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config carries the verifier-facing settings baked into each session.
type Config struct {
	PostScope      string
	CommentScope   string
	PublicEndpoint string
	PendingTTL     time.Duration
}

const (
	defaultPendingTTL = 30 * time.Minute
	defaultFeedLimit  = 20
	maxFeedLimit      = 100
	maxCreateAttempts = 3

	defaultRewardTimeout = 10 * time.Second
)

// Service runs the publication pipeline: pending creation, verification
// callbacks and the reads that only ever expose posted entities.
type Service struct {
	posts    PostStore
	comments CommentStore
	sessions ports.SessionStore
	verifier ports.Verifier
	tx       TxRunner
	cfg      Config

	rewards        ports.RewardNotifier
	rewardTimeout  time.Duration
	background     sync.WaitGroup
	policy         restriction.MissingClaimPolicy
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRewardNotifier enables reward notifications for verified comments.
func WithRewardNotifier(n ports.RewardNotifier) Option {
	return func(s *Service) {
		s.rewards = n
	}
}

// WithRewardTimeout bounds each background reward notification.
func WithRewardTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.rewardTimeout = d
		}
	}
}

// WithMissingClaimPolicy overrides the fail-closed default for restriction
// predicates whose attribute the claim lacks.
func WithMissingClaimPolicy(p restriction.MissingClaimPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(posts PostStore, comments CommentStore, sessions ports.SessionStore, verifier ports.Verifier, tx TxRunner, cfg Config, opts ...Option) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	s := &Service{
		posts:    posts,
		comments: comments,
		sessions: sessions,
		verifier: verifier,
		tx:       tx,
		cfg:      cfg,
		policy:   restriction.MissingClaimDeny,

		rewardTimeout: defaultRewardTimeout,
		tracer:   otel.Tracer("sphere/publication"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PendingTTL is how long an entity may wait for its verification callback.
func (s *Service) PendingTTL() time.Duration {
	return s.cfg.PendingTTL
}

// Wait blocks until in-flight reward notifications have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	subject := attrs.ExtractString(attributes, "comment_id")
	if subject == "" {
		subject = attrs.ExtractString(attributes, "post_id")
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:     attrs.ExtractUserID(attributes, "user_id"),
		Subject:    subject,
		Action:     string(event),
		Decision:   attrs.ExtractString(attributes, "status"),
		Reason:     attrs.ExtractString(attributes, "reason"),
		RequestID:  requestID,
		ClientKind: requestcontext.ClientKind(ctx),
	})
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, args...)
	}
}

func (s *Service) incrementCreated(kind models.Kind) {
	if s.metrics != nil {
		s.metrics.IncrementCreated(string(kind))
	}
}

func (s *Service) incrementTransition(kind models.Kind, status models.Status) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(kind), string(status))
	}
}

func (s *Service) incrementDenial(reason restriction.DenyReason) {
	if s.metrics != nil {
		s.metrics.IncrementDenial(string(reason))
	}
}

func (s *Service) observeVerifier(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveVerifier(start)
	}
}
