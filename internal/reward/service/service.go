// Package service records reward eligibility for verified comments and
// announces it to payout workers. Payout itself happens elsewhere.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	pubmodels "sphere/internal/publication/models"
	pubports "sphere/internal/publication/ports"
	"sphere/internal/reward/metrics"
	"sphere/internal/reward/models"
	"sphere/internal/reward/ports"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/platform/sentinel"
	"sphere/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, reward *models.Reward) error
	ExistsForPost(ctx context.Context, postID id.PostID, rewardType pubmodels.RewardType) (bool, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Reward, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

var _ pubports.RewardNotifier = (*Service)(nil)

type Service struct {
	store          Store
	publisher      ports.EventPublisher
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

// WithEventPublisher enables reward.eligible events. Without one, rewards are
// only recorded.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyEligibleForReward records a pending reward for a verified commenter.
// First-commenter rewards are granted once per post; later commenters are
// skipped without error. Participation rewards are recorded per verified
// comment.
func (s *Service) NotifyEligibleForReward(ctx context.Context, postID id.PostID, userID id.UserID, rewardType pubmodels.RewardType) error {
	now := requestcontext.Now(ctx)
	reward, err := models.NewPendingReward(id.NewRewardID(), postID, userID, rewardType, now)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}

	if rewardType == pubmodels.RewardFirstCommenter {
		granted, err := s.store.ExistsForPost(ctx, postID, rewardType)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing rewards")
		}
		if granted {
			s.logSkipped(ctx, reward)
			return nil
		}
	}

	if err := s.store.Create(ctx, reward); err != nil {
		if errors.Is(err, sentinel.ErrConflict) && rewardType == pubmodels.RewardFirstCommenter {
			// Another commenter was verified first.
			s.logSkipped(ctx, reward)
			return nil
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "post or user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record reward")
	}

	if s.metrics != nil {
		s.metrics.IncrementRecorded(strconv.Itoa(int(rewardType)))
	}
	s.logAudit(ctx, reward)

	return s.publish(ctx, reward)
}

// ListForUser returns the rewards recorded for userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID id.UserID) ([]*models.Reward, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	rewards, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rewards")
	}
	return rewards, nil
}

func (s *Service) publish(ctx context.Context, reward *models.Reward) error {
	if s.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(reward.EligibleEvent())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode reward event")
	}
	headers := map[string]string{"event_type": models.EventEligible}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		headers["request_id"] = requestID
	}
	// Keyed by post so a post's rewards stay ordered within a partition.
	if err := s.publisher.Publish(ctx, reward.PostID.String(), payload, headers); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementPublishFailure()
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "reward recorded but event not published")
	}
	return nil
}

func (s *Service) logSkipped(ctx context.Context, reward *models.Reward) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "first commenter reward already granted",
			"request_id", requestcontext.RequestID(ctx),
			"post_id", reward.PostID,
			"user_id", reward.UserID,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, reward *models.Reward) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(audit.EventRewardRecorded),
			"request_id", requestID,
			"reward_id", reward.ID,
			"post_id", reward.PostID,
			"user_id", reward.UserID,
			"reward_type", int(reward.Type),
			"event", string(audit.EventRewardRecorded),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:     reward.UserID,
		Subject:    reward.PostID.String(),
		Action:     string(audit.EventRewardRecorded),
		Decision:   string(reward.Status),
		Reason:     "reward_type_" + strconv.Itoa(int(reward.Type)),
		RequestID:  requestID,
		ClientKind: requestcontext.ClientKind(ctx),
	})
}
