// Package models holds reward records: a commenter became eligible for a
// post's reward and the payout is pending.
package models

import (
	"time"

	pubmodels "sphere/internal/publication/models"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// EventEligible is the event type published when a reward is recorded.
const EventEligible = "reward.eligible"

type Reward struct {
	ID        id.RewardID
	PostID    id.PostID
	UserID    id.UserID
	Type      pubmodels.RewardType
	Status    Status
	CreatedAt time.Time
}

func NewPendingReward(rewardID id.RewardID, postID id.PostID, userID id.UserID, rewardType pubmodels.RewardType, now time.Time) (*Reward, error) {
	if rewardID.IsNil() || postID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reward, post and user IDs are required")
	}
	if !rewardType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown reward type")
	}
	return &Reward{
		ID:        rewardID,
		PostID:    postID,
		UserID:    userID,
		Type:      rewardType,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// EligibleEvent is the payload of EventEligible. Payout workers key on
// RewardID for idempotency.
type EligibleEvent struct {
	EventType  string    `json:"event_type"`
	RewardID   string    `json:"reward_id"`
	PostID     string    `json:"post_id"`
	UserID     string    `json:"user_id"`
	RewardType int       `json:"reward_type"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *Reward) EligibleEvent() EligibleEvent {
	return EligibleEvent{
		EventType:  EventEligible,
		RewardID:   r.ID.String(),
		PostID:     r.PostID.String(),
		UserID:     r.UserID.String(),
		RewardType: int(r.Type),
		CreatedAt:  r.CreatedAt,
	}
}
