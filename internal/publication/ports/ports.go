// Package ports declares the collaborators the publication pipeline talks to
// outside its own store: the proof verifier, the verification session store
// and the reward subsystem.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Verifier,SessionStore,RewardNotifier

import (
	"context"

	"sphere/internal/publication/models"
	id "sphere/pkg/domain"
)

// Verifier checks zero-knowledge passport proofs. Its answers are untrusted:
// the pipeline re-validates the returned claim before acting on it.
type Verifier interface {
	// CorrelationToken extracts the token bound into the proof's public
	// signals when the session was minted.
	CorrelationToken(ctx context.Context, publicSignals []string) (string, error)
	Verify(ctx context.Context, req models.VerifyRequest) (*models.VerificationResult, error)
}

// SessionStore holds verification sessions between create and callback.
// Get returns sentinel.ErrNotFound for unknown or lapsed tokens.
type SessionStore interface {
	Save(ctx context.Context, session *models.VerificationSession) error
	Get(ctx context.Context, token string) (*models.VerificationSession, error)
	Delete(ctx context.Context, token string) error
}

// RewardNotifier is told about comments that became posted on reward-enabled
// posts. Failures never affect the comment.
type RewardNotifier interface {
	NotifyEligibleForReward(ctx context.Context, postID id.PostID, userID id.UserID, rewardType models.RewardType) error
}
