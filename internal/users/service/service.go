// Package service resolves wallet addresses to forum users.
package service

import (
	"context"
	"errors"
	"log/slog"

	"sphere/internal/users/models"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/platform/sentinel"
	"sphere/pkg/requestcontext"
)

type Store interface {
	GetOrCreate(ctx context.Context, candidate *models.User) (*models.User, error)
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveResult reports the user for a wallet and whether this call created it.
type ResolveResult struct {
	User    *models.User
	Created bool
}

// Resolve returns the user owning walletAddress, creating one on first sight.
// Addresses are compared in checksummed form.
func (s *Service) Resolve(ctx context.Context, walletAddress string) (*ResolveResult, error) {
	candidate, err := models.NewUser(id.NewUserID(), walletAddress, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetOrCreate(ctx, candidate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve user")
	}
	created := user.ID == candidate.ID
	if created {
		s.logAudit(ctx, user)
	}
	return &ResolveResult{User: user, Created: created}, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) logAudit(ctx context.Context, user *models.User) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(audit.EventUserCreated),
			"request_id", requestID,
			"user_id", user.ID,
			"event", string(audit.EventUserCreated),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		UserID:     user.ID,
		Subject:    user.WalletAddress,
		Action:     string(audit.EventUserCreated),
		RequestID:  requestID,
		ClientKind: requestcontext.ClientKind(ctx),
	})
}
