package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sphere/internal/users/models"
	"sphere/internal/users/service"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/httputil"
	"sphere/pkg/requestcontext"
)

type Service interface {
	Resolve(ctx context.Context, walletAddress string) (*service.ResolveResult, error)
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts POST /users/resolve and GET /users/me.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/users/resolve", h.HandleResolve)
	r.With(requireAuth).Get("/users/me", h.HandleMe)
}

type ResolveRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (r *ResolveRequest) Validate() error {
	r.WalletAddress = strings.TrimSpace(r.WalletAddress)
	if r.WalletAddress == "" {
		return dErrors.New(dErrors.CodeValidation, "wallet_address is required")
	}
	return nil
}

type UserResponse struct {
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	Created       bool      `json:"created,omitempty"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{UserID: u.ID.String(), WalletAddress: u.WalletAddress, CreatedAt: u.CreatedAt}
}

// HandleResolve maps a wallet address to its user, creating it on first
// sight. Responds 201 when a user was created and 200 otherwise.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Resolve(ctx, req.WalletAddress)
	if err != nil {
		h.logger.WarnContext(ctx, "resolve user failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := toUserResponse(res.User)
	resp.Created = res.Created
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	user, err := h.service.Get(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "get user failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
