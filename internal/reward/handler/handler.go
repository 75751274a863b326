package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sphere/internal/reward/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/httputil"
	"sphere/pkg/requestcontext"
)

type Service interface {
	ListForUser(ctx context.Context, userID id.UserID) ([]*models.Reward, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts GET /rewards behind requireAuth.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Get("/rewards", h.HandleListRewards)
}

type RewardResponse struct {
	RewardID   string    `json:"reward_id"`
	PostID     string    `json:"post_id"`
	RewardType int       `json:"reward_type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// HandleListRewards lists the caller's rewards.
func (h *Handler) HandleListRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	rewards, err := h.service.ListForUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list rewards failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := make([]RewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		resp = append(resp, RewardResponse{
			RewardID:   rw.ID.String(),
			PostID:     rw.PostID.String(),
			RewardType: int(rw.Type),
			Status:     string(rw.Status),
			CreatedAt:  rw.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
